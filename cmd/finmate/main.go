package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finmate/internal/auth"
	"finmate/internal/cli"
	apphttp "finmate/internal/http"
	"finmate/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	provider, err := auth.New(cfg.JWTSecret, cfg.DefaultOwnerID)
	if err != nil {
		logger.Error("Failed to configure authentication", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every request acts as the default owner",
			log.FieldOwnerID, cfg.DefaultOwnerID)
	}

	ledger, store := cli.MustOpenLedger(context.Background(), cfg, logger)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, provider, apphttp.Options{
		ProjectionCacheSize: cfg.ProjectionCacheSize,
		ProjectionCacheTTL:  cfg.ProjectionCacheTTL,
		Logger:              logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Failed to close ledger backend", log.FieldError, err)
		}
	})

	logger.Info("Starting finmate server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", store.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
