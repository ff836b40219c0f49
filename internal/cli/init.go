// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/finmate, cmd/rollover-worker, cmd/sync-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finmate/internal/backend"
	"finmate/internal/config"
	"finmate/internal/log"
	"finmate/internal/services"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging for a binary. The level comes
// from LOG_LEVEL; an unknown value falls back to info and is reported once
// config validation runs.
func SetupLogger(component string) *log.Logger {
	level, _ := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	logger.SetDefault()
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// OpenLedger creates the configured backend and a ledger service on top of
// it. The caller owns the returned backend and must Close it.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.LedgerService, *backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}

	guard, err := services.ParseGuardMode(cfg.RolloverGuard)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("rollover guard: %w", err)
	}

	ledger := services.NewLedgerService(res.Store, res.Publisher,
		services.WithLogger(logger),
		services.WithDefaultCurrency(cfg.DefaultCurrency),
		services.WithRolloverEngine(services.NewRolloverEngine(services.WithGuard(guard))))
	return ledger, res, nil
}

// MustOpenLedger is OpenLedger for binaries: it exits the process on
// failure.
func MustOpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.LedgerService, *backend.BackendResult) {
	ledger, res, err := OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger backend",
			log.FieldError, err,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	return ledger, res
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
		case <-finished:
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
