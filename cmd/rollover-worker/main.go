package main

import (
	"context"
	"os"
	"time"

	"finmate/internal/cli"
	"finmate/internal/log"
	"finmate/internal/services"

	"github.com/robfig/cron/v3"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentScheduler)
	logger.Info("Starting rollover-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	ledger, store := cli.MustOpenLedger(context.Background(), cfg, logger)
	processor := services.NewRolloverProcessor(ledger, store.Store, cfg.RolloverConcurrency, logger)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		// Stop returns a context that is done once running jobs finish
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
		if err := store.Close(); err != nil {
			logger.Error("Failed to close ledger backend", log.FieldError, err)
		}
	})

	run := func(trigger string) {
		report, err := processor.ProcessAll(ctx, time.Now())
		if err != nil {
			logger.Error("Rollover pass failed", log.FieldError, err, "trigger", trigger)
			return
		}
		if len(report.Failed) > 0 {
			logger.Warn("Rollover pass finished with failures",
				"trigger", trigger,
				"failed_owners", report.Failed)
		}
	}

	if _, err := scheduler.AddFunc(cfg.RolloverSchedule, func() { run("schedule") }); err != nil {
		// the schedule was validated with the same parser
		logger.Error("Invalid rollover schedule", log.FieldError, err, "schedule", cfg.RolloverSchedule)
		os.Exit(1)
	}

	logger.Info("Rollover scheduler configured",
		"schedule", cfg.RolloverSchedule,
		log.FieldGuard, cfg.RolloverGuard,
		"concurrency", cfg.RolloverConcurrency,
		"backend", cfg.DataBackend)

	// Catch up on anything missed while the worker was down. The claim
	// table makes this a no-op for periods already rolled over.
	run("startup")

	scheduler.Start()
	cli.WaitForShutdown(ctx, done)
}
