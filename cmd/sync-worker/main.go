package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finmate/internal/amqp"
	"finmate/internal/cli"
	"finmate/internal/log"
	gsheet "finmate/internal/sheets/google"
	"finmate/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the sync worker")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}

	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		logger.Error("Failed to load Google credentials", log.FieldError, err)
		os.Exit(1)
	}
	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: creds,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// The worker only reads ledgers, so it opens the store without a publisher.
	readCfg := *cfg
	readCfg.AMQPURL = ""
	ledger, store := cli.MustOpenLedger(context.Background(), &readCfg, logger)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(ledger, sheetsClient, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Failed to close ledger backend", log.FieldError, err)
		}
	})

	// Export the current period for everyone in case events were lost
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx, store.Store, time.Now()); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	go func() {
		if err := consumer.ConsumeLedgerEvents(ctx, syncWorker.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
