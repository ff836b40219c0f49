package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finmate/internal/amqp"
	"finmate/internal/core"
	"finmate/internal/log"
	"finmate/internal/services"
	"finmate/internal/sheets"
)

// LedgerReader loads an owner's snapshot; *services.LedgerService satisfies it.
type LedgerReader interface {
	Load(ctx context.Context, ownerID string) (core.Snapshot, services.SyncStatus)
}

// OwnerLister enumerates stored owners; every services.DataStore satisfies it.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// SyncWorker exports period summaries to the spreadsheet whenever a ledger
// event arrives.
type SyncWorker struct {
	ledger   LedgerReader
	exporter sheets.SummaryExporter
	logger   *log.Logger

	mu       sync.Mutex
	exported map[string]int64 // owner|period -> last exported version
}

func NewSyncWorker(ledger LedgerReader, exporter sheets.SummaryExporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &SyncWorker{
		ledger:   ledger,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		exported: make(map[string]int64),
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. Events older
// than the last exported version of the same owner and period are skipped.
// A returned error asks the consumer to requeue the message.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, evt amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, evt.Type,
		log.FieldOwnerID, evt.OwnerID,
		log.FieldPeriod, evt.Period,
		log.FieldVersion, evt.Version)

	key := evt.OwnerID + "|" + evt.Period.String()
	w.mu.Lock()
	last, seen := w.exported[key]
	w.mu.Unlock()
	if seen && evt.Version < last {
		w.logger.DebugContext(ctx, "Skipping stale ledger event",
			log.FieldOwnerID, evt.OwnerID,
			log.FieldVersion, evt.Version,
			"exported_version", last)
		return nil
	}

	version, err := w.export(ctx, evt.OwnerID, evt.Period)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if version > w.exported[key] {
		w.exported[key] = version
	}
	w.mu.Unlock()
	return nil
}

func (w *SyncWorker) export(ctx context.Context, ownerID string, period core.PeriodKey) (int64, error) {
	snap, st := w.ledger.Load(ctx, ownerID)
	if !st.Synced {
		return 0, fmt.Errorf("load ledger %s: %w", ownerID, st.Err)
	}

	summary := services.Summarize(snap, period)
	ref, err := w.exporter.ExportPeriod(ctx, ownerID, snap.Currency, summary)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export period summary",
			log.FieldOwnerID, ownerID,
			log.FieldPeriod, period,
			log.FieldError, err)
		return 0, fmt.Errorf("export period summary: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully exported period summary",
		log.FieldOwnerID, ownerID,
		log.FieldPeriod, period,
		log.FieldVersion, snap.Version,
		log.FieldSheetsRef, ref)
	return snap.Version, nil
}

// StartupSyncCheck exports the current period for every stored owner. It
// recovers from events lost while the worker was down; per-owner failures
// are logged and counted but do not abort the pass.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, owners OwnerLister, now time.Time) error {
	ids, err := owners.Owners(ctx)
	if err != nil {
		return fmt.Errorf("list owners for startup check: %w", err)
	}

	if len(ids) == 0 {
		w.logger.InfoContext(ctx, "No ledgers found on startup")
		return nil
	}

	period := core.PeriodAt(now)
	successCount := 0
	errorCount := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		version, err := w.export(ctx, id, period)
		if err != nil {
			errorCount++
			continue
		}
		w.mu.Lock()
		w.exported[id+"|"+period.String()] = version
		w.mu.Unlock()
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup sync check completed",
		log.FieldPeriod, period,
		"successful", successCount,
		"failed", errorCount)
	return nil
}
