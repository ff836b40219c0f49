package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finmate/internal/log"

	"golang.org/x/sync/errgroup"
)

// RolloverReport summarises one pass over every owner.
type RolloverReport struct {
	Owners  int
	Created int
	Failed  []string
}

// RolloverProcessor runs the rollover for every stored owner, as the
// scheduled job does at the start of each month.
type RolloverProcessor struct {
	ledger      *LedgerService
	store       DataStore
	concurrency int
	logger      *log.Logger
}

// NewRolloverProcessor creates a processor. concurrency bounds how many
// owners are rolled over at the same time; values below 1 mean 1.
func NewRolloverProcessor(ledger *LedgerService, store DataStore, concurrency int, logger *log.Logger) *RolloverProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &RolloverProcessor{
		ledger:      ledger,
		store:       store,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentRollover),
	}
}

// ProcessAll rolls every owner over into now's period. A failing owner is
// logged and reported but does not stop the others; only failing to list
// owners is returned as an error.
func (p *RolloverProcessor) ProcessAll(ctx context.Context, now time.Time) (RolloverReport, error) {
	if p.ledger == nil || p.store == nil {
		return RolloverReport{}, fmt.Errorf("processor not properly initialized")
	}

	owners, err := p.store.Owners(ctx)
	if err != nil {
		return RolloverReport{}, fmt.Errorf("list owners: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing rollover",
		"total_owners", len(owners),
		log.FieldPeriod, now.Format("2006-01"))

	var (
		mu     sync.Mutex
		report = RolloverReport{Owners: len(owners)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			_, created, st := p.ledger.Rollover(gctx, owner, now)
			mu.Lock()
			defer mu.Unlock()
			if !st.Synced {
				report.Failed = append(report.Failed, owner)
				return nil
			}
			report.Created += len(created)
			return nil
		})
	}
	_ = g.Wait()

	p.logger.InfoContext(ctx, "Rollover processing complete",
		log.FieldCreatedCount, report.Created,
		"owners", report.Owners,
		"failed", len(report.Failed))
	return report, ctx.Err()
}
