// Package storage persists ledger snapshots. Every store keeps one JSON
// document per owner, guarded by an optimistic version, plus a claim table
// that makes rollover materialisation idempotent.
package storage

import (
	"errors"
	"fmt"
	"time"

	"finmate/internal/core"

	"github.com/google/uuid"
)

// ErrConflict is returned by Save when the snapshot version is stale.
var ErrConflict = errors.New("ledger was modified concurrently")

// Conflict builds the error returned for a stale version.
func Conflict(stored, got int64) error {
	return fmt.Errorf("%w: stored version %d, got %d", ErrConflict, stored, got)
}

// Merge applies incoming onto stored. Nil collections, an empty currency and
// a zero forecast in incoming leave the stored values in place; non-nil
// collections replace, even when empty. Owner and version come from stored.
func Merge(stored, incoming core.Snapshot) core.Snapshot {
	out := stored.Clone()
	if incoming.Assets != nil {
		out.Assets = incoming.Assets
	}
	if incoming.Liabilities != nil {
		out.Liabilities = incoming.Liabilities
	}
	if incoming.Income != nil {
		out.Income = incoming.Income
	}
	if incoming.Expenses != nil {
		out.Expenses = incoming.Expenses
	}
	if incoming.Obligations != nil {
		out.Obligations = incoming.Obligations
	}
	if incoming.Milestones != nil {
		out.Milestones = incoming.Milestones
	}
	if !incoming.Forecast.IsZero() {
		out.Forecast = incoming.Forecast
	}
	if incoming.Currency != "" {
		out.Currency = incoming.Currency
	}
	return out.Clone()
}

// Stamp bumps the version and sets LastSynced on a document about to be written.
func Stamp(s core.Snapshot, now time.Time) core.Snapshot {
	s.Version++
	s.LastSynced = now.UTC()
	return s
}

// ClaimFunc attempts to record a claim and reports whether it was new.
type ClaimFunc func(period core.PeriodKey, templateKey, entryID string) (bool, error)

// ApplyRollover claims each batch item through claim and appends the winners
// to doc. Entry ids that collide with ids already in doc get a fresh suffix.
func ApplyRollover(doc core.Snapshot, batch core.RolloverBatch, claim ClaimFunc) (core.Snapshot, []core.Entry, error) {
	kept := make([]core.Entry, 0, len(batch.Items))
	if batch.PeriodLevel {
		ok, err := claim(batch.Period, core.PeriodClaimKey, "")
		if err != nil || !ok {
			return doc, kept, err
		}
	}

	ids := doc.IDs()
	for _, item := range batch.Items {
		e := item.Entry
		e.OwnerID = doc.OwnerID
		if _, dup := ids[e.ID]; dup {
			e.ID = fmt.Sprintf("%s_%s", e.ID, uuid.NewString()[:8])
		}
		ok, err := claim(batch.Period, item.TemplateKey, e.ID)
		if err != nil {
			return doc, nil, err
		}
		if !ok {
			continue
		}
		ids[e.ID] = struct{}{}
		if e.Category == core.CategoryIncome {
			doc.Income = append(doc.Income, e)
		} else {
			doc.Expenses = append(doc.Expenses, e)
		}
		kept = append(kept, e)
	}
	return doc, kept, nil
}
