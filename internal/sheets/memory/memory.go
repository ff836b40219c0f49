package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finmate/internal/core"
	"finmate/internal/sheets"
)

// Exported is one row held by the in-memory exporter.
type Exported struct {
	OwnerID  string
	Currency string
	Summary  core.PeriodSummary
	Row      []any
}

// Exporter keeps exported summaries in memory, keyed by owner and period.
type Exporter struct {
	mu    sync.Mutex
	order []string
	rows  map[string]Exported
	now   func() time.Time
}

var _ sheets.SummaryExporter = (*Exporter)(nil)

// New returns an empty exporter.
func New() *Exporter {
	return &Exporter{rows: make(map[string]Exported), now: time.Now}
}

// ExportPeriod stores or replaces the row and returns a synthetic reference.
func (e *Exporter) ExportPeriod(_ context.Context, ownerID, currency string, s core.PeriodSummary) (string, error) {
	if ownerID == "" {
		return "", core.ErrEmptyOwner
	}
	key := ownerID + "|" + s.Period.String()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.rows[key]; !seen {
		e.order = append(e.order, key)
	}
	e.rows[key] = Exported{
		OwnerID:  ownerID,
		Currency: currency,
		Summary:  s,
		Row:      sheets.Row(ownerID, currency, s, e.now()),
	}
	for i, k := range e.order {
		if k == key {
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	return "", nil
}

// Rows returns the exported rows in first-export order.
func (e *Exporter) Rows() []Exported {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Exported, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.rows[k])
	}
	return out
}
