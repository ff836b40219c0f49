package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finmate/internal/amqp"
	"finmate/internal/core"
	"finmate/internal/log"
)

// DataStore persists one snapshot document per owner.
type DataStore interface {
	// Load returns the stored snapshot, or a defaulted empty one when the owner
	// has never been saved.
	Load(ctx context.Context, ownerID string) (core.Snapshot, error)
	// Save merges s into the stored document. s.Version must match the stored
	// version. The returned snapshot carries the new version and LastSynced.
	Save(ctx context.Context, s core.Snapshot) (core.Snapshot, error)
	// CommitRollover atomically claims every item of the batch and appends the
	// entries whose claim succeeded to the stored document.
	CommitRollover(ctx context.Context, batch core.RolloverBatch) (core.Snapshot, []core.Entry, error)
	// Owners lists every owner with a stored document.
	Owners(ctx context.Context) ([]string, error)
	Close() error
}

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event amqp.LedgerEvent) error
}

var (
	// ErrLedgerUnavailable refuses edits of a ledger that could not be
	// loaded, so a defaulted snapshot never overwrites the stored one.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrNotFound          = errors.New("not found")
)

// SyncStatus is the outcome of the last interaction with the store for one
// owner. It backs the sync indicator shown to users.
type SyncStatus struct {
	Synced     bool      `json:"synced"`
	LastSynced time.Time `json:"lastSynced,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Error      string    `json:"error,omitempty"`
	Err        error     `json:"-"`
}

func synced(op string, at time.Time) SyncStatus {
	return SyncStatus{Synced: true, LastSynced: at, Operation: op}
}

func unsynced(op string, err error) SyncStatus {
	return SyncStatus{Operation: op, Error: err.Error(), Err: err}
}

// LedgerService orchestrates load, save and rollover against a DataStore.
// Store failures never reach callers as errors: they are logged and reported
// through SyncStatus while the in-memory snapshot stays usable.
type LedgerService struct {
	store     DataStore
	publisher EventPublisher
	engine    *RolloverEngine
	logger    *log.Logger
	now       func() time.Time
	currency  string

	mu     sync.RWMutex
	status map[string]SyncStatus
}

// LedgerOption configures a LedgerService.
type LedgerOption func(*LedgerService)

// WithRolloverEngine replaces the default engine.
func WithRolloverEngine(e *RolloverEngine) LedgerOption {
	return func(s *LedgerService) { s.engine = e }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) LedgerOption {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// WithDefaultCurrency sets the currency of ledgers that were never saved.
func WithDefaultCurrency(code string) LedgerOption {
	return func(s *LedgerService) {
		if code != "" {
			s.currency = code
		}
	}
}

// NewLedgerService wires a service. publisher may be nil.
func NewLedgerService(store DataStore, publisher EventPublisher, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:     store,
		publisher: publisher,
		engine:    NewRolloverEngine(),
		logger:    log.FromContext(context.Background()).WithComponent(log.ComponentLedger),
		now:       time.Now,
		currency:  core.DefaultCurrency,
		status:    make(map[string]SyncStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the rollover engine in use.
func (s *LedgerService) Engine() *RolloverEngine { return s.engine }

// Now returns the service clock.
func (s *LedgerService) Now() time.Time { return s.now() }

func (s *LedgerService) fresh(ownerID string) core.Snapshot {
	snap := core.NewSnapshot(ownerID)
	snap.Currency = s.currency
	return snap
}

func (s *LedgerService) record(ownerID string, st SyncStatus) SyncStatus {
	s.mu.Lock()
	s.status[ownerID] = st
	s.mu.Unlock()
	return st
}

// Status reports the last sync outcome for the owner. An owner never seen
// by this process reports unsynced with no error.
func (s *LedgerService) Status(ownerID string) SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[ownerID]
}

func (s *LedgerService) logFailure(ctx context.Context, msg, ownerID, op string, err error) {
	fields := log.NewFields().WithOwner(ownerID).WithOperation(op).WithError(err).WithErrorType(log.ErrorTypeDatabase)
	s.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}

// Load returns the owner's snapshot. When the store fails, a freshly
// defaulted snapshot is returned with an unsynced status.
func (s *LedgerService) Load(ctx context.Context, ownerID string) (core.Snapshot, SyncStatus) {
	snap, err := s.store.Load(ctx, ownerID)
	if err != nil {
		s.logFailure(ctx, "Failed to load ledger, continuing with an empty one", ownerID, log.OpLoad, err)
		return s.fresh(ownerID), s.record(ownerID, unsynced(log.OpLoad, err))
	}
	if snap.OwnerID == "" {
		snap.OwnerID = ownerID
	}
	if snap.Version == 0 {
		snap.Currency = s.currency
	}
	return snap.WithDefaults(), s.record(ownerID, synced(log.OpLoad, snap.LastSynced))
}

// Save persists snap with a single attempt. On failure snap is returned as
// given, so the caller keeps showing its optimistic state.
func (s *LedgerService) Save(ctx context.Context, snap core.Snapshot) (core.Snapshot, SyncStatus) {
	return s.save(ctx, snap)
}

// save announces the current period and every period in touched, once each.
func (s *LedgerService) save(ctx context.Context, snap core.Snapshot, touched ...core.PeriodKey) (core.Snapshot, SyncStatus) {
	saved, err := s.store.Save(ctx, snap)
	if err != nil {
		s.logFailure(ctx, "Failed to save ledger", snap.OwnerID, log.OpSave, err)
		return snap, s.record(snap.OwnerID, unsynced(log.OpSave, err))
	}
	s.logger.DebugContext(ctx, "Ledger saved",
		log.FieldOwnerID, saved.OwnerID,
		log.FieldVersion, saved.Version)

	seen := make(map[core.PeriodKey]bool, len(touched)+1)
	for _, p := range append([]core.PeriodKey{core.PeriodAt(s.now())}, touched...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		s.publish(ctx, amqp.NewLedgerEvent(amqp.EventLedgerSaved, saved.OwnerID, p, saved.Version))
	}
	return saved, s.record(snap.OwnerID, synced(log.OpSave, saved.LastSynced))
}

// edit loads the owner's ledger, applies fn and saves. fn returns the
// periods it changed besides the current one. Nothing is saved when the
// load failed or fn returns an error.
func (s *LedgerService) edit(ctx context.Context, ownerID string, fn func(*core.Snapshot) ([]core.PeriodKey, error)) (core.Snapshot, SyncStatus, error) {
	snap, st := s.Load(ctx, ownerID)
	if !st.Synced {
		return snap, st, ErrLedgerUnavailable
	}
	touched, err := fn(&snap)
	if err != nil {
		return snap, st, err
	}
	saved, st := s.save(ctx, snap, touched...)
	return saved, st, nil
}

// AddEntry validates e, appends it to the owner's ledger and saves. A
// validation error is returned as is and nothing is saved.
func (s *LedgerService) AddEntry(ctx context.Context, ownerID string, e core.Entry) (core.Snapshot, SyncStatus, error) {
	snap, _ := s.Load(ctx, ownerID)
	if err := snap.AddEntry(e); err != nil {
		return snap, s.Status(ownerID), err
	}
	saved, st := s.save(ctx, snap, e.Period())
	return saved, st, nil
}

// RemoveEntry deletes an entry from whichever collection holds it.
func (s *LedgerService) RemoveEntry(ctx context.Context, ownerID, id string) (core.Snapshot, SyncStatus, error) {
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		e, ok := snap.Entry(id)
		if !ok {
			return nil, fmt.Errorf("entry %q: %w", id, ErrNotFound)
		}
		snap.RemoveEntry(id)
		return []core.PeriodKey{e.Period()}, nil
	})
}

// AddObligation validates and appends a recurring bill.
func (s *LedgerService) AddObligation(ctx context.Context, ownerID string, o core.Obligation) (core.Snapshot, SyncStatus, error) {
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		return nil, snap.AddObligation(o)
	})
}

func (s *LedgerService) RemoveObligation(ctx context.Context, ownerID, id string) (core.Snapshot, SyncStatus, error) {
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		if !snap.RemoveObligation(id) {
			return nil, fmt.Errorf("obligation %q: %w", id, ErrNotFound)
		}
		return nil, nil
	})
}

func (s *LedgerService) SetObligationPaid(ctx context.Context, ownerID, id string, paid bool) (core.Snapshot, SyncStatus, error) {
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		if !snap.SetObligationPaid(id, paid) {
			return nil, fmt.Errorf("obligation %q: %w", id, ErrNotFound)
		}
		return nil, nil
	})
}

// SetForecast stores the projection parameters. An all-zero config is
// rejected: the store reads it as "unchanged" when merging.
func (s *LedgerService) SetForecast(ctx context.Context, ownerID string, cfg core.ForecastConfig) (core.Snapshot, SyncStatus, error) {
	if cfg.IsZero() {
		return core.Snapshot{}, s.Status(ownerID), &core.ValidationError{Field: "years", Err: core.ErrInvalidForecast}
	}
	if err := cfg.Validate(); err != nil {
		return core.Snapshot{}, s.Status(ownerID), err
	}
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		snap.Forecast = cfg
		return nil, nil
	})
}

func (s *LedgerService) SetCurrency(ctx context.Context, ownerID, code string) (core.Snapshot, SyncStatus, error) {
	if err := core.ValidateCurrency(code); err != nil {
		return core.Snapshot{}, s.Status(ownerID), err
	}
	return s.edit(ctx, ownerID, func(snap *core.Snapshot) ([]core.PeriodKey, error) {
		return nil, snap.SetCurrency(code)
	})
}

// Reset replaces the owner's ledger with a defaulted empty one.
func (s *LedgerService) Reset(ctx context.Context, ownerID string) (core.Snapshot, SyncStatus) {
	current, _ := s.Load(ctx, ownerID)
	fresh := s.fresh(ownerID)
	fresh.Currency = current.Currency
	fresh.Version = current.Version
	s.logger.InfoContext(ctx, "Resetting ledger", log.FieldOwnerID, ownerID, log.FieldOperation, log.OpReset)
	return s.Save(ctx, fresh)
}

// Rollover loads the owner's ledger, materialises due recurring templates
// for asOf's period and commits them through the store's claim. Only entries
// whose claim succeeded are returned, so concurrent callers never duplicate a
// template. If the commit fails, the in-memory result is returned unsynced.
func (s *LedgerService) Rollover(ctx context.Context, ownerID string, asOf time.Time) (core.Snapshot, []core.Entry, SyncStatus) {
	snap, st := s.Load(ctx, ownerID)
	if !st.Synced {
		return snap, []core.Entry{}, st
	}

	updated, created := s.engine.Rollover(snap, asOf)
	period := core.PeriodAt(asOf)
	if len(created) == 0 {
		s.logger.DebugContext(ctx, "Nothing to roll over",
			log.NewFields().WithOwner(ownerID).WithRollover(period.String(), 0).ToSlice()...)
		return snap, created, st
	}

	committed, kept, err := s.store.CommitRollover(ctx, s.engine.Plan(ownerID, asOf, created))
	if err != nil {
		s.logFailure(ctx, "Failed to commit rollover", ownerID, log.OpRollover, err)
		return updated, created, s.record(ownerID, unsynced(log.OpRollover, err))
	}

	fields := log.NewFields().
		WithOwner(ownerID).
		WithRollover(period.String(), len(kept)).
		WithOperation(log.OpRollover)
	fields[log.FieldGuard] = string(s.engine.Guard())
	s.logger.InfoContext(ctx, "Rollover committed", fields.ToSlice()...)

	if len(kept) > 0 {
		event := amqp.NewLedgerEvent(amqp.EventRolledOver, ownerID, period, committed.Version)
		event.Created = len(kept)
		s.publish(ctx, event)
	}
	return committed, kept, s.record(ownerID, synced(log.OpRollover, committed.LastSynced))
}

// publish is best effort: a lost event only delays the next export.
func (s *LedgerService) publish(ctx context.Context, event amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, event.Type,
			log.FieldOwnerID, event.OwnerID,
			log.FieldError, err)
	}
}
