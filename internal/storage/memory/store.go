// Package memory provides an in-process ledger store with the same
// semantics as the SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finmate/internal/core"
	"finmate/internal/storage"
)

type claimKey struct {
	owner    string
	period   core.PeriodKey
	template string
}

// Store keeps snapshots in a map. A single mutex serialises writers so
// rollover claims behave like the SQLite transaction.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]core.Snapshot
	claims map[claimKey]string
	now    func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		docs:   make(map[string]core.Snapshot),
		claims: make(map[claimKey]string),
		now:    time.Now,
	}
}

func (s *Store) load(ownerID string) core.Snapshot {
	if doc, ok := s.docs[ownerID]; ok {
		return doc.Clone()
	}
	return core.NewSnapshot(ownerID)
}

// Load returns a copy of the stored ledger or a defaulted empty one.
func (s *Store) Load(_ context.Context, ownerID string) (core.Snapshot, error) {
	if ownerID == "" {
		return core.Snapshot{}, core.ErrEmptyOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ownerID), nil
}

// Save merges snap into the stored ledger if snap.Version is current.
func (s *Store) Save(_ context.Context, snap core.Snapshot) (core.Snapshot, error) {
	if snap.OwnerID == "" {
		return core.Snapshot{}, core.ErrEmptyOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.load(snap.OwnerID)
	if stored.Version != snap.Version {
		return core.Snapshot{}, storage.Conflict(stored.Version, snap.Version)
	}
	merged := storage.Stamp(storage.Merge(stored, snap), s.now())
	s.docs[snap.OwnerID] = merged
	return merged.Clone(), nil
}

// CommitRollover claims and appends the batch under the write lock.
func (s *Store) CommitRollover(_ context.Context, batch core.RolloverBatch) (core.Snapshot, []core.Entry, error) {
	if batch.OwnerID == "" {
		return core.Snapshot{}, nil, core.ErrEmptyOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	claim := func(period core.PeriodKey, templateKey, entryID string) (bool, error) {
		k := claimKey{owner: batch.OwnerID, period: period, template: templateKey}
		if _, taken := s.claims[k]; taken {
			return false, nil
		}
		s.claims[k] = entryID
		return true, nil
	}

	doc, kept, err := storage.ApplyRollover(s.load(batch.OwnerID), batch, claim)
	if err != nil || len(kept) == 0 {
		return s.load(batch.OwnerID), kept, err
	}
	doc = storage.Stamp(doc, s.now())
	s.docs[batch.OwnerID] = doc
	return doc.Clone(), kept, nil
}

// Owners lists owners with a stored ledger, sorted.
func (s *Store) Owners(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for id := range s.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
