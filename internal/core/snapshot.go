package core

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the complete state of one owner's ledger at a point in time.
// Engines take a Snapshot by value and return a new one; they never hold on
// to it between calls.
type Snapshot struct {
	OwnerID     string         `json:"userId"`
	Assets      []Entry        `json:"assets"`
	Liabilities []Entry        `json:"liabilities"`
	Income      []Entry        `json:"income"`
	Expenses    []Entry        `json:"expenses"`
	Obligations []Obligation   `json:"emis"`
	Milestones  []Milestone    `json:"milestones"`
	Forecast    ForecastConfig `json:"forecast"`
	Currency    string         `json:"currency"`
	LastSynced  time.Time      `json:"lastSynced,omitempty"`
	// Version is the storage concurrency token; zero means never saved.
	Version int64 `json:"version"`
}

// NewSnapshot returns a fully defaulted, empty ledger for the owner.
func NewSnapshot(ownerID string) Snapshot {
	return Snapshot{
		OwnerID:     ownerID,
		Assets:      []Entry{},
		Liabilities: []Entry{},
		Income:      []Entry{},
		Expenses:    []Entry{},
		Obligations: []Obligation{},
		Milestones:  []Milestone{},
		Forecast:    DefaultForecast(),
		Currency:    DefaultCurrency,
	}
}

// Clone deep-copies every collection.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Assets = cloneSlice(s.Assets)
	out.Liabilities = cloneSlice(s.Liabilities)
	out.Income = cloneSlice(s.Income)
	out.Expenses = cloneSlice(s.Expenses)
	out.Obligations = cloneSlice(s.Obligations)
	out.Milestones = cloneSlice(s.Milestones)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// WithDefaults fills nil collections, an empty currency and an unset forecast
// so documents written by older versions load without gaps.
func (s Snapshot) WithDefaults() Snapshot {
	d := NewSnapshot(s.OwnerID)
	if s.Assets == nil {
		s.Assets = d.Assets
	}
	if s.Liabilities == nil {
		s.Liabilities = d.Liabilities
	}
	if s.Income == nil {
		s.Income = d.Income
	}
	if s.Expenses == nil {
		s.Expenses = d.Expenses
	}
	if s.Obligations == nil {
		s.Obligations = d.Obligations
	}
	if s.Milestones == nil {
		s.Milestones = d.Milestones
	}
	if s.Forecast.IsZero() {
		s.Forecast = d.Forecast
	}
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	return s
}

// Entries returns the collection for a bucket.
func (s Snapshot) Entries(b Bucket) []Entry {
	switch b {
	case BucketAssets:
		return s.Assets
	case BucketLiabilities:
		return s.Liabilities
	case BucketIncome:
		return s.Income
	case BucketExpenses:
		return s.Expenses
	default:
		return nil
	}
}

// Flows returns expenses followed by income, the history rollover works on.
func (s Snapshot) Flows() []Entry {
	out := make([]Entry, 0, len(s.Income)+len(s.Expenses))
	out = append(out, s.Expenses...)
	out = append(out, s.Income...)
	return out
}

// IDs returns the set of every entry id in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Assets)+len(s.Liabilities)+len(s.Income)+len(s.Expenses))
	for _, b := range []Bucket{BucketAssets, BucketLiabilities, BucketIncome, BucketExpenses} {
		for _, e := range s.Entries(b) {
			ids[e.ID] = struct{}{}
		}
	}
	return ids
}

// AddEntry validates e and appends it to the collection its category maps to.
// The receiver is modified; callers own their snapshot.
func (s *Snapshot) AddEntry(e Entry) error {
	if e.OwnerID == "" {
		e.OwnerID = s.OwnerID
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.OwnerID != s.OwnerID {
		return fmt.Errorf("entry owner %q does not match ledger owner %q", e.OwnerID, s.OwnerID)
	}
	if _, dup := s.IDs()[e.ID]; dup {
		return invalid("id", ErrDuplicateID)
	}
	switch e.Bucket() {
	case BucketAssets:
		s.Assets = append(s.Assets, e)
	case BucketLiabilities:
		s.Liabilities = append(s.Liabilities, e)
	case BucketIncome:
		s.Income = append(s.Income, e)
	case BucketExpenses:
		s.Expenses = append(s.Expenses, e)
	}
	return nil
}

// Entry looks an entry up by id across every collection.
func (s Snapshot) Entry(id string) (Entry, bool) {
	for _, coll := range [][]Entry{s.Assets, s.Liabilities, s.Income, s.Expenses} {
		for _, e := range coll {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// RemoveEntry deletes the entry with the given id from whichever collection
// holds it and reports whether anything was removed.
func (s *Snapshot) RemoveEntry(id string) bool {
	for _, coll := range []*[]Entry{&s.Assets, &s.Liabilities, &s.Income, &s.Expenses} {
		for i, e := range *coll {
			if e.ID == id {
				*coll = append((*coll)[:i:i], (*coll)[i+1:]...)
				return true
			}
		}
	}
	return false
}

// AddObligation validates and appends a bill.
func (s *Snapshot) AddObligation(o Obligation) error {
	if o.OwnerID == "" {
		o.OwnerID = s.OwnerID
	}
	if err := o.Validate(); err != nil {
		return err
	}
	for _, existing := range s.Obligations {
		if existing.ID == o.ID {
			return invalid("id", ErrDuplicateID)
		}
	}
	s.Obligations = append(s.Obligations, o)
	return nil
}

// RemoveObligation deletes a bill and reports whether it existed.
func (s *Snapshot) RemoveObligation(id string) bool {
	for i, o := range s.Obligations {
		if o.ID == id {
			s.Obligations = append(s.Obligations[:i:i], s.Obligations[i+1:]...)
			return true
		}
	}
	return false
}

// SetObligationPaid toggles the paid flag of a bill.
func (s *Snapshot) SetObligationPaid(id string, paid bool) bool {
	for i := range s.Obligations {
		if s.Obligations[i].ID == id {
			s.Obligations[i].IsPaid = paid
			return true
		}
	}
	return false
}

// SetCurrency validates and sets the ledger currency.
func (s *Snapshot) SetCurrency(code string) error {
	if err := ValidateCurrency(code); err != nil {
		return err
	}
	s.Currency = strings.ToUpper(code)
	return nil
}
