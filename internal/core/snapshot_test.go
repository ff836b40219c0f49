package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func entry(id string, cat Category, amount int64, date Date) Entry {
	return Entry{ID: id, OwnerID: "u1", Name: id, Amount: decimal.NewFromInt(amount), Category: cat, Date: date}
}

func TestNewSnapshotDefaults(t *testing.T) {
	s := NewSnapshot("u1")
	if s.Assets == nil || s.Liabilities == nil || s.Income == nil || s.Expenses == nil || s.Obligations == nil || s.Milestones == nil {
		t.Fatal("collections must default to empty, not nil")
	}
	if s.Forecast != DefaultForecast() {
		t.Fatalf("unexpected forecast %+v", s.Forecast)
	}
	if s.Currency != DefaultCurrency {
		t.Fatalf("unexpected currency %q", s.Currency)
	}
}

func TestSnapshotAddEntryRoutesByBucket(t *testing.T) {
	s := NewSnapshot("u1")
	d := NewDate(2025, 1, 10)
	for _, e := range []Entry{
		entry("a", CategoryCash, 100, d),
		entry("l", CategoryLoan, 50, d),
		entry("i", CategoryIncome, 10, d),
		entry("x", CategoryExpense, 5, d),
	} {
		if err := s.AddEntry(e); err != nil {
			t.Fatalf("AddEntry(%s): %v", e.ID, err)
		}
	}
	if len(s.Assets) != 1 || len(s.Liabilities) != 1 || len(s.Income) != 1 || len(s.Expenses) != 1 {
		t.Fatalf("unexpected routing: %+v", s)
	}

	if err := s.AddEntry(entry("a", CategoryIncome, 1, d)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	bad := entry("n", CategoryExpense, 1, d)
	bad.Amount = decimal.NewFromInt(-3)
	if err := s.AddEntry(bad); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	foreign := entry("f", CategoryExpense, 1, d)
	foreign.OwnerID = "u2"
	if err := s.AddEntry(foreign); err == nil {
		t.Fatal("expected owner mismatch error")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := NewSnapshot("u1")
	_ = s.AddEntry(entry("x", CategoryExpense, 5, NewDate(2025, 1, 1)))
	c := s.Clone()
	c.Expenses[0].Name = "changed"
	c.Expenses = append(c.Expenses, entry("y", CategoryExpense, 1, NewDate(2025, 1, 1)))
	if s.Expenses[0].Name != "x" || len(s.Expenses) != 1 {
		t.Fatalf("clone aliases original: %+v", s.Expenses)
	}
}

func TestSnapshotRemoveEntry(t *testing.T) {
	s := NewSnapshot("u1")
	_ = s.AddEntry(entry("x", CategoryExpense, 5, NewDate(2025, 1, 1)))
	_ = s.AddEntry(entry("y", CategoryExpense, 6, NewDate(2025, 1, 1)))
	if !s.RemoveEntry("x") {
		t.Fatal("expected removal")
	}
	if s.RemoveEntry("missing") {
		t.Fatal("unexpected removal")
	}
	if len(s.Expenses) != 1 || s.Expenses[0].ID != "y" {
		t.Fatalf("unexpected expenses: %+v", s.Expenses)
	}
}

func TestSnapshotEntryLookup(t *testing.T) {
	s := NewSnapshot("u1")
	_ = s.AddEntry(entry("x", CategoryIncome, 5, NewDate(2025, 1, 9)))
	if e, ok := s.Entry("x"); !ok || e.Period() != "2025-01" {
		t.Fatalf("Entry(x) = %+v, %v", e, ok)
	}
	if _, ok := s.Entry("y"); ok {
		t.Fatal("unexpected entry")
	}
}

func TestSnapshotWithDefaults(t *testing.T) {
	s := Snapshot{OwnerID: "u1", Expenses: []Entry{entry("x", CategoryExpense, 1, NewDate(2025, 1, 1))}}.WithDefaults()
	if s.Assets == nil || len(s.Expenses) != 1 || s.Currency != DefaultCurrency || s.Forecast.Years != 10 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestSnapshotObligations(t *testing.T) {
	s := NewSnapshot("u1")
	if err := s.AddObligation(Obligation{ID: "b", Name: "Phone", Amount: decimal.NewFromInt(20), DueDay: 3}); err != nil {
		t.Fatalf("AddObligation: %v", err)
	}
	if !s.SetObligationPaid("b", true) || !s.Obligations[0].IsPaid {
		t.Fatal("expected bill to be marked paid")
	}
	if s.RemoveObligation("missing") {
		t.Fatal("unexpected removal")
	}
	if !s.RemoveObligation("b") || s.Obligations == nil || len(s.Obligations) != 0 {
		t.Fatalf("expected an empty, non-nil bill list: %#v", s.Obligations)
	}
	if err := s.SetCurrency("eur"); err != nil || s.Currency != "EUR" {
		t.Fatalf("SetCurrency: %v %q", err, s.Currency)
	}
	if err := s.SetCurrency("zzz"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}
