package services

import (
	"testing"
	"time"

	"finmate/internal/core"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func flow(id, name string, cat core.Category, amount int64, date core.Date, recurring bool) core.Entry {
	return core.Entry{ID: id, OwnerID: "u1", Name: name, Amount: dec(amount), Category: cat, Date: date, Recurring: recurring}
}

func TestNetWorth(t *testing.T) {
	s := core.NewSnapshot("u1")
	d := core.NewDate(2025, 1, 1)
	s.Assets = []core.Entry{flow("a1", "Cash", core.CategoryCash, 100, d, false), flow("a2", "House", core.CategoryProperty, 200, d, false)}
	s.Liabilities = []core.Entry{flow("l1", "Loan", core.CategoryLoan, 50, d, false)}

	if got := NetWorth(s); !got.Equal(dec(250)) {
		t.Errorf("NetWorth() = %s, want 250", got)
	}

	s.Liabilities = append(s.Liabilities, flow("l2", "Card", core.CategoryCreditCard, 400, d, false))
	if got := NetWorth(s); !got.Equal(dec(-150)) {
		t.Errorf("NetWorth() = %s, want -150", got)
	}
	if got := NetWorth(core.NewSnapshot("u1")); !got.IsZero() {
		t.Errorf("empty NetWorth() = %s, want 0", got)
	}
}

func TestPeriodCashflowAt(t *testing.T) {
	s := core.NewSnapshot("u1")
	s.Income = []core.Entry{
		flow("i1", "Salary", core.CategoryIncome, 3000, core.NewDate(2025, 3, 1), true),
		flow("i2", "Salary", core.CategoryIncome, 3000, core.NewDate(2025, 2, 1), true),
	}
	s.Expenses = []core.Entry{
		flow("e1", "Rent", core.CategoryExpense, 1000, core.NewDate(2025, 3, 31), true),
		// first day of the next month belongs to the next period
		flow("e2", "Food", core.CategoryExpense, 80, core.NewDate(2025, 4, 1), false),
	}
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset int
		want   int64
	}{
		{"current month", 0, 2000},
		{"previous month", -1, 3000},
		{"next month", 1, -80},
		{"empty month", -12, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodCashflowAt(s, now, tt.offset); !got.Equal(dec(tt.want)) {
				t.Errorf("PeriodCashflowAt(%d) = %s, want %d", tt.offset, got, tt.want)
			}
		})
	}
}

func TestCashflowTrend(t *testing.T) {
	s := core.NewSnapshot("u1")
	s.Income = []core.Entry{flow("i1", "Salary", core.CategoryIncome, 10, core.NewDate(2025, 1, 5), false)}
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	trend := CashflowTrend(s, now, 3)
	if len(trend) != 3 {
		t.Fatalf("len = %d, want 3", len(trend))
	}
	if trend[0].Period != "2025-01" || trend[2].Period != "2025-03" {
		t.Fatalf("unexpected order: %s..%s", trend[0].Period, trend[2].Period)
	}
	if !trend[0].Income.Equal(dec(10)) || !trend[1].Savings.IsZero() {
		t.Fatalf("unexpected flows %+v", trend)
	}
	if got := CashflowTrend(s, now, 0); len(got) != 0 {
		t.Fatalf("expected empty trend, got %d", len(got))
	}
}

func TestCategoryBreakdown(t *testing.T) {
	d := core.NewDate(2025, 5, 10)
	expenses := []core.Entry{
		{ID: "1", Name: "Rent", Amount: dec(1000), Category: core.CategoryExpense, Subcategory: "Housing", Date: d},
		{ID: "2", Name: "Food", Amount: dec(200), Category: core.CategoryExpense, Subcategory: "Groceries", Date: d},
		{ID: "3", Name: "Snacks", Amount: dec(50), Category: core.CategoryExpense, Subcategory: "Groceries", Date: d},
		{ID: "4", Name: "Misc", Amount: dec(30), Category: core.CategoryExpense, Date: d},
		{ID: "5", Name: "Free", Amount: dec(0), Category: core.CategoryExpense, Subcategory: "Gifts", Date: d},
		{ID: "6", Name: "Old", Amount: dec(999), Category: core.CategoryExpense, Subcategory: "Housing", Date: core.NewDate(2025, 4, 30)},
	}

	got := CategoryBreakdown(expenses, InPeriod("2025-05"), BySubcategory)
	want := []struct {
		name   string
		amount int64
	}{
		{"Housing", 1000},
		{"Groceries", 250},
		{Uncategorized, 30},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d groups (%+v), want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if got[i].Name != w.name || !got[i].Amount.Equal(dec(w.amount)) {
			t.Errorf("group %d = %s %s, want %s %d", i, got[i].Name, got[i].Amount, w.name, w.amount)
		}
	}

	assets := []core.Entry{
		{ID: "a", Amount: dec(10), Category: core.CategoryCash},
		{ID: "b", Amount: dec(10), Category: core.CategoryVehicle},
	}
	byCat := CategoryBreakdown(assets, nil, nil)
	if len(byCat) != 2 || byCat[0].Name != "cash" || byCat[1].Name != "vehicle" {
		t.Fatalf("ties must sort by name: %+v", byCat)
	}
}

func TestDebtRatio(t *testing.T) {
	s := core.NewSnapshot("u1")
	s.Liabilities = []core.Entry{{ID: "l", Amount: dec(100), Category: core.CategoryLoan}}
	if got := DebtRatio(s); !got.IsZero() {
		t.Errorf("DebtRatio without assets = %s, want 0", got)
	}
	s.Assets = []core.Entry{{ID: "a", Amount: dec(400), Category: core.CategoryCash}}
	if got := DebtRatio(s); !got.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("DebtRatio = %s, want 0.25", got)
	}
}

func TestObligationStatus(t *testing.T) {
	s := core.NewSnapshot("u1")
	if st := ObligationStatus(s); !st.PaidPercent.IsZero() || len(st.Bills) != 0 {
		t.Fatalf("empty status = %+v", st)
	}
	s.Obligations = []core.Obligation{
		{ID: "b", Name: "Phone", Amount: dec(30), DueDay: 20},
		{ID: "a", Name: "Car", Amount: dec(70), DueDay: 5, IsPaid: true},
	}
	st := ObligationStatus(s)
	if !st.Total.Equal(dec(100)) || !st.Paid.Equal(dec(70)) || !st.Outstanding.Equal(dec(30)) || !st.PaidPercent.Equal(dec(70)) {
		t.Fatalf("unexpected totals %+v", st)
	}
	if st.Bills[0].ID != "a" {
		t.Fatalf("bills must be sorted by due day: %+v", st.Bills)
	}
	if s.Obligations[0].ID != "b" {
		t.Fatal("input order must be preserved")
	}
}

func TestMilestoneProgress(t *testing.T) {
	tests := []struct {
		name            string
		target, current int64
		want            int64
	}{
		{"half way", 1000, 500, 50},
		{"over target is capped", 100, 250, 100},
		{"zero target", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := core.Milestone{TargetAmount: dec(tt.target), CurrentAmount: dec(tt.current)}
			if got := MilestoneProgress(m); !got.Equal(dec(tt.want)) {
				t.Errorf("MilestoneProgress() = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	s := core.NewSnapshot("u1")
	d := core.NewDate(2025, 8, 3)
	s.Income = []core.Entry{flow("i", "Salary", core.CategoryIncome, 500, d, true)}
	s.Expenses = []core.Entry{{ID: "e", Name: "Rent", Amount: dec(200), Category: core.CategoryExpense, Subcategory: "Housing", Date: d}}

	sum := Summarize(s, "2025-08")
	if !sum.Savings.Equal(dec(300)) || len(sum.ExpensesBySubcategory) != 1 || sum.ExpensesBySubcategory[0].Name != "Housing" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}
