// Package services provides the ledger engines and their orchestration.
//
// This file holds the read-only aggregations over a snapshot. Every function
// is pure, total and linear in the size of the collections it reads; callers
// recompute after each mutation.
package services

import (
	"sort"
	"time"

	"finmate/internal/core"

	"github.com/shopspring/decimal"
)

// Uncategorized labels entries without a subcategory in breakdowns.
const Uncategorized = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// LabelFunc extracts the grouping label of an entry.
type LabelFunc func(core.Entry) string

// ByCategory groups by the closed category value.
func ByCategory(e core.Entry) string { return e.Category.String() }

// BySubcategory groups by the free-text subcategory.
func BySubcategory(e core.Entry) string {
	if e.Subcategory == "" {
		return Uncategorized
	}
	return e.Subcategory
}

// InPeriod selects entries dated inside p.
func InPeriod(p core.PeriodKey) func(core.Entry) bool {
	return func(e core.Entry) bool { return e.Period() == p }
}

func sumEntries(entries []core.Entry, keep func(core.Entry) bool) decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(entries))
	for _, e := range entries {
		if keep == nil || keep(e) {
			amounts = append(amounts, e.Amount)
		}
	}
	return core.Sum(amounts...)
}

// Totals returns total assets, total liabilities and their difference.
func Totals(s core.Snapshot) core.BalanceTotals {
	assets := sumEntries(s.Assets, nil)
	liabilities := sumEntries(s.Liabilities, nil)
	return core.BalanceTotals{
		Assets:      assets,
		Liabilities: liabilities,
		NetWorth:    assets.Sub(liabilities),
	}
}

// NetWorth is the sum of assets minus the sum of liabilities. It may be negative.
func NetWorth(s core.Snapshot) decimal.Decimal {
	return Totals(s).NetWorth
}

// PeriodCashflow returns income minus expenses for the current month shifted
// by offset months.
func PeriodCashflow(s core.Snapshot, offset int) decimal.Decimal {
	return PeriodCashflowAt(s, time.Now(), offset)
}

// PeriodCashflowAt is PeriodCashflow with an explicit clock.
func PeriodCashflowAt(s core.Snapshot, now time.Time, offset int) decimal.Decimal {
	return Flow(s, core.PeriodAt(now).Shift(offset)).Savings
}

// Flow sums income and expenses whose PeriodKey equals p exactly.
func Flow(s core.Snapshot, p core.PeriodKey) core.PeriodFlow {
	in := InPeriod(p)
	income := sumEntries(s.Income, in)
	expenses := sumEntries(s.Expenses, in)
	return core.PeriodFlow{
		Period:   p,
		Income:   income,
		Expenses: expenses,
		Savings:  income.Sub(expenses),
	}
}

// CashflowTrend returns the flows of the last months periods ending with the
// current one, oldest first.
func CashflowTrend(s core.Snapshot, now time.Time, months int) []core.PeriodFlow {
	if months <= 0 {
		return []core.PeriodFlow{}
	}
	current := core.PeriodAt(now)
	out := make([]core.PeriodFlow, 0, months)
	for i := months - 1; i >= 0; i-- {
		out = append(out, Flow(s, current.Shift(-i)))
	}
	return out
}

// CategoryBreakdown sums the entries accepted by keep, grouped by label.
// Groups summing to zero are omitted. The result is ordered by amount,
// largest first, then by label.
func CategoryBreakdown(entries []core.Entry, keep func(core.Entry) bool, label LabelFunc) []core.CategoryAmount {
	if label == nil {
		label = ByCategory
	}
	sums := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if keep != nil && !keep(e) {
			continue
		}
		l := label(e)
		sums[l] = sums[l].Add(e.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		if amount.IsZero() {
			continue
		}
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DebtRatio is total liabilities over total assets, or zero without assets.
func DebtRatio(s core.Snapshot) decimal.Decimal {
	t := Totals(s)
	if t.Assets.IsZero() {
		return decimal.Zero
	}
	return t.Liabilities.Div(t.Assets)
}

// Summarize builds the export summary of one month.
func Summarize(s core.Snapshot, p core.PeriodKey) core.PeriodSummary {
	return core.PeriodSummary{
		PeriodFlow:            Flow(s, p),
		ExpensesBySubcategory: CategoryBreakdown(s.Expenses, InPeriod(p), BySubcategory),
	}
}

// ObligationStatus reports paid and outstanding bills, sorted by due day.
func ObligationStatus(s core.Snapshot) core.ObligationSummary {
	bills := make([]core.Obligation, len(s.Obligations))
	copy(bills, s.Obligations)
	sort.SliceStable(bills, func(i, j int) bool { return bills[i].DueDay < bills[j].DueDay })

	total, paid := decimal.Zero, decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
		if b.IsPaid {
			paid = paid.Add(b.Amount)
		}
	}
	percent := decimal.Zero
	if !total.IsZero() {
		percent = paid.Div(total).Mul(hundred)
	}
	return core.ObligationSummary{
		Total:       total,
		Paid:        paid,
		Outstanding: total.Sub(paid),
		PaidPercent: percent,
		Bills:       bills,
	}
}

// MilestoneProgress is the completion percentage of a goal, capped at 100.
func MilestoneProgress(m core.Milestone) decimal.Decimal {
	if !m.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	p := m.CurrentAmount.Div(m.TargetAmount).Mul(hundred)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// Milestones returns every goal with its progress.
func Milestones(s core.Snapshot) []core.MilestoneStatus {
	out := make([]core.MilestoneStatus, 0, len(s.Milestones))
	for _, m := range s.Milestones {
		out = append(out, core.MilestoneStatus{Milestone: m, Progress: MilestoneProgress(m)})
	}
	return out
}
