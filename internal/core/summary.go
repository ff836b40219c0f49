package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category or subcategory label.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// PeriodFlow is the income/expense balance of one month.
type PeriodFlow struct {
	Period   PeriodKey       `json:"period"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

// PeriodSummary is a compact summary for a specific month, used by exports.
type PeriodSummary struct {
	PeriodFlow
	ExpensesBySubcategory []CategoryAmount `json:"expensesBySubcategory"`
}

// BalanceTotals are the balance-sheet headline numbers.
type BalanceTotals struct {
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	NetWorth    decimal.Decimal `json:"netWorth"`
}

// ObligationSummary reports how much of this month's bills are paid.
type ObligationSummary struct {
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	PaidPercent decimal.Decimal `json:"paidPercent"`
	// Bills sorted by due day.
	Bills []Obligation `json:"bills"`
}

// MilestoneStatus pairs a goal with its completion percentage.
type MilestoneStatus struct {
	Milestone
	Progress decimal.Decimal `json:"progress"`
}

// YearSnapshot is one point of the compound-growth projection.
type YearSnapshot struct {
	YearIndex      int     `json:"year"`
	TotalValue     float64 `json:"value"`
	TotalInvested  float64 `json:"invested"`
	InterestEarned float64 `json:"interest"`
}
