package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finmate/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter writes one row per owner and period. Exporting the same
	// owner and period again overwrites the earlier row.
	SummaryExporter interface {
		ExportPeriod(ctx context.Context, ownerID, currency string, s core.PeriodSummary) (rowRef string, err error)
	}
)

// Header is the first row of an export sheet.
var Header = []any{"Owner", "Period", "Income", "Expenses", "Savings", "Currency", "Top expenses", "Exported at"}

// maxTopCategories bounds the breakdown column.
const maxTopCategories = 5

// Row renders a summary in Header's column order.
func Row(ownerID, currency string, s core.PeriodSummary, at time.Time) []any {
	return []any{
		ownerID,
		s.Period.String(),
		s.Income.StringFixed(2),
		s.Expenses.StringFixed(2),
		s.Savings.StringFixed(2),
		currency,
		TopCategories(s.ExpensesBySubcategory),
		at.UTC().Format(time.RFC3339),
	}
}

// TopCategories formats the largest groups as "Name: amount; ...".
func TopCategories(groups []core.CategoryAmount) string {
	if len(groups) > maxTopCategories {
		groups = groups[:maxTopCategories]
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%s: %s", g.Name, g.Amount.StringFixed(2)))
	}
	return strings.Join(parts, "; ")
}
