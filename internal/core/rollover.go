package core

// Materialization is one entry produced from a recurring template, tagged
// with the template key that makes its creation idempotent.
type Materialization struct {
	TemplateKey string
	Entry       Entry
}

// RolloverBatch is what a store commits atomically for one owner and period.
type RolloverBatch struct {
	OwnerID string
	Period  PeriodKey
	// PeriodLevel claims the whole period instead of individual templates:
	// once any batch for the period is committed, later ones are dropped.
	PeriodLevel bool
	Items       []Materialization
}

// PeriodClaimKey is the template key recorded for period-level claims.
const PeriodClaimKey = "*"
