package services

import (
	"math"

	"finmate/internal/core"
)

// Project simulates monthly compounding with contributions and returns one
// snapshot per year, from year 0 through cfg.Years inclusive.
//
// A year's snapshot is taken before that month's contribution and growth are
// applied, so year 0 is exactly the initial amount. Inputs are not validated;
// call cfg.Validate first when they come from a user.
func Project(cfg core.ForecastConfig) []core.YearSnapshot {
	out := make([]core.YearSnapshot, 0, max(cfg.Years+1, 0))
	simulate(cfg, func(year int, current, invested float64) {
		out = append(out, core.YearSnapshot{
			YearIndex:      year,
			TotalValue:     roundHalfUp(current),
			TotalInvested:  roundHalfUp(invested),
			InterestEarned: roundHalfUp(current - invested),
		})
	})
	return out
}

// simulate runs the month loop and reports the unrounded state at every year
// boundary.
func simulate(cfg core.ForecastConfig, emit func(year int, current, invested float64)) {
	monthlyRate := cfg.AnnualRatePercent / 100 / 12
	current := cfg.Initial
	invested := cfg.Initial
	for month := 0; month <= cfg.Years*12; month++ {
		if month%12 == 0 {
			emit(month/12, current, invested)
		}
		current = (current + cfg.MonthlyContribution) * (1 + monthlyRate)
		invested += cfg.MonthlyContribution
	}
}

// roundHalfUp rounds .5 towards positive infinity, the rounding the
// projection figures were originally published with.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
