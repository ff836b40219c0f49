package core

import (
	"fmt"
	"time"
)

// PeriodKey identifies a calendar month as "YYYY-MM". Two entries are in the
// same period iff their keys are equal as strings.
type PeriodKey string

const periodFormat = "2006-01"

// PeriodOf derives the PeriodKey of a date.
func PeriodOf(d Date) PeriodKey {
	return PeriodKey(fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())))
}

// PeriodAt returns the period containing t, in t's location.
func PeriodAt(t time.Time) PeriodKey {
	return PeriodKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParsePeriodKey validates a "YYYY-MM" string.
func ParsePeriodKey(s string) (PeriodKey, error) {
	t, err := time.Parse(periodFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid period %q: %w", s, err)
	}
	return PeriodAt(t), nil
}

func (p PeriodKey) String() string { return string(p) }

func (p PeriodKey) yearMonth() (int, time.Month) {
	t, err := time.Parse(periodFormat, string(p))
	if err != nil {
		return 0, 0
	}
	return t.Year(), t.Month()
}

// Shift moves the period by n months. Only year and month take part in the
// arithmetic, so there is no day-of-month overflow.
func (p PeriodKey) Shift(n int) PeriodKey {
	y, m := p.yearMonth()
	if y == 0 {
		return p
	}
	idx := y*12 + int(m) - 1 + n
	return PeriodKey(fmt.Sprintf("%04d-%02d", idx/12, idx%12+1))
}

// FirstDay returns the 1st of the period.
func (p PeriodKey) FirstDay() Date {
	y, m := p.yearMonth()
	return NewDate(y, int(m), 1)
}

// Contains reports whether d falls inside the period.
func (p PeriodKey) Contains(d Date) bool {
	return PeriodOf(d) == p
}
