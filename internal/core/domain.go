package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the storage and wire format of ledger dates.
const DateFormat = "2006-01-02"

const (
	CategoryCash       Category = "cash"
	CategoryRetirement Category = "retirement"
	CategoryInvestment Category = "investment"
	CategoryProperty   Category = "property"
	CategoryVehicle    Category = "vehicle"
	CategoryOther      Category = "other"
	CategoryMortgage   Category = "mortgage"
	CategoryCreditCard Category = "credit_card"
	CategoryLoan       Category = "loan"
	CategoryIncome     Category = "income"
	CategoryExpense    Category = "expense"
)

const (
	BucketAssets Bucket = iota + 1
	BucketLiabilities
	BucketIncome
	BucketExpenses
)

type (
	Category string

	// Bucket is the logical collection an entry lives in.
	Bucket int

	Date struct {
		time.Time
	}

	Entry struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Subcategory string          `json:"subcategory,omitempty"`
		Date        Date            `json:"date"`
		Recurring   bool            `json:"recurring"`
	}

	// Obligation is a fixed monthly bill (EMI). It is never rolled over.
	Obligation struct {
		ID      string          `json:"id"`
		OwnerID string          `json:"ownerId"`
		Name    string          `json:"name"`
		Amount  decimal.Decimal `json:"amount"`
		DueDay  int             `json:"dueDate"`
		IsPaid  bool            `json:"isPaid"`
	}

	// Milestone is a savings goal.
	Milestone struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"ownerId"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      Date            `json:"deadline"`
	}

	// ForecastConfig drives the compound-growth projection.
	ForecastConfig struct {
		Initial             float64 `json:"initial"`
		MonthlyContribution float64 `json:"monthly"`
		AnnualRatePercent   float64 `json:"rate"`
		Years               int     `json:"years"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyOwner      = errors.New("empty owner id")
	ErrEmptyID         = errors.New("empty id")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidDueDay   = errors.New("due day must be between 1 and 31")
	ErrInvalidForecast = errors.New("invalid forecast parameters")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// ValidationError reports which field was rejected. Err is always one of the
// package sentinels so callers can use errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ParseCategory resolves a category literal. Unknown literals are rejected.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if c.Bucket() == 0 {
		return "", invalid("category", ErrUnknownCategory)
	}
	return c, nil
}

// Bucket returns the collection the category belongs to, or 0 if unknown.
func (c Category) Bucket() Bucket {
	switch c {
	case CategoryCash, CategoryRetirement, CategoryInvestment, CategoryProperty, CategoryVehicle, CategoryOther:
		return BucketAssets
	case CategoryMortgage, CategoryCreditCard, CategoryLoan:
		return BucketLiabilities
	case CategoryIncome:
		return BucketIncome
	case CategoryExpense:
		return BucketExpenses
	default:
		return 0
	}
}

func (c Category) String() string { return string(c) }

func (b Bucket) String() string {
	switch b {
	case BucketAssets:
		return "assets"
	case BucketLiabilities:
		return "liabilities"
	case BucketIncome:
		return "income"
	case BucketExpenses:
		return "expenses"
	default:
		return "unknown"
	}
}

// ParseBucket is the inverse of Bucket.String.
func ParseBucket(s string) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assets":
		return BucketAssets, nil
	case "liabilities":
		return BucketLiabilities, nil
	case "income":
		return BucketIncome, nil
	case "expenses":
		return BucketExpenses, nil
	}
	return 0, fmt.Errorf("unknown bucket %q", s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days such as 2025-02-30
// are rejected rather than normalised.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return Date{}, invalid("date", ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateFormat)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Stored documents may carry full timestamps; keep the calendar day.
	if len(s) > len(DateFormat) {
		s = s[:len(DateFormat)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Period returns the month bucket of the date.
func (d Date) Period() PeriodKey {
	return PeriodOf(d)
}

func validateAmount(field string, a decimal.Decimal) error {
	if a.IsNegative() {
		return invalid(field, ErrInvalidAmount)
	}
	return nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return invalid("id", ErrEmptyID)
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return invalid("ownerId", ErrEmptyOwner)
	}
	if strings.TrimSpace(e.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if err := validateAmount("amount", e.Amount); err != nil {
		return err
	}
	if e.Category.Bucket() == 0 {
		return invalid("category", ErrUnknownCategory)
	}
	return e.Date.Validate()
}

// Bucket returns the collection the entry is routed to.
func (e Entry) Bucket() Bucket { return e.Category.Bucket() }

// Period returns the entry's PeriodKey.
func (e Entry) Period() PeriodKey { return PeriodOf(e.Date) }

func (o Obligation) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return invalid("id", ErrEmptyID)
	}
	if strings.TrimSpace(o.OwnerID) == "" {
		return invalid("ownerId", ErrEmptyOwner)
	}
	if strings.TrimSpace(o.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if err := validateAmount("amount", o.Amount); err != nil {
		return err
	}
	if o.DueDay < 1 || o.DueDay > 31 {
		return invalid("dueDate", ErrInvalidDueDay)
	}
	return nil
}

func (m Milestone) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return invalid("id", ErrEmptyID)
	}
	if strings.TrimSpace(m.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if err := validateAmount("targetAmount", m.TargetAmount); err != nil {
		return err
	}
	if err := validateAmount("currentAmount", m.CurrentAmount); err != nil {
		return err
	}
	return m.Deadline.Validate()
}

// DefaultForecast mirrors the parameters a new ledger starts with.
func DefaultForecast() ForecastConfig {
	return ForecastConfig{Initial: 0, MonthlyContribution: 0, AnnualRatePercent: 12, Years: 10}
}

// IsZero reports whether no parameter has been set.
func (f ForecastConfig) IsZero() bool {
	return f == ForecastConfig{}
}

// Validate rejects negative inputs. The projection itself does not call it.
func (f ForecastConfig) Validate() error {
	switch {
	case f.Initial < 0:
		return invalid("initial", ErrInvalidForecast)
	case f.MonthlyContribution < 0:
		return invalid("monthly", ErrInvalidForecast)
	case f.AnnualRatePercent < 0:
		return invalid("rate", ErrInvalidForecast)
	case f.Years < 0 || f.Years > 100:
		return invalid("years", ErrInvalidForecast)
	}
	return nil
}
