// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user-entered amounts into decimals
// and validating and formatting ISO 4217 currency codes.
package core

import (
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency of a freshly created ledger.
const DefaultCurrency = "INR"

// ParseAmount converts a user-entered decimal string to a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and anything other than digits and one separator are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,5")   -> 12.5, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	seenDot := false
	for _, r := range s {
		switch {
		case r == '.':
			if seenDot {
				return decimal.Zero, invalid("amount", ErrInvalidAmount)
			}
			seenDot = true
		case !unicode.IsDigit(r):
			return decimal.Zero, invalid("amount", ErrInvalidAmount)
		}
	}
	if s == "." {
		return decimal.Zero, invalid("amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid("amount", ErrInvalidAmount)
	}
	return d, nil
}

// ValidateCurrency checks the code against the ISO 4217 table.
func ValidateCurrency(code string) error {
	if code == "" || money.GetCurrency(strings.ToUpper(code)) == nil {
		return invalid("currency", ErrInvalidCurrency)
	}
	return nil
}

// FormatAmount renders an amount with the currency's symbol and fraction
// digits. Unknown codes fall back to the plain decimal string.
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Sum adds amounts; an empty input yields zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
