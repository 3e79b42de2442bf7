// Package scoring provides the per-dimension confidence scorers used by the
// matching rule engine.
//
// Every scorer is pure and total: it never fails and returns 0.0 when the
// inputs do not support a match. The rule engine combines scorers with fixed
// weights per rule type; scorers themselves know nothing about rules.
package scoring

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	one        = decimal.NewFromInt(1)
	percentOne = decimal.NewFromFloat(0.01)
	percentFive = decimal.NewFromFloat(0.05)
)

// Amount scores how well a statement amount covers an open amount.
// Signs are ignored: a -1000.00 debit settles a 1000.00 payable.
//
//	1.0   within tolerance
//	0.95  within 1% relative difference
//	0.85  within 5% relative difference
//	else  max(0, 1 - diff/openAmount)
func Amount(stmtAmount, openAmount, tolerance decimal.Decimal) float64 {
	a := stmtAmount.Abs()
	b := openAmount.Abs()
	diff := a.Sub(b).Abs()

	if diff.LessThanOrEqual(tolerance.Abs()) {
		return 1.0
	}
	if b.IsZero() {
		return 0.0
	}

	rel := diff.Div(b)
	switch {
	case rel.LessThanOrEqual(percentOne):
		return 0.95
	case rel.LessThanOrEqual(percentFive):
		return 0.85
	}

	remainder, _ := one.Sub(rel).Float64()
	if remainder < 0 {
		return 0.0
	}
	return remainder
}

// Date scores the distance between a statement booking date and an open
// item's due date. maxDays bounds the linear tail; beyond it the score is 0.
//
//	1.0   same day
//	0.95  within 7 days
//	0.85  within 14 days
//	else  linear from 0.85 down to 0.5 at maxDays
func Date(bookingDate, dueDate time.Time, maxDays int) float64 {
	days := DaysBetween(bookingDate, dueDate)
	switch {
	case days == 0:
		return 1.0
	case days <= 7:
		return 0.95
	case days <= 14:
		return 0.85
	case maxDays > 14 && days <= maxDays:
		span := float64(maxDays - 14)
		return 0.85 - (0.85-0.5)*float64(days-14)/span
	default:
		return 0.0
	}
}

// DaysBetween returns the absolute calendar-day distance between two dates.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(au.Sub(bu).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
