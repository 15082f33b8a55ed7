package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
)

// RoundMoney rounds an amount to 2 decimal places, half away from zero.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// NonNegative floors an amount at zero
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// SimpleInterest returns principal * annualRatePercent * days / (365 * 100), unrounded.
func SimpleInterest(principal, annualRatePercent decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 || principal.Sign() <= 0 || annualRatePercent.Sign() <= 0 {
		return decimal.Zero
	}
	return principal.
		Mul(annualRatePercent).
		Mul(decimal.NewFromInt(int64(days))).
		Div(daysInYear.Mul(hundred))
}

// TruncateToDay drops the time-of-day, keeping the location
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the given date
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// DaysBetween counts calendar days from one date to another, ignoring time-of-day
// and DST shifts. Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DaysInMonth returns the number of days in the given month. Month overflow
// (13, 0, -1, ...) rolls the year like time.Date does.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds year/month/day, clamping day into the month's valid range.
// A day of 31 in a 30-day month resolves to the 30th, in February to the 28th/29th.
func ClampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	y, m, _ := first.Date()

	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(y, m); day > last {
		day = last
	}
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// AddMonthsClamped moves anchor by n months and lands on the requested day,
// clamped to that month's length. Unlike time.AddDate it never spills into the
// following month.
func AddMonthsClamped(anchor time.Time, n int, day int) time.Time {
	return ClampedDate(anchor.Year(), anchor.Month()+time.Month(n), day, anchor.Location())
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
