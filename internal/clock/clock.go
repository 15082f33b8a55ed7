// Package clock provides the time source injected into the billing calculator
// and services so that date arithmetic is deterministic under test.
package clock

import "time"

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location
type System struct {
	Location *time.Location
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now()
	}
	return time.Now().In(s.Location)
}

// Fixed always returns the same instant
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// FixedDate is a Fixed clock at noon UTC of the given date.
func FixedDate(year int, month time.Month, day int) Fixed {
	return Fixed(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}
