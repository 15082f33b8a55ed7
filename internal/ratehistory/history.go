// Package ratehistory resolves which annual rate was in force on a given day.
package ratehistory

import (
	"sort"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// History is an ordered set of rate changes for one loan. The zero value is
// an empty history.
type History struct {
	records []domain.RateChangeRecord
}

// New copies records and orders them by effective date. The sort is stable,
// so records sharing a date keep their insertion order and the last one wins.
func New(records []domain.RateChangeRecord) History {
	sorted := make([]domain.RateChangeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return civil(sorted[i].EffectiveDate).Before(civil(sorted[j].EffectiveDate))
	})
	return History{records: sorted}
}

// RateAt returns the rate of the latest record effective on or before date,
// or fallback when no record is in force yet.
func (h History) RateAt(date time.Time, fallback decimal.Decimal) decimal.Decimal {
	day := civil(date)
	i := sort.Search(len(h.records), func(i int) bool {
		return civil(h.records[i].EffectiveDate).After(day)
	})
	if i == 0 {
		return fallback
	}
	return h.records[i-1].AnnualRate
}

// BoundariesBetween returns the distinct effective dates strictly after from
// and strictly before to, ascending. These are the days on which the rate may
// change inside the window.
func (h History) BoundariesBetween(from, to time.Time) []time.Time {
	start, end := civil(from), civil(to)
	var out []time.Time
	for _, r := range h.records {
		d := civil(r.EffectiveDate)
		if !d.After(start) || !d.Before(end) {
			continue
		}
		if n := len(out); n > 0 && civil(out[n-1]).Equal(d) {
			continue
		}
		out = append(out, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, from.Location()))
	}
	return out
}

// civil maps t onto its calendar date at UTC midnight so dates from different
// locations compare by day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
