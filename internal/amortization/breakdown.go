package amortization

import (
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ratehistory"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// PaymentWindow is everything needed to split one payment
type PaymentWindow struct {
	// From is the previous payment date, or the loan start for the first payment.
	From         time.Time
	PaymentDate  time.Time
	Outstanding  decimal.Decimal
	EMI          decimal.Decimal
	History      ratehistory.History
	FallbackRate decimal.Decimal

	// DueDay enables the early-payment split when non-zero.
	DueDay int
}

// BreakdownForPayment splits a payment into principal and interest.
//
// Interest accrues from From to PaymentDate on the full outstanding principal,
// split at every rate change strictly inside the window.
//
// When DueDay is set and the payment lands before that month's due date, the
// accrual runs in two legs: From..PaymentDate on the full principal, then
// PaymentDate..due date on the principal reduced by a provisional estimate
// (EMI minus leg-one interest). The estimate is taken once and not iterated,
// so the split is an approximation; historical figures depend on it staying
// that way.
func BreakdownForPayment(w PaymentWindow) domain.Breakdown {
	if w.Outstanding.Sign() <= 0 || w.EMI.Sign() <= 0 {
		return domain.Breakdown{
			PrincipalComponent: decimal.Zero,
			InterestComponent:  decimal.Zero,
			NewOutstanding:     decimal.Zero,
		}
	}

	interest := accrue(w.Outstanding, w.From, w.PaymentDate, w.History, w.FallbackRate)

	if w.DueDay > 0 {
		due := utils.ClampedDate(w.PaymentDate.Year(), w.PaymentDate.Month(), w.DueDay, w.PaymentDate.Location())
		if utils.DaysBetween(w.PaymentDate, due) > 0 {
			provisionalPrincipal := w.EMI.Sub(interest)
			reduced := utils.NonNegative(w.Outstanding.Sub(provisionalPrincipal))
			interest = interest.Add(accrue(reduced, w.PaymentDate, due, w.History, w.FallbackRate))
		}
	}

	return split(w.Outstanding, w.EMI, interest)
}

// split rounds the accrued interest and derives the principal from it so that
// principal + interest equals the EMI exactly.
func split(outstanding, emi, interest decimal.Decimal) domain.Breakdown {
	emi = utils.RoundMoney(emi)
	interest = utils.RoundMoney(interest)
	principal := emi.Sub(interest)

	return domain.Breakdown{
		PrincipalComponent: principal,
		InterestComponent:  interest,
		NewOutstanding:     utils.RoundMoney(utils.NonNegative(outstanding.Sub(principal))),
	}
}

// accrue returns unrounded simple interest on principal from..to, re-pricing
// at each rate boundary inside the window.
func accrue(principal decimal.Decimal, from, to time.Time, history ratehistory.History, fallback decimal.Decimal) decimal.Decimal {
	if utils.DaysBetween(from, to) <= 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	cursor := from
	for _, boundary := range history.BoundariesBetween(from, to) {
		rate := history.RateAt(cursor, fallback)
		total = total.Add(utils.SimpleInterest(principal, rate, utils.DaysBetween(cursor, boundary)))
		cursor = boundary
	}
	rate := history.RateAt(cursor, fallback)
	return total.Add(utils.SimpleInterest(principal, rate, utils.DaysBetween(cursor, to)))
}
