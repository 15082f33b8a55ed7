// Package amortization splits loan installments into principal and interest.
//
// Interest accrues as simple interest on the outstanding principal, weighted
// by calendar days over a 365-day year, and re-priced at every rate change
// recorded in the loan's rate history. Amounts are rounded to 2 decimals only
// on the values returned by exported functions.
package amortization

import (
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// ComputeEMI returns the reducing-balance installment
//
//	P·r·(1+r)^n / ((1+r)^n − 1),  r = annualRatePercent/12/100
//
// A zero rate or zero tenure degrades to P / max(n, 1). A non-positive
// principal, negative rate or negative tenure returns 0, which callers treat
// as "not enough data yet".
func ComputeEMI(principal, annualRatePercent decimal.Decimal, tenureMonths int) decimal.Decimal {
	if principal.Sign() <= 0 || annualRatePercent.IsNegative() || tenureMonths < 0 {
		return decimal.Zero
	}

	if annualRatePercent.IsZero() || tenureMonths == 0 {
		n := tenureMonths
		if n < 1 {
			n = 1
		}
		return utils.RoundMoney(principal.Div(decimal.NewFromInt(int64(n))))
	}

	r := annualRatePercent.Div(twelve).Div(hundred)
	growth := one.Add(r).Pow(decimal.NewFromInt(int64(tenureMonths)))
	emi := principal.Mul(r).Mul(growth).Div(growth.Sub(one))

	return utils.RoundMoney(emi)
}
