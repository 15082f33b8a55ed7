package amortization

import (
	"testing"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ratehistory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, expected string, actual decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, actual.Equal(money(expected)), "%s: expected %s, but got %s", field, expected, actual)
}

func TestBreakdownForPayment(t *testing.T) {
	tests := []struct {
		name                string
		window              PaymentWindow
		expectedPrincipal   string
		expectedInterest    string
		expectedOutstanding string
	}{
		{
			name: "single rate over 31 days",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 15),
				Outstanding:  money("120000"),
				EMI:          money("10661.85"),
				FallbackRate: money("12"),
			},
			// 120000 * 12 * 31 / 36500 = 1223.0137
			expectedPrincipal:   "9438.84",
			expectedInterest:    "1223.01",
			expectedOutstanding: "110561.16",
		},
		{
			name: "rate change inside the window",
			window: PaymentWindow{
				From:        date(2024, 1, 15),
				PaymentDate: date(2024, 2, 15),
				Outstanding: money("120000"),
				EMI:         money("10661.85"),
				History: ratehistory.New([]domain.RateChangeRecord{
					{AnnualRate: money("18"), EffectiveDate: date(2024, 2, 1)},
				}),
				FallbackRate: money("12"),
			},
			// 17 days at 12% + 14 days at 18% = 1499.1781
			expectedPrincipal:   "9162.67",
			expectedInterest:    "1499.18",
			expectedOutstanding: "110837.33",
		},
		{
			name: "early payment accrues the remaining days on the reduced principal",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 10),
				Outstanding:  money("120000"),
				EMI:          money("10661.85"),
				FallbackRate: money("12"),
				DueDay:       15,
			},
			// 26 days on 120000 plus 5 days on 120000 - (10661.85 - 1025.7534)
			expectedPrincipal:   "9454.68",
			expectedInterest:    "1207.17",
			expectedOutstanding: "110545.32",
		},
		{
			name: "payment on the due date has no second leg",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 15),
				Outstanding:  money("120000"),
				EMI:          money("10661.85"),
				FallbackRate: money("12"),
				DueDay:       15,
			},
			expectedPrincipal:   "9438.84",
			expectedInterest:    "1223.01",
			expectedOutstanding: "110561.16",
		},
		{
			name: "zero rate pays principal only",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 15),
				Outstanding:  money("1200"),
				EMI:          money("100"),
				FallbackRate: decimal.Zero,
			},
			expectedPrincipal:   "100",
			expectedInterest:    "0",
			expectedOutstanding: "1100",
		},
		{
			name: "overpayment floors outstanding at zero",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 15),
				Outstanding:  money("50"),
				EMI:          money("100"),
				FallbackRate: decimal.Zero,
			},
			expectedPrincipal:   "100",
			expectedInterest:    "0",
			expectedOutstanding: "0",
		},
		{
			name: "settled loan yields an empty breakdown",
			window: PaymentWindow{
				From:         date(2024, 1, 15),
				PaymentDate:  date(2024, 2, 15),
				Outstanding:  decimal.Zero,
				EMI:          money("100"),
				FallbackRate: money("12"),
			},
			expectedPrincipal:   "0",
			expectedInterest:    "0",
			expectedOutstanding: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BreakdownForPayment(tt.window)

			assertMoney(t, tt.expectedPrincipal, b.PrincipalComponent, "principal")
			assertMoney(t, tt.expectedInterest, b.InterestComponent, "interest")
			assertMoney(t, tt.expectedOutstanding, b.NewOutstanding, "outstanding")
		})
	}
}

func TestBreakdownForPayment_ComponentsAddUpToEMI(t *testing.T) {
	b := BreakdownForPayment(PaymentWindow{
		From:         date(2024, 3, 3),
		PaymentDate:  date(2024, 4, 9),
		Outstanding:  money("87654.32"),
		EMI:          money("3210.98"),
		FallbackRate: money("14.25"),
		DueDay:       20,
	})

	assert.True(t, b.PrincipalComponent.Add(b.InterestComponent).Equal(money("3210.98")))
}

func TestGenerateSchedule(t *testing.T) {
	schedule := GenerateSchedule(ScheduleInput{
		LoanStart: date(2024, 1, 15),
		Principal: money("120000"),
		Payments: []domain.ScheduledPayment{
			{Date: date(2024, 3, 15), EMIAmount: money("10661.85")},
			{Date: date(2024, 2, 15), EMIAmount: money("10661.85")},
		},
		FallbackRate: money("12"),
	})

	require.Len(t, schedule, 2)
	assert.Equal(t, 1, schedule[0].SequenceNumber)
	assert.Equal(t, date(2024, 2, 15), schedule[0].PaymentDate)
	assertMoney(t, "110561.16", schedule[0].OutstandingAfter, "first outstanding")

	// 110561.16 * 12 * 29 / 36500 = 1054.1174
	assert.Equal(t, 2, schedule[1].SequenceNumber)
	assertMoney(t, "1054.12", schedule[1].InterestComponent, "second interest")
	assertMoney(t, "9607.73", schedule[1].PrincipalComponent, "second principal")
	assertMoney(t, "100953.43", schedule[1].OutstandingAfter, "second outstanding")
}

func TestGenerateSchedule_DayWeightedResidual(t *testing.T) {
	payments := make([]domain.ScheduledPayment, 0, 12)
	for k := 1; k <= 12; k++ {
		payments = append(payments, domain.ScheduledPayment{
			Date:      date(2024, time.January+time.Month(k), 15),
			EMIAmount: money("10661.85"),
		})
	}

	schedule := GenerateSchedule(ScheduleInput{
		LoanStart:    date(2024, 1, 15),
		Principal:    money("120000"),
		Payments:     payments,
		DueDay:       15,
		FallbackRate: money("12"),
	})

	require.Len(t, schedule, 12)
	for _, p := range schedule {
		assertMoney(t, "10661.85", p.EMIAmount, "emi")
	}
	assert.Equal(t, date(2025, 1, 15), schedule[11].PaymentDate)
	assertMoney(t, "107.62", schedule[11].InterestComponent, "last interest")
	assertMoney(t, "4.98", schedule[11].OutstandingAfter, "residual")
}

func TestGenerateSchedule_AfterPayoff(t *testing.T) {
	schedule := GenerateSchedule(ScheduleInput{
		LoanStart: date(2024, 1, 1),
		Principal: money("150"),
		Payments: []domain.ScheduledPayment{
			{Date: date(2024, 2, 1), EMIAmount: money("200")},
			{Date: date(2024, 3, 1), EMIAmount: money("200")},
		},
		FallbackRate: decimal.Zero,
	})

	require.Len(t, schedule, 2)
	assertMoney(t, "0", schedule[0].OutstandingAfter, "first outstanding")
	assertMoney(t, "0", schedule[1].EMIAmount, "second emi")
	assertMoney(t, "0", schedule[1].OutstandingAfter, "second outstanding")
}

func TestProjectSchedule(t *testing.T) {
	terms := domain.LoanTerms{
		Principal:    money("120000"),
		TenureMonths: 12,
		StartDate:    date(2024, 1, 15),
		DueDay:       15,
		OpeningRate:  money("12"),
	}

	schedule, emi := ProjectSchedule(terms, ratehistory.History{})

	assertMoney(t, "10661.85", emi, "emi")
	require.Len(t, schedule, 12)

	principal := decimal.Zero
	for i, p := range schedule {
		assert.Equal(t, i+1, p.SequenceNumber)
		assert.Equal(t, 15, p.PaymentDate.Day())
		assert.True(t, p.PrincipalComponent.Add(p.InterestComponent).Equal(p.EMIAmount))
		if i < len(schedule)-1 {
			assertMoney(t, "10661.85", p.EMIAmount, "emi")
			assert.True(t, p.OutstandingAfter.IsPositive())
		}
		principal = principal.Add(p.PrincipalComponent)
	}

	assertMoney(t, "1223.01", schedule[0].InterestComponent, "first interest")
	assert.Equal(t, date(2024, 2, 15), schedule[0].PaymentDate)
	assert.Equal(t, date(2025, 1, 15), schedule[11].PaymentDate)
	assertMoney(t, "0", schedule[11].OutstandingAfter, "final outstanding")
	assertMoney(t, "120000", principal, "principal repaid")

	summary := Summarize(schedule)
	assert.Equal(t, 12, summary.Installments)
	assertMoney(t, "120000", summary.PrincipalPaid, "summary principal")
	assert.True(t, summary.TotalPaid.Equal(summary.PrincipalPaid.Add(summary.InterestPaid)))
	assertMoney(t, "0", summary.FinalOutstanding, "summary outstanding")
}

func TestProjectSchedule_DueDayClampsInShortMonths(t *testing.T) {
	terms := domain.LoanTerms{
		Principal:    money("3000"),
		TenureMonths: 3,
		StartDate:    date(2024, 1, 31),
		OpeningRate:  decimal.Zero,
	}

	schedule, emi := ProjectSchedule(terms, ratehistory.History{})

	assertMoney(t, "1000", emi, "emi")
	require.Len(t, schedule, 3)
	assert.Equal(t, date(2024, 2, 29), schedule[0].PaymentDate)
	assert.Equal(t, date(2024, 3, 31), schedule[1].PaymentDate)
	assert.Equal(t, date(2024, 4, 30), schedule[2].PaymentDate)
	for _, p := range schedule {
		assertMoney(t, "1000", p.PrincipalComponent, "principal")
		assertMoney(t, "0", p.InterestComponent, "interest")
	}
}

func TestProjectSchedule_InvalidTerms(t *testing.T) {
	schedule, emi := ProjectSchedule(domain.LoanTerms{
		Principal:    decimal.Zero,
		TenureMonths: 12,
		StartDate:    date(2024, 1, 15),
		OpeningRate:  money("12"),
	}, ratehistory.History{})

	assert.Empty(t, schedule)
	assert.True(t, emi.IsZero())
}

func TestNextInstallment(t *testing.T) {
	terms := domain.LoanTerms{
		Principal:    money("120000"),
		TenureMonths: 12,
		StartDate:    date(2024, 1, 15),
		OpeningRate:  money("12"),
	}

	first := NextInstallment(terms, ratehistory.History{}, nil, date(2024, 2, 15), money("10661.85"))
	assert.Equal(t, 1, first.SequenceNumber)
	assertMoney(t, "110561.16", first.OutstandingAfter, "first outstanding")

	second := NextInstallment(terms, ratehistory.History{}, []*domain.InstallmentPayment{first}, date(2024, 3, 15), money("10661.85"))
	assert.Equal(t, 2, second.SequenceNumber)
	assertMoney(t, "1054.12", second.InterestComponent, "second interest")
	assertMoney(t, "100953.43", second.OutstandingAfter, "second outstanding")
}
