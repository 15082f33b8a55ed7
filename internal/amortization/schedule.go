package amortization

import (
	"sort"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ratehistory"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// ScheduleInput describes a loan and the payments to fold over it
type ScheduleInput struct {
	LoanStart    time.Time
	Principal    decimal.Decimal
	Payments     []domain.ScheduledPayment
	History      ratehistory.History
	DueDay       int
	FallbackRate decimal.Decimal

	// SettleFinal makes the last payment clear the remaining principal, with
	// its EMI amount adjusted to principal + interest.
	SettleFinal bool
}

// GenerateSchedule folds BreakdownForPayment over the payments in date order,
// carrying the outstanding principal and the previous payment date forward.
// Sequence numbers are 1-based.
//
// Interest is day-weighted, so a full run of ComputeEMI payments does not
// land exactly on zero: 120000 at 12% over 12 monthly payments of 10661.85
// leaves 4.98 outstanding. That residual is real and stays on the record;
// only SettleFinal folds it into the last installment.
func GenerateSchedule(in ScheduleInput) []*domain.InstallmentPayment {
	payments := make([]domain.ScheduledPayment, len(in.Payments))
	copy(payments, in.Payments)
	sort.SliceStable(payments, func(i, j int) bool {
		return utils.DaysBetween(payments[i].Date, payments[j].Date) > 0
	})

	schedule := make([]*domain.InstallmentPayment, 0, len(payments))
	outstanding := utils.RoundMoney(in.Principal)
	prior := in.LoanStart

	for i, p := range payments {
		window := PaymentWindow{
			From:         prior,
			PaymentDate:  p.Date,
			Outstanding:  outstanding,
			EMI:          p.EMIAmount,
			History:      in.History,
			FallbackRate: in.FallbackRate,
			DueDay:       in.DueDay,
		}

		var b domain.Breakdown
		if in.SettleFinal && i == len(payments)-1 && outstanding.IsPositive() {
			b = settle(window)
		} else {
			b = BreakdownForPayment(window)
		}

		schedule = append(schedule, &domain.InstallmentPayment{
			SequenceNumber:     i + 1,
			PaymentDate:        p.Date,
			EMIAmount:          b.PrincipalComponent.Add(b.InterestComponent),
			PrincipalComponent: b.PrincipalComponent,
			InterestComponent:  b.InterestComponent,
			OutstandingAfter:   b.NewOutstanding,
		})

		outstanding = b.NewOutstanding
		prior = p.Date
	}

	return schedule
}

// settle prices the closing installment: interest as usual, principal equal to
// whatever is still outstanding.
func settle(w PaymentWindow) domain.Breakdown {
	w.EMI = w.Outstanding.Add(accrue(w.Outstanding, w.From, w.PaymentDate, w.History, w.FallbackRate))
	b := BreakdownForPayment(w)

	interest := b.InterestComponent
	principal := utils.RoundMoney(w.Outstanding)
	return domain.Breakdown{
		PrincipalComponent: principal,
		InterestComponent:  interest,
		NewOutstanding:     decimal.Zero,
	}
}

// ProjectSchedule builds the theoretical schedule of a loan: one EMI on the
// clamped due day of each of the tenure months after the start, with the
// final installment absorbing any residual so the balance closes at zero.
// It returns the schedule and the EMI it was priced with.
func ProjectSchedule(terms domain.LoanTerms, history ratehistory.History) ([]*domain.InstallmentPayment, decimal.Decimal) {
	emi := ComputeEMI(terms.Principal, terms.OpeningRate, terms.TenureMonths)
	if emi.IsZero() || terms.TenureMonths <= 0 {
		return nil, emi
	}

	dueDay := terms.DueDay
	if dueDay <= 0 {
		dueDay = terms.StartDate.Day()
	}

	payments := make([]domain.ScheduledPayment, 0, terms.TenureMonths)
	for k := 1; k <= terms.TenureMonths; k++ {
		payments = append(payments, domain.ScheduledPayment{
			Date:      utils.AddMonthsClamped(terms.StartDate, k, dueDay),
			EMIAmount: emi,
		})
	}

	schedule := GenerateSchedule(ScheduleInput{
		LoanStart:    terms.StartDate,
		Principal:    terms.Principal,
		Payments:     payments,
		History:      history,
		DueDay:       dueDay,
		FallbackRate: terms.OpeningRate,
		SettleFinal:  true,
	})
	return schedule, emi
}

// NextInstallment prices a new payment against the recorded history of a
// loan. The returned record carries the next sequence number and has no ID.
func NextInstallment(terms domain.LoanTerms, history ratehistory.History, prior []*domain.InstallmentPayment, paymentDate time.Time, amount decimal.Decimal) *domain.InstallmentPayment {
	from := terms.StartDate
	outstanding := terms.Principal
	seq := 1
	if n := len(prior); n > 0 {
		last := prior[n-1]
		from = last.PaymentDate
		outstanding = last.OutstandingAfter
		seq = last.SequenceNumber + 1
	}

	b := BreakdownForPayment(PaymentWindow{
		From:         from,
		PaymentDate:  paymentDate,
		Outstanding:  outstanding,
		EMI:          amount,
		History:      history,
		FallbackRate: terms.OpeningRate,
		DueDay:       terms.DueDay,
	})

	return &domain.InstallmentPayment{
		SequenceNumber:     seq,
		PaymentDate:        paymentDate,
		EMIAmount:          b.PrincipalComponent.Add(b.InterestComponent),
		PrincipalComponent: b.PrincipalComponent,
		InterestComponent:  b.InterestComponent,
		OutstandingAfter:   b.NewOutstanding,
	}
}

// Summarize totals a schedule
func Summarize(schedule []*domain.InstallmentPayment) domain.ScheduleSummary {
	summary := domain.ScheduleSummary{
		TotalPaid:        decimal.Zero,
		PrincipalPaid:    decimal.Zero,
		InterestPaid:     decimal.Zero,
		FinalOutstanding: decimal.Zero,
	}
	for _, p := range schedule {
		summary.Installments++
		summary.TotalPaid = summary.TotalPaid.Add(p.EMIAmount)
		summary.PrincipalPaid = summary.PrincipalPaid.Add(p.PrincipalComponent)
		summary.InterestPaid = summary.InterestPaid.Add(p.InterestComponent)
		summary.FinalOutstanding = p.OutstandingAfter
	}
	return summary
}
