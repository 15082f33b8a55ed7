package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanTerms are fixed once a loan begins. Changing tenure or principal means
// creating a new loan, never mutating these.
type LoanTerms struct {
	Principal    decimal.Decimal `json:"principal" db:"principal"`
	TenureMonths int             `json:"tenure_months" db:"tenure_months"`
	StartDate    time.Time       `json:"start_date" db:"start_date"`
	DueDay       int             `json:"due_day" db:"due_day"`           // 1-31, clamped per month
	OpeningRate  decimal.Decimal `json:"opening_rate" db:"opening_rate"` // annual percent
}

// Loan represents a loan entity
type Loan struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	LoanTerms           // terms are stored inline on the loans row
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RateChangeRecord moves a loan onto a new annual rate from EffectiveDate on.
// Records are append-only and unique per (loan, effective date).
type RateChangeRecord struct {
	ID            string          `json:"id" db:"id"`
	LoanID        string          `json:"loan_id" db:"loan_id"`
	AnnualRate    decimal.Decimal `json:"annual_rate" db:"annual_rate"`
	EffectiveDate time.Time       `json:"effective_date" db:"effective_date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// InstallmentPayment is one recorded EMI payment and its split.
// PrincipalComponent + InterestComponent == EMIAmount.
type InstallmentPayment struct {
	ID                 string          `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	SequenceNumber     int             `json:"sequence_number" db:"sequence_number"`
	PaymentDate        time.Time       `json:"payment_date" db:"payment_date"`
	EMIAmount          decimal.Decimal `json:"emi_amount" db:"emi_amount"`
	PrincipalComponent decimal.Decimal `json:"principal_component" db:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component" db:"interest_component"`
	OutstandingAfter   decimal.Decimal `json:"outstanding_after" db:"outstanding_after"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// Breakdown is the principal/interest split of a single payment
type Breakdown struct {
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	NewOutstanding     decimal.Decimal `json:"new_outstanding"`
}

// ScheduledPayment is an input to schedule generation: a dated EMI payment.
type ScheduledPayment struct {
	Date      time.Time       `json:"date"`
	EMIAmount decimal.Decimal `json:"emi_amount"`
}

// ScheduleSummary aggregates a schedule for reporting
type ScheduleSummary struct {
	Installments     int             `json:"installments"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	PrincipalPaid    decimal.Decimal `json:"principal_paid"`
	InterestPaid     decimal.Decimal `json:"interest_paid"`
	FinalOutstanding decimal.Decimal `json:"final_outstanding"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Principal    decimal.Decimal `json:"principal" validate:"gt=0"`
	TenureMonths int             `json:"tenure_months" validate:"gt=0,lte=600"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	DueDay       int             `json:"due_day" validate:"omitempty,min=1,max=31"`

	// OpeningRate defaults to the configured fallback rate when omitted
	OpeningRate *decimal.Decimal `json:"opening_rate,omitempty"`
}

type AddRateChangeRequest struct {
	LoanID        string          `json:"loan_id" validate:"required"`
	AnnualRate    decimal.Decimal `json:"annual_rate" validate:"gte=0"`
	EffectiveDate time.Time       `json:"effective_date" validate:"required"`
}

type RecordPaymentRequest struct {
	LoanID      string          `json:"loan_id" validate:"required"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

type ScheduleResponse struct {
	LoanID   string                `json:"loan_id"`
	EMI      decimal.Decimal       `json:"emi"`
	Schedule []*InstallmentPayment `json:"schedule"`
	Summary  ScheduleSummary       `json:"summary"`
}
