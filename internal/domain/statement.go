package domain

import (
	"fmt"
	"time"

	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// LineStatus is the settlement state of a statement line
type LineStatus string

const (
	LineStatusPending LineStatus = "pending"
	LineStatusPartial LineStatus = "partial"
	LineStatusPaid    LineStatus = "paid"
)

func (s LineStatus) rank() int {
	switch s {
	case LineStatusPending:
		return 0
	case LineStatusPartial:
		return 1
	case LineStatusPaid:
		return 2
	default:
		return -1
	}
}

// Open reports whether the line still has something due
func (s LineStatus) Open() bool {
	return s == LineStatusPending || s == LineStatusPartial
}

// CanTransition enforces pending -> partial -> paid with no regression.
func (s LineStatus) CanTransition(to LineStatus) bool {
	from, next := s.rank(), to.rank()
	return from >= 0 && next >= from
}

// CreditAccount owns statement lines, installment plans and an advance balance.
type CreditAccount struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	StatementDay   int             `json:"statement_day" db:"statement_day"`
	DueDay         int             `json:"due_day" db:"due_day"`
	CreditLimit    decimal.Decimal `json:"credit_limit" db:"credit_limit"`
	AdvanceBalance decimal.Decimal `json:"advance_balance" db:"advance_balance"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// StatementLineItem is one billable obligation: a purchase, or one due
// installment of a plan when PlanID is set.
//
// Amount is null when the stored value was missing or not numeric; such
// lines are excluded from totals and reported as data-integrity warnings.
type StatementLineItem struct {
	ID              string              `json:"id"`
	AccountID       string              `json:"account_id"`
	TransactionID   *string             `json:"transaction_id,omitempty"`
	PlanID          *string             `json:"plan_id,omitempty"`
	Description     string              `json:"description"`
	Amount          decimal.NullDecimal `json:"amount"`
	TransactionDate time.Time           `json:"transaction_date"`
	Status          LineStatus          `json:"status"`
	PaidAmount      decimal.Decimal     `json:"paid_amount"`
	CreatedAt       time.Time           `json:"created_at"`
}

// InstallmentPlan converts a purchase into fixed monthly dues.
type InstallmentPlan struct {
	ID                       string          `json:"id" db:"id"`
	AccountID                string          `json:"account_id" db:"account_id"`
	OriginatingTransactionID string          `json:"originating_transaction_id" db:"originating_transaction_id"`
	Description              string          `json:"description" db:"description"`
	Principal                decimal.Decimal `json:"principal" db:"principal"`
	AnnualRate               decimal.Decimal `json:"annual_rate" db:"annual_rate"`
	TotalInstallments        int             `json:"total_installments" db:"total_installments"`
	MonthlyEMI               decimal.Decimal `json:"monthly_emi" db:"monthly_emi"`
	RemainingInstallments    int             `json:"remaining_installments" db:"remaining_installments"`
	FirstDueDate             time.Time       `json:"first_due_date" db:"first_due_date"`
	NextDueDate              time.Time       `json:"next_due_date" db:"next_due_date"`
	CreatedAt                time.Time       `json:"created_at" db:"created_at"`
}

// Completed is the terminal state of a plan
func (p InstallmentPlan) Completed() bool {
	return p.RemainingInstallments <= 0
}

// CurrentInstallment is the 1-based number of the next installment due
func (p InstallmentPlan) CurrentInstallment() int {
	return p.TotalInstallments - p.RemainingInstallments + 1
}

// InstallmentLabel renders "installment k of n"
func (p InstallmentPlan) InstallmentLabel() string {
	return fmt.Sprintf("installment %d of %d", p.CurrentInstallment(), p.TotalInstallments)
}

// DueDateFor returns the due date of installment k (1-based). Dates are
// anchored on FirstDueDate's day so short months do not drift later ones.
func (p InstallmentPlan) DueDateFor(k int) time.Time {
	return utils.AddMonthsClamped(p.FirstDueDate, k-1, p.FirstDueDate.Day())
}

// Advanced returns the plan after one more installment has been paid
func (p InstallmentPlan) Advanced() InstallmentPlan {
	if p.Completed() {
		return p
	}
	p.RemainingInstallments--
	if !p.Completed() {
		p.NextDueDate = p.DueDateFor(p.CurrentInstallment())
	}
	return p
}

type OpenAccountRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	StatementDay int             `json:"statement_day" validate:"omitempty,min=1,max=31"`
	DueDay       int             `json:"due_day" validate:"omitempty,min=1,max=31"`
	CreditLimit  decimal.Decimal `json:"credit_limit" validate:"gte=0"`
}

type AddStatementLineRequest struct {
	AccountID       string          `json:"account_id" validate:"required"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	Description     string          `json:"description" validate:"required,max=200"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	TransactionDate time.Time       `json:"transaction_date" validate:"required"`
}

type ConvertToInstallmentsRequest struct {
	AccountID     string          `json:"account_id" validate:"required"`
	TransactionID string          `json:"transaction_id" validate:"required"`
	Description   string          `json:"description" validate:"max=200"`
	Principal     decimal.Decimal `json:"principal" validate:"gt=0"`
	AnnualRate    decimal.Decimal `json:"annual_rate" validate:"gte=0"`
	Installments  int             `json:"installments" validate:"gt=0,lte=120"`
	FirstDueDate  time.Time       `json:"first_due_date" validate:"required"`
}

// CycleStatus is the billing position of a credit account at a moment
type CycleStatus struct {
	AccountID    string    `json:"account_id"`
	CycleStart   time.Time `json:"cycle_start"`
	CycleEnd     time.Time `json:"cycle_end"`
	NextDueDate  time.Time `json:"next_due_date"`
	DaysUntilDue int       `json:"days_until_due"`
	Overdue      bool      `json:"overdue"`

	// Last closed statement and what is still open on it
	StatementDate    time.Time       `json:"statement_date"`
	StatementDueDate time.Time       `json:"statement_due_date"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	ItemsDue         int             `json:"items_due"`
	Warnings         []Warning       `json:"warnings,omitempty"`
}
