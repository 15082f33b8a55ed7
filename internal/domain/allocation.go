package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAllocation records how much of one repayment settled one line.
// Allocations are immutable once written.
type PaymentAllocation struct {
	ID              string          `json:"id" db:"id"`
	RepaymentID     string          `json:"repayment_id" db:"repayment_id"`
	StatementLineID string          `json:"statement_line_id" db:"statement_line_id"`
	AmountPaid      decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	TransactionID   *string         `json:"transaction_id,omitempty" db:"transaction_id"`
	PlanID          *string         `json:"plan_id,omitempty" db:"plan_id"`
	Description     string          `json:"description" db:"description"`

	// Virtual marks an allocation against an installment due that has no
	// persisted line yet; the line is materialized on confirmation.
	Virtual bool `json:"virtual" db:"-"`
}

// AllocationResult is the outcome of distributing one repayment. At most one
// of AdvanceCreated and AdvanceUsed is non-zero.
type AllocationResult struct {
	Allocations    []PaymentAllocation `json:"allocations"`
	TotalSelected  decimal.Decimal     `json:"total_selected"`
	AdvanceCreated decimal.Decimal     `json:"advance_created"`
	AdvanceUsed    decimal.Decimal     `json:"advance_used"`
	Shortfall      decimal.Decimal     `json:"shortfall"`
	Warnings       []Warning           `json:"warnings,omitempty"`
}

// HasShortfall reports whether the caller must block or explicitly accept.
func (r AllocationResult) HasShortfall() bool {
	return r.Shortfall.IsPositive()
}

// Repayment is a confirmed allocation ready to be persisted atomically.
type Repayment struct {
	ID             string          `json:"id" db:"id"`
	AccountID      string          `json:"account_id" db:"account_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	PaidAt         time.Time       `json:"paid_at" db:"paid_at"`
	AdvanceCreated decimal.Decimal `json:"advance_created" db:"advance_created"`
	AdvanceUsed    decimal.Decimal `json:"advance_used" db:"advance_used"`
	Shortfall      decimal.Decimal `json:"shortfall" db:"shortfall"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`

	Allocations       []PaymentAllocation `json:"allocations" db:"-"`
	SettledLineIDs    []string            `json:"settled_line_ids" db:"-"`
	MaterializedLines []StatementLineItem `json:"materialized_lines" db:"-"`
	PlanUpdates       []InstallmentPlan   `json:"plan_updates" db:"-"`
}

type AllocationRequest struct {
	AccountID   string          `json:"account_id" validate:"required"`
	SelectedIDs []string        `json:"selected_ids" validate:"min=1,dive,required"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	PeriodEnd   *time.Time      `json:"period_end,omitempty"`
	PaidAt      time.Time       `json:"paid_at"`

	// EditingRepaymentID keeps the lines of an earlier repayment selectable.
	EditingRepaymentID string `json:"editing_repayment_id,omitempty"`

	// AcceptShortfall lets a confirmation through when the repayment falls short.
	AcceptShortfall bool `json:"accept_shortfall"`
}
