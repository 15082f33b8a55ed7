// Package allocation assembles what a credit account owes for a billing
// period and distributes a repayment across the items the user selected.
//
// Everything here is pure: callers pass snapshots read from the store and
// persist the returned deltas themselves once the user confirms.
package allocation

import (
	"fmt"
	"strings"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const virtualLinePrefix = "plan:"

// DueItem is the common shape real and virtual obligations resolve to
type DueItem struct {
	domain.StatementLineItem
	Virtual bool `json:"virtual"`
}

// Obligation is either a persisted statement line or an installment due that
// only exists in memory until it is paid.
type Obligation interface {
	DueItem() DueItem
	isObligation()
}

// RealObligation wraps a persisted statement line
type RealObligation struct {
	Line domain.StatementLineItem
}

func (o RealObligation) DueItem() DueItem {
	return DueItem{StatementLineItem: o.Line}
}

func (RealObligation) isObligation() {}

// VirtualObligation is the current installment of a plan with no line yet
type VirtualObligation struct {
	Plan domain.InstallmentPlan
}

func (o VirtualObligation) DueItem() DueItem {
	p := o.Plan
	planID := p.ID
	var txID *string
	if p.OriginatingTransactionID != "" {
		id := p.OriginatingTransactionID
		txID = &id
	}

	description := p.InstallmentLabel()
	if p.Description != "" {
		description = fmt.Sprintf("%s - %s", p.Description, description)
	}

	return DueItem{
		StatementLineItem: domain.StatementLineItem{
			ID:              VirtualLineID(p.ID, p.CurrentInstallment()),
			AccountID:       p.AccountID,
			TransactionID:   txID,
			PlanID:          &planID,
			Description:     description,
			Amount:          decimal.NewNullDecimal(p.MonthlyEMI),
			TransactionDate: p.NextDueDate,
			Status:          domain.LineStatusPending,
			PaidAmount:      decimal.Zero,
		},
		Virtual: true,
	}
}

func (VirtualObligation) isObligation() {}

// VirtualLineID is the in-memory id of installment k of a plan
func VirtualLineID(planID string, k int) string {
	return fmt.Sprintf("%s%s:%d", virtualLinePrefix, planID, k)
}

// IsVirtualLineID reports whether id was produced by VirtualLineID
func IsVirtualLineID(id string) bool {
	return strings.HasPrefix(id, virtualLinePrefix)
}
