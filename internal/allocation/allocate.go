package allocation

import (
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// Allocate distributes a repayment across the selected due items.
//
// Each selected item is settled in full. A surplus becomes new advance
// balance; a deficit draws the existing advance down first and whatever it
// cannot cover is reported as Shortfall. Unknown ids are skipped as stale and
// items without a usable amount are left out of the total; both come back as
// warnings. Allocation ids are left empty for the caller to assign.
func Allocate(items []DueItem, selectedIDs []string, repayment, advanceBalance decimal.Decimal) domain.AllocationResult {
	result := domain.AllocationResult{
		Allocations:    make([]domain.PaymentAllocation, 0, len(selectedIDs)),
		TotalSelected:  decimal.Zero,
		AdvanceCreated: decimal.Zero,
		AdvanceUsed:    decimal.Zero,
		Shortfall:      decimal.Zero,
	}

	if repayment.IsNegative() {
		result.Warnings = append(result.Warnings, domain.Warning{
			Code:    domain.WarningInvalidInput,
			Message: "negative repayment amount treated as zero",
		})
		repayment = decimal.Zero
	}
	advanceBalance = utils.NonNegative(advanceBalance)

	byID := make(map[string]DueItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	seen := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		item, ok := byID[id]
		if !ok {
			result.Warnings = append(result.Warnings, domain.Warning{
				Code:    domain.WarningStaleReference,
				Ref:     id,
				Message: "selected item is not due on this account",
			})
			continue
		}
		if !item.Amount.Valid {
			result.Warnings = append(result.Warnings, domain.Warning{
				Code:    domain.WarningDataIntegrity,
				Ref:     id,
				Message: "amount is missing or not numeric; item excluded from total",
			})
			continue
		}

		amount := item.Amount.Decimal
		result.TotalSelected = result.TotalSelected.Add(amount)
		result.Allocations = append(result.Allocations, domain.PaymentAllocation{
			StatementLineID: item.ID,
			AmountPaid:      utils.RoundMoney(amount),
			TransactionID:   item.TransactionID,
			PlanID:          item.PlanID,
			Description:     item.Description,
			Virtual:         item.Virtual,
		})
	}

	diff := repayment.Sub(result.TotalSelected)
	switch diff.Sign() {
	case 1:
		result.AdvanceCreated = diff
	case -1:
		deficit := diff.Neg()
		result.AdvanceUsed = decimal.Min(advanceBalance, deficit)
		result.Shortfall = utils.NonNegative(deficit.Sub(advanceBalance))
	}

	result.TotalSelected = utils.RoundMoney(result.TotalSelected)
	result.AdvanceCreated = utils.RoundMoney(result.AdvanceCreated)
	result.AdvanceUsed = utils.RoundMoney(result.AdvanceUsed)
	result.Shortfall = utils.RoundMoney(result.Shortfall)

	return result
}
