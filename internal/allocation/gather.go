package allocation

import (
	"fmt"
	"sort"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// GatherInput is the snapshot gatherDueItems works on
type GatherInput struct {
	AccountID string

	// PeriodEnd bounds the period (inclusive, whole day). Nil means unbounded.
	PeriodEnd *time.Time

	Plans        []domain.InstallmentPlan
	PendingLines []domain.StatementLineItem

	// PriorAllocations are the allocations of a repayment being edited.
	// ReferencedLines are the lines those allocations point at, fetched by id
	// regardless of status.
	PriorAllocations []domain.PaymentAllocation
	ReferencedLines  []domain.StatementLineItem
}

// GatherResult lists due items newest first
type GatherResult struct {
	Items    []DueItem        `json:"items"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

// ReferencedLineIDs returns the distinct line ids a set of allocations
// points at, skipping virtual ids that were never persisted.
func ReferencedLineIDs(prior []domain.PaymentAllocation) []string {
	seen := make(map[string]bool, len(prior))
	ids := make([]string, 0, len(prior))
	for _, a := range prior {
		if a.StatementLineID == "" || seen[a.StatementLineID] || IsVirtualLineID(a.StatementLineID) {
			continue
		}
		seen[a.StatementLineID] = true
		ids = append(ids, a.StatementLineID)
	}
	return ids
}

// GatherDueItems merges open statement lines with the current installment of
// every active plan that has no line yet.
//
// A purchase converted into a plan is dropped in favour of its installments.
// Lines referenced by PriorAllocations are kept even when already settled so
// an edited repayment can still show them. On id collisions the later source
// wins, in the order: pending lines, virtual installments, referenced lines.
func GatherDueItems(in GatherInput) GatherResult {
	var warnings []domain.Warning
	var bound time.Time
	if in.PeriodEnd != nil {
		bound = utils.EndOfDay(*in.PeriodEnd)
	}
	within := func(t time.Time) bool {
		return in.PeriodEnd == nil || !t.After(bound)
	}

	plans := make([]domain.InstallmentPlan, 0, len(in.Plans))
	converted := make(map[string]bool, len(in.Plans))
	for _, p := range in.Plans {
		if !sameAccount(in.AccountID, p.AccountID) {
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarningStaleReference,
				Ref:     p.ID,
				Message: fmt.Sprintf("installment plan belongs to account %s", p.AccountID),
			})
			continue
		}
		plans = append(plans, p)
		if p.OriginatingTransactionID != "" {
			converted[p.OriginatingTransactionID] = true
		}
	}

	superseded := func(l domain.StatementLineItem) bool {
		return l.PlanID == nil && l.TransactionID != nil && converted[*l.TransactionID]
	}

	var obligations []Obligation
	materialized := make(map[string]bool)
	for _, l := range in.PendingLines {
		if !sameAccount(in.AccountID, l.AccountID) {
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarningStaleReference,
				Ref:     l.ID,
				Message: fmt.Sprintf("statement line belongs to account %s", l.AccountID),
			})
			continue
		}
		if !l.Status.Open() || !within(l.TransactionDate) || superseded(l) {
			continue
		}
		if l.PlanID != nil {
			materialized[*l.PlanID] = true
		}
		obligations = append(obligations, RealObligation{Line: l})
	}

	for _, p := range plans {
		if p.Completed() || !within(p.NextDueDate) || materialized[p.ID] {
			continue
		}
		obligations = append(obligations, VirtualObligation{Plan: p})
	}

	referenced := make(map[string]bool, len(in.PriorAllocations))
	for _, id := range ReferencedLineIDs(in.PriorAllocations) {
		referenced[id] = true
	}
	found := make(map[string]bool, len(referenced))
	for _, l := range in.ReferencedLines {
		if !referenced[l.ID] || !sameAccount(in.AccountID, l.AccountID) {
			continue
		}
		found[l.ID] = true
		if superseded(l) {
			continue
		}
		obligations = append(obligations, RealObligation{Line: l})
	}
	for _, id := range ReferencedLineIDs(in.PriorAllocations) {
		if !found[id] {
			warnings = append(warnings, domain.Warning{
				Code:    domain.WarningStaleReference,
				Ref:     id,
				Message: "previously allocated line is no longer available",
			})
		}
	}

	return GatherResult{Items: merge(obligations), Warnings: warnings}
}

// merge resolves obligations by id, last write wins, newest first.
func merge(obligations []Obligation) []DueItem {
	byID := make(map[string]int, len(obligations))
	items := make([]DueItem, 0, len(obligations))
	for _, o := range obligations {
		item := o.DueItem()
		if i, ok := byID[item.ID]; ok {
			items[i] = item
			continue
		}
		byID[item.ID] = len(items)
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].TransactionDate, items[j].TransactionDate
		if !a.Equal(b) {
			return a.After(b)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func sameAccount(want, got string) bool {
	return want == "" || want == got
}
