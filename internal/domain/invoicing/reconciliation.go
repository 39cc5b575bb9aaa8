package invoicing

import (
	"fmt"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemReconciliationPlan is the set of row changes that turns the persisted
// items of an invoice into the submitted ones. It is executed in one transaction.
type ItemReconciliationPlan struct {
	Insert []InvoiceItem
	Update []InvoiceItem
	Delete []uuid.UUID
	// Result is the full item list after the plan, in submission order
	Result []InvoiceItem
}

// IsEmpty returns true if the plan changes no rows
func (p *ItemReconciliationPlan) IsEmpty() bool {
	return p == nil || (len(p.Insert) == 0 && len(p.Update) == 0 && len(p.Delete) == 0)
}

// PlanItemReconciliation diffs persisted items against submitted ones.
// Submitted lines without an id are inserted, lines whose id matches a persisted
// item are updated in place when changed, and persisted items missing from the
// submission are deleted. An id that is not persisted on this invoice is rejected.
func PlanItemReconciliation(invoiceID uuid.UUID, existing []InvoiceItem, submitted []ItemInput) (*ItemReconciliationPlan, error) {
	byID := make(map[uuid.UUID]InvoiceItem, len(existing))
	for _, item := range existing {
		byID[item.ID] = item
	}

	plan := &ItemReconciliationPlan{
		Result: make([]InvoiceItem, 0, len(submitted)),
	}
	seen := make(map[uuid.UUID]bool, len(submitted))

	for i, in := range submitted {
		if in.ID == nil {
			item, err := NewInvoiceItem(invoiceID, in)
			if err != nil {
				return nil, err
			}
			plan.Insert = append(plan.Insert, *item)
			plan.Result = append(plan.Result, *item)
			continue
		}

		id := *in.ID
		if seen[id] {
			return nil, shared.NewValidationError("DUPLICATE_ITEM", fmt.Sprintf("Item %s submitted more than once", id))
		}
		seen[id] = true

		current, ok := byID[id]
		if !ok {
			return nil, shared.NewValidationError("UNKNOWN_ITEM",
				fmt.Sprintf("Item %d references %s which does not belong to this invoice", i+1, id))
		}
		changed, err := current.apply(in)
		if err != nil {
			return nil, err
		}
		if changed {
			plan.Update = append(plan.Update, current)
		}
		plan.Result = append(plan.Result, current)
	}

	for _, item := range existing {
		if !seen[item.ID] {
			plan.Delete = append(plan.Delete, item.ID)
		}
	}

	return plan, nil
}
