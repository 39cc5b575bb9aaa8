package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the aggregate root for a billable record and its items.
// Totals are always derived from the items and the discount; callers never set them.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber      string
	CustomerID         uuid.UUID
	OrderID            *uuid.UUID
	Status             InvoiceStatus
	PaymentMethod      PaymentMethod
	Subtotal           decimal.Decimal
	Discount           decimal.Decimal
	TotalAmount        decimal.Decimal
	PaidAmount         decimal.Decimal
	PaymentProofURL    string
	PaymentSubmittedAt *time.Time
	AwaitingReview     bool
	CollectedBy        *uuid.UUID
	CollectedAt        *time.Time
	Notes              string
	CancelReason       string
	CancelledBy        *uuid.UUID
	CancelledAt        *time.Time
	CreatedBy          *uuid.UUID
	Items              []InvoiceItem
	// PersistedVersion is the version stored in the database when the invoice
	// was loaded. SaveWithLock compares against it.
	PersistedVersion int
}

// NewInvoice creates a draft invoice with its items and derived totals
func NewInvoice(
	invoiceNumber string,
	customerID uuid.UUID,
	items []ItemInput,
	discount decimal.Decimal,
) (*Invoice, error) {
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if discount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_DISCOUNT", "Discount cannot be negative")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("INVALID_ITEMS", "Invoice must have at least one item")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		CustomerID:        customerID,
		Status:            InvoiceStatusDraft,
		PaymentMethod:     PaymentMethodCash,
		Discount:          discount,
		PaidAmount:        decimal.Zero,
		Items:             make([]InvoiceItem, 0, len(items)),
	}

	for i, in := range items {
		if in.ID != nil {
			return nil, shared.NewValidationError("INVALID_ITEMS", fmt.Sprintf("Item %d: new invoice items cannot carry an id", i+1))
		}
		item, err := NewInvoiceItem(inv.ID, in)
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, *item)
	}

	inv.recalculateTotals()
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// SetOrder links the invoice to the order it was produced from
func (inv *Invoice) SetOrder(orderID uuid.UUID) {
	inv.OrderID = &orderID
}

// SetCreatedBy records who created the invoice
func (inv *Invoice) SetCreatedBy(userID uuid.UUID) {
	inv.CreatedBy = &userID
}

// SetPaymentMethod sets the expected payment method while the invoice is mutable
func (inv *Invoice) SetPaymentMethod(method PaymentMethod) error {
	if !method.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Invalid payment method: %s", method))
	}
	inv.PaymentMethod = method
	return nil
}

// InvoiceUpdate carries the optional changes for ApplyUpdate. Nil fields are left as they are.
type InvoiceUpdate struct {
	CustomerID    *uuid.UUID
	PaymentMethod *PaymentMethod
	Discount      *decimal.Decimal
	Notes         *string
	Items         *[]ItemInput
}

// ApplyUpdate edits a draft or pending invoice. When items are submitted, the
// returned plan describes the item rows to insert, update and delete.
func (inv *Invoice) ApplyUpdate(upd InvoiceUpdate) (*ItemReconciliationPlan, error) {
	if !inv.Status.IsMutable() {
		return nil, shared.NewInvalidStateError("INVOICE_NOT_MUTABLE",
			fmt.Sprintf("Cannot update invoice in %s status", inv.Status))
	}

	if upd.CustomerID != nil {
		if *upd.CustomerID == uuid.Nil {
			return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
		}
		inv.CustomerID = *upd.CustomerID
	}
	if upd.PaymentMethod != nil {
		if err := inv.SetPaymentMethod(*upd.PaymentMethod); err != nil {
			return nil, err
		}
	}
	if upd.Discount != nil {
		if upd.Discount.IsNegative() {
			return nil, shared.NewValidationError("INVALID_DISCOUNT", "Discount cannot be negative")
		}
		inv.Discount = *upd.Discount
	}
	if upd.Notes != nil {
		inv.Notes = *upd.Notes
	}

	plan := &ItemReconciliationPlan{}
	if upd.Items != nil {
		if len(*upd.Items) == 0 {
			return nil, shared.NewValidationError("INVALID_ITEMS", "Invoice must have at least one item")
		}
		p, err := PlanItemReconciliation(inv.ID, inv.Items, *upd.Items)
		if err != nil {
			return nil, err
		}
		plan = p
		inv.Items = p.Result
	}

	inv.recalculateTotals()
	if inv.Status == InvoiceStatusPending && inv.TotalAmount.IsZero() {
		return nil, shared.NewValidationError("INVALID_DISCOUNT",
			"An issued invoice cannot be discounted to zero; cancel it instead")
	}
	inv.Touch()
	inv.AddDomainEvent(NewInvoiceUpdatedEvent(inv, plan))

	return plan, nil
}

// Submit issues a draft invoice to the customer. An invoice whose discount
// covers its whole subtotal has nothing to collect and is settled as paid on
// submission; no ledger row is written for it.
func (inv *Invoice) Submit(submittedBy uuid.UUID, at time.Time) error {
	if !inv.Status.CanSubmit() {
		return shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot submit invoice in %s status", inv.Status))
	}
	inv.Status = InvoiceStatusPending
	if inv.TotalAmount.IsZero() {
		inv.Status = InvoiceStatusPaid
		inv.CollectedBy = &submittedBy
		inv.CollectedAt = &at
	}
	inv.TouchAt(at)
	inv.AddDomainEvent(NewInvoiceSubmittedEvent(inv, submittedBy))
	return nil
}

// SubmitPaymentProof records an uploaded proof for a digital payment and places
// the invoice in the admin review queue. No money moves yet.
func (inv *Invoice) SubmitPaymentProof(method PaymentMethod, proofURL string, submittedBy uuid.UUID, at time.Time) error {
	if !inv.Status.CanCollect() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot submit payment proof for invoice in %s status", inv.Status))
	}
	if !method.IsDigital() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment proof is only accepted for digital payment methods")
	}
	if strings.TrimSpace(proofURL) == "" {
		return shared.NewValidationError("INVALID_PROOF", "Payment proof URL is required")
	}

	inv.PaymentMethod = method
	inv.PaymentProofURL = proofURL
	inv.PaymentSubmittedAt = &at
	inv.AwaitingReview = true
	inv.TouchAt(at)
	inv.AddDomainEvent(NewInvoicePaymentSubmittedEvent(inv, submittedBy))
	return nil
}

// ResolveCollectionAmount returns the amount to collect: the requested amount, or
// the whole outstanding amount when none was requested.
func (inv *Invoice) ResolveCollectionAmount(requested *decimal.Decimal) (decimal.Decimal, error) {
	outstanding := inv.Outstanding()
	if requested == nil {
		if !outstanding.IsPositive() {
			return decimal.Zero, shared.NewInvalidStateError("NOTHING_TO_COLLECT", "Invoice has no outstanding amount")
		}
		return outstanding, nil
	}
	amount := *requested
	if !amount.IsPositive() {
		return decimal.Zero, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if amount.GreaterThan(outstanding) {
		return decimal.Zero, shared.NewValidationError("AMOUNT_EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Amount %s exceeds outstanding %s", amount.StringFixed(2), outstanding.StringFixed(2)))
	}
	return amount, nil
}

// RecordCollection applies a received payment. The invoice becomes paid when the
// outstanding amount reaches zero and partially_paid otherwise.
func (inv *Invoice) RecordCollection(amount decimal.Decimal, method PaymentMethod, collectedBy uuid.UUID, at time.Time) error {
	if !inv.Status.CanCollect() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot collect invoice in %s status", inv.Status))
	}
	if !method.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Invalid payment method: %s", method))
	}
	if collectedBy == uuid.Nil {
		return shared.NewValidationError("INVALID_USER", "Collecting user ID is required")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if amount.GreaterThan(inv.Outstanding()) {
		return shared.NewValidationError("AMOUNT_EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Amount %s exceeds outstanding %s", amount.StringFixed(2), inv.Outstanding().StringFixed(2)))
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.PaymentMethod = method
	if inv.PaidAmount.Equal(inv.TotalAmount) {
		inv.Status = InvoiceStatusPaid
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
	}
	inv.CollectedBy = &collectedBy
	inv.CollectedAt = &at
	inv.AwaitingReview = false
	inv.TouchAt(at)
	inv.AddDomainEvent(NewInvoiceCollectedEvent(inv, amount, collectedBy))
	return nil
}

// Cancel terminates the invoice. A reason is required once money has been
// collected; refunded is the amount the caller reversed out of the ledgers.
func (inv *Invoice) Cancel(cancelledBy uuid.UUID, reason string, refunded decimal.Decimal, at time.Time) error {
	if !inv.Status.CanCancel() {
		return shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if cancelledBy == uuid.Nil {
		return shared.NewValidationError("INVALID_USER", "Cancelling user ID is required")
	}
	reason = strings.TrimSpace(reason)
	if inv.Status.HasCollections() && reason == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancel reason is required")
	}
	if reason == "" {
		reason = "cancelled"
	}

	previousStatus := inv.Status
	inv.Status = InvoiceStatusCancelled
	inv.CancelReason = reason
	inv.CancelledBy = &cancelledBy
	inv.CancelledAt = &at
	inv.AwaitingReview = false
	inv.TouchAt(at)
	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv, previousStatus, refunded))
	return nil
}

// CanDelete returns true if the invoice can be hard-deleted
func (inv *Invoice) CanDelete() bool {
	return inv.Status == InvoiceStatusDraft
}

// Outstanding returns the amount still to be collected
func (inv *Invoice) Outstanding() decimal.Decimal {
	out := inv.TotalAmount.Sub(inv.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// IsAwaitingReview returns true while a digital payment waits for an admin decision
func (inv *Invoice) IsAwaitingReview() bool {
	return inv.AwaitingReview && inv.Status.CanCollect()
}

// CalculateTotals derives subtotal and total from items and discount:
// total = max(0, Σ item.total - discount).
func CalculateTotals(items []InvoiceItem, discount decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	total = subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return subtotal, total
}

func (inv *Invoice) recalculateTotals() {
	inv.Subtotal, inv.TotalAmount = CalculateTotals(inv.Items, inv.Discount)
}
