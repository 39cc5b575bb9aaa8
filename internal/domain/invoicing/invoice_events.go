package invoicing

import (
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type name used in invoice events
const AggregateTypeInvoice = "Invoice"

// Event type names
const (
	EventTypeInvoiceCreated          = "invoice.created"
	EventTypeInvoiceUpdated          = "invoice.updated"
	EventTypeInvoiceSubmitted        = "invoice.submitted"
	EventTypeInvoicePaymentSubmitted = "invoice.payment_submitted"
	EventTypeInvoiceCollected        = "invoice.collected"
	EventTypeInvoiceCancelled        = "invoice.cancelled"
)

// InvoiceEventTypes lists every invoice event type
var InvoiceEventTypes = []string{
	EventTypeInvoiceCreated,
	EventTypeInvoiceUpdated,
	EventTypeInvoiceSubmitted,
	EventTypeInvoicePaymentSubmitted,
	EventTypeInvoiceCollected,
	EventTypeInvoiceCancelled,
}

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemCount     int             `json:"item_count"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		TotalAmount:     inv.TotalAmount,
		ItemCount:       len(inv.Items),
	}
}

// InvoiceUpdatedEvent is raised when a mutable invoice is edited
type InvoiceUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemsInserted int             `json:"items_inserted"`
	ItemsUpdated  int             `json:"items_updated"`
	ItemsDeleted  int             `json:"items_deleted"`
}

// EventType returns the event type name
func (e *InvoiceUpdatedEvent) EventType() string {
	return EventTypeInvoiceUpdated
}

// NewInvoiceUpdatedEvent creates a new InvoiceUpdatedEvent
func NewInvoiceUpdatedEvent(inv *Invoice, plan *ItemReconciliationPlan) *InvoiceUpdatedEvent {
	e := &InvoiceUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceUpdated, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
	}
	if plan != nil {
		e.ItemsInserted = len(plan.Insert)
		e.ItemsUpdated = len(plan.Update)
		e.ItemsDeleted = len(plan.Delete)
	}
	return e
}

// InvoiceSubmittedEvent is raised when a draft invoice is issued
type InvoiceSubmittedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string    `json:"invoice_number"`
	SubmittedBy   uuid.UUID `json:"submitted_by"`
}

// EventType returns the event type name
func (e *InvoiceSubmittedEvent) EventType() string {
	return EventTypeInvoiceSubmitted
}

// NewInvoiceSubmittedEvent creates a new InvoiceSubmittedEvent
func NewInvoiceSubmittedEvent(inv *Invoice, by uuid.UUID) *InvoiceSubmittedEvent {
	return &InvoiceSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSubmitted, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		SubmittedBy:     by,
	}
}

// InvoicePaymentSubmittedEvent is raised when a digital payment proof enters the review queue
type InvoicePaymentSubmittedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string        `json:"invoice_number"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	ProofURL      string        `json:"proof_url"`
	SubmittedBy   uuid.UUID     `json:"submitted_by"`
}

// EventType returns the event type name
func (e *InvoicePaymentSubmittedEvent) EventType() string {
	return EventTypeInvoicePaymentSubmitted
}

// NewInvoicePaymentSubmittedEvent creates a new InvoicePaymentSubmittedEvent
func NewInvoicePaymentSubmittedEvent(inv *Invoice, by uuid.UUID) *InvoicePaymentSubmittedEvent {
	return &InvoicePaymentSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentSubmitted, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentMethod:   inv.PaymentMethod,
		ProofURL:        inv.PaymentProofURL,
		SubmittedBy:     by,
	}
}

// InvoiceCollectedEvent is raised when money is collected against an invoice
type InvoiceCollectedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Status        InvoiceStatus   `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CollectedBy   uuid.UUID       `json:"collected_by"`
	CollectedAt   time.Time       `json:"collected_at"`
}

// EventType returns the event type name
func (e *InvoiceCollectedEvent) EventType() string {
	return EventTypeInvoiceCollected
}

// NewInvoiceCollectedEvent creates a new InvoiceCollectedEvent
func NewInvoiceCollectedEvent(inv *Invoice, amount decimal.Decimal, by uuid.UUID) *InvoiceCollectedEvent {
	return &InvoiceCollectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCollected, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          amount,
		PaidAmount:      inv.PaidAmount,
		Status:          inv.Status,
		PaymentMethod:   inv.PaymentMethod,
		CollectedBy:     by,
		CollectedAt:     inv.UpdatedAt,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber  string          `json:"invoice_number"`
	PreviousStatus InvoiceStatus   `json:"previous_status"`
	Reason         string          `json:"reason"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	CancelledBy    uuid.UUID       `json:"cancelled_by"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice, previous InvoiceStatus, refunded decimal.Decimal) *InvoiceCancelledEvent {
	e := &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousStatus:  previous,
		Reason:          inv.CancelReason,
		RefundedAmount:  refunded,
	}
	if inv.CancelledBy != nil {
		e.CancelledBy = *inv.CancelledBy
	}
	return e
}
