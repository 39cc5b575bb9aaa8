package models

import (
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber      string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	CustomerID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	OrderID            *uuid.UUID              `gorm:"type:uuid;index"`
	Status             invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	PaymentMethod      invoicing.PaymentMethod `gorm:"type:varchar(20);not null;default:'cash'"`
	Subtotal           decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	Discount           decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	TotalAmount        decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	PaidAmount         decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentProofURL    string                  `gorm:"type:varchar(1024);index"`
	PaymentSubmittedAt *time.Time
	AwaitingReview     bool       `gorm:"not null;default:false;index"`
	CollectedBy        *uuid.UUID `gorm:"type:uuid"`
	CollectedAt        *time.Time
	Notes              string     `gorm:"type:text"`
	CancelReason       string     `gorm:"type:varchar(500)"`
	CancelledBy        *uuid.UUID `gorm:"type:uuid"`
	CancelledAt        *time.Time
	CreatedBy          *uuid.UUID         `gorm:"type:uuid"`
	Items              []InvoiceItemModel `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// PersistedVersion is set to the stored version.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		InvoiceNumber:      m.InvoiceNumber,
		CustomerID:         m.CustomerID,
		OrderID:            m.OrderID,
		Status:             m.Status,
		PaymentMethod:      m.PaymentMethod,
		Subtotal:           m.Subtotal,
		Discount:           m.Discount,
		TotalAmount:        m.TotalAmount,
		PaidAmount:         m.PaidAmount,
		PaymentProofURL:    m.PaymentProofURL,
		PaymentSubmittedAt: m.PaymentSubmittedAt,
		AwaitingReview:     m.AwaitingReview,
		CollectedBy:        m.CollectedBy,
		CollectedAt:        m.CollectedAt,
		Notes:              m.Notes,
		CancelReason:       m.CancelReason,
		CancelledBy:        m.CancelledBy,
		CancelledAt:        m.CancelledAt,
		CreatedBy:          m.CreatedBy,
		Items:              make([]invoicing.InvoiceItem, len(m.Items)),
		PersistedVersion:   m.Version,
	}
	for i := range m.Items {
		inv.Items[i] = *m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice, items included
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.OrderID = inv.OrderID
	m.Status = inv.Status
	m.PaymentMethod = inv.PaymentMethod
	m.Subtotal = inv.Subtotal
	m.Discount = inv.Discount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.PaymentProofURL = inv.PaymentProofURL
	m.PaymentSubmittedAt = inv.PaymentSubmittedAt
	m.AwaitingReview = inv.AwaitingReview
	m.CollectedBy = inv.CollectedBy
	m.CollectedAt = inv.CollectedAt
	m.Notes = inv.Notes
	m.CancelReason = inv.CancelReason
	m.CancelledBy = inv.CancelledBy
	m.CancelledAt = inv.CancelledAt
	m.CreatedBy = inv.CreatedBy

	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i] = *InvoiceItemModelFromDomain(&inv.Items[i])
	}
}

// HeaderColumns returns the mutable header columns written by SaveWithLock
func (m *InvoiceModel) HeaderColumns() map[string]any {
	return map[string]any{
		"customer_id":          m.CustomerID,
		"order_id":             m.OrderID,
		"status":               m.Status,
		"payment_method":       m.PaymentMethod,
		"subtotal":             m.Subtotal,
		"discount":             m.Discount,
		"total_amount":         m.TotalAmount,
		"paid_amount":          m.PaidAmount,
		"payment_proof_url":    m.PaymentProofURL,
		"payment_submitted_at": m.PaymentSubmittedAt,
		"awaiting_review":      m.AwaitingReview,
		"collected_by":         m.CollectedBy,
		"collected_at":         m.CollectedAt,
		"notes":                m.Notes,
		"cancel_reason":        m.CancelReason,
		"cancelled_by":         m.CancelledBy,
		"cancelled_at":         m.CancelledAt,
		"version":              m.Version,
		"updated_at":           m.UpdatedAt,
	}
}

// InvoiceItemModel is the persistence model for an invoice line
type InvoiceItemModel struct {
	BaseModel
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ServiceID   *uuid.UUID      `gorm:"type:uuid"`
	Description string          `gorm:"type:varchar(500)"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() *invoicing.InvoiceItem {
	return &invoicing.InvoiceItem{
		BaseEntity:  m.BaseModel.ToDomain(),
		InvoiceID:   m.InvoiceID,
		ServiceID:   m.ServiceID,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		TotalPrice:  m.TotalPrice,
	}
}

// InvoiceItemModelFromDomain creates a persistence model from a domain InvoiceItem
func InvoiceItemModelFromDomain(item *invoicing.InvoiceItem) *InvoiceItemModel {
	m := &InvoiceItemModel{
		InvoiceID:   item.InvoiceID,
		ServiceID:   item.ServiceID,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
	}
	m.FromDomainBaseEntity(item.BaseEntity)
	return m
}
