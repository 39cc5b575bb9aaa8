package invoicing

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Status        *InvoiceStatus
	CustomerID    *uuid.UUID
	PaymentMethod *PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
}

// InvoiceRepository persists invoices together with their items
type InvoiceRepository interface {
	// FindByID loads an invoice and its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate loads an invoice and its items, locking the header row
	// until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindPendingReview lists invoices whose digital payment waits for an admin
	FindPendingReview(ctx context.Context, filter shared.Filter) ([]Invoice, int64, error)
	// Create inserts the header and all items
	Create(ctx context.Context, invoice *Invoice) error
	// SaveWithLock updates the header only if the stored version is the one the
	// invoice was loaded with and the stored status is one of expectedStatuses
	SaveWithLock(ctx context.Context, invoice *Invoice, expectedStatuses ...InvoiceStatus) error
	// ApplyItemPlan executes the item inserts, updates and deletes of a plan
	ApplyItemPlan(ctx context.Context, invoiceID uuid.UUID, plan *ItemReconciliationPlan) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindReferencedProofURLs returns the subset of urls stored on any invoice
	FindReferencedProofURLs(ctx context.Context, urls []string) (map[string]bool, error)
}

// NumberGenerator produces unique invoice numbers
type NumberGenerator interface {
	NextInvoiceNumber() string
}
