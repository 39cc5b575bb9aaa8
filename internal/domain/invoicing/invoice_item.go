package invoicing

import (
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItem is a line of an invoice. It is owned by exactly one invoice.
type InvoiceItem struct {
	shared.BaseEntity
	InvoiceID   uuid.UUID
	ServiceID   *uuid.UUID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// ItemInput is a submitted invoice line. ID is set when the line edits an existing item.
type ItemInput struct {
	ID          *uuid.UUID
	ServiceID   *uuid.UUID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// NewInvoiceItem validates the input and computes the line total
func NewInvoiceItem(invoiceID uuid.UUID, in ItemInput) (*InvoiceItem, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}
	item := &InvoiceItem{
		BaseEntity:  shared.NewBaseEntity(),
		InvoiceID:   invoiceID,
		ServiceID:   in.ServiceID,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
	}
	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	return item, nil
}

// apply overwrites the editable fields and reports whether anything changed
func (i *InvoiceItem) apply(in ItemInput) (bool, error) {
	if err := validateItemInput(in); err != nil {
		return false, err
	}
	desc := strings.TrimSpace(in.Description)
	changed := i.Quantity != in.Quantity ||
		!i.UnitPrice.Equal(in.UnitPrice) ||
		i.Description != desc ||
		!sameUUIDPtr(i.ServiceID, in.ServiceID)
	if !changed {
		return false, nil
	}
	i.ServiceID = in.ServiceID
	i.Description = desc
	i.Quantity = in.Quantity
	i.UnitPrice = in.UnitPrice
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
	i.Touch()
	return true, nil
}

func validateItemInput(in ItemInput) error {
	if strings.TrimSpace(in.Description) == "" && in.ServiceID == nil {
		return shared.NewValidationError("INVALID_ITEM", "Item needs a description or a service")
	}
	if in.Quantity < 1 {
		return shared.NewValidationError("INVALID_QUANTITY", fmt.Sprintf("Quantity must be at least 1, got %d", in.Quantity))
	}
	if in.UnitPrice.IsNegative() {
		return shared.NewValidationError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}
	return nil
}

func sameUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
