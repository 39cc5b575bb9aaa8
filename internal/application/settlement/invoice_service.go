package settlement

import (
	"context"
	"strings"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceService manages the invoice lifecycle up to submission
type InvoiceService struct {
	invoiceRepo invoicing.InvoiceRepository
	scope       SettlementScope
	numbers     invoicing.NumberGenerator
	clock       shared.Clock
	publisher   shared.EventPublisher
	observer    OperationObserver
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo invoicing.InvoiceRepository,
	scope SettlementScope,
	numbers invoicing.NumberGenerator,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		scope:       scope,
		numbers:     numbers,
		clock:       shared.NewSystemClock(),
		observer:    noopObserver{},
	}
}

// SetClock overrides the wall clock
func (s *InvoiceService) SetClock(clock shared.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetObserver sets the operation metrics observer
func (s *InvoiceService) SetObserver(observer OperationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// CreateInvoice validates the items, derives the totals and inserts header and
// items in one transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpCreateInvoice,
		telemetry.SpanAttrCustomerID, in.CustomerID.String(),
		"items_count", len(in.Items),
	)

	inv, err := invoicing.NewInvoice(s.numbers.NextInvoiceNumber(), in.CustomerID, toDomainItems(in.Items), in.Discount)
	if err != nil {
		return nil, op.end(err)
	}
	if in.OrderID != nil {
		inv.SetOrder(*in.OrderID)
	}
	if in.PaymentMethod != nil {
		if err := inv.SetPaymentMethod(*in.PaymentMethod); err != nil {
			return nil, op.end(err)
		}
	}
	if in.CreatedBy != uuid.Nil {
		inv.SetCreatedBy(in.CreatedBy)
	}
	inv.Notes = strings.TrimSpace(in.Notes)
	op.setAmount(inv.TotalAmount)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.InvoiceRepo().Create(ctx, inv)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()))
	publishAfterCommit(ctx, s.publisher, inv)
	return ToInvoiceResponse(inv), op.end(nil)
}

// UpdateInvoice edits a draft or pending invoice. Item changes, total
// derivation and the header compare-and-swap happen in one transaction.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput) (*InvoiceResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpUpdateInvoice, "invoice_id", id.String())

	var inv *invoicing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != inv.Version {
			return shared.NewConflictError("CONCURRENCY_CONFLICT", "Invoice was modified by another user")
		}

		var items *[]invoicing.ItemInput
		if in.Items != nil {
			converted := toDomainItems(*in.Items)
			items = &converted
		}
		plan, err := inv.ApplyUpdate(invoicing.InvoiceUpdate{
			CustomerID:    in.CustomerID,
			PaymentMethod: in.PaymentMethod,
			Discount:      in.Discount,
			Notes:         in.Notes,
			Items:         items,
		})
		if err != nil {
			return err
		}
		if !plan.IsEmpty() {
			if err := repos.InvoiceRepo().ApplyItemPlan(ctx, inv.ID, plan); err != nil {
				return err
			}
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, invoicing.MutableInvoiceStatuses...)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(inv.TotalAmount)
	logger.L(ctx).Info("invoice updated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("total_amount", inv.TotalAmount.String()),
		zap.Int("version", inv.Version))
	publishAfterCommit(ctx, s.publisher, inv)
	return ToInvoiceResponse(inv), op.end(nil)
}

// SubmitInvoice issues a draft invoice
func (s *InvoiceService) SubmitInvoice(ctx context.Context, id, by uuid.UUID) (*InvoiceResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpSubmitInvoice, "invoice_id", id.String())

	var inv *invoicing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.Submit(by, s.clock.Now()); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, invoicing.InvoiceStatusDraft)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("invoice submitted", zap.String("invoice_id", inv.ID.String()))
	publishAfterCommit(ctx, s.publisher, inv)
	return ToInvoiceResponse(inv), op.end(nil)
}

// GetInvoice returns an invoice with its items
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// GetByNumber returns an invoice by its number
func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	return ToInvoiceResponse(inv), nil
}

// ListInvoices returns a page of invoices
func (s *InvoiceService) ListInvoices(ctx context.Context, f InvoiceListFilter) (shared.Paginated[InvoiceResponse], error) {
	filter := invoicing.InvoiceFilter{
		Filter:        normalizePage(f.Page, f.PageSize, f.OrderBy, f.OrderDir),
		Status:        f.Status,
		CustomerID:    f.CustomerID,
		PaymentMethod: f.PaymentMethod,
		DateFrom:      f.DateFrom,
		DateTo:        f.DateTo,
	}
	filter.Search = strings.TrimSpace(f.Search)

	invs, total, err := s.invoiceRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	return shared.NewPaginated(ToInvoiceResponses(invs), total, filter.Page, filter.PageSize), nil
}

// ListPendingReview returns invoices whose digital payment waits for an admin
func (s *InvoiceService) ListPendingReview(ctx context.Context, page, pageSize int) (shared.Paginated[InvoiceResponse], error) {
	filter := normalizePage(page, pageSize, "payment_submitted_at", "asc")
	invs, total, err := s.invoiceRepo.FindPendingReview(ctx, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	return shared.NewPaginated(ToInvoiceResponses(invs), total, filter.Page, filter.PageSize), nil
}

// DeleteInvoice hard-deletes a draft invoice. Items go with it.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	ctx, op := startOperation(ctx, s.observer, OpDeleteInvoice, "invoice_id", id.String())

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !inv.CanDelete() {
			return shared.NewInvalidStateError("INVALID_STATE", "Only draft invoices can be deleted")
		}
		return repos.InvoiceRepo().Delete(ctx, id)
	})
	if err != nil {
		return op.end(err)
	}

	logger.L(ctx).Info("invoice deleted", zap.String("invoice_id", id.String()))
	return op.end(nil)
}
