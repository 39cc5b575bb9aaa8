package persistence

import (
	"context"
	"strings"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// FindByID loads an invoice and its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).Preload("Items", orderItems).First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Invoice")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the header row with SELECT ... FOR UPDATE, then loads the items
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	db := r.db.WithContext(ctx)
	var model models.InvoiceModel
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "Invoice")
	}
	if err := orderItems(db).Where("invoice_id = ?", id).Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber loads an invoice by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).Preload("Items", orderItems).First(&model, "invoice_number = ?", invoiceNumber).Error
	if err != nil {
		return nil, notFound(err, "Invoice")
	}
	return model.ToDomain(), nil
}

// FindAll lists invoices matching the filter together with the total match count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(notes) LIKE ?", like, like)
	}
	return r.list(query, filter.Filter)
}

// FindPendingReview lists invoices whose digital payment waits for review, oldest submission first
func (r *GormInvoiceRepository) FindPendingReview(ctx context.Context, filter shared.Filter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("awaiting_review = ?", true)
	if filter.OrderBy == "" {
		filter.OrderBy = "payment_submitted_at"
		filter.OrderDir = "asc"
	}
	return r.list(query, filter)
}

func (r *GormInvoiceRepository) list(query *gorm.DB, filter shared.Filter) ([]invoicing.Invoice, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InvoiceModel
	if err := paginate(query, filter, InvoiceSortFields, "created_at").Preload("Items", orderItems).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, total, nil
}

// Create inserts the header and all items in one statement batch
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	var model models.InvoiceModel
	model.FromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("INVOICE_NUMBER_TAKEN", "Invoice number already exists")
		}
		return err
	}
	invoice.PersistedVersion = invoice.Version
	return nil
}

// SaveWithLock is a compare-and-swap on (version, status). Zero affected rows
// means the invoice is gone or another writer got there first.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice, expectedStatuses ...invoicing.InvoiceStatus) error {
	var model models.InvoiceModel
	model.FromDomain(invoice)

	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.PersistedVersion)
	if len(expectedStatuses) > 0 {
		query = query.Where("status IN ?", expectedStatuses)
	}
	result := query.Updates(model.HeaderColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("id = ?", invoice.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.NewNotFoundError("Invoice")
		}
		return shared.NewConflictError(shared.ErrConcurrencyConflict.Code, "Invoice was modified by another process")
	}
	invoice.PersistedVersion = invoice.Version
	return nil
}

// ApplyItemPlan executes the inserts, updates and deletes of plan. Deletes are
// scoped to the invoice so a foreign item id can never be touched.
func (r *GormInvoiceRepository) ApplyItemPlan(ctx context.Context, invoiceID uuid.UUID, plan *invoicing.ItemReconciliationPlan) error {
	if plan.IsEmpty() {
		return nil
	}
	db := r.db.WithContext(ctx)

	if len(plan.Delete) > 0 {
		result := db.Where("invoice_id = ? AND id IN ?", invoiceID, plan.Delete).Delete(&models.InvoiceItemModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(plan.Delete)) {
			return shared.NewConflictError(shared.ErrConcurrencyConflict.Code, "Invoice items changed while being edited")
		}
	}

	for i := range plan.Update {
		item := models.InvoiceItemModelFromDomain(&plan.Update[i])
		result := db.Model(&models.InvoiceItemModel{}).
			Where("id = ? AND invoice_id = ?", item.ID, invoiceID).
			Updates(map[string]any{
				"service_id":  item.ServiceID,
				"description": item.Description,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
				"total_price": item.TotalPrice,
				"updated_at":  item.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewConflictError(shared.ErrConcurrencyConflict.Code, "Invoice items changed while being edited")
		}
	}

	if len(plan.Insert) > 0 {
		rows := make([]models.InvoiceItemModel, len(plan.Insert))
		for i := range plan.Insert {
			rows[i] = *models.InvoiceItemModelFromDomain(&plan.Insert[i])
			rows[i].InvoiceID = invoiceID
		}
		if err := db.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the invoice; items go with it through the cascading foreign key
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	// sqlite ignores ON DELETE CASCADE unless foreign keys are enabled
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return err
	}
	result := db.Delete(&models.InvoiceModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Invoice")
	}
	return nil
}

// FindReferencedProofURLs returns which of urls are stored on an invoice
func (r *GormInvoiceRepository) FindReferencedProofURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	found := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return found, nil
	}
	const chunk = 500
	for start := 0; start < len(urls); start += chunk {
		end := min(start+chunk, len(urls))
		var refs []string
		err := r.db.WithContext(ctx).
			Model(&models.InvoiceModel{}).
			Where("payment_proof_url IN ?", urls[start:end]).
			Distinct().
			Pluck("payment_proof_url", &refs).Error
		if err != nil {
			return nil, err
		}
		for _, u := range refs {
			found[u] = true
		}
	}
	return found, nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
