package persistence

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceStatsReader aggregates invoices with one grouped query
type GormInvoiceStatsReader struct {
	db *gorm.DB
}

// NewGormInvoiceStatsReader creates a new GormInvoiceStatsReader
func NewGormInvoiceStatsReader(db *gorm.DB) *GormInvoiceStatsReader {
	return &GormInvoiceStatsReader{db: db}
}

func createdWithin(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	return query
}

// InvoiceStats groups invoices created within [dateFrom, dateTo] by status and payment method
func (r *GormInvoiceStatsReader) InvoiceStats(ctx context.Context, dateFrom, dateTo *time.Time) (*invoicing.InvoiceStats, error) {
	db := r.db.WithContext(ctx)

	var rows []invoicing.StatusRow
	err := createdWithin(db.Model(&models.InvoiceModel{}), dateFrom, dateTo).
		Select("status, payment_method, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount, COALESCE(SUM(paid_amount), 0) AS paid_amount").
		Group("status, payment_method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := invoicing.NewInvoiceStats(dateFrom, dateTo)
	for _, row := range rows {
		stats.Add(row)
	}

	err = createdWithin(db.Model(&models.InvoiceModel{}), dateFrom, dateTo).
		Where("awaiting_review = ?", true).
		Count(&stats.PendingReviewCount).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

var _ invoicing.StatsReader = (*GormInvoiceStatsReader)(nil)
