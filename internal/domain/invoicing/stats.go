package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatusBucket aggregates invoices sharing a status
type StatusBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// MethodBucket aggregates invoices sharing a payment channel
type MethodBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
	Paid   decimal.Decimal `json:"paid"`
}

// InvoiceStats is the dashboard aggregate over a created_at window.
// Cancelled invoices are counted in ByStatus but excluded from the amount totals.
type InvoiceStats struct {
	DateFrom           *time.Time                     `json:"date_from,omitempty"`
	DateTo             *time.Time                     `json:"date_to,omitempty"`
	TotalCount         int64                          `json:"total_count"`
	TotalAmount        decimal.Decimal                `json:"total_amount"`
	PaidAmount         decimal.Decimal                `json:"paid_amount"`
	OutstandingAmount  decimal.Decimal                `json:"outstanding_amount"`
	ByStatus           map[InvoiceStatus]StatusBucket `json:"by_status"`
	ByPaymentMethod    map[PaymentMethod]MethodBucket `json:"by_payment_method"`
	PendingReviewCount int64                          `json:"pending_review_count"`
}

// NewInvoiceStats returns empty stats with every status bucket present
func NewInvoiceStats(from, to *time.Time) *InvoiceStats {
	s := &InvoiceStats{
		DateFrom:          from,
		DateTo:            to,
		TotalAmount:       decimal.Zero,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: decimal.Zero,
		ByStatus:          make(map[InvoiceStatus]StatusBucket, len(AllInvoiceStatuses)),
		ByPaymentMethod:   make(map[PaymentMethod]MethodBucket),
	}
	for _, st := range AllInvoiceStatuses {
		s.ByStatus[st] = StatusBucket{Amount: decimal.Zero}
	}
	return s
}

// StatusRow is one grouped row of the stats query
type StatusRow struct {
	Status        InvoiceStatus
	PaymentMethod PaymentMethod
	Count         int64
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
}

// Add folds a grouped row into the stats
func (s *InvoiceStats) Add(row StatusRow) {
	b := s.ByStatus[row.Status]
	b.Count += row.Count
	b.Amount = b.Amount.Add(row.TotalAmount)
	s.ByStatus[row.Status] = b
	s.TotalCount += row.Count

	if row.Status == InvoiceStatusCancelled {
		return
	}

	m, ok := s.ByPaymentMethod[row.PaymentMethod]
	if !ok {
		m = MethodBucket{Amount: decimal.Zero, Paid: decimal.Zero}
	}
	m.Count += row.Count
	m.Amount = m.Amount.Add(row.TotalAmount)
	m.Paid = m.Paid.Add(row.PaidAmount)
	s.ByPaymentMethod[row.PaymentMethod] = m

	s.TotalAmount = s.TotalAmount.Add(row.TotalAmount)
	s.PaidAmount = s.PaidAmount.Add(row.PaidAmount)
	s.OutstandingAmount = s.TotalAmount.Sub(s.PaidAmount)
}

// StatsReader computes invoice aggregates. Both bounds are optional and inclusive.
type StatsReader interface {
	InvoiceStats(ctx context.Context, dateFrom, dateTo *time.Time) (*InvoiceStats, error)
}
