package event

import (
	"context"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FinancialEventTypes lists every invoice and treasury event type
func FinancialEventTypes() []string {
	out := make([]string, 0, len(invoicing.InvoiceEventTypes)+len(treasury.TreasuryEventTypes))
	out = append(out, invoicing.InvoiceEventTypes...)
	return append(out, treasury.TreasuryEventTypes...)
}

// PrefixInvalidator drops cached entries by key prefix
type PrefixInvalidator interface {
	DeletePrefix(ctx context.Context, prefix string)
}

// StatsCacheInvalidator clears cached invoice stats whenever an invoice or
// ledger changes, so the dashboard never serves totals older than the write.
type StatsCacheInvalidator struct {
	cache PrefixInvalidator
}

// NewStatsCacheInvalidator creates a new StatsCacheInvalidator
func NewStatsCacheInvalidator(cache PrefixInvalidator) *StatsCacheInvalidator {
	return &StatsCacheInvalidator{cache: cache}
}

func (h *StatsCacheInvalidator) EventTypes() []string {
	return FinancialEventTypes()
}

func (h *StatsCacheInvalidator) Handle(ctx context.Context, _ shared.DomainEvent) error {
	h.cache.DeletePrefix(ctx, settlement.StatsCachePrefix)
	return nil
}

// AmountRecorder accumulates moved money per event type
type AmountRecorder interface {
	RecordAmount(ctx context.Context, eventType string, amount decimal.Decimal)
}

// SettlementAmountRecorder feeds the amount of every money-moving event to the metrics
type SettlementAmountRecorder struct {
	recorder AmountRecorder
}

// NewSettlementAmountRecorder creates a new SettlementAmountRecorder
func NewSettlementAmountRecorder(recorder AmountRecorder) *SettlementAmountRecorder {
	return &SettlementAmountRecorder{recorder: recorder}
}

func (h *SettlementAmountRecorder) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCollected,
		invoicing.EventTypeInvoiceCancelled,
		treasury.EventTypeVaultAdjusted,
		treasury.EventTypeVaultTransferred,
		treasury.EventTypeCustodyCollected,
		treasury.EventTypeCustodySettled,
		treasury.EventTypeCustodyAdded,
	}
}

func (h *SettlementAmountRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	if amount, ok := EventAmount(event); ok && amount.IsPositive() {
		h.recorder.RecordAmount(ctx, event.EventType(), amount)
	}
	return nil
}

// EventAmount extracts the money moved by an event, if any
func EventAmount(event shared.DomainEvent) (decimal.Decimal, bool) {
	switch e := event.(type) {
	case *invoicing.InvoiceCollectedEvent:
		return e.Amount, true
	case *invoicing.InvoiceCancelledEvent:
		return e.RefundedAmount, true
	case *treasury.VaultAdjustedEvent:
		return e.Amount, true
	case *treasury.VaultTransferredEvent:
		return e.Amount, true
	case *treasury.CustodyCollectedEvent:
		return e.Amount, true
	case *treasury.CustodySettledEvent:
		return e.Amount, true
	case *treasury.CustodyAddedEvent:
		return e.Amount, true
	}
	return decimal.Zero, false
}

// AuditLogHandler writes one structured line per financial event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a handler logging under the "audit" name.
// A nil logger falls back to the request logger.
func NewAuditLogHandler(log *zap.Logger) *AuditLogHandler {
	if log != nil {
		log = log.Named("audit")
	}
	return &AuditLogHandler{logger: log}
}

func (h *AuditLogHandler) EventTypes() []string {
	return FinancialEventTypes()
}

func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := h.logger
	if log == nil {
		log = logger.L(ctx).Named("audit")
	}

	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if rid := logger.GetRequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if amount, ok := EventAmount(event); ok {
		fields = append(fields, zap.String("amount", amount.StringFixed(2)))
	}
	fields = append(fields, detailFields(event)...)

	log.Info("financial event", fields...)
	return nil
}

func detailFields(event shared.DomainEvent) []zap.Field {
	switch e := event.(type) {
	case *invoicing.InvoiceCreatedEvent:
		return []zap.Field{zap.String("invoice_number", e.InvoiceNumber), zap.String("total_amount", e.TotalAmount.StringFixed(2))}
	case *invoicing.InvoiceCollectedEvent:
		return []zap.Field{
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("status", string(e.Status)),
			zap.String("payment_method", string(e.PaymentMethod)),
			zap.String("collected_by", e.CollectedBy.String()),
		}
	case *invoicing.InvoiceCancelledEvent:
		return []zap.Field{
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("previous_status", string(e.PreviousStatus)),
			zap.String("reason", e.Reason),
			zap.String("cancelled_by", e.CancelledBy.String()),
		}
	case *treasury.VaultAdjustedEvent:
		return []zap.Field{zap.String("type", string(e.Type)), zap.String("balance_after", e.BalanceAfter.StringFixed(2))}
	case *treasury.VaultTransferredEvent:
		return []zap.Field{zap.String("to_vault_id", e.ToVaultID.String()), zap.String("performed_by", e.PerformedBy.String())}
	case *treasury.CustodySettledEvent:
		return []zap.Field{zap.String("target_kind", string(e.TargetKind)), zap.String("target_id", e.TargetID.String())}
	case *treasury.CustodyStatusChangedEvent:
		return []zap.Field{
			zap.Bool("is_active", e.IsActive),
			zap.Bool("is_frozen", e.IsFrozen),
			zap.Bool("is_deleted", e.IsDeleted),
		}
	}
	return nil
}

var (
	_ shared.EventHandler = (*StatsCacheInvalidator)(nil)
	_ shared.EventHandler = (*SettlementAmountRecorder)(nil)
	_ shared.EventHandler = (*AuditLogHandler)(nil)
)
