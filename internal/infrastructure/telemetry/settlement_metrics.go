package telemetry

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// SettlementMetrics records settlement operation outcomes and the money
// moved by committed events.
type SettlementMetrics struct {
	operations *Counter
	duration   *Histogram
	amounts    *FloatCounter
}

// NewSettlementMetrics registers the settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	operations, err := NewCounter(meter,
		"settlement_operations_total",
		"Settlement operations by operation and outcome",
		"{operation}",
	)
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "settlement_operation_duration_seconds",
		Description: "Settlement operation latency",
		Unit:        "s",
		Boundaries:  OperationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	amounts, err := NewFloatCounter(meter,
		"settlement_amount_total",
		"Money moved by committed settlement events",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}
	return &SettlementMetrics{operations: operations, duration: duration, amounts: amounts}, nil
}

// ObserveOperation counts one operation. Failed operations are labelled
// with the error kind, e.g. "insufficient_balance".
func (m *SettlementMetrics) ObserveOperation(ctx context.Context, operation string, _ decimal.Decimal, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(shared.KindOf(err))
	}
	m.operations.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, d, AttrOperation.String(operation))
}

// RecordAmount adds a positive event amount to the money counter.
func (m *SettlementMetrics) RecordAmount(ctx context.Context, eventType string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	m.amounts.Add(ctx, amount.InexactFloat64(), AttrEventType.String(eventType))
}
