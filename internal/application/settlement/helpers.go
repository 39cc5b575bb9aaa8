package settlement

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	spanService     = "settlement"
)

func normalizePage(page, pageSize int, orderBy, orderDir string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	switch {
	case pageSize <= 0:
		f.PageSize = defaultPageSize
	case pageSize > maxPageSize:
		f.PageSize = maxPageSize
	default:
		f.PageSize = pageSize
	}
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir == "asc" || orderDir == "desc" {
		f.OrderDir = orderDir
	}
	return f
}

// eventSource is anything that buffers domain events until commit
type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishAfterCommit hands buffered events to the publisher. Publishing never
// fails the operation: the transaction has already committed.
func publishAfterCommit(ctx context.Context, publisher shared.EventPublisher, sources ...eventSource) {
	var events []shared.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Error("failed to publish domain events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// operation wraps one financial operation with a span, a duration
// measurement and a Warn line on rejection.
type operation struct {
	ctx      context.Context
	span     trace.Span
	name     string
	start    time.Time
	observer OperationObserver
	amount   decimal.Decimal
}

func startOperation(ctx context.Context, observer OperationObserver, name string, attrs ...interface{}) (context.Context, *operation) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, name)
	telemetry.SetAttributes(span, attrs...)
	if observer == nil {
		observer = noopObserver{}
	}
	return ctx, &operation{ctx: ctx, span: span, name: name, start: time.Now(), observer: observer}
}

func (o *operation) setAmount(amount decimal.Decimal) {
	o.amount = amount
	telemetry.SetAttribute(o.span, telemetry.SpanAttrAmount, amount.String())
}

// end closes the span and records the outcome. It returns err unchanged.
func (o *operation) end(err error) error {
	defer o.span.End()
	o.observer.ObserveOperation(o.ctx, o.name, o.amount, time.Since(o.start), err)
	if err != nil {
		telemetry.RecordError(o.span, err)
		logger.L(o.ctx).Warn("settlement operation rejected",
			zap.String("operation", o.name),
			zap.String("kind", string(shared.KindOf(err))),
			zap.Error(err))
	}
	return err
}
