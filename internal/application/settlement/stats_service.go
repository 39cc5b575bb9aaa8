package settlement

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StatsCachePrefix prefixes every cached invoice stats entry
const StatsCachePrefix = "stats:invoices:"

// StatsService serves the invoice dashboard aggregate
type StatsService struct {
	reader invoicing.StatsReader
	cache  Cache[*invoicing.InvoiceStats]
	ttl    time.Duration
}

// NewStatsService creates a new StatsService. A nil cache disables caching.
func NewStatsService(reader invoicing.StatsReader, cache Cache[*invoicing.InvoiceStats], ttl time.Duration) *StatsService {
	return &StatsService{reader: reader, cache: cache, ttl: ttl}
}

// GetInvoiceStats aggregates invoices created in [dateFrom, dateTo]. Both bounds are optional.
func (s *StatsService) GetInvoiceStats(ctx context.Context, dateFrom, dateTo *time.Time) (*invoicing.InvoiceStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "get_invoice_stats")
	defer span.End()

	if dateFrom != nil && dateTo != nil && dateTo.Before(*dateFrom) {
		return nil, shared.NewValidationError("INVALID_DATE_RANGE", "date_to must not be before date_from")
	}

	key := StatsCacheKey(dateFrom, dateTo)
	if s.cache != nil {
		if stats, ok := s.cache.Get(ctx, key); ok {
			return stats, nil
		}
	}

	stats, err := s.reader.InvoiceStats(ctx, dateFrom, dateTo)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 {
		s.cache.Set(ctx, key, stats, s.ttl)
	}
	logger.L(ctx).Debug("invoice stats computed", zap.String("key", key), zap.Int64("total_count", stats.TotalCount))
	return stats, nil
}

// StatsCacheKey builds the cache key for a date window
func StatsCacheKey(dateFrom, dateTo *time.Time) string {
	return StatsCachePrefix + formatBound(dateFrom) + ":" + formatBound(dateTo)
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "*"
	}
	return t.UTC().Format(time.RFC3339)
}
