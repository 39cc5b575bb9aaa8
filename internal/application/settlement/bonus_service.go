package settlement

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/payroll"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BonusCachePrefix prefixes every cached bonus report
const BonusCachePrefix = "bonus:"

// BonusService serves the monthly worker bonus report
type BonusService struct {
	calculator payroll.BonusCalculator
	cache      Cache[[]payroll.WorkerBonus]
	ttl        time.Duration
}

// NewBonusService creates a new BonusService. A nil cache disables caching.
func NewBonusService(calculator payroll.BonusCalculator, cache Cache[[]payroll.WorkerBonus], ttl time.Duration) *BonusService {
	return &BonusService{calculator: calculator, cache: cache, ttl: ttl}
}

// GetWorkerBonuses returns the bonus rows for the month containing q.Month
func (s *BonusService) GetWorkerBonuses(ctx context.Context, q payroll.BonusQuery) ([]payroll.WorkerBonus, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "calculate_worker_bonuses")
	defer span.End()

	q.Month = payroll.NormalizeMonth(q.Month)
	key := bonusCacheKey(q)
	if s.cache != nil {
		if rows, ok := s.cache.Get(ctx, key); ok {
			return rows, nil
		}
	}

	rows, err := s.calculator.Calculate(ctx, q)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	log := logger.L(ctx)
	for _, r := range rows {
		if !r.IsConsistent() {
			log.Warn("bonus row does not match base_bonus x rating_factor",
				zap.String("worker_id", r.WorkerID.String()),
				zap.String("base_bonus", r.BaseBonus.String()),
				zap.String("rating_factor", r.RatingFactor.String()),
				zap.String("final_bonus", r.FinalBonus.String()))
		}
	}

	if s.cache != nil && s.ttl > 0 {
		s.cache.Set(ctx, key, rows, s.ttl)
	}
	return rows, nil
}

func bonusCacheKey(q payroll.BonusQuery) string {
	return BonusCachePrefix + q.Month.Format("2006-01") + ":" + optionalDecimal(q.MinDaily) + ":" + optionalDecimal(q.Commission)
}

func optionalDecimal(d *decimal.Decimal) string {
	if d == nil {
		return "default"
	}
	return d.String()
}
