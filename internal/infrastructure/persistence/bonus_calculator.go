package persistence

import (
	"context"
	"strings"

	"github.com/fieldops/backend/internal/domain/payroll"
	"gorm.io/gorm"
)

// GormBonusCalculator calls the calculate_worker_bonuses database function.
// The formula is owned by the database; omitted parameters use the function's defaults.
type GormBonusCalculator struct {
	db *gorm.DB
}

// NewGormBonusCalculator creates a new GormBonusCalculator
func NewGormBonusCalculator(db *gorm.DB) *GormBonusCalculator {
	return &GormBonusCalculator{db: db}
}

// bonusCall builds the call with named arguments so either override can be omitted alone
func bonusCall(q payroll.BonusQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM calculate_worker_bonuses(p_month => ?")
	args := []any{payroll.NormalizeMonth(q.Month).Format("2006-01-02")}
	if q.MinDaily != nil {
		b.WriteString(", p_min_daily => ?")
		args = append(args, *q.MinDaily)
	}
	if q.Commission != nil {
		b.WriteString(", p_commission => ?")
		args = append(args, *q.Commission)
	}
	b.WriteString(")")
	return b.String(), args
}

// Calculate returns one row per worker for the query month
func (c *GormBonusCalculator) Calculate(ctx context.Context, query payroll.BonusQuery) ([]payroll.WorkerBonus, error) {
	sql, args := bonusCall(query)
	var rows []payroll.WorkerBonus
	if err := c.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []payroll.WorkerBonus{}
	}
	return rows, nil
}

var _ payroll.BonusCalculator = (*GormBonusCalculator)(nil)
