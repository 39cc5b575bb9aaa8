package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkerBonus is one row of the monthly bonus report.
// The formula lives in the database; this type only carries the result.
type WorkerBonus struct {
	WorkerID            uuid.UUID       `json:"worker_id"`
	WorkerName          string          `json:"worker_name"`
	DaysWorked          int             `json:"days_worked"`
	MonthlyContribution decimal.Decimal `json:"monthly_contribution"`
	MonthlyMinimum      decimal.Decimal `json:"monthly_minimum"`
	NetAboveMinimum     decimal.Decimal `json:"net_above_minimum"`
	AvgRating           decimal.Decimal `json:"avg_rating"`
	RatingFactor        decimal.Decimal `json:"rating_factor"`
	BaseBonus           decimal.Decimal `json:"base_bonus"`
	FinalBonus          decimal.Decimal `json:"final_bonus"`
	UnratedOrders       int             `json:"unrated_orders"`
}

// IsConsistent reports whether final_bonus equals base_bonus × rating_factor at cent precision
func (b WorkerBonus) IsConsistent() bool {
	expected := b.BaseBonus.Mul(b.RatingFactor).Round(2)
	return expected.Equal(b.FinalBonus.Round(2))
}

// BonusQuery selects the month and overrides the calculation parameters.
// Nil parameters fall back to the database defaults.
type BonusQuery struct {
	Month      time.Time
	MinDaily   *decimal.Decimal
	Commission *decimal.Decimal
}

// NormalizeMonth returns the first instant of t's month in UTC
func NormalizeMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// BonusCalculator computes worker bonuses for a month
type BonusCalculator interface {
	Calculate(ctx context.Context, query BonusQuery) ([]WorkerBonus, error)
}
