package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeMonth(t *testing.T) {
	in := time.Date(2026, time.March, 17, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), NormalizeMonth(in))
}

func TestWorkerBonus_IsConsistent(t *testing.T) {
	b := WorkerBonus{
		BaseBonus:    decimal.RequireFromString("400"),
		RatingFactor: decimal.RequireFromString("0.85"),
		FinalBonus:   decimal.RequireFromString("340.00"),
	}
	assert.True(t, b.IsConsistent())

	b.FinalBonus = decimal.RequireFromString("400")
	assert.False(t, b.IsConsistent())
}
