package risk

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// TestKellyFraction tests the full Kelly formula
func TestKellyFraction(t *testing.T) {
	assert.InDelta(t, 0.328, KellyFraction(0.68, 100.0/110.0), 1e-3)
	assert.InDelta(t, 0.2, KellyFraction(0.6, 1), 1e-9)
	assert.Less(t, KellyFraction(0.4, 1), 0.0)
	assert.True(t, math.IsInf(KellyFraction(0.9, 0), -1))
}

// TestKellyStake_ScenarioCappedAtMaxBet tests that quarter Kelly at -110 is capped by max bet percent
func TestKellyStake_ScenarioCappedAtMaxBet(t *testing.T) {
	sizing := KellyStake(decimal.NewFromInt(10000), 0.68, 100.0/110.0, 0.25, 5)

	assert.InDelta(t, 0.328, sizing.FullFraction, 1e-3)
	assert.InDelta(t, 0.082, sizing.AdjustedFraction, 1e-3)
	assert.Equal(t, "500.00", sizing.Stake.StringFixed(2))
	assert.Equal(t, "500.00", sizing.Cap.StringFixed(2))
}

// TestKellyStake_NoEdge tests that a negative edge stakes nothing
func TestKellyStake_NoEdge(t *testing.T) {
	sizing := KellyStake(decimal.NewFromInt(1000), 0.45, 1, 0.25, 5)

	assert.Zero(t, sizing.AdjustedFraction)
	assert.True(t, sizing.Stake.IsZero())
}

// TestKellyStake_MonotonicInConfidence tests that stake never falls as confidence rises
func TestKellyStake_MonotonicInConfidence(t *testing.T) {
	bankroll := decimal.NewFromInt(5000)
	for _, b := range []float64{0.5, 0.9090909, 1, 2.5} {
		prev := decimal.Zero
		for i := 0; i <= 100; i++ {
			p := float64(i) / 100
			stake := KellyStake(bankroll, p, b, 0.25, 3).Stake
			assert.True(t, stake.GreaterThanOrEqual(prev), "b=%v p=%v stake %s < %s", b, p, stake, prev)
			prev = stake
		}
	}
}

// TestKellyStake_NeverExceedsCap tests the max bet cap across bankrolls and multipliers
func TestKellyStake_NeverExceedsCap(t *testing.T) {
	for _, bankroll := range []int64{1, 250, 1000, 98765} {
		for _, multiplier := range []float64{0.1, 0.25, 0.5, 1} {
			for _, maxBet := range []float64{0.5, 2, 5, 25} {
				for i := 0; i <= 20; i++ {
					p := float64(i) / 20
					br := decimal.NewFromInt(bankroll)
					sizing := KellyStake(br, p, 1.5, multiplier, maxBet)
					limit := br.Mul(decimal.NewFromFloat(maxBet)).Div(decimal.NewFromInt(100))
					assert.True(t, sizing.Stake.LessThanOrEqual(limit))
					assert.False(t, sizing.Stake.IsNegative())
				}
			}
		}
	}
}
