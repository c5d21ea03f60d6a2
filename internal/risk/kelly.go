package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// KellyFraction is (b*p - q) / b, the full-Kelly share of bankroll for win
// probability p at net odds b. It is negative when the bet has no edge.
func KellyFraction(p, b float64) float64 {
	if b <= 0 {
		return math.Inf(-1)
	}
	return (b*p - (1 - p)) / b
}

// Sizing is the outcome of fractional Kelly sizing for one bet
type Sizing struct {
	FullFraction     float64
	AdjustedFraction float64
	Stake            decimal.Decimal
	Cap              decimal.Decimal
}

// KellyStake applies the multiplier, floors at zero and caps the stake at
// bankroll x maxBetPercent / 100. Stakes are truncated to cents.
func KellyStake(bankroll decimal.Decimal, p, b, multiplier, maxBetPercent float64) Sizing {
	full := KellyFraction(p, b)
	adjusted := math.Max(0, full*multiplier)
	if math.IsNaN(adjusted) {
		adjusted = 0
	}

	capAmount := bankroll.Mul(decimal.NewFromFloat(maxBetPercent)).Div(hundred).Truncate(2)
	stake := bankroll.Mul(decimal.NewFromFloat(adjusted)).Truncate(2)
	if stake.GreaterThan(capAmount) {
		stake = capAmount
	}
	if stake.IsNegative() {
		stake = decimal.Zero
	}

	return Sizing{
		FullFraction:     full,
		AdjustedFraction: adjusted,
		Stake:            stake,
		Cap:              capAmount,
	}
}
