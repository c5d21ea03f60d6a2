// Package risk sizes bets with fractional Kelly and guards bankrolls with
// loss limits, drawdown alerts and exposure caps.
package risk

import "errors"

var (
	// ErrInvalidOddsFormat indicates odds that are not American, decimal or fractional
	ErrInvalidOddsFormat = errors.New("invalid odds format")

	// ErrInvalidStake indicates a stake that is not a positive finite amount
	ErrInvalidStake = errors.New("stake must be a positive finite amount")
)
