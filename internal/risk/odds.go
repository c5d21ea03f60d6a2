package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ParseOdds converts American (+150, -110), decimal (2.50) or fractional (3/2)
// odds into decimal odds, which are always greater than 1
func ParseOdds(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidOddsFormat)
	}

	switch {
	case strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-"):
		return parseAmerican(s, raw)
	case strings.Contains(s, "/"):
		return parseFractional(s, raw)
	default:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidOddsFormat, raw)
		}
		if !d.GreaterThan(one) {
			return decimal.Zero, fmt.Errorf("%w: decimal odds %q must exceed 1", ErrInvalidOddsFormat, raw)
		}
		return d, nil
	}
}

func parseAmerican(s, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidOddsFormat, raw)
	}
	if d.Abs().LessThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: american odds %q must be at least 100 in magnitude", ErrInvalidOddsFormat, raw)
	}
	if d.IsPositive() {
		return one.Add(d.Div(hundred)), nil
	}
	return one.Add(hundred.Div(d.Abs())), nil
}

func parseFractional(s, raw string) (decimal.Decimal, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidOddsFormat, raw)
	}
	num, err1 := decimal.NewFromString(strings.TrimSpace(parts[0]))
	den, err2 := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || !num.IsPositive() || !den.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidOddsFormat, raw)
	}
	return one.Add(num.Div(den)), nil
}

// NetOdds returns b, the profit per unit staked
func NetOdds(raw string) (float64, error) {
	d, err := ParseOdds(raw)
	if err != nil {
		return 0, err
	}
	return d.Sub(one).InexactFloat64(), nil
}
