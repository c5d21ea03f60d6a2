package risk

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// EvaluationRequest is the input to EvaluateBet
type EvaluationRequest struct {
	UserID     string  `json:"user_id"`
	GameID     string  `json:"game_id"`
	Pattern    string  `json:"pattern"`
	Stake      float64 `json:"stake"`
	Odds       string  `json:"odds"`
	Confidence float64 `json:"confidence"`
}

// UnmarshalJSON accepts odds as a string or as a bare number, and rejects
// unknown fields
func (r *EvaluationRequest) UnmarshalJSON(data []byte) error {
	type fields EvaluationRequest
	aux := struct {
		*fields
		Odds json.RawMessage `json:"odds"`
	}{fields: (*fields)(r)}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}

	odds, err := oddsFromJSON(aux.Odds)
	if err != nil {
		return err
	}
	r.Odds = odds
	return nil
}

func oddsFromJSON(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidOddsFormat, raw)
	}
	return NumericOdds(d), nil
}

// NumericOdds renders odds given as a number in the string form ParseOdds reads.
// Negative numbers and whole numbers of at least 100 are American odds; anything
// else is decimal odds.
func NumericOdds(d decimal.Decimal) string {
	if !d.IsNegative() && d.Equal(d.Truncate(0)) && d.GreaterThanOrEqual(hundred) {
		return "+" + d.String()
	}
	return d.String()
}
