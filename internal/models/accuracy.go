package models

import "fmt"

// ConfidenceTier buckets a probability by its distance from 0.5
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// BucketScope selects which dimension an accuracy bucket aggregates over
type BucketScope string

const (
	ScopeOverall BucketScope = "overall"
	ScopeModel   BucketScope = "model"
	ScopeSport   BucketScope = "sport"
	ScopeTier    BucketScope = "tier"
	// ScopeModelSportTier is the granularity the retrain state machine runs at
	ScopeModelSportTier BucketScope = "model_sport_tier"
)

// BucketKey identifies an accuracy bucket. Unused dimensions are left empty.
type BucketKey struct {
	Scope BucketScope    `json:"scope"`
	Model string         `json:"model,omitempty"`
	Sport Sport          `json:"sport,omitempty"`
	Tier  ConfidenceTier `json:"tier,omitempty"`
}

// String returns a stable label for logs and metrics
func (k BucketKey) String() string {
	switch k.Scope {
	case ScopeOverall:
		return "overall"
	case ScopeModel:
		return fmt.Sprintf("model:%s", k.Model)
	case ScopeSport:
		return fmt.Sprintf("sport:%s", k.Sport)
	case ScopeTier:
		return fmt.Sprintf("tier:%s", k.Tier)
	default:
		return fmt.Sprintf("%s:%s:%s", k.Model, k.Sport, k.Tier)
	}
}

// AccuracyBucket is a point-in-time snapshot of one bucket's counters
type AccuracyBucket struct {
	Key        BucketKey `json:"key"`
	Correct    int64     `json:"correct"`
	Total      int64     `json:"total"`
	Accuracy   float64   `json:"accuracy"`
	State      string    `json:"state"`
	Generation int       `json:"generation"`
}
