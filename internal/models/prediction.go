package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureVector is an ordered sequence of normalized inputs for one model family
type FeatureVector []float64

// FeatureSet names the vector layout a model consumes
type FeatureSet string

const (
	FeatureSetGame      FeatureSet = "game"
	FeatureSetOffensive FeatureSet = "offensive"
	FeatureSetSchedule  FeatureSet = "schedule"
	FeatureSetSequence  FeatureSet = "sequence"
)

// ModelFamily identifies the kind of trained predictor behind an adapter
type ModelFamily string

const (
	FamilyNeuralNetwork    ModelFamily = "neural_network"
	FamilyRandomForest     ModelFamily = "random_forest"
	FamilySequence         ModelFamily = "sequence"
	FamilyGradientBoosting ModelFamily = "gradient_boosting"
)

// OutputDetail is the family-specific part of a model output
type OutputDetail interface {
	Family() ModelFamily
}

// NeuralNetDetail carries the pre-sigmoid activation of the output unit
type NeuralNetDetail struct {
	Logit float64 `json:"logit"`
}

// Family implements OutputDetail
func (NeuralNetDetail) Family() ModelFamily { return FamilyNeuralNetwork }

// ForestDetail reports how the individual trees voted
type ForestDetail struct {
	Trees     int     `json:"trees"`
	VoteShare float64 `json:"vote_share"`
}

// Family implements OutputDetail
func (ForestDetail) Family() ModelFamily { return FamilyRandomForest }

// SequenceDetail carries momentum components of the recurrent pass
type SequenceDetail struct {
	StepsUsed  int     `json:"steps_used"`
	FillRatio  float64 `json:"fill_ratio"`
	Momentum   float64 `json:"momentum"`
	FinalLogit float64 `json:"final_logit"`
}

// Family implements OutputDetail
func (SequenceDetail) Family() ModelFamily { return FamilySequence }

// BoostedDetail reports the additive raw score before the sigmoid
type BoostedDetail struct {
	RawScore  float64 `json:"raw_score"`
	TreesUsed int     `json:"trees_used"`
}

// Family implements OutputDetail
func (BoostedDetail) Family() ModelFamily { return FamilyGradientBoosting }

// ModelOutput is the result of one adapter call. Probability is P(home win).
type ModelOutput struct {
	ModelName    string        `json:"model_name"`
	ModelVersion string        `json:"model_version,omitempty"`
	Family       ModelFamily   `json:"family"`
	Probability  float64       `json:"probability" validate:"gte=0,lte=1"`
	Confidence   float64       `json:"confidence" validate:"gte=0,lte=1"`
	Detail       OutputDetail  `json:"detail,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
	CacheHit     bool          `json:"cache_hit,omitempty"`
}

// EnsemblePrediction is the combined view over all responding models
type EnsemblePrediction struct {
	GameID          string                 `json:"game_id"`
	Sport           Sport                  `json:"sport"`
	PerModelOutputs map[string]ModelOutput `json:"per_model_outputs"`
	Probability     float64                `json:"probability"`
	Confidence      float64                `json:"confidence"`
	PatternBoost    float64                `json:"pattern_boost"`
	Floor           float64                `json:"floor"`
	Ceiling         float64                `json:"ceiling"`
	ModelSpread     float64                `json:"model_spread"`
	TopFactors      []string               `json:"top_factors"`
	NoModelQuorum   bool                   `json:"no_model_quorum"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Responders returns the number of models that contributed
func (p *EnsemblePrediction) Responders() int {
	return len(p.PerModelOutputs)
}

// PredictionRecord is the persisted form of an ensemble prediction
type PredictionRecord struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	Prediction      EnsemblePrediction `json:"prediction"`
	HomeTeam        string             `db:"home_team" json:"home_team"`
	AwayTeam        string             `db:"away_team" json:"away_team"`
	PredictedWinner string             `db:"predicted_winner" json:"predicted_winner"`
	ActualWinner    *string            `db:"actual_winner" json:"actual_winner,omitempty"`
	Correct         *bool              `db:"correct" json:"correct,omitempty"`
	Sport           Sport              `db:"sport" json:"sport"`
	GameDate        time.Time          `db:"game_date" json:"game_date"`
	SettledAt       *time.Time         `db:"settled_at" json:"settled_at,omitempty"`
}

// IsSettled reports whether the actual outcome has been attached
func (r *PredictionRecord) IsSettled() bool {
	return r.Correct != nil
}

// ModelPickedCorrectly reports whether the named model's own pick matched the actual winner
func (r *PredictionRecord) ModelPickedCorrectly(modelName string) (bool, bool) {
	out, ok := r.Prediction.PerModelOutputs[modelName]
	if !ok || r.ActualWinner == nil {
		return false, false
	}
	pick := r.AwayTeam
	if out.Probability >= 0.5 {
		pick = r.HomeTeam
	}
	return pick == *r.ActualWinner, true
}
