package ml

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// Adapter wraps one trained predictor behind a uniform contract. Predict must
// honour ctx cancellation where it can; callers always supply a deadline.
type Adapter interface {
	Name() string
	Version() string
	Family() models.ModelFamily
	FeatureSet() models.FeatureSet
	InputSize() int
	Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error)
}

// Unloader is implemented by adapters that can drop their parameters
type Unloader interface {
	Unload()
}

// NewAdapter builds the in-process adapter for an artifact's family
func NewAdapter(artifact *Artifact) (Adapter, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	switch artifact.Family {
	case models.FamilyNeuralNetwork:
		return NewNeuralNetwork(artifact)
	case models.FamilyRandomForest:
		return NewRandomForest(artifact)
	case models.FamilyGradientBoosting:
		return NewGradientBoosting(artifact)
	case models.FamilySequence:
		return NewSequenceModel(artifact)
	default:
		return nil, fmt.Errorf("%w: unknown family %q", ErrInvalidArtifact, artifact.Family)
	}
}

// baseAdapter holds the metadata and input handling shared by local adapters
type baseAdapter struct {
	name       string
	version    string
	family     models.ModelFamily
	featureSet models.FeatureSet
	inputSize  int
	scaler     *Scaler
	loaded     atomic.Bool
}

func (b *baseAdapter) init(a *Artifact) {
	b.name = a.Name
	b.version = a.Version
	b.family = a.Family
	b.featureSet = a.FeatureSet
	b.inputSize = a.InputSize
	b.scaler = a.Scaler
	b.loaded.Store(true)
}

func (b *baseAdapter) Name() string                  { return b.name }
func (b *baseAdapter) Version() string               { return b.version }
func (b *baseAdapter) Family() models.ModelFamily    { return b.family }
func (b *baseAdapter) FeatureSet() models.FeatureSet { return b.featureSet }
func (b *baseAdapter) InputSize() int                { return b.inputSize }

// prepare validates availability and shape, then applies the scaler
func (b *baseAdapter) prepare(ctx context.Context, features models.FeatureVector) ([]float64, error) {
	if !b.loaded.Load() {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, b.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features) != b.inputSize {
		return nil, fmt.Errorf("%w: %s expects %d features, got %d", ErrFeatureShapeMismatch, b.name, b.inputSize, len(features))
	}

	x := make([]float64, len(features))
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s: feature %d is not finite", ErrFeatureShapeMismatch, b.name, i)
		}
		x[i] = v
		if b.scaler != nil {
			scale := b.scaler.Scale[i]
			if scale == 0 {
				scale = 1
			}
			x[i] = (v - b.scaler.Mean[i]) / scale
		}
	}
	return x, nil
}

// output validates raw results and builds the immutable ModelOutput
func (b *baseAdapter) output(probability, confidence float64, detail models.OutputDetail, started time.Time) (*models.ModelOutput, error) {
	if math.IsNaN(probability) || math.IsNaN(confidence) {
		return nil, fmt.Errorf("%w: %s produced NaN", ErrInvalidOutput, b.name)
	}
	return &models.ModelOutput{
		ModelName:    b.name,
		ModelVersion: b.version,
		Family:       b.family,
		Probability:  clampUnit(probability),
		Confidence:   clampUnit(confidence),
		Detail:       detail,
		Latency:      time.Since(started),
	}, nil
}

// Unload drops the adapter's parameters; later calls fail with ErrModelUnavailable
func (b *baseAdapter) Unload() {
	b.loaded.Store(false)
}

// distanceConfidence maps a probability to its scaled distance from 0.5
func distanceConfidence(p float64) float64 {
	return math.Abs(p-0.5) * 2
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
