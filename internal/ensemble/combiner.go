package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/features"
	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/metrics"
	"github.com/yourusername/fantasy-edge/internal/ml"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// AdapterSource supplies the adapters consulted for each prediction
type AdapterSource interface {
	Adapters() []ml.Adapter
}

// Combiner fans a game out to every adapter and merges the responses
type Combiner struct {
	source        AdapterSource
	extractor     *features.Extractor
	weights       *WeightTable
	booster       *PatternBooster
	timeout       time.Duration
	minResponders int
	logger        *logger.InferenceLogger
	now           func() time.Time
}

// NewCombiner wires a combiner. timeout bounds each adapter call.
func NewCombiner(
	source AdapterSource,
	extractor *features.Extractor,
	weights *WeightTable,
	booster *PatternBooster,
	cfg config.EnsembleConfig,
	timeout time.Duration,
	log *logrus.Logger,
) *Combiner {
	minResponders := cfg.MinResponders
	if minResponders < 1 {
		minResponders = 1
	}
	return &Combiner{
		source:        source,
		extractor:     extractor,
		weights:       weights,
		booster:       booster,
		timeout:       timeout,
		minResponders: minResponders,
		logger:        logger.NewInferenceLogger(log),
		now:           time.Now,
	}
}

type job struct {
	adapter ml.Adapter
	vector  models.FeatureVector
}

type result struct {
	name string
	size int
	out  *models.ModelOutput
	err  error
}

// Predict extracts features, queries every adapter concurrently and combines the
// answers. Adapters that fail or miss the per-model deadline are left out. A shape
// mismatch between the extractor and an adapter is returned as an error, and so is
// cancellation of ctx.
func (c *Combiner) Predict(ctx context.Context, game models.GameContext) (*models.EnsemblePrediction, error) {
	started := time.Now()
	sets := c.extractor.Extract(game)

	adapters := c.source.Adapters()
	jobs := make([]job, 0, len(adapters))
	for _, a := range adapters {
		vector, ok := sets[a.FeatureSet()]
		if !ok || len(vector) != a.InputSize() {
			return nil, fmt.Errorf("%w: %s expects %d %q features, extractor produced %d",
				ml.ErrFeatureShapeMismatch, a.Name(), a.InputSize(), a.FeatureSet(), len(vector))
		}
		jobs = append(jobs, job{adapter: a, vector: vector})
	}

	outputs, err := c.collect(ctx, jobs)
	if err != nil {
		return nil, err
	}

	prediction := c.Combine(game, outputs)
	latency := time.Since(started)

	c.logger.LogEnsemble(game.GameID, prediction.Responders(), prediction.Probability, prediction.Confidence, prediction.PatternBoost, prediction.NoModelQuorum)
	metrics.RecordPrediction(string(game.Sport), !prediction.NoModelQuorum, prediction.Confidence, latency.Seconds())
	return prediction, nil
}

// collect runs every job in its own goroutine and waits until all have answered or
// the per-model deadline passes. The channel is buffered so late answers from
// adapters that ignore cancellation are dropped without blocking.
func (c *Combiner) collect(ctx context.Context, jobs []job) (map[string]models.ModelOutput, error) {
	outputs := make(map[string]models.ModelOutput, len(jobs))
	if len(jobs) == 0 {
		return outputs, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make(chan result, len(jobs))
	for _, j := range jobs {
		go func(j job) {
			out, err := j.adapter.Predict(callCtx, j.vector)
			results <- result{name: j.adapter.Name(), size: len(j.vector), out: out, err: err}
		}(j)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()

	pending := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		pending[j.adapter.Name()] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			for name := range pending {
				c.logger.LogModelFailure(name, "timeout", context.DeadlineExceeded)
				metrics.RecordModelFailure(name, "timeout")
			}
			return outputs, nil
		case r := <-results:
			delete(pending, r.name)
			if r.err != nil {
				if errors.Is(r.err, ml.ErrFeatureShapeMismatch) {
					return nil, r.err
				}
				reason := failureReason(r.err)
				c.logger.LogModelFailure(r.name, reason, r.err)
				metrics.RecordModelFailure(r.name, reason)
				continue
			}
			if !validOutput(r.out) {
				c.logger.LogModelFailure(r.name, "invalid_output", ml.ErrInvalidOutput)
				metrics.RecordModelFailure(r.name, "invalid_output")
				continue
			}
			c.logger.LogModelInference(r.name, string(r.out.Family), r.size, r.out.CacheHit, r.out.Latency)
			metrics.RecordModelPrediction(r.name, r.out.CacheHit, r.out.Latency.Seconds())
			outputs[r.name] = *r.out
		}
	}
	return outputs, nil
}

// Combine merges the responding models' outputs with the pattern boost. It is a pure
// function of its inputs apart from the creation timestamp.
func (c *Combiner) Combine(game models.GameContext, outputs map[string]models.ModelOutput) *models.EnsemblePrediction {
	prediction := &models.EnsemblePrediction{
		GameID:          game.GameID,
		Sport:           game.Sport,
		PerModelOutputs: outputs,
		Probability:     0.5,
		PatternBoost:    1,
		Floor:           0.5,
		Ceiling:         0.5,
		TopFactors:      []string{},
		CreatedAt:       c.now().UTC(),
	}
	if prediction.PerModelOutputs == nil {
		prediction.PerModelOutputs = map[string]models.ModelOutput{}
	}

	if len(outputs) > 0 {
		prediction.Floor, prediction.Ceiling = 1, 0
		for _, out := range outputs {
			prediction.Floor = math.Min(prediction.Floor, out.Probability)
			prediction.Ceiling = math.Max(prediction.Ceiling, out.Probability)
		}
		prediction.ModelSpread = prediction.Ceiling - prediction.Floor
	}

	if len(outputs) == 0 || len(outputs) < c.minResponders {
		prediction.NoModelQuorum = true
		return prediction
	}

	var p float64
	if len(outputs) == 1 {
		for _, out := range outputs {
			p = out.Probability
		}
	} else {
		for name, w := range c.weights.NormalizedWeights(game.Sport, outputs) {
			p += outputs[name].Probability * w
		}
	}

	boost, factors := c.booster.Evaluate(game)
	prediction.PatternBoost = boost
	prediction.TopFactors = factors
	prediction.Probability = clampUnit(p * boost)
	// a dampening boost can pull the probability under the unboosted floor; the
	// range widens to keep floor <= probability <= ceiling
	prediction.Ceiling = math.Max(clampUnit(prediction.Ceiling*boost), prediction.Probability)
	prediction.Floor = math.Min(prediction.Floor, prediction.Probability)
	prediction.Confidence = math.Abs(prediction.Probability-0.5) * 2
	return prediction
}

// Strict converts a no-quorum prediction into ErrNoModelQuorum for callers that
// cannot use a flagged result
func Strict(prediction *models.EnsemblePrediction, err error) (*models.EnsemblePrediction, error) {
	if err != nil {
		return nil, err
	}
	if prediction.NoModelQuorum {
		return prediction, fmt.Errorf("%w: %d responders for game %s", models.ErrNoModelQuorum, prediction.Responders(), prediction.GameID)
	}
	return prediction, nil
}

func validOutput(out *models.ModelOutput) bool {
	if out == nil {
		return false
	}
	inUnit := func(v float64) bool { return !math.IsNaN(v) && v >= 0 && v <= 1 }
	return inUnit(out.Probability) && inUnit(out.Confidence)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ml.ErrModelUnavailable):
		return "unavailable"
	case errors.Is(err, ml.ErrInvalidOutput):
		return "invalid_output"
	default:
		return "error"
	}
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
