package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// GradientBoosting sums sequential trees in log-odds space
type GradientBoosting struct {
	baseAdapter
	baseScore    float64
	learningRate float64
	trees        []Tree
}

// NewGradientBoosting builds a boosted-trees adapter from an artifact
func NewGradientBoosting(a *Artifact) (*GradientBoosting, error) {
	if a.Boosted == nil {
		return nil, fmt.Errorf("%w: %s: missing boosted params", ErrInvalidArtifact, a.Name)
	}
	lr := a.Boosted.LearningRate
	if lr == 0 {
		lr = 1
	}
	gb := &GradientBoosting{
		baseScore:    a.Boosted.BaseScore,
		learningRate: lr,
		trees:        a.Boosted.Trees,
	}
	gb.init(a)
	return gb, nil
}

// Predict accumulates every tree's increment
func (g *GradientBoosting) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	started := time.Now()
	x, err := g.prepare(ctx, features)
	if err != nil {
		return nil, err
	}

	raw := g.baseScore
	for i := range g.trees {
		raw += g.learningRate * g.trees[i].evaluate(x)
	}

	p := sigmoid(raw)
	return g.output(p, distanceConfidence(p), models.BoostedDetail{RawScore: raw, TreesUsed: len(g.trees)}, started)
}
