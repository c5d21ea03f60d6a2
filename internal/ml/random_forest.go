package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// RandomForest averages the home-win probabilities of independent trees.
// Confidence is the agreement of the per-tree votes.
type RandomForest struct {
	baseAdapter
	trees []Tree
}

// NewRandomForest builds a forest adapter from an artifact
func NewRandomForest(a *Artifact) (*RandomForest, error) {
	if a.Forest == nil {
		return nil, fmt.Errorf("%w: %s: missing forest params", ErrInvalidArtifact, a.Name)
	}
	rf := &RandomForest{trees: a.Forest.Trees}
	rf.init(a)
	return rf, nil
}

// Predict evaluates every tree
func (f *RandomForest) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	started := time.Now()
	x, err := f.prepare(ctx, features)
	if err != nil {
		return nil, err
	}

	var sum float64
	homeVotes := 0
	for i := range f.trees {
		p := clampUnit(f.trees[i].evaluate(x))
		sum += p
		if p >= 0.5 {
			homeVotes++
		}
	}

	n := len(f.trees)
	voteShare := float64(homeVotes) / float64(n)
	confidence := math.Abs(2*voteShare - 1)
	return f.output(sum/float64(n), confidence, models.ForestDetail{Trees: n, VoteShare: voteShare}, started)
}
