package ml

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/models"
)

func splitTree(feature int, threshold, left, right float64) Tree {
	return Tree{Nodes: []TreeNode{
		{Feature: feature, Threshold: threshold, Left: 1, Right: 2},
		{Leaf: true, Value: left},
		{Leaf: true, Value: right},
	}}
}

func networkArtifact() *Artifact {
	return &Artifact{
		Name:       "nn_test",
		Family:     models.FamilyNeuralNetwork,
		Version:    "v1",
		FeatureSet: models.FeatureSetGame,
		InputSize:  2,
		Network: &NetworkParams{Layers: []DenseLayer{
			{Weights: [][]float64{{1, 0}, {0, 1}}, Biases: []float64{0, 0}, Activation: ActivationReLU},
			{Weights: [][]float64{{1, -1}}, Biases: []float64{0}},
		}},
	}
}

func forestArtifact() *Artifact {
	return &Artifact{
		Name:       "rf_test",
		Family:     models.FamilyRandomForest,
		Version:    "v1",
		FeatureSet: models.FeatureSetOffensive,
		InputSize:  1,
		Forest: &ForestParams{Trees: []Tree{
			splitTree(0, 0.5, 0.3, 0.8),
			splitTree(0, 0.5, 0.4, 0.7),
			splitTree(0, 0.5, 0.6, 0.2),
		}},
	}
}

func boostedArtifact() *Artifact {
	return &Artifact{
		Name:       "gbt_test",
		Family:     models.FamilyGradientBoosting,
		Version:    "v1",
		FeatureSet: models.FeatureSetGame,
		InputSize:  1,
		Boosted: &BoostedParams{
			LearningRate: 0.5,
			Trees: []Tree{
				{Nodes: []TreeNode{{Leaf: true, Value: 1}}},
				splitTree(0, 0.5, -2, 2),
			},
		},
	}
}

func sequenceArtifact() *Artifact {
	return &Artifact{
		Name:       "seq_test",
		Family:     models.FamilySequence,
		Version:    "v1",
		FeatureSet: models.FeatureSetSequence,
		InputSize:  6,
		Sequence: &SequenceParams{
			Steps:            3,
			StepSize:         2,
			PresenceFeature:  0,
			InputWeights:     [][]float64{{0, 1}},
			RecurrentWeights: [][]float64{{0}},
			HiddenBias:       []float64{0},
			OutputWeights:    []float64{1},
		},
	}
}

// TestNeuralNetworkForwardPass tests a two-layer forward pass
func TestNeuralNetworkForwardPass(t *testing.T) {
	nn, err := NewAdapter(networkArtifact())
	require.NoError(t, err)

	out, err := nn.Predict(context.Background(), models.FeatureVector{2, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.7310585786, out.Probability, 1e-9)
	assert.InDelta(t, 0.4621171573, out.Confidence, 1e-9)
	assert.Equal(t, "nn_test", out.ModelName)
	assert.Equal(t, "v1", out.ModelVersion)
	assert.Equal(t, models.FamilyNeuralNetwork, out.Family)

	detail, ok := out.Detail.(models.NeuralNetDetail)
	require.True(t, ok)
	assert.InDelta(t, 1.0, detail.Logit, 1e-12)
}

// TestNeuralNetworkScaler tests that inputs are standardized before the forward pass
func TestNeuralNetworkScaler(t *testing.T) {
	a := networkArtifact()
	a.Scaler = &Scaler{Mean: []float64{1, 1}, Scale: []float64{1, 1}}
	nn, err := NewAdapter(a)
	require.NoError(t, err)

	out, err := nn.Predict(context.Background(), models.FeatureVector{3, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.7310585786, out.Probability, 1e-9)
}

// TestRandomForestVoting tests leaf averaging and vote agreement
func TestRandomForestVoting(t *testing.T) {
	rf, err := NewAdapter(forestArtifact())
	require.NoError(t, err)

	out, err := rf.Predict(context.Background(), models.FeatureVector{1})
	require.NoError(t, err)

	assert.InDelta(t, 0.5666666667, out.Probability, 1e-9)
	assert.InDelta(t, 1.0/3.0, out.Confidence, 1e-9)

	detail, ok := out.Detail.(models.ForestDetail)
	require.True(t, ok)
	assert.Equal(t, 3, detail.Trees)
	assert.InDelta(t, 2.0/3.0, detail.VoteShare, 1e-9)
}

// TestGradientBoostingLogOdds tests accumulation of scaled tree increments
func TestGradientBoostingLogOdds(t *testing.T) {
	gb, err := NewAdapter(boostedArtifact())
	require.NoError(t, err)

	out, err := gb.Predict(context.Background(), models.FeatureVector{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.8175744762, out.Probability, 1e-9)
	assert.InDelta(t, 0.6351489524, out.Confidence, 1e-9)

	detail, ok := out.Detail.(models.BoostedDetail)
	require.True(t, ok)
	assert.InDelta(t, 1.5, detail.RawScore, 1e-12)
	assert.Equal(t, 2, detail.TreesUsed)

	out, err = gb.Predict(context.Background(), models.FeatureVector{0})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(0.5)), out.Probability, 1e-9)
}

// TestSequenceModelSkipsEmptySteps tests that padded steps are ignored
func TestSequenceModelSkipsEmptySteps(t *testing.T) {
	seq, err := NewAdapter(sequenceArtifact())
	require.NoError(t, err)

	out, err := seq.Predict(context.Background(), models.FeatureVector{0, 5, 1, 0.5, 1, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.6816997422, out.Probability, 1e-9)
	assert.InDelta(t, 0.2422663229, out.Confidence, 1e-9)

	detail, ok := out.Detail.(models.SequenceDetail)
	require.True(t, ok)
	assert.Equal(t, 2, detail.StepsUsed)
	assert.InDelta(t, 2.0/3.0, detail.FillRatio, 1e-12)
	assert.InDelta(t, 0.2994769987, detail.Momentum, 1e-9)
}

// TestSequenceModelNoHistory tests the prior-only output for an empty window
func TestSequenceModelNoHistory(t *testing.T) {
	seq, err := NewAdapter(sequenceArtifact())
	require.NoError(t, err)

	out, err := seq.Predict(context.Background(), models.FeatureVector{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Probability)
	assert.Equal(t, 0.0, out.Confidence)
}

// TestAdapterOutputsInRange tests probability and confidence bounds across families
func TestAdapterOutputsInRange(t *testing.T) {
	inputs := map[string]models.FeatureVector{
		"nn_test":  {-40, 900},
		"rf_test":  {-3},
		"gbt_test": {1e6},
		"seq_test": {1, -50, 1, 50, 1, 1e3},
	}
	for _, a := range []*Artifact{networkArtifact(), forestArtifact(), boostedArtifact(), sequenceArtifact()} {
		adapter, err := NewAdapter(a)
		require.NoError(t, err)

		out, err := adapter.Predict(context.Background(), inputs[a.Name])
		require.NoError(t, err, a.Name)
		assert.GreaterOrEqual(t, out.Probability, 0.0, a.Name)
		assert.LessOrEqual(t, out.Probability, 1.0, a.Name)
		assert.GreaterOrEqual(t, out.Confidence, 0.0, a.Name)
		assert.LessOrEqual(t, out.Confidence, 1.0, a.Name)
	}
}

// TestAdapterShapeMismatch tests rejection of wrongly sized vectors
func TestAdapterShapeMismatch(t *testing.T) {
	nn, err := NewAdapter(networkArtifact())
	require.NoError(t, err)

	_, err = nn.Predict(context.Background(), models.FeatureVector{1, 2, 3})
	assert.True(t, errors.Is(err, ErrFeatureShapeMismatch))

	_, err = nn.Predict(context.Background(), models.FeatureVector{1, math.NaN()})
	assert.True(t, errors.Is(err, ErrFeatureShapeMismatch))
}

// TestAdapterUnload tests that unloaded adapters report unavailability
func TestAdapterUnload(t *testing.T) {
	rf, err := NewAdapter(forestArtifact())
	require.NoError(t, err)

	rf.(Unloader).Unload()
	_, err = rf.Predict(context.Background(), models.FeatureVector{1})
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

// TestAdapterCancelledContext tests that a cancelled context short-circuits prediction
func TestAdapterCancelledContext(t *testing.T) {
	gb, err := NewAdapter(boostedArtifact())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gb.Predict(ctx, models.FeatureVector{1})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestArtifactValidate tests structural validation of artifacts
func TestArtifactValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"missing name", func(a *Artifact) { a.Name = "" }},
		{"zero input size", func(a *Artifact) { a.InputSize = 0 }},
		{"scaler length", func(a *Artifact) { a.Scaler = &Scaler{Mean: []float64{0}, Scale: []float64{1}} }},
		{"wide output layer", func(a *Artifact) {
			a.Network.Layers[1] = DenseLayer{Weights: [][]float64{{1, 0}, {0, 1}}, Biases: []float64{0, 0}}
		}},
		{"layer width", func(a *Artifact) {
			a.Network.Layers[0].Weights = [][]float64{{1, 0, 0}, {0, 1, 0}}
		}},
		{"unknown activation", func(a *Artifact) { a.Network.Layers[0].Activation = "swish" }},
		{"unknown family", func(a *Artifact) { a.Family = "svm" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := networkArtifact()
			tt.mutate(a)
			assert.ErrorIs(t, a.Validate(), ErrInvalidArtifact)
		})
	}

	require.NoError(t, networkArtifact().Validate())
	require.NoError(t, forestArtifact().Validate())
	require.NoError(t, boostedArtifact().Validate())
	require.NoError(t, sequenceArtifact().Validate())
}

// TestArtifactValidateTreeCycles tests that back-pointing children are rejected
func TestArtifactValidateTreeCycles(t *testing.T) {
	a := forestArtifact()
	a.Forest.Trees[0].Nodes[0].Left = 0
	assert.ErrorIs(t, a.Validate(), ErrInvalidArtifact)

	a = forestArtifact()
	a.Forest.Trees[1].Nodes[0].Feature = 4
	assert.ErrorIs(t, a.Validate(), ErrInvalidArtifact)
}

// TestArtifactValidateSequence tests sequence dimension checks
func TestArtifactValidateSequence(t *testing.T) {
	a := sequenceArtifact()
	a.InputSize = 5
	assert.ErrorIs(t, a.Validate(), ErrInvalidArtifact)

	a = sequenceArtifact()
	a.Sequence.InputWeights = [][]float64{{0, 1, 2}}
	assert.ErrorIs(t, a.Validate(), ErrInvalidArtifact)
}

// TestFileArtifactLoader tests reading artifacts from disk
func TestFileArtifactLoader(t *testing.T) {
	dir := t.TempDir()
	a := boostedArtifact()
	a.Name = ""
	data, err := json.Marshal(a)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gbt_disk.json"), data, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))

	loader := NewFileArtifactLoader(dir)

	loaded, err := loader.Load(context.Background(), "gbt_disk")
	require.NoError(t, err)
	assert.Equal(t, "gbt_disk", loaded.Name)
	assert.Equal(t, models.FamilyGradientBoosting, loaded.Family)

	_, err = loader.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = loader.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
