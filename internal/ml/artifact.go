package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// Activation names accepted in dense layers
const (
	ActivationReLU    = "relu"
	ActivationTanh    = "tanh"
	ActivationSigmoid = "sigmoid"
	ActivationLinear  = "linear"
)

// Artifact is the serialized form of a trained model
type Artifact struct {
	Name       string             `json:"name"`
	Family     models.ModelFamily `json:"family"`
	Version    string             `json:"version"`
	FeatureSet models.FeatureSet  `json:"feature_set"`
	InputSize  int                `json:"input_size"`
	Scaler     *Scaler            `json:"scaler,omitempty"`
	Network    *NetworkParams     `json:"network,omitempty"`
	Forest     *ForestParams      `json:"forest,omitempty"`
	Boosted    *BoostedParams     `json:"boosted,omitempty"`
	Sequence   *SequenceParams    `json:"sequence,omitempty"`
}

// Scaler standardizes inputs as (x - mean) / scale
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// DenseLayer is one fully connected layer; Weights has one row per output unit
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"`
}

// NetworkParams holds a feed-forward network. The last layer has a single unit.
type NetworkParams struct {
	Layers []DenseLayer `json:"layers"`
}

// TreeNode is a node of a binary decision tree. Children always have a larger
// index than their parent.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a decision tree rooted at node 0
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// ForestParams holds a random forest whose leaves are home-win probabilities
type ForestParams struct {
	Trees []Tree `json:"trees"`
}

// BoostedParams holds gradient-boosted trees whose leaves are log-odds increments
type BoostedParams struct {
	BaseScore    float64 `json:"base_score"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// SequenceParams holds an Elman recurrent cell over a window of steps
type SequenceParams struct {
	Steps            int         `json:"steps"`
	StepSize         int         `json:"step_size"`
	PresenceFeature  int         `json:"presence_feature"`
	InputWeights     [][]float64 `json:"input_weights"`
	RecurrentWeights [][]float64 `json:"recurrent_weights"`
	HiddenBias       []float64   `json:"hidden_bias"`
	OutputWeights    []float64   `json:"output_weights"`
	OutputBias       float64     `json:"output_bias"`
}

// Validate checks internal consistency of the artifact
func (a *Artifact) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidArtifact)
	}
	if a.InputSize <= 0 {
		return fmt.Errorf("%w: %s: input_size must be positive", ErrInvalidArtifact, a.Name)
	}
	if a.Scaler != nil {
		if len(a.Scaler.Mean) != a.InputSize || len(a.Scaler.Scale) != a.InputSize {
			return fmt.Errorf("%w: %s: scaler length must equal input_size", ErrInvalidArtifact, a.Name)
		}
	}

	switch a.Family {
	case models.FamilyNeuralNetwork:
		if a.Network == nil {
			return fmt.Errorf("%w: %s: missing network params", ErrInvalidArtifact, a.Name)
		}
		return a.Network.validate(a.Name, a.InputSize)
	case models.FamilyRandomForest:
		if a.Forest == nil || len(a.Forest.Trees) == 0 {
			return fmt.Errorf("%w: %s: forest has no trees", ErrInvalidArtifact, a.Name)
		}
		return validateTrees(a.Name, a.Forest.Trees, a.InputSize)
	case models.FamilyGradientBoosting:
		if a.Boosted == nil || len(a.Boosted.Trees) == 0 {
			return fmt.Errorf("%w: %s: boosted model has no trees", ErrInvalidArtifact, a.Name)
		}
		return validateTrees(a.Name, a.Boosted.Trees, a.InputSize)
	case models.FamilySequence:
		if a.Sequence == nil {
			return fmt.Errorf("%w: %s: missing sequence params", ErrInvalidArtifact, a.Name)
		}
		return a.Sequence.validate(a.Name, a.InputSize)
	default:
		return fmt.Errorf("%w: %s: unknown family %q", ErrInvalidArtifact, a.Name, a.Family)
	}
}

func (n *NetworkParams) validate(name string, inputSize int) error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("%w: %s: network has no layers", ErrInvalidArtifact, name)
	}
	width := inputSize
	for i, layer := range n.Layers {
		if len(layer.Weights) == 0 || len(layer.Biases) != len(layer.Weights) {
			return fmt.Errorf("%w: %s: layer %d weights and biases disagree", ErrInvalidArtifact, name, i)
		}
		for _, row := range layer.Weights {
			if len(row) != width {
				return fmt.Errorf("%w: %s: layer %d expects %d inputs", ErrInvalidArtifact, name, i, width)
			}
		}
		switch layer.Activation {
		case ActivationReLU, ActivationTanh, ActivationSigmoid, ActivationLinear, "":
		default:
			return fmt.Errorf("%w: %s: layer %d has unknown activation %q", ErrInvalidArtifact, name, i, layer.Activation)
		}
		width = len(layer.Weights)
	}
	if width != 1 {
		return fmt.Errorf("%w: %s: output layer must have one unit, has %d", ErrInvalidArtifact, name, width)
	}
	return nil
}

func validateTrees(name string, trees []Tree, inputSize int) error {
	for t, tree := range trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: %s: tree %d is empty", ErrInvalidArtifact, name, t)
		}
		for i, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= inputSize {
				return fmt.Errorf("%w: %s: tree %d node %d splits on feature %d", ErrInvalidArtifact, name, t, i, node.Feature)
			}
			if node.Left <= i || node.Right <= i || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: %s: tree %d node %d has invalid children", ErrInvalidArtifact, name, t, i)
			}
		}
	}
	return nil
}

func (s *SequenceParams) validate(name string, inputSize int) error {
	if s.Steps <= 0 || s.StepSize <= 0 || s.Steps*s.StepSize != inputSize {
		return fmt.Errorf("%w: %s: steps x step_size must equal input_size", ErrInvalidArtifact, name)
	}
	if s.PresenceFeature < -1 || s.PresenceFeature >= s.StepSize {
		return fmt.Errorf("%w: %s: presence_feature out of range", ErrInvalidArtifact, name)
	}
	hidden := len(s.HiddenBias)
	if hidden == 0 || len(s.InputWeights) != hidden || len(s.RecurrentWeights) != hidden || len(s.OutputWeights) != hidden {
		return fmt.Errorf("%w: %s: hidden dimensions disagree", ErrInvalidArtifact, name)
	}
	for i := 0; i < hidden; i++ {
		if len(s.InputWeights[i]) != s.StepSize || len(s.RecurrentWeights[i]) != hidden {
			return fmt.Errorf("%w: %s: hidden row %d has wrong width", ErrInvalidArtifact, name, i)
		}
	}
	return nil
}

// ArtifactLoader supplies trained parameters to adapters
type ArtifactLoader interface {
	Load(ctx context.Context, name string) (*Artifact, error)
}

// FileArtifactLoader reads <dir>/<name>.json
type FileArtifactLoader struct {
	dir string
}

// NewFileArtifactLoader creates a loader rooted at dir
func NewFileArtifactLoader(dir string) *FileArtifactLoader {
	return &FileArtifactLoader{dir: dir}
}

// Load reads and validates an artifact
func (l *FileArtifactLoader) Load(ctx context.Context, name string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(l.dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, name, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}
	if artifact.Name == "" {
		artifact.Name = name
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
