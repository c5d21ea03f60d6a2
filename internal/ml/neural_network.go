package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// NeuralNetwork is a fixed-width feed-forward network with a sigmoid output unit.
// The activation declared on the output layer is ignored; its single unit is the logit.
type NeuralNetwork struct {
	baseAdapter
	layers []denseLayer
}

type denseLayer struct {
	weights    *mat.Dense
	biases     *mat.VecDense
	activation string
}

// NewNeuralNetwork builds a network adapter from an artifact
func NewNeuralNetwork(a *Artifact) (*NeuralNetwork, error) {
	if a.Network == nil {
		return nil, fmt.Errorf("%w: %s: missing network params", ErrInvalidArtifact, a.Name)
	}

	nn := &NeuralNetwork{}
	for _, l := range a.Network.Layers {
		rows, cols := len(l.Weights), len(l.Weights[0])
		data := make([]float64, 0, rows*cols)
		for _, row := range l.Weights {
			data = append(data, row...)
		}
		biases := make([]float64, rows)
		copy(biases, l.Biases)

		nn.layers = append(nn.layers, denseLayer{
			weights:    mat.NewDense(rows, cols, data),
			biases:     mat.NewVecDense(rows, biases),
			activation: l.Activation,
		})
	}
	nn.init(a)
	return nn, nil
}

// Predict runs a forward pass
func (n *NeuralNetwork) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	started := time.Now()
	x, err := n.prepare(ctx, features)
	if err != nil {
		return nil, err
	}

	logit := n.forward(x)
	p := sigmoid(logit)
	return n.output(p, distanceConfidence(p), models.NeuralNetDetail{Logit: logit}, started)
}

func (n *NeuralNetwork) forward(x []float64) float64 {
	v := mat.NewVecDense(len(x), x)
	last := len(n.layers) - 1
	for i, l := range n.layers {
		rows, _ := l.weights.Dims()
		out := mat.NewVecDense(rows, nil)
		out.MulVec(l.weights, v)
		out.AddVec(out, l.biases)
		if i != last {
			activate(out, l.activation)
		}
		v = out
	}
	return v.AtVec(0)
}

func activate(v *mat.VecDense, activation string) {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		switch activation {
		case ActivationReLU:
			x = math.Max(0, x)
		case ActivationTanh:
			x = math.Tanh(x)
		case ActivationSigmoid:
			x = sigmoid(x)
		}
		v.SetVec(i, x)
	}
}
