package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// SequenceModel runs an Elman recurrent cell over a window of historical steps.
// Steps whose presence flag is off are skipped, and confidence is scaled by the
// share of the window that carried history.
type SequenceModel struct {
	baseAdapter
	steps    int
	stepSize int
	presence int
	wx       *mat.Dense
	wh       *mat.Dense
	bh       *mat.VecDense
	wo       *mat.VecDense
	bo       float64
}

// NewSequenceModel builds a sequence adapter from an artifact
func NewSequenceModel(a *Artifact) (*SequenceModel, error) {
	s := a.Sequence
	if s == nil {
		return nil, fmt.Errorf("%w: %s: missing sequence params", ErrInvalidArtifact, a.Name)
	}

	hidden := len(s.HiddenBias)
	m := &SequenceModel{
		steps:    s.Steps,
		stepSize: s.StepSize,
		presence: s.PresenceFeature,
		wx:       mat.NewDense(hidden, s.StepSize, flatten(s.InputWeights)),
		wh:       mat.NewDense(hidden, hidden, flatten(s.RecurrentWeights)),
		bh:       mat.NewVecDense(hidden, append([]float64(nil), s.HiddenBias...)),
		wo:       mat.NewVecDense(hidden, append([]float64(nil), s.OutputWeights...)),
		bo:       s.OutputBias,
	}
	m.init(a)
	return m, nil
}

// Predict consumes the window oldest step first
func (m *SequenceModel) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	started := time.Now()
	x, err := m.prepare(ctx, features)
	if err != nil {
		return nil, err
	}

	hidden, _ := m.wx.Dims()
	h := mat.NewVecDense(hidden, nil)
	var firstLogit, lastLogit float64
	used := 0

	for t := 0; t < m.steps; t++ {
		base := t * m.stepSize
		// presence is read before scaling
		if m.presence >= 0 && features[base+m.presence] < 0.5 {
			continue
		}

		step := mat.NewVecDense(m.stepSize, x[base:base+m.stepSize])
		var next, recurrent mat.VecDense
		next.MulVec(m.wx, step)
		recurrent.MulVec(m.wh, h)
		next.AddVec(&next, &recurrent)
		next.AddVec(&next, m.bh)
		for i := 0; i < next.Len(); i++ {
			next.SetVec(i, math.Tanh(next.AtVec(i)))
		}
		h = &next

		logit := mat.Dot(m.wo, h) + m.bo
		if used == 0 {
			firstLogit = logit
		}
		lastLogit = logit
		used++
	}

	if used == 0 {
		return m.output(sigmoid(m.bo), 0, models.SequenceDetail{FinalLogit: m.bo}, started)
	}

	p := sigmoid(lastLogit)
	fill := float64(used) / float64(m.steps)
	detail := models.SequenceDetail{
		StepsUsed:  used,
		FillRatio:  fill,
		Momentum:   lastLogit - firstLogit,
		FinalLogit: lastLogit,
	}
	return m.output(p, distanceConfidence(p)*fill, detail, started)
}

func flatten(rows [][]float64) []float64 {
	var out []float64
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
