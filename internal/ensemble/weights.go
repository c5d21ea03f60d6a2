// Package ensemble combines model outputs into one calibrated prediction.
package ensemble

import (
	"strings"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// DefaultSport is the weight-table row used when a sport has no entry of its own
const DefaultSport = "default"

// WeightTable holds base weights keyed by sport then model name or family
type WeightTable struct {
	rows map[string]map[string]float64
}

// NewWeightTable copies the configured rows
func NewWeightTable(rows map[string]map[string]float64) *WeightTable {
	t := &WeightTable{rows: make(map[string]map[string]float64, len(rows))}
	for sport, entries := range rows {
		row := make(map[string]float64, len(entries))
		for name, w := range entries {
			row[name] = w
		}
		t.rows[strings.ToLower(sport)] = row
	}
	return t
}

// BaseWeight looks up the model in the sport row, then the default row. Within a
// row an entry for the model name wins over one for its family. Unlisted models
// weigh 1.
func (t *WeightTable) BaseWeight(sport models.Sport, model string, family models.ModelFamily) float64 {
	for _, key := range []string{strings.ToLower(string(sport)), DefaultSport} {
		row, ok := t.rows[key]
		if !ok {
			continue
		}
		if w, ok := row[model]; ok {
			return w
		}
		if w, ok := row[string(family)]; ok {
			return w
		}
	}
	return 1
}

// NormalizedWeights returns the weight each responding model contributes, summing to 1.
// Weights are baseWeight x confidence. When every such weight is zero the base weights
// are used alone, and when those are zero too every model counts equally.
func (t *WeightTable) NormalizedWeights(sport models.Sport, outputs map[string]models.ModelOutput) map[string]float64 {
	weights := make(map[string]float64, len(outputs))
	if len(outputs) == 0 {
		return weights
	}

	var sum float64
	for name, out := range outputs {
		w := t.BaseWeight(sport, name, out.Family) * out.Confidence
		weights[name] = w
		sum += w
	}

	if sum == 0 {
		for name, out := range outputs {
			w := t.BaseWeight(sport, name, out.Family)
			weights[name] = w
			sum += w
		}
	}

	if sum == 0 {
		for name := range outputs {
			weights[name] = 1
		}
		sum = float64(len(outputs))
	}

	for name := range weights {
		weights[name] /= sum
	}
	return weights
}
