package ensemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/features"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// reportEpsilon keeps a factor sitting exactly on the threshold out of the report
const reportEpsilon = 1e-9

// Factor is one situational multiplier after bounding
type Factor struct {
	Name       string
	Multiplier float64
}

// Label renders the factor for explanations, e.g. "Revenge game (+15%)"
func (f Factor) Label() string {
	return fmt.Sprintf("%s (%+.0f%%)", f.Name, (f.Multiplier-1)*100)
}

// PatternBooster derives multiplicative adjustments from situational flags.
// It never looks at model outputs.
type PatternBooster struct {
	cfg config.PatternConfig
}

// NewPatternBooster creates a booster with the configured factor values and bounds
func NewPatternBooster(cfg config.PatternConfig) *PatternBooster {
	return &PatternBooster{cfg: cfg}
}

// Factors returns every applicable factor, each clamped to [MinFactor, MaxFactor]
func (b *PatternBooster) Factors(game models.GameContext) []Factor {
	var out []Factor
	add := func(name string, m float64) {
		if m == 1 {
			return
		}
		out = append(out, Factor{Name: name, Multiplier: b.bound(m)})
	}

	s := game.Situation
	if s.RevengeGame {
		add("Revenge game", b.cfg.RevengeGame)
	}

	if advantage := features.RestDays(game.Home) - features.RestDays(game.Away); advantage != 0 {
		add("Rest advantage", 1+b.cfg.RestPerDay*float64(advantage))
	}

	if s.Primetime {
		add("Primetime", b.cfg.Primetime)
	}

	if b.badWeather(game.Weather) {
		if game.Home.PassHeavy && !game.Away.PassHeavy {
			add("Bad weather passing", b.cfg.BadWeatherPassing)
		} else if game.Away.PassHeavy && !game.Home.PassHeavy {
			// hurts the visitor, so it helps the home side
			add("Bad weather passing (away)", 1/b.cfg.BadWeatherPassing)
		}
	}

	if game.Home.BackToBack && !game.Away.BackToBack {
		add("Back-to-back", b.cfg.BackToBack)
	} else if game.Away.BackToBack && !game.Home.BackToBack {
		add("Back-to-back (away)", 1/b.cfg.BackToBack)
	}

	if s.Divisional && s.HomeIsUnderdog {
		add("Divisional underdog", b.cfg.DivisionalUnderdog)
	}

	return out
}

// Evaluate multiplies every factor into one boost and lists the ones worth reporting,
// largest adjustment first
func (b *PatternBooster) Evaluate(game models.GameContext) (float64, []string) {
	factors := b.Factors(game)

	boost := 1.0
	var reported []Factor
	for _, f := range factors {
		boost *= f.Multiplier
		if math.Abs(f.Multiplier-1) > b.cfg.ReportThreshold+reportEpsilon {
			reported = append(reported, f)
		}
	}

	sort.SliceStable(reported, func(i, j int) bool {
		return math.Abs(reported[i].Multiplier-1) > math.Abs(reported[j].Multiplier-1)
	})

	labels := make([]string, 0, len(reported))
	for _, f := range reported {
		labels = append(labels, f.Label())
	}
	return boost, labels
}

func (b *PatternBooster) badWeather(w *models.Weather) bool {
	if w == nil || w.Indoor {
		return false
	}
	if w.Precipitation {
		return true
	}
	return w.WindMph != nil && *w.WindMph >= b.cfg.BadWeatherWindMph
}

func (b *PatternBooster) bound(m float64) float64 {
	return math.Max(b.cfg.MinFactor, math.Min(b.cfg.MaxFactor, m))
}
