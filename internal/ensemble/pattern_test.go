package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/models"
)

func testPatternConfig() config.PatternConfig {
	return config.PatternConfig{
		MinFactor:          0.8,
		MaxFactor:          1.2,
		ReportThreshold:    0.05,
		RevengeGame:        1.15,
		RestPerDay:         0.02,
		Primetime:          1.05,
		BadWeatherPassing:  0.88,
		BadWeatherWindMph:  15,
		BackToBack:         0.94,
		DivisionalUnderdog: 1.06,
	}
}

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64 { return &v }

// TestPatternBoosterNeutralGame tests that no flags yield a boost of exactly 1
func TestPatternBoosterNeutralGame(t *testing.T) {
	booster := NewPatternBooster(testPatternConfig())

	boost, factors := booster.Evaluate(models.GameContext{GameID: "g1", Sport: models.SportNFL})
	assert.Equal(t, 1.0, boost)
	assert.Empty(t, factors)
}

// TestPatternBoosterFactors tests individual factor values and reporting
func TestPatternBoosterFactors(t *testing.T) {
	booster := NewPatternBooster(testPatternConfig())

	tests := []struct {
		name      string
		game      models.GameContext
		wantBoost float64
		wantTop   []string
	}{
		{
			name:      "revenge game",
			game:      models.GameContext{Situation: models.Situation{RevengeGame: true}},
			wantBoost: 1.15,
			wantTop:   []string{"Revenge game (+15%)"},
		},
		{
			name:      "primetime is below the report threshold",
			game:      models.GameContext{Situation: models.Situation{Primetime: true}},
			wantBoost: 1.05,
			wantTop:   []string{},
		},
		{
			name: "rest advantage",
			game: models.GameContext{
				Home: models.TeamContext{RestDays: intPtr(7)},
				Away: models.TeamContext{RestDays: intPtr(3)},
			},
			wantBoost: 1.08,
			wantTop:   []string{"Rest advantage (+8%)"},
		},
		{
			name: "bad weather on a pass-heavy home team",
			game: models.GameContext{
				Home:    models.TeamContext{PassHeavy: true},
				Weather: &models.Weather{WindMph: floatPtr(18)},
			},
			wantBoost: 0.88,
			wantTop:   []string{"Bad weather passing (-12%)"},
		},
		{
			name: "indoor games ignore weather",
			game: models.GameContext{
				Home:    models.TeamContext{PassHeavy: true},
				Weather: &models.Weather{Precipitation: true, Indoor: true},
			},
			wantBoost: 1,
			wantTop:   []string{},
		},
		{
			name:      "home back-to-back",
			game:      models.GameContext{Home: models.TeamContext{BackToBack: true}},
			wantBoost: 0.94,
			wantTop:   []string{"Back-to-back (-6%)"},
		},
		{
			name:      "divisional underdog",
			game:      models.GameContext{Situation: models.Situation{Divisional: true, HomeIsUnderdog: true}},
			wantBoost: 1.06,
			wantTop:   []string{"Divisional underdog (+6%)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boost, top := booster.Evaluate(tt.game)
			assert.InDelta(t, tt.wantBoost, boost, 1e-9)
			assert.Equal(t, tt.wantTop, top)
		})
	}
}

// TestPatternBoosterBounds tests that every factor stays within its range
func TestPatternBoosterBounds(t *testing.T) {
	cfg := testPatternConfig()
	cfg.RevengeGame = 1.6
	cfg.RestPerDay = 0.2
	booster := NewPatternBooster(cfg)

	game := models.GameContext{
		Home:      models.TeamContext{RestDays: intPtr(0)},
		Away:      models.TeamContext{RestDays: intPtr(14)},
		Situation: models.Situation{RevengeGame: true},
	}

	factors := booster.Factors(game)
	require.Len(t, factors, 2)
	for _, f := range factors {
		assert.GreaterOrEqual(t, f.Multiplier, cfg.MinFactor, f.Name)
		assert.LessOrEqual(t, f.Multiplier, cfg.MaxFactor, f.Name)
	}
	assert.Equal(t, 1.2, factors[0].Multiplier)
	assert.Equal(t, 0.8, factors[1].Multiplier)
}

// TestPatternBoosterOrdersByMagnitude tests that top factors are largest first
func TestPatternBoosterOrdersByMagnitude(t *testing.T) {
	booster := NewPatternBooster(testPatternConfig())
	game := models.GameContext{
		Home:      models.TeamContext{BackToBack: true, PassHeavy: true},
		Weather:   &models.Weather{Precipitation: true},
		Situation: models.Situation{RevengeGame: true, Divisional: true, HomeIsUnderdog: true},
	}

	boost, top := booster.Evaluate(game)
	assert.InDelta(t, 1.15*0.88*0.94*1.06, boost, 1e-9)
	assert.Equal(t, []string{
		"Revenge game (+15%)",
		"Bad weather passing (-12%)",
		"Back-to-back (-6%)",
		"Divisional underdog (+6%)",
	}, top)
}
