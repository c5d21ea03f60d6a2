package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64   { return &v }

func sampleGame() models.GameContext {
	return models.GameContext{
		GameID:    "g-1",
		Sport:     models.SportNBA,
		StartTime: time.Date(2024, time.March, 14, 18, 0, 0, 0, time.UTC),
		Home: models.TeamContext{
			Name:          "Home",
			GamesPlayed:   20,
			Wins:          14,
			PointsFor:     2300,
			PointsAgainst: 2200,
			RecentGames: []models.GameResult{
				{Won: false, PointsFor: 100, PointsAgainst: 110},
				{Won: true, PointsFor: 120, PointsAgainst: 100},
				{Won: true, PointsFor: 115, PointsAgainst: 105},
				{Won: true, PointsFor: 118, PointsAgainst: 112},
				{Won: false, PointsFor: 101, PointsAgainst: 104},
				{Won: true, PointsFor: 122, PointsAgainst: 99},
			},
			RestDays:  intPtr(2),
			Injuries:  intPtr(7),
			Sentiment: floatPtr(0.5),
		},
		Away: models.TeamContext{
			Name:          "Away",
			GamesPlayed:   20,
			Wins:          8,
			PointsFor:     2180,
			PointsAgainst: 2260,
			RecentGames: []models.GameResult{
				{Won: false, PointsFor: 99, PointsAgainst: 108},
			},
			BackToBack: true,
		},
		Weather: &models.Weather{TemperatureF: floatPtr(50), WindMph: floatPtr(12)},
		Players: &models.PlayerAggregates{PointsPerGame: []float64{20, 30, 10}},
	}
}

func TestGameVector(t *testing.T) {
	e := NewExtractor(0)
	v := e.GameVector(sampleGame())

	require.Len(t, v, GameVectorSize)
	assert.InDelta(t, 0.7, v[0], 1e-9)
	assert.InDelta(t, 0.4, v[1], 1e-9)
	assert.InDelta(t, 115.0/140, v[2], 1e-9)
	// last five of six results: 4 wins
	assert.InDelta(t, 0.8, v[6], 1e-9)
	assert.InDelta(t, 0.0, v[7], 1e-9)
	assert.InDelta(t, 0.3, v[8], 1e-9)
	assert.InDelta(t, 1.0, v[11], 1e-9)
	assert.InDelta(t, 0.3, v[12], 1e-9)
	assert.InDelta(t, 1.0, v[13], 1e-9, "injuries are capped")
	assert.InDelta(t, 0.0, v[14], 1e-9)
	assert.InDelta(t, 0.5, v[15], 1e-9)
	assert.InDelta(t, 0.4, v[16], 1e-9)
	assert.InDelta(t, math.Tanh(0.5), v[17], 1e-9)
	assert.InDelta(t, 18.0/24, v[19], 1e-9)
	assert.InDelta(t, 4.0/7, v[20], 1e-9)
	assert.InDelta(t, 3.0/12, v[21], 1e-9)
	assert.Equal(t, 1.0, v[22])
}

// TestOffensiveVectorCarriesRecentForm tests the form slots between differentials and player aggregates
func TestOffensiveVectorCarriesRecentForm(t *testing.T) {
	v := NewExtractor(0).OffensiveVector(sampleGame())

	require.Len(t, v, OffensiveVectorSize)
	assert.InDelta(t, 0.8, v[6], 1e-9)
	assert.InDelta(t, 0.0, v[7], 1e-9)
	assert.InDelta(t, 1.0, v[8], 1e-9)
	assert.InDelta(t, 0.3, v[9], 1e-9)
}

// TestScheduleVectorCarriesKickoff tests hour and weekday ahead of the home advantage constant
func TestScheduleVectorCarriesKickoff(t *testing.T) {
	v := NewExtractor(0).ScheduleVector(sampleGame())

	require.Len(t, v, ScheduleVectorSize)
	assert.Equal(t, 1.0, v[4], "away back-to-back")
	assert.InDelta(t, 18.0/24, v[6], 1e-9)
	// 2024-03-14 is a Thursday
	assert.InDelta(t, 4.0/7, v[7], 1e-9)
	assert.Equal(t, 1.0, v[8])

	empty := NewExtractor(0).ScheduleVector(models.GameContext{})
	assert.InDelta(t, float64(time.Sunday)/7, empty[7], 1e-9)
}

func TestExtractIsTotalOnEmptyContext(t *testing.T) {
	e := NewExtractor(4)
	sets := e.Extract(models.GameContext{GameID: "empty"})

	for set, v := range sets {
		assert.Len(t, v, e.Size(set), "set %s", set)
		for i, f := range v {
			assert.False(t, math.IsNaN(f) || math.IsInf(f, 0), "set %s index %d", set, i)
		}
	}

	game := sets[models.FeatureSetGame]
	assert.Equal(t, DefaultWinRate, game[0])
	assert.Equal(t, DefaultRecentForm, game[6])
	assert.InDelta(t, DefaultTemperatureF/100, game[15], 1e-9)
	assert.InDelta(t, DefaultWindMph/30, game[16], 1e-9)

	schedule := sets[models.FeatureSetSchedule]
	assert.InDelta(t, float64(DefaultRestDays)/7, schedule[0], 1e-9)
	assert.Equal(t, 0.0, schedule[2])
}

func TestWinRatePriorBelowMinimumHistory(t *testing.T) {
	team := models.TeamContext{GamesPlayed: 4, Wins: 4}
	assert.Equal(t, DefaultWinRate, WinRate(team))

	team.GamesPlayed, team.Wins = 5, 4
	assert.InDelta(t, 0.8, WinRate(team), 1e-9)
}

func TestIndoorWeatherIgnoresWind(t *testing.T) {
	game := sampleGame()
	game.Weather = &models.Weather{Indoor: true, WindMph: floatPtr(25), TemperatureF: floatPtr(20)}
	v := NewExtractor(0).GameVector(game)
	assert.InDelta(t, DefaultTemperatureF/100, v[15], 1e-9)
	assert.Equal(t, 0.0, v[16])
}

func TestSequenceWindowRightAligned(t *testing.T) {
	e := NewExtractor(3)
	v := e.SequenceWindow(sampleGame())
	require.Len(t, v, 3*SequenceStepWidth)

	// away has one game, home has six: every step present
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, v[i*SequenceStepWidth], "step %d present", i)
	}
	// away result sits on the latest step only
	assert.Equal(t, DefaultWinRate, v[0*SequenceStepWidth+3])
	assert.Equal(t, 0.0, v[2*SequenceStepWidth+3])
	assert.InDelta(t, -9.0/140, v[2*SequenceStepWidth+4], 1e-9)
	// home latest game was a 23 point win
	assert.Equal(t, 1.0, v[2*SequenceStepWidth+1])
	assert.InDelta(t, 23.0/140, v[2*SequenceStepWidth+2], 1e-9)
}

func TestSequenceWindowEmptyHistory(t *testing.T) {
	v := NewExtractor(5).SequenceWindow(models.GameContext{})
	for _, f := range v {
		assert.Equal(t, 0.0, f)
	}
}

func TestStreakAndRestDays(t *testing.T) {
	tests := []struct {
		name   string
		games  []models.GameResult
		streak int
	}{
		{"none", nil, 0},
		{"three wins", []models.GameResult{{Won: false}, {Won: true}, {Won: true}, {Won: true}}, 3},
		{"two losses", []models.GameResult{{Won: true}, {Won: false}, {Won: false}}, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.streak, Streak(models.TeamContext{RecentGames: tt.games}))
		})
	}

	assert.Equal(t, DefaultRestDays, RestDays(models.TeamContext{}))
	assert.Equal(t, MaxRestDays, RestDays(models.TeamContext{RestDays: intPtr(40)}))
	assert.Equal(t, 0, RestDays(models.TeamContext{RestDays: intPtr(-2)}))
}
