// Package features maps game context into the fixed-shape vectors each model family expects.
package features

import (
	"math"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// Vector sizes per feature set.
const (
	GameVectorSize      = 23
	OffensiveVectorSize = 10
	ScheduleVectorSize  = 9
	SequenceStepWidth   = 5
)

// DefaultSequenceLength is the number of historical steps in the sequence window
const DefaultSequenceLength = 5

// FeatureSets holds one vector per feature set for a single request
type FeatureSets map[models.FeatureSet]models.FeatureVector

// Extractor builds feature vectors from game context. It is stateless and safe
// for concurrent use; missing inputs fall back to the priors in defaults.go.
type Extractor struct {
	sequenceLength int
}

// NewExtractor creates an extractor with the given sequence window length
func NewExtractor(sequenceLength int) *Extractor {
	if sequenceLength <= 0 {
		sequenceLength = DefaultSequenceLength
	}
	return &Extractor{sequenceLength: sequenceLength}
}

// SequenceLength returns the number of steps in the sequence window
func (e *Extractor) SequenceLength() int {
	return e.sequenceLength
}

// Size returns the vector length produced for a feature set, or 0 if unknown
func (e *Extractor) Size(set models.FeatureSet) int {
	switch set {
	case models.FeatureSetGame:
		return GameVectorSize
	case models.FeatureSetOffensive:
		return OffensiveVectorSize
	case models.FeatureSetSchedule:
		return ScheduleVectorSize
	case models.FeatureSetSequence:
		return e.sequenceLength * SequenceStepWidth
	default:
		return 0
	}
}

// Extract builds every feature set for the game
func (e *Extractor) Extract(game models.GameContext) FeatureSets {
	return FeatureSets{
		models.FeatureSetGame:      e.GameVector(game),
		models.FeatureSetOffensive: e.OffensiveVector(game),
		models.FeatureSetSchedule:  e.ScheduleVector(game),
		models.FeatureSetSequence:  e.SequenceWindow(game),
	}
}

// GameVector builds the 23-feature matchup vector
func (e *Extractor) GameVector(game models.GameContext) models.FeatureVector {
	s := scaleFor(game.Sport)
	home, away := game.Home, game.Away

	homeWR, awayWR := WinRate(home), WinRate(away)
	playerMean, playerSum := playerAggregates(game.Players)
	temp, wind := weather(game.Weather)
	hour, weekday, month := kickoff(game.StartTime)

	return models.FeatureVector{
		homeWR,
		awayWR,
		avgPointsFor(home, s) / s.scale,
		avgPointsFor(away, s) / s.scale,
		avgPointsAgainst(home, s) / s.scale,
		avgPointsAgainst(away, s) / s.scale,
		RecentForm(home),
		RecentForm(away),
		homeWR - awayWR,
		pointDifferential(home, s),
		pointDifferential(away, s),
		playerMean / 20,
		playerSum / 200,
		injuries(home),
		injuries(away),
		temp / 100,
		wind / 30,
		sentiment(home),
		sentiment(away),
		float64(hour) / 24,
		float64(weekday) / 7,
		float64(month) / 12,
		1.0,
	}
}

// OffensiveVector builds the scoring-focused vector
func (e *Extractor) OffensiveVector(game models.GameContext) models.FeatureVector {
	s := scaleFor(game.Sport)
	home, away := game.Home, game.Away
	playerMean, playerSum := playerAggregates(game.Players)

	return models.FeatureVector{
		avgPointsFor(home, s) / s.scale,
		avgPointsFor(away, s) / s.scale,
		avgPointsAgainst(home, s) / s.scale,
		avgPointsAgainst(away, s) / s.scale,
		pointDifferential(home, s),
		pointDifferential(away, s),
		RecentForm(home),
		RecentForm(away),
		playerMean / 20,
		playerSum / 200,
	}
}

// ScheduleVector builds the rest and travel vector
func (e *Extractor) ScheduleVector(game models.GameContext) models.FeatureVector {
	home, away := game.Home, game.Away
	homeRest, awayRest := float64(RestDays(home)), float64(RestDays(away))
	hour, weekday, _ := kickoff(game.StartTime)

	travel := 0.0
	if away.TravelMiles != nil {
		travel = clamp(*away.TravelMiles/3000, 0, 1)
	}

	return models.FeatureVector{
		homeRest / 7,
		awayRest / 7,
		clamp((homeRest-awayRest)/7, -1, 1),
		boolFeature(home.BackToBack),
		boolFeature(away.BackToBack),
		travel,
		float64(hour) / 24,
		float64(weekday) / 7,
		1.0,
	}
}

// SequenceWindow builds the flattened historical window, oldest step first.
// Each step is [present, home won, home margin, away won, away margin]; steps
// without history on either side are zero with present = 0.
func (e *Extractor) SequenceWindow(game models.GameContext) models.FeatureVector {
	s := scaleFor(game.Sport)
	n := e.sequenceLength
	out := make(models.FeatureVector, n*SequenceStepWidth)

	homeSteps := lastN(game.Home.RecentGames, n)
	awaySteps := lastN(game.Away.RecentGames, n)

	for i := 0; i < n; i++ {
		h, hok := stepAt(homeSteps, n, i)
		a, aok := stepAt(awaySteps, n, i)
		if !hok && !aok {
			continue
		}
		base := i * SequenceStepWidth
		out[base] = 1
		if hok {
			out[base+1] = boolFeature(h.Won)
			out[base+2] = clamp((h.PointsFor-h.PointsAgainst)/s.scale, -1, 1)
		} else {
			out[base+1] = DefaultWinRate
		}
		if aok {
			out[base+3] = boolFeature(a.Won)
			out[base+4] = clamp((a.PointsFor-a.PointsAgainst)/s.scale, -1, 1)
		} else {
			out[base+3] = DefaultWinRate
		}
	}
	return out
}

func lastN(games []models.GameResult, n int) []models.GameResult {
	if len(games) > n {
		return games[len(games)-n:]
	}
	return games
}

// stepAt right-aligns games into a window of n steps so the latest game is the last step
func stepAt(games []models.GameResult, n, i int) (models.GameResult, bool) {
	offset := n - len(games)
	if i < offset {
		return models.GameResult{}, false
	}
	return games[i-offset], true
}

func pointDifferential(t models.TeamContext, s sportScale) float64 {
	if t.GamesPlayed < MinGamesForRates {
		return 0
	}
	return clamp((t.PointsFor-t.PointsAgainst)/float64(t.GamesPlayed)/s.scale, -1, 1)
}

func playerAggregates(p *models.PlayerAggregates) (mean, sum float64) {
	if p == nil || len(p.PointsPerGame) == 0 {
		return DefaultPlayerMean, DefaultPlayerSum
	}
	for _, v := range p.PointsPerGame {
		sum += v
	}
	return sum / float64(len(p.PointsPerGame)), sum
}

func weather(w *models.Weather) (temp, wind float64) {
	temp, wind = DefaultTemperatureF, DefaultWindMph
	if w == nil {
		return
	}
	if w.Indoor {
		return DefaultTemperatureF, 0
	}
	if w.TemperatureF != nil {
		temp = *w.TemperatureF
	}
	if w.WindMph != nil {
		wind = *w.WindMph
	}
	return
}

func injuries(t models.TeamContext) float64 {
	if t.Injuries == nil {
		return 0
	}
	return clamp(float64(*t.Injuries)/5, 0, 1)
}

func sentiment(t models.TeamContext) float64 {
	if t.Sentiment == nil {
		return 0
	}
	return math.Tanh(*t.Sentiment)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
