package features

import (
	"time"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// Neutral priors used whenever the context omits a field.
const (
	DefaultWinRate      = 0.5
	DefaultRecentForm   = 0.5
	DefaultRestDays     = 3
	DefaultTemperatureF = 72.0
	DefaultWindMph      = 5.0
	DefaultPlayerMean   = 10.0
	DefaultPlayerSum    = 100.0
	DefaultKickoffHour  = 19

	// MinGamesForRates is the history a team needs before its own rates replace the priors
	MinGamesForRates = 5
	// RecentFormGames is how many of the latest results feed the recent-form feature
	RecentFormGames = 5
	// MaxRestDays bounds rest so long layoffs do not dominate the schedule vector
	MaxRestDays = 14
)

type sportScale struct {
	// typical points per game, used when a team has too little history
	avgPoints float64
	// normalisation divisor for points and margins
	scale float64
}

var sportScales = map[models.Sport]sportScale{
	models.SportNFL: {avgPoints: 22, scale: 40},
	models.SportNBA: {avgPoints: 112, scale: 140},
	models.SportMLB: {avgPoints: 4.5, scale: 10},
	models.SportNHL: {avgPoints: 3, scale: 6},
}

var defaultScale = sportScale{avgPoints: 20, scale: 40}

func scaleFor(sport models.Sport) sportScale {
	if s, ok := sportScales[sport]; ok {
		return s
	}
	return defaultScale
}

// WinRate returns the team's season win rate, or the prior below MinGamesForRates
func WinRate(t models.TeamContext) float64 {
	if t.GamesPlayed < MinGamesForRates {
		return DefaultWinRate
	}
	return clamp(float64(t.Wins)/float64(t.GamesPlayed), 0, 1)
}

// RecentForm returns the win share over the latest RecentFormGames results
func RecentForm(t models.TeamContext) float64 {
	if len(t.RecentGames) == 0 {
		return DefaultRecentForm
	}
	games := t.RecentGames
	if len(games) > RecentFormGames {
		games = games[len(games)-RecentFormGames:]
	}
	wins := 0
	for _, g := range games {
		if g.Won {
			wins++
		}
	}
	return float64(wins) / float64(len(games))
}

// RestDays returns the team's rest days, bounded to [0, MaxRestDays]
func RestDays(t models.TeamContext) int {
	if t.RestDays == nil {
		return DefaultRestDays
	}
	d := *t.RestDays
	if d < 0 {
		return 0
	}
	if d > MaxRestDays {
		return MaxRestDays
	}
	return d
}

// Streak returns the current run length: positive for wins, negative for losses
func Streak(t models.TeamContext) int {
	streak := 0
	for i := len(t.RecentGames) - 1; i >= 0; i-- {
		g := t.RecentGames[i]
		switch {
		case streak == 0 && g.Won:
			streak = 1
		case streak == 0:
			streak = -1
		case streak > 0 && g.Won:
			streak++
		case streak < 0 && !g.Won:
			streak--
		default:
			return streak
		}
	}
	return streak
}

func avgPointsFor(t models.TeamContext, s sportScale) float64 {
	if t.GamesPlayed < MinGamesForRates {
		return s.avgPoints
	}
	return t.PointsFor / float64(t.GamesPlayed)
}

func avgPointsAgainst(t models.TeamContext, s sportScale) float64 {
	if t.GamesPlayed < MinGamesForRates {
		return s.avgPoints
	}
	return t.PointsAgainst / float64(t.GamesPlayed)
}

func kickoff(start time.Time) (hour int, weekday int, month int) {
	if start.IsZero() {
		return DefaultKickoffHour, int(time.Sunday), int(time.October)
	}
	start = start.UTC()
	return start.Hour(), int(start.Weekday()), int(start.Month())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
