package models

import "time"

// Sport identifies the league a game belongs to
type Sport string

const (
	SportNFL Sport = "nfl"
	SportNBA Sport = "nba"
	SportMLB Sport = "mlb"
	SportNHL Sport = "nhl"
)

// GameResult is one completed game from a team's point of view
type GameResult struct {
	Won           bool    `json:"won"`
	PointsFor     float64 `json:"points_for"`
	PointsAgainst float64 `json:"points_against"`
}

// TeamContext holds the historical aggregates supplied for one side of a game.
// Pointer fields are optional; the feature extractor substitutes neutral priors.
type TeamContext struct {
	TeamID        string       `json:"team_id"`
	Name          string       `json:"name"`
	GamesPlayed   int          `json:"games_played"`
	Wins          int          `json:"wins"`
	PointsFor     float64      `json:"points_for"`
	PointsAgainst float64      `json:"points_against"`
	RecentGames   []GameResult `json:"recent_games,omitempty"` // most recent last
	RestDays      *int         `json:"rest_days,omitempty"`
	BackToBack    bool         `json:"back_to_back"`
	TravelMiles   *float64     `json:"travel_miles,omitempty"`
	Injuries      *int         `json:"injuries,omitempty"`
	Sentiment     *float64     `json:"sentiment,omitempty"`
	PassHeavy     bool         `json:"pass_heavy"`
}

// Weather conditions at kickoff
type Weather struct {
	TemperatureF  *float64 `json:"temperature_f,omitempty"`
	WindMph       *float64 `json:"wind_mph,omitempty"`
	Precipitation bool     `json:"precipitation"`
	Indoor        bool     `json:"indoor"`
}

// PlayerAggregates summarises recent per-player scoring for the matchup
type PlayerAggregates struct {
	PointsPerGame []float64 `json:"points_per_game"`
}

// Situation carries the boolean and contextual flags the pattern booster reads
type Situation struct {
	RevengeGame    bool `json:"revenge_game"`
	Primetime      bool `json:"primetime"`
	Divisional     bool `json:"divisional"`
	HomeIsUnderdog bool `json:"home_is_underdog"`
}

// GameContext is the read-only input for a single prediction request
type GameContext struct {
	GameID    string            `json:"game_id" validate:"required"`
	Sport     Sport             `json:"sport" validate:"required"`
	StartTime time.Time         `json:"start_time"`
	Home      TeamContext       `json:"home"`
	Away      TeamContext       `json:"away"`
	Weather   *Weather          `json:"weather,omitempty"`
	Players   *PlayerAggregates `json:"players,omitempty"`
	Situation Situation         `json:"situation"`
}
