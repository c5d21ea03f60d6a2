package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskProfile holds a user's bankroll and the limits they configured
type RiskProfile struct {
	UserID               string    `db:"user_id" json:"user_id" validate:"required"`
	Bankroll             float64   `db:"bankroll" json:"bankroll" validate:"gt=0"`
	StartingBankroll     float64   `db:"starting_bankroll" json:"starting_bankroll" validate:"gt=0"`
	MaxBetPercent        float64   `db:"max_bet_percent" json:"max_bet_percent" validate:"gt=0,lte=100"`
	MaxDailyLossPercent  float64   `db:"max_daily_loss_percent" json:"max_daily_loss_percent" validate:"gt=0,lte=100"`
	MaxWeeklyLossPercent float64   `db:"max_weekly_loss_percent" json:"max_weekly_loss_percent" validate:"gt=0,lte=100"`
	StopLossEnabled      bool      `db:"stop_loss_enabled" json:"stop_loss_enabled"`
	KellyMultiplier      float64   `db:"kelly_multiplier" json:"kelly_multiplier" validate:"gt=0,lte=1"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// RiskTier classifies a proposed bet
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Decision is the action a recommendation asks the caller to take
type Decision string

const (
	DecisionProceed Decision = "proceed"
	DecisionReduce  Decision = "reduce"
	DecisionSkip    Decision = "skip"
)

// BetRecommendation is the outcome of a single bet evaluation
type BetRecommendation struct {
	UserID          string   `json:"user_id"`
	GameID          string   `json:"game_id"`
	Pattern         string   `json:"pattern"`
	OriginalStake   float64  `json:"original_stake"`
	AdjustedStake   float64  `json:"adjusted_stake"`
	KellyStake      float64  `json:"kelly_stake"`
	BankrollPercent float64  `json:"bankroll_percent"`
	RiskTier        RiskTier `json:"risk_tier"`
	Warnings        []string `json:"warnings"`
	Decision        Decision `json:"decision"`
	Reason          string   `json:"reason"`
}

// BetOutcome is the settled state of a bet
type BetOutcome string

const (
	OutcomeWin  BetOutcome = "win"
	OutcomeLoss BetOutcome = "loss"
	OutcomePush BetOutcome = "push"
)

// BetResult reports a settled bet back to the risk manager
type BetResult struct {
	BetID     string     `json:"bet_id" validate:"required"`
	UserID    string     `json:"user_id" validate:"required"`
	GameID    string     `json:"game_id"`
	Pattern   string     `json:"pattern"`
	Stake     float64    `json:"stake" validate:"gt=0"`
	Odds      string     `json:"odds" validate:"required"`
	Outcome   BetOutcome `json:"outcome" validate:"required,oneof=win loss push"`
	SettledAt time.Time  `json:"settled_at"`
}

// AlertKind names what a risk alert is about
type AlertKind string

const (
	AlertDrawdown           AlertKind = "drawdown"
	AlertLosingStreak       AlertKind = "losing_streak"
	AlertOverexposure       AlertKind = "overexposure"
	AlertPatternDegradation AlertKind = "pattern_degradation"
)

// AlertSeverity grades a risk alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// RiskAlert is appended to a user's alert list and handed to the notification sink
type RiskAlert struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	Kind      AlertKind     `json:"kind"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Action    string        `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
}

// PortfolioHealth is the coarse grade of a user's bankroll trajectory
type PortfolioHealth string

const (
	HealthExcellent PortfolioHealth = "excellent"
	HealthGood      PortfolioHealth = "good"
	HealthFair      PortfolioHealth = "fair"
	HealthPoor      PortfolioHealth = "poor"
	HealthCritical  PortfolioHealth = "critical"
)

// PortfolioMetrics are the numbers behind a portfolio analysis
type PortfolioMetrics struct {
	Bankroll          float64 `json:"bankroll"`
	StartingBankroll  float64 `json:"starting_bankroll"`
	PeakBankroll      float64 `json:"peak_bankroll"`
	ROI               float64 `json:"roi"`
	Drawdown          float64 `json:"drawdown"`
	PeakDrawdown      float64 `json:"peak_drawdown"`
	WinRate           float64 `json:"win_rate"`
	TotalBets         int     `json:"total_bets"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	DailyPnL          float64 `json:"daily_pnl"`
	WeeklyPnL         float64 `json:"weekly_pnl"`
	ReturnVolatility  float64 `json:"return_volatility"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	OpenExposure      float64 `json:"open_exposure"`
	PendingAlerts     int     `json:"pending_alerts"`
}

// PortfolioAnalysis is returned by the portfolio analysis contract
type PortfolioAnalysis struct {
	UserID          string           `json:"user_id"`
	Health          PortfolioHealth  `json:"health"`
	Metrics         PortfolioMetrics `json:"metrics"`
	Recommendations []string         `json:"recommendations"`
	RiskScore       float64          `json:"risk_score"`
	ProfileDefault  bool             `json:"profile_default"`
}
