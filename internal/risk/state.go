package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/fantasy-edge/internal/models"
)

type patternStats struct {
	wins     int
	total    int
	degraded bool
}

func (p *patternStats) winRate() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.wins) / float64(p.total)
}

// userState is one user's ledger. Every field is guarded by mu, and a user's
// evaluations and settlements take it in turn.
type userState struct {
	mu sync.Mutex

	initialized bool
	bankroll    decimal.Decimal
	starting    decimal.Decimal
	peak        decimal.Decimal

	day       string
	isoYear   int
	isoWeek   int
	dayStart  decimal.Decimal
	weekStart decimal.Decimal
	dailyPnL  decimal.Decimal
	weeklyPnL decimal.Decimal

	openBets     map[string]decimal.Decimal
	openExposure decimal.Decimal
	settled      map[string]bool

	consecutiveLosses int
	wins              int
	losses            int
	pushes            int
	returns           []float64
	peakDrawdown      float64
	drawdownLevel     models.AlertSeverity

	patterns map[string]*patternStats
	alerts   []models.RiskAlert
}

func newUserState() *userState {
	return &userState{
		openBets: make(map[string]decimal.Decimal),
		settled:  make(map[string]bool),
		patterns: make(map[string]*patternStats),
	}
}

// ensure seeds the ledger from the profile on first use and rolls the loss periods
func (s *userState) ensure(profile *models.RiskProfile, now time.Time) {
	if !s.initialized {
		s.bankroll = decimal.NewFromFloat(profile.Bankroll)
		s.starting = s.bankroll
		if profile.StartingBankroll > 0 {
			s.starting = decimal.NewFromFloat(profile.StartingBankroll)
		}
		s.peak = decimal.Max(s.bankroll, s.starting)
		s.initialized = true
	}
	s.roll(now)
}

// roll resets the daily figures at UTC midnight and the weekly ones on a new ISO week
func (s *userState) roll(now time.Time) {
	now = now.UTC()
	if day := now.Format("2006-01-02"); day != s.day {
		s.day = day
		s.dayStart = s.bankroll
		s.dailyPnL = decimal.Zero
	}
	if year, week := now.ISOWeek(); year != s.isoYear || week != s.isoWeek {
		s.isoYear, s.isoWeek = year, week
		s.weekStart = s.bankroll
		s.weeklyPnL = decimal.Zero
	}
}

func (s *userState) dailyLoss() decimal.Decimal {
	if s.dailyPnL.IsNegative() {
		return s.dailyPnL.Neg()
	}
	return decimal.Zero
}

func (s *userState) weeklyLoss() decimal.Decimal {
	if s.weeklyPnL.IsNegative() {
		return s.weeklyPnL.Neg()
	}
	return decimal.Zero
}

func (s *userState) dailyLimit(profile *models.RiskProfile) decimal.Decimal {
	return s.dayStart.Mul(decimal.NewFromFloat(profile.MaxDailyLossPercent)).Div(hundred)
}

func (s *userState) weeklyLimit(profile *models.RiskProfile) decimal.Decimal {
	return s.weekStart.Mul(decimal.NewFromFloat(profile.MaxWeeklyLossPercent)).Div(hundred)
}

// stopLossTripped reports whether today's realized loss has reached the daily limit
func (s *userState) stopLossTripped(profile *models.RiskProfile) bool {
	if !profile.StopLossEnabled {
		return false
	}
	limit := s.dailyLimit(profile)
	return limit.IsPositive() && s.dailyLoss().GreaterThanOrEqual(limit)
}

// drawdown is the decline from the starting bankroll, never negative
func (s *userState) drawdown() float64 {
	if !s.starting.IsPositive() {
		return 0
	}
	d := s.starting.Sub(s.bankroll).Div(s.starting).InexactFloat64()
	if d < 0 {
		return 0
	}
	return d
}

func (s *userState) drawdownFromPeak() float64 {
	if !s.peak.IsPositive() {
		return 0
	}
	return s.peak.Sub(s.bankroll).Div(s.peak).InexactFloat64()
}

func (s *userState) pattern(name string) *patternStats {
	p, ok := s.patterns[name]
	if !ok {
		p = &patternStats{}
		s.patterns[name] = p
	}
	return p
}
