package risk

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// GetPortfolioAnalysis grades the user's bankroll trajectory. Unknown users are
// analysed against their profile, or the default one, without creating state.
func (m *Manager) GetPortfolioAnalysis(ctx context.Context, userID string) *models.PortfolioAnalysis {
	profile, isDefault := m.profile(ctx, userID)

	st, ok := m.lookup(userID)
	if !ok {
		st = newUserState()
	}
	st.mu.Lock()
	st.ensure(profile, m.now())
	pm := portfolioMetrics(st)
	dailyLimit := st.dailyLimit(profile).InexactFloat64()
	stopped := st.stopLossTripped(profile)
	st.mu.Unlock()

	score := m.riskScore(pm, dailyLimit)
	return &models.PortfolioAnalysis{
		UserID:          userID,
		Health:          healthFor(pm, score),
		Metrics:         pm,
		Recommendations: m.recommendations(pm, score, stopped, isDefault),
		RiskScore:       score,
		ProfileDefault:  isDefault,
	}
}

// portfolioMetrics snapshots the ledger. Called with st.mu held.
func portfolioMetrics(st *userState) models.PortfolioMetrics {
	bankroll := st.bankroll.InexactFloat64()
	starting := st.starting.InexactFloat64()

	pm := models.PortfolioMetrics{
		Bankroll:          bankroll,
		StartingBankroll:  starting,
		PeakBankroll:      st.peak.InexactFloat64(),
		Drawdown:          st.drawdown(),
		PeakDrawdown:      st.peakDrawdown,
		TotalBets:         st.wins + st.losses + st.pushes,
		ConsecutiveLosses: st.consecutiveLosses,
		DailyPnL:          st.dailyPnL.InexactFloat64(),
		WeeklyPnL:         st.weeklyPnL.InexactFloat64(),
		OpenExposure:      st.openExposure.InexactFloat64(),
		PendingAlerts:     len(st.alerts),
	}
	if starting > 0 {
		pm.ROI = (bankroll - starting) / starting
	}
	if decided := st.wins + st.losses; decided > 0 {
		pm.WinRate = float64(st.wins) / float64(decided)
	}
	if len(st.returns) > 1 {
		mean, std := stat.MeanStdDev(st.returns, nil)
		pm.ReturnVolatility = std
		if std > 0 {
			pm.SharpeRatio = mean / std
		}
	}
	return pm
}

// riskScore blends drawdown, losing streak, exposure and today's loss into 0..100
func (m *Manager) riskScore(pm models.PortfolioMetrics, dailyLimit float64) float64 {
	drawdown := 0.0
	if m.cfg.DrawdownCritical > 0 {
		drawdown = math.Min(1, pm.Drawdown/m.cfg.DrawdownCritical)
	}

	streak := 0.0
	if m.cfg.LosingStreak > 0 {
		streak = math.Min(1, float64(pm.ConsecutiveLosses)/float64(2*m.cfg.LosingStreak))
	}

	exposure := 0.0
	if maxExposure := pm.Bankroll * m.cfg.MaxOpenExposurePercent / 100; maxExposure > 0 {
		exposure = math.Min(1, pm.OpenExposure/maxExposure)
	} else if pm.OpenExposure > 0 {
		exposure = 1
	}

	daily := 0.0
	if pm.DailyPnL < 0 && dailyLimit > 0 {
		daily = math.Min(1, -pm.DailyPnL/dailyLimit)
	}

	score := 40*drawdown + 20*streak + 20*exposure + 20*daily
	return math.Round(score*10) / 10
}

func healthFor(pm models.PortfolioMetrics, score float64) models.PortfolioHealth {
	switch {
	case score >= 75 || pm.Bankroll <= 0:
		return models.HealthCritical
	case score >= 50:
		return models.HealthPoor
	case score >= 25:
		return models.HealthFair
	case pm.ROI > 0.1 && score < 10:
		return models.HealthExcellent
	default:
		return models.HealthGood
	}
}

func (m *Manager) recommendations(pm models.PortfolioMetrics, score float64, stopped, isDefault bool) []string {
	recs := []string{}
	if isDefault {
		recs = append(recs, "Create a risk profile; analysis is using conservative defaults")
	}
	if stopped {
		recs = append(recs, "Daily stop-loss reached; no further bets today")
	}
	switch {
	case pm.Drawdown >= m.cfg.DrawdownCritical:
		recs = append(recs, fmt.Sprintf("Drawdown at %.1f%%; stop betting and reassess the strategy", pm.Drawdown*100))
	case pm.Drawdown >= m.cfg.DrawdownWarning:
		recs = append(recs, fmt.Sprintf("Drawdown at %.1f%%; cut stake sizes", pm.Drawdown*100))
	}
	if m.cfg.LosingStreak > 0 && pm.ConsecutiveLosses >= m.cfg.LosingStreak {
		recs = append(recs, fmt.Sprintf("%d straight losses; pause and review recent picks", pm.ConsecutiveLosses))
	}
	if maxExposure := pm.Bankroll * m.cfg.MaxOpenExposurePercent / 100; pm.OpenExposure > maxExposure {
		recs = append(recs, "Open exposure is above the limit; wait for bets to settle")
	}
	if pm.TotalBets >= 20 && pm.SharpeRatio < 0 {
		recs = append(recs, "Returns are negative on a risk-adjusted basis; lower the Kelly multiplier")
	}
	if len(recs) == 0 && score < 25 {
		recs = append(recs, "Bankroll is healthy; keep staking within Kelly limits")
	}
	return recs
}
