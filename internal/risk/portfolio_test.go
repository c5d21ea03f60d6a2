package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// TestGetPortfolioAnalysis_Fresh tests the analysis of an untouched bankroll
func TestGetPortfolioAnalysis_Fresh(t *testing.T) {
	m := newTestManager(nil, scenarioProfile("u1"))

	analysis := m.GetPortfolioAnalysis(context.Background(), "u1")

	assert.Equal(t, models.HealthGood, analysis.Health)
	assert.Zero(t, analysis.RiskScore)
	assert.False(t, analysis.ProfileDefault)
	assert.InDelta(t, 10000, analysis.Metrics.Bankroll, 1e-9)
	assert.Zero(t, analysis.Metrics.TotalBets)
	assert.Equal(t, []string{"Bankroll is healthy; keep staking within Kelly limits"}, analysis.Recommendations)
}

// TestGetPortfolioAnalysis_ReturnStatistics tests ROI, volatility and the Sharpe-style ratio
func TestGetPortfolioAnalysis_ReturnStatistics(t *testing.T) {
	m := newTestManager(nil, scenarioProfile("u1"))
	settle(t, m, "u1", "b1", 100, "2.0", models.OutcomeWin)
	settle(t, m, "u1", "b2", 100, "2.0", models.OutcomeLoss)
	settle(t, m, "u1", "b3", 100, "2.0", models.OutcomeWin)

	pm := m.GetPortfolioAnalysis(context.Background(), "u1").Metrics

	assert.InDelta(t, 10100, pm.Bankroll, 1e-9)
	assert.InDelta(t, 10100, pm.PeakBankroll, 1e-9)
	assert.InDelta(t, 0.01, pm.ROI, 1e-9)
	assert.InDelta(t, 1.1547005, pm.ReturnVolatility, 1e-6)
	assert.InDelta(t, 0.2886751, pm.SharpeRatio, 1e-6)
	assert.InDelta(t, 100.0/10100.0, pm.PeakDrawdown, 1e-9)
	assert.InDelta(t, 100, pm.DailyPnL, 1e-9)
	assert.InDelta(t, 100, pm.WeeklyPnL, 1e-9)
}

// TestGetPortfolioAnalysis_Stressed tests scoring and recommendations for a damaged bankroll
func TestGetPortfolioAnalysis_Stressed(t *testing.T) {
	profile := scenarioProfile("u1")
	profile.Bankroll, profile.StartingBankroll = 1000, 1000
	m := newTestManager(nil, profile)
	ctx := context.Background()

	settle(t, m, "u1", "b1", 300, "+100", models.OutcomeLoss)

	analysis := m.GetPortfolioAnalysis(ctx, "u1")
	// 40 for drawdown past critical, 2 for the streak, 20 for the daily loss
	assert.InDelta(t, 62, analysis.RiskScore, 1e-9)
	assert.Equal(t, models.HealthPoor, analysis.Health)
	assert.InDelta(t, 0.3, analysis.Metrics.Drawdown, 1e-9)
	assert.Equal(t, 1, analysis.Metrics.PendingAlerts)
	require.Len(t, analysis.Recommendations, 2)
	assert.Contains(t, analysis.Recommendations[0], "stop-loss")
	assert.Contains(t, analysis.Recommendations[1], "stop betting")

	require.NoError(t, m.RecordBetPlaced(ctx, "u1", "b2", 200))
	analysis = m.GetPortfolioAnalysis(ctx, "u1")
	assert.InDelta(t, 82, analysis.RiskScore, 1e-9)
	assert.Equal(t, models.HealthCritical, analysis.Health)
	assert.Contains(t, analysis.Recommendations, "Open exposure is above the limit; wait for bets to settle")
}

// TestGetPortfolioAnalysis_DefaultProfile tests analysis for a user without a profile
func TestGetPortfolioAnalysis_DefaultProfile(t *testing.T) {
	m := newTestManager(nil)

	analysis := m.GetPortfolioAnalysis(context.Background(), "nobody")

	assert.True(t, analysis.ProfileDefault)
	assert.InDelta(t, 1000, analysis.Metrics.Bankroll, 1e-9)
	require.NotEmpty(t, analysis.Recommendations)
	assert.Contains(t, analysis.Recommendations[0], "Create a risk profile")
}

// TestGetPortfolioAnalysis_ExcellentHealth tests the top grade for a profitable, calm bankroll
func TestGetPortfolioAnalysis_ExcellentHealth(t *testing.T) {
	m := newTestManager(nil, scenarioProfile("u1"))
	settle(t, m, "u1", "b1", 500, "+300", models.OutcomeWin)

	analysis := m.GetPortfolioAnalysis(context.Background(), "u1")

	assert.InDelta(t, 0.15, analysis.Metrics.ROI, 1e-9)
	assert.Equal(t, models.HealthExcellent, analysis.Health)
}
