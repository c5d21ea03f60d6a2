package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/config"
	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/metrics"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// Manager evaluates bets and tracks per-user bankrolls. State for different
// users is independent; each user's state is serialized by its own lock.
type Manager struct {
	cfg      config.RiskConfig
	profiles ProfileStore
	results  ResultStore
	sink     AlertSink
	logger   *logger.AuditLogger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*userState
}

// NewManager creates a risk manager. sink may be nil when alerts are only consumed
// through ConsumeAlerts.
func NewManager(cfg config.RiskConfig, profiles ProfileStore, sink AlertSink, log *logrus.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		profiles: profiles,
		sink:     sink,
		logger:   logger.NewAuditLogger(log),
		now:      time.Now,
		users:    make(map[string]*userState),
	}
}

// DefaultProfile returns the conservative profile used for users without one
func (m *Manager) DefaultProfile(userID string) *models.RiskProfile {
	d := m.cfg.DefaultProfile
	return &models.RiskProfile{
		UserID:               userID,
		Bankroll:             d.Bankroll,
		StartingBankroll:     d.Bankroll,
		MaxBetPercent:        d.MaxBetPercent,
		MaxDailyLossPercent:  d.MaxDailyLossPercent,
		MaxWeeklyLossPercent: d.MaxWeeklyLossPercent,
		StopLossEnabled:      true,
		KellyMultiplier:      d.KellyMultiplier,
	}
}

// profile loads the user's profile, falling back to the default. The bool reports
// whether the fallback was used.
func (m *Manager) profile(ctx context.Context, userID string) (*models.RiskProfile, bool) {
	if m.profiles != nil {
		p, err := m.profiles.GetByUserID(ctx, userID)
		if err == nil {
			return p, false
		}
		if !errors.Is(err, models.ErrProfileMissing) {
			m.logger.WithError(err).WithField("user_id", userID).Warn("Risk profile lookup failed, using default profile")
		}
	}
	return m.DefaultProfile(userID), true
}

// SetResultStore makes RecordBetResult persist every settlement so Restore can
// rebuild the ledgers after a restart
func (m *Manager) SetResultStore(store ResultStore) {
	m.results = store
}

func (m *Manager) state(userID string) *userState {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.users[userID]
	if !ok {
		s = newUserState()
		m.users[userID] = s
	}
	return s
}

// lookup returns the user's state without creating it
func (m *Manager) lookup(userID string) (*userState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.users[userID]
	return s, ok
}

// EvaluateBet sizes a proposed bet and decides whether to proceed, reduce or skip.
// It always returns a recommendation; problems with the input become a skip with
// a warning.
func (m *Manager) EvaluateBet(ctx context.Context, req EvaluationRequest) *models.BetRecommendation {
	started := time.Now()
	rec := &models.BetRecommendation{
		UserID:        req.UserID,
		GameID:        req.GameID,
		Pattern:       req.Pattern,
		OriginalStake: req.Stake,
		RiskTier:      models.RiskHigh,
		Warnings:      []string{},
		Decision:      models.DecisionSkip,
	}

	if req.UserID == "" {
		rec.Warnings = append(rec.Warnings, "Request has no user_id")
		rec.Reason = "Missing user"
	} else {
		profile, isDefault := m.profile(ctx, req.UserID)
		if isDefault {
			rec.Warnings = append(rec.Warnings, "No risk profile on file; using conservative defaults")
		}

		st := m.state(req.UserID)
		st.mu.Lock()
		st.ensure(profile, m.now())
		alerts := m.evaluate(st, profile, req, rec)
		st.mu.Unlock()

		m.publish(ctx, alerts)
	}

	metrics.RecordBetEvaluation(string(rec.Decision), string(rec.RiskTier), time.Since(started).Seconds())
	m.logger.LogBetEvaluation(rec.UserID, rec.GameID, rec.Pattern, rec.OriginalStake, rec.AdjustedStake, rec.KellyStake,
		string(rec.RiskTier), string(rec.Decision), rec.Warnings)
	return rec
}

// evaluate fills rec. Called with st.mu held.
func (m *Manager) evaluate(st *userState, profile *models.RiskProfile, req EvaluationRequest, rec *models.BetRecommendation) []models.RiskAlert {
	skip := func(reason string) []models.RiskAlert {
		rec.Decision = models.DecisionSkip
		rec.AdjustedStake = 0
		rec.Reason = reason
		return nil
	}

	if !validStake(req.Stake) {
		rec.Warnings = append(rec.Warnings, "Requested stake must be positive")
		return skip("Invalid stake")
	}
	if math.IsNaN(req.Confidence) || req.Confidence < 0 || req.Confidence > 1 {
		rec.Warnings = append(rec.Warnings, "Confidence must be between 0 and 1")
		return skip("Invalid confidence")
	}
	b, err := NetOdds(req.Odds)
	if err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("Cannot assess odds %q", req.Odds))
		return skip(err.Error())
	}
	if !st.bankroll.IsPositive() {
		rec.Warnings = append(rec.Warnings, "Bankroll exhausted")
		return skip("No bankroll available")
	}

	bankroll := st.bankroll.InexactFloat64()
	stake := decimal.NewFromFloat(req.Stake)
	stakePercent := req.Stake * 100 / bankroll

	sizing := KellyStake(st.bankroll, req.Confidence, b, profile.KellyMultiplier, profile.MaxBetPercent)
	kelly := sizing.Stake.InexactFloat64()
	rec.KellyStake = kelly

	var alerts []models.RiskAlert

	if req.Pattern != "" {
		if p, ok := st.patterns[req.Pattern]; ok && p.total >= m.cfg.PatternMinSamples && p.winRate() < m.cfg.PatternMinWinRate {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("Pattern %q is underperforming: %.0f%% win rate over %d bets",
				req.Pattern, p.winRate()*100, p.total))
		}
	}

	if stake.GreaterThan(sizing.Cap) {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("Requested stake %s exceeds max bet %s (%.1f%% of bankroll)",
			stake.StringFixed(2), sizing.Cap.StringFixed(2), profile.MaxBetPercent))
	}

	ratio := decimal.NewFromFloat(m.cfg.LossLimitWarningRatio)
	if limit := st.dailyLimit(profile); limit.IsPositive() && st.dailyLoss().Add(stake).GreaterThanOrEqual(limit.Mul(ratio)) {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("Approaching daily loss limit: lost %s of %s today",
			st.dailyLoss().StringFixed(2), limit.StringFixed(2)))
	}
	if limit := st.weeklyLimit(profile); limit.IsPositive() && st.weeklyLoss().Add(stake).GreaterThanOrEqual(limit.Mul(ratio)) {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("Approaching weekly loss limit: lost %s of %s this week",
			st.weeklyLoss().StringFixed(2), limit.StringFixed(2)))
	}

	maxExposure := st.bankroll.Mul(decimal.NewFromFloat(m.cfg.MaxOpenExposurePercent)).Div(hundred)
	if exposure := st.openExposure.Add(stake); exposure.GreaterThan(maxExposure) {
		msg := fmt.Sprintf("Open exposure %s would exceed %.0f%% of bankroll", exposure.StringFixed(2), m.cfg.MaxOpenExposurePercent)
		rec.Warnings = append(rec.Warnings, msg)
		alerts = append(alerts, m.alert(st, req.UserID, models.AlertOverexposure, models.SeverityWarning, msg,
			"Wait for open bets to settle before adding exposure"))
	}

	if sizing.AdjustedFraction == 0 {
		rec.Warnings = append(rec.Warnings, "No positive edge at these odds")
	}

	rec.RiskTier = riskTier(req.Confidence, stakePercent)

	switch {
	case st.stopLossTripped(profile):
		skip("Daily stop-loss reached")
	case len(rec.Warnings) >= m.cfg.WarningsToSkip:
		skip(fmt.Sprintf("%d risk warnings", len(rec.Warnings)))
	case rec.RiskTier == models.RiskHigh:
		skip("High risk tier")
	case sizing.Stake.IsZero():
		skip("Kelly criterion recommends no stake")
	case len(rec.Warnings) > 0 || stake.GreaterThan(sizing.Stake):
		rec.Decision = models.DecisionReduce
		rec.AdjustedStake = math.Min(req.Stake, kelly)
		rec.Reason = reduceReason(rec.Warnings, req.Stake, kelly)
	default:
		rec.Decision = models.DecisionProceed
		rec.AdjustedStake = req.Stake
		rec.Reason = "Within Kelly sizing and risk limits"
	}

	rec.BankrollPercent = rec.AdjustedStake * 100 / bankroll
	return alerts
}

// validStake rejects zero, negative, NaN and infinite stakes. decimal cannot
// represent the non-finite ones.
func validStake(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// riskTier grades confidence and the requested share of bankroll
func riskTier(confidence, stakePercent float64) models.RiskTier {
	switch {
	case confidence > 0.7 && stakePercent < 2:
		return models.RiskLow
	case confidence < 0.6 || stakePercent > 5:
		return models.RiskHigh
	default:
		return models.RiskMedium
	}
}

func reduceReason(warnings []string, requested, kelly float64) string {
	if requested > kelly {
		return fmt.Sprintf("Reduced to Kelly stake %.2f", kelly)
	}
	return "Reduced: " + strings.Join(warnings, "; ")
}

// RecordBetPlaced adds an accepted bet to the user's open exposure
func (m *Manager) RecordBetPlaced(ctx context.Context, userID, betID string, stake float64) error {
	if !validStake(stake) {
		return fmt.Errorf("%w: bet %s stake %v", ErrInvalidStake, betID, stake)
	}
	if betID == "" {
		return fmt.Errorf("invalid bet placement: bet id is required")
	}
	profile, _ := m.profile(ctx, userID)

	st := m.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.ensure(profile, m.now())
	if _, exists := st.openBets[betID]; exists || st.settled[betID] {
		return fmt.Errorf("%w: bet %s", models.ErrDuplicateKey, betID)
	}
	amount := decimal.NewFromFloat(stake)
	st.openBets[betID] = amount
	st.openExposure = st.openExposure.Add(amount)
	return nil
}

// RecordBetResult settles a bet against the user's ledger and returns any alerts it
// raised. A bet can be settled once.
func (m *Manager) RecordBetResult(ctx context.Context, result models.BetResult) ([]models.RiskAlert, error) {
	stake, pnl, err := settlement(result)
	if err != nil {
		return nil, err
	}
	if result.SettledAt.IsZero() {
		result.SettledAt = m.now().UTC()
	}

	profile, isDefault := m.profile(ctx, result.UserID)

	st := m.state(result.UserID)
	st.mu.Lock()
	st.ensure(profile, m.now())
	if st.settled[result.BetID] {
		st.mu.Unlock()
		return nil, fmt.Errorf("%w: bet %s", models.ErrAlreadySettled, result.BetID)
	}

	alerts := m.settle(st, profile, result, stake, pnl)
	bankroll := st.bankroll.InexactFloat64()
	drawdown := st.drawdown()
	st.mu.Unlock()

	if m.results != nil {
		if err := m.results.Create(ctx, &result); err != nil {
			m.logger.WithError(err).WithField("bet_id", result.BetID).Warn("Failed to persist bet result")
		}
	}
	if !isDefault && m.profiles != nil {
		if err := m.profiles.UpdateBankroll(ctx, result.UserID, bankroll); err != nil {
			m.logger.WithError(err).WithField("user_id", result.UserID).Warn("Failed to persist bankroll")
		}
	}

	m.publish(ctx, alerts)
	metrics.RecordBetSettlement(string(result.Outcome))
	m.logger.LogBetSettlement(result.UserID, result.BetID, string(result.Outcome), result.Stake, pnl.InexactFloat64(), bankroll, drawdown)
	return alerts, nil
}

// settlement validates a result and returns its stake and realized profit
func settlement(result models.BetResult) (stake, pnl decimal.Decimal, err error) {
	if !validStake(result.Stake) {
		return stake, pnl, fmt.Errorf("%w: bet %s stake %v", ErrInvalidStake, result.BetID, result.Stake)
	}
	if result.BetID == "" || result.UserID == "" {
		return stake, pnl, fmt.Errorf("invalid bet result: bet %q user %q", result.BetID, result.UserID)
	}
	switch result.Outcome {
	case models.OutcomeWin, models.OutcomeLoss, models.OutcomePush:
	default:
		return stake, pnl, fmt.Errorf("invalid bet result: outcome %q", result.Outcome)
	}
	odds, err := ParseOdds(result.Odds)
	if err != nil {
		return stake, pnl, err
	}

	stake = decimal.NewFromFloat(result.Stake)
	switch result.Outcome {
	case models.OutcomeWin:
		pnl = stake.Mul(odds.Sub(one)).Truncate(2)
	case models.OutcomeLoss:
		pnl = stake.Neg()
	default:
		pnl = decimal.Zero
	}
	return stake, pnl, nil
}

// Restore rebuilds ledgers from stored settlements so loss windows, the daily
// stop-loss and settle-once checks survive a restart. A stored profile's bankroll
// already includes its results, so the replay starts from the bankroll rewound
// by their total. Users that already have state are left alone, and alerts raised
// during the replay are not delivered again. It returns the number of results
// replayed.
func (m *Manager) Restore(ctx context.Context, results []models.BetResult) int {
	byUser := make(map[string][]models.BetResult)
	for _, r := range results {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	type replay struct {
		result     models.BetResult
		stake, pnl decimal.Decimal
	}

	restored := 0
	for userID, history := range byUser {
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].SettledAt.Before(history[j].SettledAt)
		})

		steps := make([]replay, 0, len(history))
		total := decimal.Zero
		for _, r := range history {
			stake, pnl, err := settlement(r)
			if err != nil {
				m.logger.WithError(err).WithField("bet_id", r.BetID).Warn("Skipping unreadable bet result")
				continue
			}
			steps = append(steps, replay{result: r, stake: stake, pnl: pnl})
			total = total.Add(pnl)
		}
		if len(steps) == 0 {
			continue
		}

		profile, isDefault := m.profile(ctx, userID)
		seed := *profile
		if !isDefault {
			seed.Bankroll = decimal.NewFromFloat(profile.Bankroll).Sub(total).InexactFloat64()
		}

		st := newUserState()
		st.ensure(&seed, steps[0].result.SettledAt)
		for _, step := range steps {
			st.roll(step.result.SettledAt)
			if st.settled[step.result.BetID] {
				continue
			}
			m.settle(st, profile, step.result, step.stake, step.pnl)
			restored++
		}
		st.alerts = nil

		m.mu.Lock()
		if _, exists := m.users[userID]; !exists {
			m.users[userID] = st
		}
		m.mu.Unlock()
	}
	return restored
}

// settle applies a result to the ledger. Called with st.mu held.
func (m *Manager) settle(st *userState, profile *models.RiskProfile, result models.BetResult, stake, pnl decimal.Decimal) []models.RiskAlert {
	st.settled[result.BetID] = true
	if open, ok := st.openBets[result.BetID]; ok {
		st.openExposure = st.openExposure.Sub(open)
		delete(st.openBets, result.BetID)
	}

	st.bankroll = st.bankroll.Add(pnl)
	st.peak = decimal.Max(st.peak, st.bankroll)
	st.dailyPnL = st.dailyPnL.Add(pnl)
	st.weeklyPnL = st.weeklyPnL.Add(pnl)
	st.returns = append(st.returns, pnl.Div(stake).InexactFloat64())
	st.peakDrawdown = math.Max(st.peakDrawdown, st.drawdownFromPeak())

	var alerts []models.RiskAlert
	userID := result.UserID

	switch result.Outcome {
	case models.OutcomeWin:
		st.wins++
		st.consecutiveLosses = 0
	case models.OutcomeLoss:
		st.losses++
		st.consecutiveLosses++
		if m.cfg.LosingStreak > 0 && st.consecutiveLosses%m.cfg.LosingStreak == 0 {
			severity := models.SeverityWarning
			if st.consecutiveLosses >= 2*m.cfg.LosingStreak {
				severity = models.SeverityCritical
			}
			alerts = append(alerts, m.alert(st, userID, models.AlertLosingStreak, severity,
				fmt.Sprintf("%d consecutive losses", st.consecutiveLosses),
				"Pause and review recent picks before the next bet"))
		}
	case models.OutcomePush:
		st.pushes++
	}

	if result.Pattern != "" && result.Outcome != models.OutcomePush {
		p := st.pattern(result.Pattern)
		p.total++
		if result.Outcome == models.OutcomeWin {
			p.wins++
		}
		underperforming := p.total >= m.cfg.PatternMinSamples && p.winRate() < m.cfg.PatternMinWinRate
		if underperforming && !p.degraded {
			alerts = append(alerts, m.alert(st, userID, models.AlertPatternDegradation, models.SeverityWarning,
				fmt.Sprintf("Pattern %q win rate fell to %.0f%% over %d bets", result.Pattern, p.winRate()*100, p.total),
				"Reduce or stop staking this pattern"))
		}
		p.degraded = underperforming
	}

	alerts = append(alerts, m.drawdownAlert(st, userID)...)

	if st.stopLossTripped(profile) {
		m.logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"daily_loss": st.dailyLoss().StringFixed(2),
		}).Warn("Daily stop-loss tripped")
	}
	return alerts
}

// drawdownAlert emits an alert when drawdown crosses into a worse band. Recovering
// below a band re-arms it.
func (m *Manager) drawdownAlert(st *userState, userID string) []models.RiskAlert {
	dd := st.drawdown()

	var level models.AlertSeverity
	switch {
	case dd >= m.cfg.DrawdownCritical:
		level = models.SeverityCritical
	case dd >= m.cfg.DrawdownWarning:
		level = models.SeverityWarning
	}

	previous := st.drawdownLevel
	st.drawdownLevel = level
	if severityRank(level) <= severityRank(previous) {
		return nil
	}

	action := "Cut stake sizes until the bankroll recovers"
	if level == models.SeverityCritical {
		action = "Stop betting and reassess the strategy"
	}
	return []models.RiskAlert{m.alert(st, userID, models.AlertDrawdown, level,
		fmt.Sprintf("Bankroll drawdown at %.1f%% of starting bankroll", dd*100), action)}
}

func severityRank(s models.AlertSeverity) int {
	switch s {
	case models.SeverityCritical:
		return 2
	case models.SeverityWarning:
		return 1
	default:
		return 0
	}
}

// alert builds a RiskAlert and appends it to the user's list. Called with st.mu held.
func (m *Manager) alert(st *userState, userID string, kind models.AlertKind, severity models.AlertSeverity, message, action string) models.RiskAlert {
	a := models.RiskAlert{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Action:    action,
		Timestamp: m.now().UTC(),
	}
	st.alerts = append(st.alerts, a)
	return a
}

// publish records and forwards alerts outside the user lock
func (m *Manager) publish(ctx context.Context, alerts []models.RiskAlert) {
	for _, a := range alerts {
		metrics.RecordRiskAlert(string(a.Kind), string(a.Severity))
		m.logger.LogRiskAlert(a.UserID, string(a.Kind), string(a.Severity), a.Message)
		if m.sink == nil {
			continue
		}
		if err := m.sink.Publish(ctx, a); err != nil {
			m.logger.WithError(err).WithField("alert_id", a.ID.String()).Warn("Failed to publish risk alert")
		}
	}
}

// ConsumeAlerts drains the user's pending alerts
func (m *Manager) ConsumeAlerts(userID string) []models.RiskAlert {
	st, ok := m.lookup(userID)
	if !ok {
		return []models.RiskAlert{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	alerts := st.alerts
	st.alerts = nil
	if alerts == nil {
		return []models.RiskAlert{}
	}
	return alerts
}
