// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides the audit trail for risk decisions and retraining.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogBetEvaluation logs the outcome of a bet evaluation.
func (al *AuditLogger) LogBetEvaluation(userID, gameID, pattern string, requested, adjusted, kelly float64, tier, decision string, warnings []string) {
	al.WithFields(logrus.Fields{
		"user_id":         userID,
		"game_id":         gameID,
		"pattern":         pattern,
		"requested_stake": requested,
		"adjusted_stake":  adjusted,
		"kelly_stake":     kelly,
		"risk_tier":       tier,
		"decision":        decision,
		"warnings":        warnings,
	}).Info("Bet evaluated")
}

// LogBetSettlement logs a settled bet and the resulting bankroll.
func (al *AuditLogger) LogBetSettlement(userID, betID, outcome string, stake, pnl, bankroll, drawdown float64) {
	al.WithFields(logrus.Fields{
		"user_id":  userID,
		"bet_id":   betID,
		"outcome":  outcome,
		"stake":    stake,
		"pnl":      pnl,
		"bankroll": bankroll,
		"drawdown": drawdown,
	}).Info("Bet settled")
}

// LogRiskAlert logs an emitted risk alert.
func (al *AuditLogger) LogRiskAlert(userID, kind, severity, message string) {
	entry := al.WithFields(logrus.Fields{
		"user_id":  userID,
		"kind":     kind,
		"severity": severity,
	})
	if severity == "critical" {
		entry.Error(message)
		return
	}
	entry.Warn(message)
}

// LogPredictionSettled logs a reconciled prediction.
func (al *AuditLogger) LogPredictionSettled(predictionID, gameID, actualWinner string, correct bool) {
	al.WithFields(logrus.Fields{
		"prediction_id": predictionID,
		"game_id":       gameID,
		"actual_winner": actualWinner,
		"correct":       correct,
	}).Info("Prediction settled")
}

// LogRetrainTriggered logs a bucket crossing the retrain condition.
func (al *AuditLogger) LogRetrainTriggered(bucket string, accuracy float64, total int64) {
	al.WithFields(logrus.Fields{
		"bucket":   bucket,
		"accuracy": accuracy,
		"total":    total,
	}).Warn("Retrain triggered")
}

// LogRetrainCompleted logs the end of a retrain cycle.
func (al *AuditLogger) LogRetrainCompleted(bucket, jobID, status string) {
	al.WithFields(logrus.Fields{
		"bucket": bucket,
		"job_id": jobID,
		"status": status,
	}).Info("Retrain cycle finished")
}
