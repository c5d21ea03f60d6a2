// Package logger provides inference-specific logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// InferenceLogger provides dedicated logging for model adapters and the ensemble.
type InferenceLogger struct {
	*logrus.Entry
}

// NewInferenceLogger creates a new inference logger.
func NewInferenceLogger(baseLogger *logrus.Logger) *InferenceLogger {
	return &InferenceLogger{
		Entry: baseLogger.WithField("component", "inference"),
	}
}

// LogModelInference logs a completed adapter call.
func (il *InferenceLogger) LogModelInference(model, family string, featuresCount int, cacheHit bool, latency time.Duration) {
	il.WithFields(logrus.Fields{
		"model":          model,
		"family":         family,
		"features_count": featuresCount,
		"cache_hit":      cacheHit,
		"latency_ms":     float64(latency.Microseconds()) / 1000,
	}).Debug("Model inference completed")
}

// LogModelFailure logs an adapter call excluded from the ensemble.
func (il *InferenceLogger) LogModelFailure(model, reason string, err error) {
	il.WithFields(logrus.Fields{
		"model":  model,
		"reason": reason,
	}).WithError(err).Warn("Model excluded from ensemble")
}

// LogEnsemble logs a combined prediction.
func (il *InferenceLogger) LogEnsemble(gameID string, responders int, probability, confidence, patternBoost float64, noQuorum bool) {
	entry := il.WithFields(logrus.Fields{
		"game_id":       gameID,
		"responders":    responders,
		"probability":   probability,
		"confidence":    confidence,
		"pattern_boost": patternBoost,
		"no_quorum":     noQuorum,
	})
	if noQuorum {
		entry.Warn("Ensemble returned without model quorum")
		return
	}
	entry.Info("Ensemble prediction completed")
}

// LogModelLoaded logs an artifact being loaded into the registry.
func (il *InferenceLogger) LogModelLoaded(model, family, version string, inputSize int) {
	il.WithFields(logrus.Fields{
		"model":      model,
		"family":     family,
		"version":    version,
		"input_size": inputSize,
	}).Info("Model adapter loaded")
}
