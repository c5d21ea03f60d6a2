package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerForEnvironment(t *testing.T) {
	prod := NewLoggerForEnvironment("warn", "production")
	assert.Equal(t, logrus.WarnLevel, prod.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, prod.Formatter)

	dev := NewLoggerForEnvironment("nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, dev.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, dev.Formatter)
}

func TestInferenceLoggerModelInference(t *testing.T) {
	log, buf := setupTestLogger()
	il := NewInferenceLogger(log)

	il.LogModelInference("rf_offense", "random_forest", 8, false, 1500*time.Microsecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "inference", logEntry["component"])
	assert.Equal(t, "rf_offense", logEntry["model"])
	assert.Equal(t, 1.5, logEntry["latency_ms"])
}

func TestInferenceLoggerNoQuorumIsWarning(t *testing.T) {
	log, buf := setupTestLogger()
	NewInferenceLogger(log).LogEnsemble("g-1", 0, 0.5, 0, 1, true)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "warning", logEntry["level"])
	assert.Equal(t, true, logEntry["no_quorum"])
}

func TestInferenceLoggerFailure(t *testing.T) {
	log, buf := setupTestLogger()
	NewInferenceLogger(log).LogModelFailure("nn_game", "timeout", errors.New("deadline exceeded"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "deadline exceeded", logEntry["error"])
}

func TestAuditLoggerBetEvaluation(t *testing.T) {
	log, buf := setupTestLogger()
	al := NewAuditLogger(log)

	al.LogBetEvaluation("user-1", "g-1", "revenge", 500, 250, 250, "medium", "reduce", []string{"stake exceeds cap"})

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "reduce", logEntry["decision"])
	assert.Equal(t, 250.0, logEntry["adjusted_stake"])
}

func TestAuditLoggerCriticalAlert(t *testing.T) {
	log, buf := setupTestLogger()
	NewAuditLogger(log).LogRiskAlert("user-1", "drawdown", "critical", "Drawdown 26%")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "Drawdown 26%", logEntry["msg"])
}
