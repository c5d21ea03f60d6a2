package metrics

import "github.com/prometheus/client_golang/prometheus"

// Risk manager metrics
var (
	BetEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_evaluations_total",
		Help:      "Total number of bet evaluations by decision and risk tier",
	}, []string{"decision", "tier"})

	BetSettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_settlements_total",
		Help:      "Total number of settled bets by outcome",
	}, []string{"outcome"})

	RiskAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "risk_alerts_total",
		Help:      "Total number of risk alerts by kind and severity",
	}, []string{"kind", "severity"})

	EvaluationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "bet_evaluation_latency_seconds",
		Help:      "Latency of bet evaluations in seconds",
		Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})
)

// RecordBetEvaluation records a bet evaluation.
func RecordBetEvaluation(decision, tier string, latencySeconds float64) {
	BetEvaluationsTotal.WithLabelValues(decision, tier).Inc()
	EvaluationLatency.Observe(latencySeconds)
}

// RecordBetSettlement records a settled bet.
func RecordBetSettlement(outcome string) {
	BetSettlementsTotal.WithLabelValues(outcome).Inc()
}

// RecordRiskAlert records an emitted risk alert.
func RecordRiskAlert(kind, severity string) {
	RiskAlertsTotal.WithLabelValues(kind, severity).Inc()
}
