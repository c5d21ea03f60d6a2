// Package metrics provides the centralized Prometheus registry for the prediction engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fantasy_edge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ensemble_predictions_total",
		Help:      "Total number of ensemble predictions by sport and quorum state",
	}, []string{"sport", "quorum"})
	SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_settlements_total",
		Help:      "Total number of reconciled predictions by result",
	}, []string{"sport", "result"})
	RetrainTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrain_triggers_total",
		Help:      "Total number of retrain signals raised per model",
	}, []string{"model"})
)

// Gauge metrics
var (
	BucketAccuracy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bucket_accuracy",
		Help:      "Rolling accuracy per tracker bucket",
	}, []string{"bucket"})
	BucketSamples = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bucket_samples",
		Help:      "Settled predictions per tracker bucket",
	}, []string{"bucket"})
	ModelsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "models_loaded",
		Help:      "Number of model adapters currently loaded",
	})
)

// Histogram metrics
var (
	EnsembleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ensemble_latency_seconds",
		Help:      "End-to-end latency of ensemble predictions in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	EnsembleConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ensemble_confidence",
		Help:      "Confidence of ensemble predictions",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(SettlementsTotal)
		registry.MustRegister(RetrainTriggersTotal)

		registry.MustRegister(BucketAccuracy)
		registry.MustRegister(BucketSamples)
		registry.MustRegister(ModelsLoaded)

		registry.MustRegister(EnsembleLatency)
		registry.MustRegister(EnsembleConfidence)

		// Inference metrics
		registry.MustRegister(ModelPredictionsTotal)
		registry.MustRegister(ModelLatency)
		registry.MustRegister(ModelFailuresTotal)
		registry.MustRegister(CacheHitRatio)
		registry.MustRegister(TrainingJobsTotal)

		// Risk metrics
		registry.MustRegister(BetEvaluationsTotal)
		registry.MustRegister(RiskAlertsTotal)
		registry.MustRegister(BetSettlementsTotal)
		registry.MustRegister(EvaluationLatency)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPrediction records a completed ensemble prediction.
func RecordPrediction(sport string, quorum bool, confidence, latencySeconds float64) {
	label := "ok"
	if !quorum {
		label = "no_quorum"
	}
	PredictionsTotal.WithLabelValues(sport, label).Inc()
	EnsembleConfidence.Observe(confidence)
	EnsembleLatency.Observe(latencySeconds)
}

// RecordSettlement records a reconciled prediction.
func RecordSettlement(sport string, correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	SettlementsTotal.WithLabelValues(sport, result).Inc()
}

// RecordRetrainTrigger records a retrain signal for a model.
func RecordRetrainTrigger(model string) {
	RetrainTriggersTotal.WithLabelValues(model).Inc()
}

// UpdateBucket updates the accuracy gauges for a tracker bucket.
func UpdateBucket(bucket string, accuracy float64, samples int64) {
	BucketAccuracy.WithLabelValues(bucket).Set(accuracy)
	BucketSamples.WithLabelValues(bucket).Set(float64(samples))
}

// UpdateModelsLoaded updates the loaded adapter gauge.
func UpdateModelsLoaded(count int) {
	ModelsLoaded.Set(float64(count))
}
