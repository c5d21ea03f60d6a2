package metrics

import "github.com/prometheus/client_golang/prometheus"

// Per-model inference metrics
var (
	ModelPredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_predictions_total",
		Help:      "Total number of adapter predictions by model and cache hit",
	}, []string{"model", "cache_hit"})

	ModelFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_failures_total",
		Help:      "Adapter calls excluded from an ensemble, by reason",
	}, []string{"model", "reason"})

	TrainingJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "training_jobs_total",
		Help:      "Retrain jobs handed to the training service, by status",
	}, []string{"model", "status"})
)

var (
	ModelLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_latency_seconds",
		Help:      "Adapter prediction latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"model"})

	CacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_cache_hit_ratio",
		Help:      "Model output cache hit ratio",
	})
)

// RecordModelPrediction records a successful adapter call.
func RecordModelPrediction(model string, cacheHit bool, latencySeconds float64) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	ModelPredictionsTotal.WithLabelValues(model, hit).Inc()
	if !cacheHit {
		ModelLatency.WithLabelValues(model).Observe(latencySeconds)
	}
}

// RecordModelFailure records an adapter call that was excluded from the ensemble.
func RecordModelFailure(model, reason string) {
	ModelFailuresTotal.WithLabelValues(model, reason).Inc()
}

// RecordTrainingJob records a training job status transition.
func RecordTrainingJob(model, status string) {
	TrainingJobsTotal.WithLabelValues(model, status).Inc()
}

// UpdateCacheHitRatio updates the output cache hit ratio.
func UpdateCacheHitRatio(ratio float64) {
	CacheHitRatio.Set(ratio)
}
