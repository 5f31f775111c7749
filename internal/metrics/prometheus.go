package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DiagnosisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "krishi_diagnosis_duration_seconds",
			Help:    "Diagnosis processing duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20},
		},
		[]string{"kind"},
	)

	DiagnosisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_diagnosis_total",
			Help: "Total number of diagnosis attempts",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "krishi_diagnosis_confidence_score",
			Help:    "Diagnosis confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_llm_tokens_used",
			Help: "Total model tokens used",
		},
		[]string{"model", "type"},
	)

	PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_prediction_total",
			Help: "Total yield prediction requests",
		},
		[]string{"backend", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	HistoryWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krishi_history_writes_total",
			Help: "Total diagnosis history rows written",
		},
		[]string{"store"},
	)
)

func Init() {
	prometheus.MustRegister(DiagnosisDuration)
	prometheus.MustRegister(DiagnosisTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(PredictionTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(HistoryWrites)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
