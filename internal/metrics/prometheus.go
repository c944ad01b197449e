package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsight_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"intent"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	QueryConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_query_confidence_total",
			Help: "Answers by confidence level",
		},
		[]string{"confidence"},
	)

	ClarificationsRequested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finsight_clarifications_requested_total",
			Help: "Total queries gated for clarification",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsight_retrieved_chunks_count",
			Help:    "Number of filing chunks retrieved per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	FilingsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finsight_filings_processed_total",
			Help: "Total filings ingested",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "finsight_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	FeedbackRating = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsight_feedback_rating",
			Help:    "User feedback ratings",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryConfidence)
	prometheus.MustRegister(ClarificationsRequested)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(FilingsProcessed)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(FeedbackRating)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
