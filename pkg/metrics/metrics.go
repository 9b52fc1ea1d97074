package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerview_extractions_total",
			Help: "Extraction calls by extractor kind and outcome category",
		},
		[]string{"kind", "outcome"},
	)
	ExtractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readerview_extract_duration_seconds",
			Help:    "Duration of one engine extraction, queueing included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	EngineState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "readerview_engine_state",
			Help: "Engine readiness (0=uninitialized,1=initializing,2=ready)",
		},
		[]string{"kind"},
	)
	EngineRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerview_engine_restarts_total",
			Help: "Sandbox terminations observed per engine",
		},
		[]string{"kind"},
	)
	EnginePending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "readerview_engine_pending",
			Help: "Calls waiting for the engine to become ready",
		},
		[]string{"kind"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readerview_fetch_duration_seconds",
			Help:    "Duration of page fetches by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerview_fetch_errors_total",
			Help: "Page fetch failures by mode and error category",
		},
		[]string{"mode", "category"},
	)
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readerview_cache_hits_total",
			Help: "Fetches served from the page cache",
		},
	)
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerview_http_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"path", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readerview_http_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

var registerOnce sync.Once

// MustRegister adds every collector to the default registry. Safe to call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ExtractionsTotal,
			ExtractDuration,
			EngineState,
			EngineRestarts,
			EnginePending,
			FetchDuration,
			FetchErrors,
			CacheHits,
			RequestsTotal,
			RequestDuration,
		)
	})
}
