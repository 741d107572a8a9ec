package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot aggregates lightweight counters for API consumption.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SealsSucceeded           uint64    `json:"sealsSucceeded"`
	SealsFailed              uint64    `json:"sealsFailed"`
	AverageSealDurationMs    float64   `json:"averageSealDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the seal pipeline, and the job queue.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sealDuration    prometheus.Observer
	sealTotal       *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	dbQueryDuration *prometheus.HistogramVec
	cacheTotal      *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	sealSuccessCount     uint64
	sealFailureCount     uint64
	sealDurationTotal    uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sealDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seal_duration_seconds",
		Help:    "Duration of document seal runs",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	sealTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seals_total",
		Help: "Total seal runs by outcome",
	}, []string{"outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "job_queue_depth",
		Help: "Jobs waiting in the background queue",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	cacheTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_cache_operations_total",
		Help: "Document cache lookups by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sealDuration, sealTotal, queueDepth, dbQueryDuration, cacheTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sealDuration:    sealDuration,
		sealTotal:       sealTotal,
		queueDepth:      queueDepth,
		dbQueryDuration: dbQueryDuration,
		cacheTotal:      cacheTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveSeal records one seal run.
func (m *MetricsService) ObserveSeal(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.sealDuration.Observe(duration.Seconds())
	if success {
		m.sealTotal.WithLabelValues("success").Inc()
		atomic.AddUint64(&m.sealSuccessCount, 1)
	} else {
		m.sealTotal.WithLabelValues("failure").Inc()
		atomic.AddUint64(&m.sealFailureCount, 1)
	}
	atomic.AddUint64(&m.sealDurationTotal, uint64(duration.Nanoseconds()))
}

// SetQueueDepth publishes the current background queue depth.
func (m *MetricsService) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// ObserveCacheLookup counts one document cache lookup by outcome.
func (m *MetricsService) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheTotal.WithLabelValues(outcome).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	sealOK := atomic.LoadUint64(&m.sealSuccessCount)
	sealFail := atomic.LoadUint64(&m.sealFailureCount)
	sealDuration := atomic.LoadUint64(&m.sealDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgSealMs float64
	if seals := sealOK + sealFail; seals > 0 {
		avgSealMs = float64(sealDuration) / float64(seals) / float64(time.Millisecond)
	}
	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SealsSucceeded:           sealOK,
		SealsFailed:              sealFail,
		AverageSealDurationMs:    avgSealMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
