package base

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tributary-io/tributary/pkg/connector/core"
)

// emaAlpha is the smoothing factor for the average response time.
const emaAlpha = 0.1

var (
	// QueriesTotal counts individual attempts against external sources.
	// Labels: source (data source name), status (success/failure)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_source_queries_total",
			Help: "Total number of queries issued against external sources",
		},
		[]string{"source", "status"},
	)

	// QueryDuration tracks the distribution of per-attempt response times.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tributary_source_query_duration_seconds",
			Help:    "Response time of queries against external sources",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// SyncsTotal counts completed sync runs.
	// Labels: source, status (success/failure)
	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_syncs_total",
			Help: "Total number of completed sync runs",
		},
		[]string{"source", "status"},
	)

	// DocumentsSynced counts documents produced by successful syncs.
	DocumentsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_documents_synced_total",
			Help: "Total number of documents produced by successful syncs",
		},
		[]string{"source"},
	)

	// RateLimitWaits tracks time spent blocked on the client-side rate gate.
	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tributary_rate_limit_wait_seconds_total",
			Help: "Cumulative time spent waiting for the client-side rate limiter",
		},
		[]string{"source"},
	)
)

// Metrics tracks a connector's running query totals and an exponentially
// weighted moving average response time. One instance per connector; the
// single in-flight sync is the only writer, but a mutex keeps snapshots
// taken by monitoring callers consistent.
type Metrics struct {
	mu     sync.Mutex
	source string

	totalQueries      int64
	successfulQueries int64
	failedQueries     int64
	avgResponseTime   time.Duration
	lastQueryAt       time.Time
}

// NewMetrics creates a metrics tracker labeled with the source name.
func NewMetrics(source string) *Metrics {
	return &Metrics{source: source}
}

// RecordQuery records one attempt. Called by the retry executor after every
// attempt, success or failure.
func (m *Metrics) RecordQuery(responseTime time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	status := "success"
	if success {
		m.successfulQueries++
	} else {
		m.failedQueries++
		status = "failure"
	}

	if m.totalQueries == 1 {
		m.avgResponseTime = responseTime
	} else {
		m.avgResponseTime = time.Duration(
			emaAlpha*float64(responseTime) + (1-emaAlpha)*float64(m.avgResponseTime))
	}
	m.lastQueryAt = time.Now()

	QueriesTotal.WithLabelValues(m.source, status).Inc()
	QueryDuration.WithLabelValues(m.source).Observe(responseTime.Seconds())
}

// Snapshot returns a copy of the current totals.
func (m *Metrics) Snapshot() core.ConnectorMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return core.ConnectorMetrics{
		TotalQueries:      m.totalQueries,
		SuccessfulQueries: m.successfulQueries,
		FailedQueries:     m.failedQueries,
		AvgResponseTime:   m.avgResponseTime,
		LastQueryAt:       m.lastQueryAt,
	}
}

// Reset zeroes all totals. Metrics are never reset implicitly.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries = 0
	m.successfulQueries = 0
	m.failedQueries = 0
	m.avgResponseTime = 0
	m.lastQueryAt = time.Time{}
}
