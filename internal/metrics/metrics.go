// Package metrics holds the Prometheus collectors for ingestion and the
// query tools. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insights"

type Metrics struct {
	registry *prometheus.Registry

	matchesIngested prometheus.Counter
	matchesSkipped  prometheus.Counter
	matchFailures   *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	riotRequests    *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	lastSyncTS      prometheus.Gauge
}

// New creates the collectors on a private registry so tests can build as
// many instances as they like.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.matchesIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_ingested_total",
		Help:      "Matches normalized and written to the store",
	})
	m.matchesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_skipped_total",
		Help:      "Listed matches skipped because they were already stored or previously rejected",
	})
	m.matchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_failures_total",
		Help:      "Per-match ingestion failures by error kind",
	}, []string{"kind"})
	m.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Wall time of a sync run",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	m.riotRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "riot_requests_total",
		Help:      "Requests sent to the Riot API by endpoint and status",
	}, []string{"endpoint", "status"})
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Query tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})
	m.lastSyncTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix time of the last completed sync",
	})

	m.registry.MustRegister(
		m.matchesIngested, m.matchesSkipped, m.matchFailures, m.syncDuration,
		m.riotRequests, m.toolCalls, m.lastSyncTS,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MatchIngested() {
	if m == nil {
		return
	}
	m.matchesIngested.Inc()
}

func (m *Metrics) MatchSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.matchesSkipped.Add(float64(n))
}

func (m *Metrics) MatchFailed(kind string) {
	if m == nil {
		return
	}
	m.matchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SyncFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
	m.lastSyncTS.SetToCurrentTime()
}

func (m *Metrics) RiotRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	m.riotRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}
