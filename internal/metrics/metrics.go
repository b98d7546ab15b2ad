// Package metrics owns the prometheus collectors of the service. Each
// Metrics value has its own registry so tests can build one without
// touching global state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transbot"

type Metrics struct {
	registry *prometheus.Registry

	verifications   *prometheus.CounterVec
	adminActions    *prometheus.CounterVec
	replayDuration  *prometheus.HistogramVec
	noncesPruned    prometheus.Counter
	pruneFailures   prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_verifications_total",
			Help:      "Signed request verifications by outcome",
		}, []string{"outcome"}),
		adminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_admin_actions_total",
			Help:      "DLQ admin actions by action and response status",
		}, []string{"action", "status"}),
		replayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_worker_request_duration_seconds",
			Help:      "Duration of calls to the DLQ replay worker",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		noncesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_pruned_total",
			Help:      "Nonce ledger rows removed by scheduled pruning",
		}),
		pruneFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_prune_failures_total",
			Help:      "Failed nonce pruning runs",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.verifications,
		m.adminActions,
		m.replayDuration,
		m.noncesPruned,
		m.pruneFailures,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler exposes the registry in prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVerification counts one verification verdict.
func (m *Metrics) ObserveVerification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

// ObserveAdminAction counts one admin action with the status it produced.
func (m *Metrics) ObserveAdminAction(action string, status int) {
	m.adminActions.WithLabelValues(action, strconv.Itoa(status)).Inc()
}

// ObserveReplayCall records a replay worker call. status 0 means the call
// failed before a response arrived.
func (m *Metrics) ObserveReplayCall(status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.replayDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObservePrune records a pruning run.
func (m *Metrics) ObservePrune(deleted int64, err error) {
	if err != nil {
		m.pruneFailures.Inc()
		return
	}
	m.noncesPruned.Add(float64(deleted))
}

// ObserveHTTP records a served request. route is the mux path template.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
