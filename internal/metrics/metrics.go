// Package metrics exposes Prometheus instruments for the scheduler server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the server's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RPCRequests      *prometheus.CounterVec
	EventsCreated    prometheus.Counter
	LedgerAppends    prometheus.Counter
	MutationFailures *prometheus.CounterVec
	LockWait         prometheus.Histogram
	SyncRuns         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all instruments with reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendezvous_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rendezvous_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendezvous_grpc_requests_total",
			Help: "gRPC unary calls by method and status code",
		}, []string{"method", "code"}),
		EventsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rendezvous_events_created_total",
			Help: "Events created",
		}),
		LedgerAppends: f.NewCounter(prometheus.CounterOpts{
			Name: "rendezvous_ledger_appends_total",
			Help: "Update log entries appended",
		}),
		MutationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendezvous_mutation_failures_total",
			Help: "Rejected or failed event mutations by operation and error code",
		}, []string{"op", "code"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rendezvous_event_lock_wait_seconds",
			Help:    "Time spent waiting for the per-event lock",
			Buckets: latencyBuckets,
		}),
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendezvous_sync_runs_total",
			Help: "Sync runs by destination and result",
		}, []string{"destination", "result"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, code int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// ObserveRPC records one finished unary RPC.
func (m *Metrics) ObserveRPC(method, code string) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(method, code).Inc()
}

// IncrementEventsCreated records a successful createEvent.
func (m *Metrics) IncrementEventsCreated() {
	if m == nil {
		return
	}
	m.EventsCreated.Inc()
}

// IncrementLedgerAppends records one appended update log entry.
func (m *Metrics) IncrementLedgerAppends() {
	if m == nil {
		return
	}
	m.LedgerAppends.Inc()
}

// IncrementMutationFailure records a rejected mutation. An empty code means
// an infrastructure failure.
func (m *Metrics) IncrementMutationFailure(op, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "internal"
	}
	m.MutationFailures.WithLabelValues(op, code).Inc()
}

// ObserveLockWait records how long a caller waited for an event lock.
// Call with time.Now() taken before locking.
func (m *Metrics) ObserveLockWait(start time.Time) {
	if m == nil {
		return
	}
	m.LockWait.Observe(time.Since(start).Seconds())
}

// IncrementSyncRun records the outcome of one sync to a destination.
func (m *Metrics) IncrementSyncRun(destination string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SyncRuns.WithLabelValues(destination, result).Inc()
}
