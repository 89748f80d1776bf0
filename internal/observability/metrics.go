package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "activities"

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "core",
		Name:      "commands_total",
		Help:      "Commands handled by the core services, by operation and outcome.",
	}, []string{"operation", "outcome"})

	broadcastFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "failures_total",
		Help:      "Comment broadcasts that could not be handed to the realtime channel.",
	})

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Currently connected realtime clients.",
	})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events handed to the broker, by type and outcome.",
	}, []string{"type", "outcome"})

	reconcileFixed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "rows_fixed_total",
		Help:      "User rows whose follower counters were repaired.",
	})

	reconcileLastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last successful reconcile pass.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		commandsTotal,
		broadcastFailures,
		wsConnections,
		eventsPublished,
		reconcileFixed,
		reconcileLastRun,
	)
}

func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// RecordCommand counts a core command; err decides the outcome label.
func RecordCommand(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	commandsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordBroadcastFailure() {
	broadcastFailures.Inc()
}

func SetWSConnections(n int) {
	wsConnections.Set(float64(n))
}

func RecordEventPublished(eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	eventsPublished.WithLabelValues(eventType, outcome).Inc()
}

func RecordReconcile(fixed int64, at time.Time) {
	reconcileFixed.Add(float64(fixed))
	reconcileLastRun.Set(float64(at.Unix()))
}
