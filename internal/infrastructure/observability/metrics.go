package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Generation metrics
	ItemsGenerated       *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec
	GenerationDuration   *prometheus.HistogramVec

	// Dispatch metrics
	MessagesSent     *prometheus.CounterVec
	SendDuration     *prometheus.HistogramVec
	PendingItems     *prometheus.GaugeVec
	BlockedItems     prometheus.Gauge
	SchedulerRuns    *prometheus.CounterVec
	SchedulerSkips   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gateway circuit breaker metrics
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		ItemsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_generated_total",
				Help:      "Queue items produced by the generator, by type and result",
			},
			[]string{"type", "result"},
		),
		DuplicatesSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicates_suppressed_total",
				Help:      "Generation attempts rejected by the pending uniqueness rule",
			},
			[]string{"type"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Queue generation duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Dispatch outcomes by type, mode and status",
			},
			[]string{"type", "mode", "status"},
		),
		SendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Per message delivery duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"type"},
		),
		PendingItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_items",
				Help:      "Items currently waiting to be sent",
			},
			[]string{"type"},
		),
		BlockedItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "blocked_items",
				Help:      "Pending items currently masked by the block list",
			},
		),
		SchedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_runs_total",
				Help:      "Automatic runs by outcome",
			},
			[]string{"outcome"},
		),
		SchedulerSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_skips_total",
				Help:      "Scheduler ticks that did not run, by reason",
			},
			[]string{"reason"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.ItemsGenerated,
		m.DuplicatesSuppressed,
		m.GenerationDuration,
		m.MessagesSent,
		m.SendDuration,
		m.PendingItems,
		m.BlockedItems,
		m.SchedulerRuns,
		m.SchedulerSkips,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
	)

	return m
}
