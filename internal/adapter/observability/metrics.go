package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// ThrottleDecisionsTotal counts canDispatch outcomes by connector and reason.
	ThrottleDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "throttle_decisions_total",
			Help: "Total canDispatch decisions by connector and outcome reason",
		},
		[]string{"connector", "reason"},
	)
	// ThrottleSlotsAcquired counts successful per-minute slot acquisitions.
	ThrottleSlotsAcquired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "throttle_slots_acquired_total",
			Help: "Total per-minute slots acquired by connector",
		},
		[]string{"connector"},
	)

	// DispatchBatchesTotal counts dispatcher batch outcomes by connector and outcome.
	DispatchBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_batches_total",
			Help: "Total dispatched batches by connector and outcome",
		},
		[]string{"connector", "outcome"},
	)
	// DispatchPassDuration records the wall-clock duration of a dispatcher pass.
	DispatchPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_pass_duration_seconds",
			Help:    "Duration of a single connector dispatch pass",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"connector"},
	)

	// RegistryTransitionsTotal counts search-registry state transitions.
	RegistryTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_transitions_total",
			Help: "Total search registry state transitions",
		},
		[]string{"from", "to"},
	)

	// ReconnectAttemptsTotal counts reconnect attempts by connector and outcome.
	ReconnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconnect_attempts_total",
			Help: "Total reconnect attempts by connector and outcome",
		},
		[]string{"connector", "outcome"},
	)
	// RequestQueueDepth tracks the number of queued dispatch intents per connector.
	RequestQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "request_queue_depth",
			Help: "Queued dispatch intents per connector",
		},
		[]string{"connector"},
	)
	// ConnectorHealth tracks current connector health as a gauge (0=healthy..4=unknown).
	ConnectorHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connector_health",
			Help: "Connector health state (0=healthy,1=degraded,2=unhealthy,3=offline,4=unknown)",
		},
		[]string{"connector"},
	)

	// CircuitBreakerStatus tracks circuit breaker state.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ThrottleDecisionsTotal)
	prometheus.MustRegister(ThrottleSlotsAcquired)
	prometheus.MustRegister(DispatchBatchesTotal)
	prometheus.MustRegister(DispatchPassDuration)
	prometheus.MustRegister(RegistryTransitionsTotal)
	prometheus.MustRegister(RequestQueueDepth)
	prometheus.MustRegister(ReconnectAttemptsTotal)
	prometheus.MustRegister(ConnectorHealth)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordThrottleDecision records a canDispatch outcome for a connector.
func RecordThrottleDecision(connector, reason string) {
	ThrottleDecisionsTotal.WithLabelValues(connector, reason).Inc()
}

// RecordSlotAcquired records a successful per-minute slot acquisition.
func RecordSlotAcquired(connector string) {
	ThrottleSlotsAcquired.WithLabelValues(connector).Inc()
}

// RecordDispatchBatch records a dispatcher batch outcome for a connector.
func RecordDispatchBatch(connector, outcome string) {
	DispatchBatchesTotal.WithLabelValues(connector, outcome).Inc()
}

// RecordRegistryTransition records a search registry state transition.
func RecordRegistryTransition(from, to string) {
	RegistryTransitionsTotal.WithLabelValues(from, to).Inc()
}

// SetRequestQueueDepth records the current queued-intent count for a connector.
func SetRequestQueueDepth(connector string, depth int) {
	RequestQueueDepth.WithLabelValues(connector).Set(float64(depth))
}

// RecordReconnectAttempt records a reconnect attempt outcome for a connector.
func RecordReconnectAttempt(connector, outcome string) {
	ReconnectAttemptsTotal.WithLabelValues(connector, outcome).Inc()
}

// SetConnectorHealth records the current health state as a gauge value.
func SetConnectorHealth(connector string, healthValue int) {
	ConnectorHealth.WithLabelValues(connector).Set(float64(healthValue))
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}
