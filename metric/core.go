package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core routing metrics shared by the transport,
// dispatcher, and processing stages. Domain-specific metrics register
// separately through the Registrar interface.
type Metrics struct {
	// Lifecycle metrics
	ServiceStatus *prometheus.GaugeVec

	// Envelope flow metrics
	EnvelopesEnqueued     *prometheus.CounterVec
	EnvelopesDelivered    *prometheus.CounterVec
	EnvelopesRetried      *prometheus.CounterVec
	EnvelopesDeadLettered *prometheus.CounterVec
	DeliveryDuration      *prometheus.HistogramVec
	QueueDepth            *prometheus.GaugeVec
	EnvelopesInFlight     *prometheus.GaugeVec
	LockRenewals          *prometheus.CounterVec
	ErrorsTotal           *prometheus.CounterVec

	// Health metrics
	HealthStatus *prometheus.GaugeVec
	HealthRTT    *prometheus.GaugeVec

	// Transport connection metrics
	TransportConnected  prometheus.Gauge
	TransportRTT        prometheus.Gauge
	TransportReconnects prometheus.Counter
	CircuitBreaker      prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every core metric initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "service",
				Name:      "status",
				Help:      "Component status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"component"},
		),

		EnvelopesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "envelopes",
				Name:      "enqueued_total",
				Help:      "Total number of envelopes accepted for delivery",
			},
			[]string{"subject"},
		),

		EnvelopesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "envelopes",
				Name:      "delivered_total",
				Help:      "Total number of handler deliveries by outcome",
			},
			[]string{"subject", "outcome"},
		),

		EnvelopesRetried: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "envelopes",
				Name:      "retried_total",
				Help:      "Total number of envelopes scheduled for redelivery",
			},
			[]string{"subject"},
		),

		EnvelopesDeadLettered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "envelopes",
				Name:      "dead_lettered_total",
				Help:      "Total number of envelopes moved to the dead-letter queue",
			},
			[]string{"subject", "reason"},
		),

		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "delivery",
				Name:      "duration_seconds",
				Help:      "Handler execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"subject"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Envelopes waiting for delivery",
			},
			[]string{"subject"},
		),

		EnvelopesInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "delivery",
				Name:      "in_flight",
				Help:      "Envelopes currently locked by a handler",
			},
			[]string{"subject"},
		),

		LockRenewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "locks",
				Name:      "renewals_total",
				Help:      "Total number of delivery lock renewals by status",
			},
			[]string{"subject", "status"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by classification",
			},
			[]string{"component", "class"},
		),

		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),

		HealthRTT: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "rtt_milliseconds",
				Help:      "Health check round-trip time in milliseconds",
			},
			[]string{"component"},
		),

		TransportConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "connected",
				Help:      "Transport connection status (0=disconnected, 1=connected)",
			},
		),

		TransportRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "rtt_milliseconds",
				Help:      "Transport round-trip time in milliseconds",
			},
		),

		TransportReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "reconnects_total",
				Help:      "Total number of transport reconnections",
			},
		),

		CircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "circuit_breaker",
				Help:      "Transport circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// mustRegister registers every core metric with reg. Called once from
// NewRegistry; panics only on programmer error.
func (m *Metrics) mustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.ServiceStatus,
		m.EnvelopesEnqueued,
		m.EnvelopesDelivered,
		m.EnvelopesRetried,
		m.EnvelopesDeadLettered,
		m.DeliveryDuration,
		m.QueueDepth,
		m.EnvelopesInFlight,
		m.LockRenewals,
		m.ErrorsTotal,
		m.HealthStatus,
		m.HealthRTT,
		m.TransportConnected,
		m.TransportRTT,
		m.TransportReconnects,
		m.CircuitBreaker,
	)
}

// RecordServiceStatus updates a component lifecycle status.
func (m *Metrics) RecordServiceStatus(component string, status int) {
	m.ServiceStatus.WithLabelValues(component).Set(float64(status))
}

// RecordEnqueued increments the accepted-envelope counter.
func (m *Metrics) RecordEnqueued(subject string) {
	m.EnvelopesEnqueued.WithLabelValues(subject).Inc()
}

// RecordDelivered increments the delivery counter for an outcome.
func (m *Metrics) RecordDelivered(subject, outcome string) {
	m.EnvelopesDelivered.WithLabelValues(subject, outcome).Inc()
}

// RecordRetry increments the redelivery counter.
func (m *Metrics) RecordRetry(subject string) {
	m.EnvelopesRetried.WithLabelValues(subject).Inc()
}

// RecordDeadLetter increments the dead-letter counter for a reason.
func (m *Metrics) RecordDeadLetter(subject, reason string) {
	m.EnvelopesDeadLettered.WithLabelValues(subject, reason).Inc()
}

// RecordDeliveryDuration records a handler execution time.
func (m *Metrics) RecordDeliveryDuration(subject string, d time.Duration) {
	m.DeliveryDuration.WithLabelValues(subject).Observe(d.Seconds())
}

// SetQueueDepth updates the waiting-envelope gauge for a subject.
func (m *Metrics) SetQueueDepth(subject string, depth int) {
	m.QueueDepth.WithLabelValues(subject).Set(float64(depth))
}

// IncInFlight marks one more envelope locked for delivery.
func (m *Metrics) IncInFlight(subject string) {
	m.EnvelopesInFlight.WithLabelValues(subject).Inc()
}

// DecInFlight marks one envelope released.
func (m *Metrics) DecInFlight(subject string) {
	m.EnvelopesInFlight.WithLabelValues(subject).Dec()
}

// RecordLockRenewal tracks a lock renewal attempt.
func (m *Metrics) RecordLockRenewal(subject string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.LockRenewals.WithLabelValues(subject, status).Inc()
}

// RecordError increments the error counter for a component and class.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordHealthStatus updates a component health gauge.
func (m *Metrics) RecordHealthStatus(component string, status int) {
	m.HealthStatus.WithLabelValues(component).Set(float64(status))
}

// RecordHealthRTT updates a component health round-trip gauge.
func (m *Metrics) RecordHealthRTT(component string, rtt time.Duration) {
	m.HealthRTT.WithLabelValues(component).Set(float64(rtt.Milliseconds()))
}

// RecordTransportStatus updates the transport connection gauge.
func (m *Metrics) RecordTransportStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.TransportConnected.Set(value)
}

// RecordTransportRTT updates the transport round-trip gauge.
func (m *Metrics) RecordTransportRTT(rtt time.Duration) {
	m.TransportRTT.Set(float64(rtt.Milliseconds()))
}

// RecordTransportReconnect increments the reconnection counter.
func (m *Metrics) RecordTransportReconnect() {
	m.TransportReconnects.Inc()
}

// RecordCircuitBreakerState updates the circuit breaker gauge.
func (m *Metrics) RecordCircuitBreakerState(state int) {
	m.CircuitBreaker.Set(float64(state))
}
