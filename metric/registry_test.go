package metric

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.Core())
}

func gatheredNames(t *testing.T, registry *Registry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestRegistry_RegisterCounter(t *testing.T) {
	registry := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("triage", "test_counter", counter))
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"],
		"Counter should be registered in Prometheus registry")
}

func TestRegistry_RegisterGauge(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	require.NoError(t, registry.RegisterGauge("triage", "test_gauge", gauge))
	gauge.Set(42.0)

	assert.True(t, gatheredNames(t, registry)["test_gauge"],
		"Gauge should be registered in Prometheus registry")
}

func TestRegistry_RegisterHistogram(t *testing.T) {
	registry := NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_histogram",
		Help:    "A test histogram",
		Buckets: prometheus.DefBuckets,
	})

	require.NoError(t, registry.RegisterHistogram("triage", "test_histogram", histogram))
	histogram.Observe(0.42)

	assert.True(t, gatheredNames(t, registry)["test_histogram"],
		"Histogram should be registered in Prometheus registry")
}

func TestRegistry_DuplicateRegistrationRejected(t *testing.T) {
	registry := NewRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "First registration",
	})
	require.NoError(t, registry.RegisterCounter("triage", "dup_counter", first))

	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter_other",
		Help: "Second registration under the same key",
	})
	err := registry.RegisterCounter("triage", "dup_counter", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "duplicate registration should classify as invalid")
}

func TestRegistry_PrometheusConflictRejected(t *testing.T) {
	registry := NewRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_counter",
		Help: "Claims the Prometheus name",
	})
	require.NoError(t, registry.RegisterCounter("triage", "one", first))

	// Different registry key, same Prometheus metric name.
	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflict_counter",
		Help: "Claims the Prometheus name",
	})
	err := registry.RegisterCounter("knowledge", "two", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "prometheus conflict should classify as invalid")
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transient_counter",
		Help: "Registered then removed",
	})
	require.NoError(t, registry.RegisterCounter("triage", "transient", counter))

	assert.True(t, registry.Unregister("triage", "transient"))
	assert.False(t, registry.Unregister("triage", "transient"),
		"second unregister should report missing")

	// The slot is free again after unregistering.
	replacement := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transient_counter",
		Help: "Registered then removed",
	})
	require.NoError(t, registry.RegisterCounter("triage", "transient", replacement))
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewRegistry()

	const goroutines = 10
	results := make(chan error, goroutines)

	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", i),
				Help: "Concurrent registration",
			})
			results <- registry.RegisterCounter("triage", fmt.Sprintf("concurrent_%d", i), counter)
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		assert.NoError(t, err)
	}
}

func TestCoreMetrics_RecordedValuesExposed(t *testing.T) {
	registry := NewRegistry()
	core := registry.Core()

	core.RecordEnqueued("ticket.triage")
	core.RecordDelivered("ticket.triage", "success")
	core.RecordRetry("ticket.triage")
	core.RecordDeadLetter("ticket.triage", "max_delivery_attempts")
	core.RecordDeliveryDuration("ticket.triage", 25*time.Millisecond)
	core.SetQueueDepth("ticket.triage", 3)
	core.IncInFlight("ticket.triage")
	core.RecordLockRenewal("ticket.triage", true)
	core.RecordHealthStatus("transport", 2)
	core.RecordHealthRTT("transport", 12*time.Millisecond)
	core.RecordTransportStatus(true)

	names := gatheredNames(t, registry)
	for _, want := range []string{
		"servicedesk_envelopes_enqueued_total",
		"servicedesk_envelopes_delivered_total",
		"servicedesk_envelopes_retried_total",
		"servicedesk_envelopes_dead_lettered_total",
		"servicedesk_delivery_duration_seconds",
		"servicedesk_queue_depth",
		"servicedesk_delivery_in_flight",
		"servicedesk_locks_renewals_total",
		"servicedesk_health_status",
		"servicedesk_health_rtt_milliseconds",
		"servicedesk_transport_connected",
	} {
		assert.True(t, names[want], "expected %s to be exposed", want)
	}
}
