package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Namespace prefixes every metric exported by this module.
const Namespace = "servicedesk"

// Registrar is the interface components use to register their own metrics.
type Registrar interface {
	RegisterCounter(component, name string, counter prometheus.Counter) error
	RegisterGauge(component, name string, gauge prometheus.Gauge) error
	RegisterHistogram(component, name string, histogram prometheus.Histogram) error
	RegisterCounterVec(component, name string, vec *prometheus.CounterVec) error
	RegisterGaugeVec(component, name string, vec *prometheus.GaugeVec) error
	RegisterHistogramVec(component, name string, vec *prometheus.HistogramVec) error
	Unregister(component, name string) bool
}

// Registry manages metric registration and lifecycle. Registration is keyed
// by component and metric name so two components cannot silently claim the
// same slot; Prometheus-level collisions are surfaced as classified errors
// instead of panics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	core               *Metrics
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a registry pre-populated with the core routing metrics
// and the standard Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		core:               NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.core.mustRegister(r.prometheusRegistry)

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry for handlers
// and test gathering.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Core returns the shared routing metrics.
func (r *Registry) Core() *Metrics {
	return r.core
}

// register adds a collector under component.name, rejecting duplicates at
// both the registry and Prometheus level.
func (r *Registry) register(component, name, op string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)

	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", name, component),
			"Registry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "Registry", op,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", op, "prometheus registration failed")
	}

	r.registered[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a component.
func (r *Registry) RegisterCounter(component, name string, counter prometheus.Counter) error {
	return r.register(component, name, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a component.
func (r *Registry) RegisterGauge(component, name string, gauge prometheus.Gauge) error {
	return r.register(component, name, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a component.
func (r *Registry) RegisterHistogram(component, name string, histogram prometheus.Histogram) error {
	return r.register(component, name, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric for a component.
func (r *Registry) RegisterCounterVec(component, name string, vec *prometheus.CounterVec) error {
	return r.register(component, name, "RegisterCounterVec", vec)
}

// RegisterGaugeVec registers a gauge vector metric for a component.
func (r *Registry) RegisterGaugeVec(component, name string, vec *prometheus.GaugeVec) error {
	return r.register(component, name, "RegisterGaugeVec", vec)
}

// RegisterHistogramVec registers a histogram vector metric for a component.
func (r *Registry) RegisterHistogramVec(component, name string, vec *prometheus.HistogramVec) error {
	return r.register(component, name, "RegisterHistogramVec", vec)
}

// Unregister removes a metric from the registry. Returns false if the metric
// was never registered.
func (r *Registry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)

	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	ok := r.prometheusRegistry.Unregister(collector)
	if ok {
		delete(r.registered, key)
	}
	return ok
}
