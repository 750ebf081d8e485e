package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
)

const (
	// DefaultLatencyThreshold marks a probe degraded when its round trip
	// takes longer.
	DefaultLatencyThreshold = 5 * time.Second

	// DefaultProbeTimeout bounds each dependency probe. It exceeds the
	// latency threshold so a slow round trip finishes and reports degraded
	// instead of timing out.
	DefaultProbeTimeout = 10 * time.Second

	// criticalComponent is the dependency key for the round-trip probe.
	criticalComponent = "router"
)

// Probe checks one dependency. A nil error means healthy; an error means
// the dependency is degraded. Probes must respect ctx.
type Probe func(ctx context.Context) error

// RoundTripper is the critical-path check: whoever moves envelopes proves
// it still can.
type RoundTripper interface {
	HealthCheck(ctx context.Context) error
}

// QueueDepther reports per-subject backlog for the report's depth section.
type QueueDepther interface {
	QueueDepth(ctx context.Context, subject string) (int, error)
}

// Report is the full health check result, shaped for the health endpoint.
type Report struct {
	Status              Status            `json:"status"`
	State               State             `json:"state"`
	Timestamp           time.Time         `json:"timestamp"`
	Duration            time.Duration     `json:"duration"`
	Dependencies        map[string]Status `json:"dependencies"`
	ThroughputPerMinute float64           `json:"throughput_per_minute"`
	ErrorRate           float64           `json:"error_rate"`
	QueueDepths         map[string]int    `json:"queue_depths,omitempty"`
}

// Checker composes the critical round trip, registered dependency probes,
// tracker-derived throughput, and queue depths into one Report. Every call
// probes fresh; the checker holds no sticky state.
type Checker struct {
	critical  RoundTripper
	component string

	probes   map[string]Probe
	tracker  *Tracker
	depths   QueueDepther
	subjects []string

	timeout   time.Duration
	threshold time.Duration

	logger  *slog.Logger
	metrics *metric.Metrics
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithComponent names the system in the aggregate status.
func WithComponent(name string) CheckerOption {
	return func(c *Checker) {
		if name != "" {
			c.component = name
		}
	}
}

// WithProbe registers a named dependency probe. Probe failures degrade the
// report; only the critical round trip can make it unhealthy. Registering
// the same name again replaces the earlier probe.
func WithProbe(name string, probe Probe) CheckerOption {
	return func(c *Checker) {
		if name != "" && probe != nil {
			c.probes[name] = probe
		}
	}
}

// WithTracker supplies the signal tracker for throughput and error rate.
func WithTracker(tracker *Tracker) CheckerOption {
	return func(c *Checker) { c.tracker = tracker }
}

// WithQueueDepths adds per-subject backlog readings to the report.
func WithQueueDepths(depths QueueDepther, subjects ...string) CheckerOption {
	return func(c *Checker) {
		c.depths = depths
		c.subjects = subjects
	}
}

// WithProbeTimeout bounds each probe's run time.
func WithProbeTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLatencyThreshold sets the round-trip duration above which a healthy
// probe reports degraded.
func WithLatencyThreshold(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.threshold = d
		}
	}
}

// WithCheckerLogger sets the logger.
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckerMetrics publishes per-dependency health gauges.
func WithCheckerMetrics(m *metric.Metrics) CheckerOption {
	return func(c *Checker) { c.metrics = m }
}

// NewChecker creates a checker around the critical round-trip dependency.
func NewChecker(critical RoundTripper, opts ...CheckerOption) (*Checker, error) {
	if critical == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"health", "NewChecker", "round-trip dependency is required")
	}

	c := &Checker{
		critical:  critical,
		component: "servicedesk",
		probes:    make(map[string]Probe),
		timeout:   DefaultProbeTimeout,
		threshold: DefaultLatencyThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// A probe honoring its context must outlive the latency threshold or
	// slow round trips surface as timeouts rather than degraded.
	if c.timeout <= c.threshold {
		c.timeout = 2 * c.threshold
	}
	return c, nil
}

// Check probes everything in parallel and aggregates the results. It never
// returns an error and never panics: probe errors degrade the report, probe
// panics mark that dependency unhealthy with the panic detail.
func (c *Checker) Check(ctx context.Context) Report {
	start := time.Now()

	deps := make(map[string]Status, len(c.probes)+1)
	depths := make(map[string]int, len(c.subjects))
	var mu sync.Mutex

	record := func(st Status) {
		mu.Lock()
		deps[st.Component] = st
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record(c.runProbe(gctx, criticalComponent, c.critical.HealthCheck, true))
		return nil
	})

	for name, probe := range c.probes {
		g.Go(func() error {
			record(c.runProbe(gctx, name, probe, false))
			return nil
		})
	}

	if c.depths != nil && len(c.subjects) > 0 {
		g.Go(func() error {
			for _, subject := range c.subjects {
				depthCtx, cancel := context.WithTimeout(gctx, c.timeout)
				n, err := c.depths.QueueDepth(depthCtx, subject)
				cancel()
				if err != nil {
					c.logger.Warn("queue depth probe failed", "subject", subject, "error", err)
					continue
				}
				mu.Lock()
				depths[subject] = n
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	statuses := make([]Status, 0, len(deps))
	for _, st := range deps {
		statuses = append(statuses, st)
	}
	overall := Aggregate(c.component, statuses)

	var completed, failed float64
	if c.tracker != nil {
		if s, ok := c.tracker.Snapshot(SignalCompleted); ok {
			completed = s.RatePerMinute
		}
		if s, ok := c.tracker.Snapshot(SignalFailed); ok {
			failed = s.RatePerMinute
		}
	}
	throughput := completed + failed
	errorRate := 0.0
	if throughput > 0 {
		errorRate = failed / throughput
	}

	if c.metrics != nil {
		c.metrics.RecordHealthStatus(c.component, stateGauge(overall.State))
		for name, st := range deps {
			c.metrics.RecordHealthStatus(name, stateGauge(st.State))
			if st.Latency > 0 {
				c.metrics.RecordHealthRTT(name, st.Latency)
			}
		}
	}

	return Report{
		Status:              overall,
		State:               overall.State,
		Timestamp:           start,
		Duration:            time.Since(start),
		Dependencies:        deps,
		ThroughputPerMinute: throughput,
		ErrorRate:           errorRate,
		QueueDepths:         depths,
	}
}

// runProbe executes one probe with a bounded timeout and classifies the
// outcome.
func (c *Checker) runProbe(ctx context.Context, name string, probe Probe, critical bool) Status {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	panicked, err := runGuarded(probeCtx, probe)
	latency := time.Since(started)

	var st Status
	switch {
	case panicked:
		st = NewUnhealthy(name, sanitizeErrorMessage(err.Error()))
	case err != nil && critical:
		st = NewUnhealthy(name, sanitizeErrorMessage(err.Error()))
	case err != nil:
		st = NewDegraded(name, sanitizeErrorMessage(err.Error()))
	case latency > c.threshold:
		st = NewDegraded(name, fmt.Sprintf("Round trip took %v", latency.Round(time.Millisecond)))
	default:
		st = NewHealthy(name, "Probe completed")
	}
	return st.WithLatency(latency)
}

// runGuarded runs the probe and converts a panic into an error.
func runGuarded(ctx context.Context, probe Probe) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
			panicked = true
		}
	}()
	return false, probe(ctx)
}

// stateGauge maps states onto the health gauge scale (0=unhealthy,
// 1=degraded, 2=healthy).
func stateGauge(s State) int {
	switch s {
	case StateHealthy:
		return 2
	case StateDegraded:
		return 1
	default:
		return 0
	}
}
