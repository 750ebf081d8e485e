package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/health"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/pkg/backoff"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/transport"
)

// Router defaults. Every one of them can be overridden with an Option.
const (
	// DefaultMaxDeliveryAttempts is how many times an envelope is handed to
	// a handler before a still-failing delivery is dead-lettered.
	DefaultMaxDeliveryAttempts = 3

	// DefaultMaxConcurrent bounds in-flight handler invocations per subject
	// when HandlerOptions does not say otherwise.
	DefaultMaxConcurrent = 4

	// DefaultHealthTimeout bounds the transport round trip in HealthCheck.
	DefaultHealthTimeout = 10 * time.Second

	// settleTimeout bounds Complete/Abandon/DeadLetter/RenewLock calls.
	// Settles run on a background context so a shutdown in progress cannot
	// strand an already-finished delivery.
	settleTimeout = 5 * time.Second
)

// Handler processes one delivered envelope and reports the verdict. The
// context is canceled when the router shuts down or the delivery lock is
// lost; handlers should stop work when that happens and return.
type Handler func(ctx context.Context, env *envelope.Envelope) Outcome

// HandlerOptions tunes delivery for one subject. Zero values take the
// router defaults.
type HandlerOptions struct {
	// MaxConcurrent bounds simultaneous handler invocations for the subject.
	MaxConcurrent int

	// LockRenewalInterval is the heartbeat period keeping long-running
	// deliveries locked. It should be well under the transport's lock
	// duration; the default is a third of it.
	LockRenewalInterval time.Duration

	// RateLimit caps handler invocations per second for the subject.
	// Zero means unlimited.
	RateLimit rate.Limit

	// RateBurst is the burst size when RateLimit is set. Zero takes
	// MaxConcurrent.
	RateBurst int
}

// registration binds one subject to its handler and delivery tuning.
type registration struct {
	subject string
	handler Handler
	opts    HandlerOptions
	limiter *rate.Limiter
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics wires delivery counters, histograms, and in-flight gauges.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithTracker wires the sliding-window tracker the health checker derives
// throughput and error rate from.
func WithTracker(t *health.Tracker) Option {
	return func(r *Router) {
		r.tracker = t
	}
}

// WithBackoff sets the redelivery delay strategy. Defaults to
// backoff.Default().
func WithBackoff(s backoff.Strategy) Option {
	return func(r *Router) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithMaxDeliveryAttempts caps delivery attempts per envelope. Ignored if
// n < 1.
func WithMaxDeliveryAttempts(n int) Option {
	return func(r *Router) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

// WithLockDuration tells the router the transport's delivery lock length,
// from which the default renewal interval (a third of it) is derived.
func WithLockDuration(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.lockDuration = d
		}
	}
}

// WithDefaultHandlerOptions replaces the defaults applied to registrations
// whose HandlerOptions leave fields zero.
func WithDefaultHandlerOptions(opts HandlerOptions) Option {
	return func(r *Router) {
		r.defaults = opts
	}
}

// WithHealthTimeout bounds the HealthCheck round trip.
func WithHealthTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.healthTimeout = d
		}
	}
}

// Router delivers envelopes from a Transport to registered handlers with
// bounded per-subject concurrency, retry with capped exponential backoff,
// and dead-lettering on exhaustion. One Router owns all consumption from
// its transport; handlers run fully concurrently outside the router's
// internal lock.
type Router struct {
	tr transport.Transport

	mu       sync.Mutex
	handlers map[string]*registration
	started  bool
	stopped  bool

	maxAttempts   int
	lockDuration  time.Duration
	healthTimeout time.Duration
	defaults      HandlerOptions
	strategy      backoff.Strategy

	logger  *slog.Logger
	metrics *metric.Metrics
	tracker *health.Tracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRouter creates a Router over the given transport.
func NewRouter(tr transport.Transport, opts ...Option) (*Router, error) {
	if tr == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Router", "New", "nil transport")
	}

	r := &Router{
		tr:            tr,
		handlers:      make(map[string]*registration),
		maxAttempts:   DefaultMaxDeliveryAttempts,
		lockDuration:  transport.DefaultLockDuration,
		healthTimeout: DefaultHealthTimeout,
		strategy:      backoff.Default(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	if r.defaults.MaxConcurrent <= 0 {
		r.defaults.MaxConcurrent = DefaultMaxConcurrent
	}
	if r.defaults.LockRenewalInterval <= 0 {
		r.defaults.LockRenewalInterval = r.lockDuration / 3
	}

	return r, nil
}

// RegisterHandler binds a handler to a subject. At most one handler may own
// a subject, and registration must happen before Start.
func (r *Router) RegisterHandler(subject string, h Handler, opts HandlerOptions) error {
	if subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Router", "RegisterHandler", "empty subject")
	}
	if h == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Router", "RegisterHandler", "nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Router", "RegisterHandler",
			"registration after Start")
	}
	if _, exists := r.handlers[subject]; exists {
		return errors.WrapInvalid(errors.ErrHandlerRegistered, "Router", "RegisterHandler",
			fmt.Sprintf("subject %q", subject))
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = r.defaults.MaxConcurrent
	}
	if opts.LockRenewalInterval <= 0 {
		opts.LockRenewalInterval = r.defaults.LockRenewalInterval
	}

	reg := &registration{subject: subject, handler: h, opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = opts.MaxConcurrent
		}
		reg.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	r.handlers[subject] = reg
	return nil
}

// Subjects returns the registered subjects, for health wiring and admin
// surfaces.
func (r *Router) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := make([]string, 0, len(r.handlers))
	for subject := range r.handlers {
		subjects = append(subjects, subject)
	}
	return subjects
}

// Enqueue accepts an envelope for delivery, deciding synchronously.
// Rejections leave the queue untouched: structural validation failures are
// Invalid, an already-elapsed time-to-live is Expired, and transport
// failures are Transient and worth the caller retrying.
func (r *Router) Enqueue(ctx context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Router", "Enqueue", "nil envelope")
	}
	if err := env.Validate(); err != nil {
		r.recordError(err)
		return errors.WrapInvalid(err, "Router", "Enqueue", "envelope validation failed")
	}
	if env.Expired(time.Now()) {
		err := errors.WrapExpired(errors.ErrEnvelopeExpired, "Router", "Enqueue",
			"time-to-live elapsed before enqueue")
		r.recordError(err)
		return err
	}

	if err := r.tr.Send(ctx, env); err != nil {
		r.recordError(err)
		return errors.WrapTransient(err, "Router", "Enqueue", "transport send failed")
	}

	if r.metrics != nil {
		r.metrics.RecordEnqueued(env.Subject())
	}
	return nil
}

// Start opens a receive stream per registered subject and launches its
// workers. The context governs the whole dispatch lifetime; Stop cancels a
// derived context, so passing context.Background() is typical.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Router", "Start", "router already started")
	}
	if len(r.handlers) == 0 {
		return errors.WrapInvalid(errors.ErrNoHandler, "Router", "Start", "no handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)

	for subject, reg := range r.handlers {
		ch, err := r.tr.Receive(runCtx, subject)
		if err != nil {
			cancel()
			return errors.WrapTransient(err, "Router", "Start",
				fmt.Sprintf("receive stream for %q", subject))
		}
		for i := 0; i < reg.opts.MaxConcurrent; i++ {
			r.wg.Add(1)
			go r.worker(runCtx, reg, ch)
		}
	}

	r.cancel = cancel
	r.started = true
	r.logger.Info("router started",
		"subjects", len(r.handlers),
		"max_delivery_attempts", r.maxAttempts)
	return nil
}

// Stop cancels dispatch and waits up to timeout for in-flight handlers to
// drain. Envelopes still locked when the timeout fires are recovered by the
// transport's lock expiry.
func (r *Router) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		r.logger.Info("router stopped")
		return nil
	case <-timer.C:
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Router", "Stop",
			"workers did not drain before timeout")
	}
}

// HealthCheck verifies the transport is reachable via a non-mutating round
// trip, bounded by the router's health timeout.
func (r *Router) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()
	return r.tr.HealthCheck(ctx)
}

// worker consumes one subject's delivery stream until shutdown. Several
// workers share the stream; the transport guarantees each envelope reaches
// exactly one of them.
func (r *Router) worker(ctx context.Context, reg *registration, ch <-chan *envelope.Envelope) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			r.process(ctx, reg, env)
		}
	}
}

// process runs one delivery attempt end to end: expiry double-check, rate
// limiting, lock-renewal heartbeat, handler invocation, and settlement.
func (r *Router) process(ctx context.Context, reg *registration, env *envelope.Envelope) {
	logger := r.logger.With(
		"subject", reg.subject,
		"envelope_id", env.ID(),
		"delivery_count", env.DeliveryCount())

	// The transport sweeps expired envelopes, but one can expire between
	// claim and handoff. It must never reach a handler.
	if env.Expired(time.Now()) {
		r.deadLetter(logger, reg.subject, env, transport.ReasonExpired)
		return
	}

	if reg.limiter != nil {
		if err := reg.limiter.Wait(ctx); err != nil {
			// Shutdown while throttled: release the envelope untouched.
			r.settle(logger, "Abandon", func(sctx context.Context) error {
				return r.tr.Abandon(sctx, env, 0)
			})
			return
		}
	}

	if r.metrics != nil {
		r.metrics.IncInFlight(reg.subject)
		defer r.metrics.DecInFlight(reg.subject)
	}

	hctx, hcancel := context.WithCancel(ctx)
	defer hcancel()
	stopRenewal := r.startRenewal(reg, env, hcancel, logger)

	start := time.Now()
	outcome := r.invoke(hctx, reg.handler, env)
	elapsed := time.Since(start)
	stopRenewal()

	if r.metrics != nil {
		r.metrics.RecordDeliveryDuration(reg.subject, elapsed)
	}
	if r.tracker != nil {
		r.tracker.Record(health.SignalLatencyMS, float64(elapsed.Milliseconds()))
	}

	switch {
	case outcome.IsSuccess():
		r.settle(logger, "Complete", func(sctx context.Context) error {
			return r.tr.Complete(sctx, env)
		})
		if r.metrics != nil {
			r.metrics.RecordDelivered(reg.subject, "completed")
		}
		if r.tracker != nil {
			r.tracker.Record(health.SignalCompleted, 1)
		}
		logger.Debug("delivery completed", "duration", elapsed)

	case outcome.Retryable() && env.DeliveryCount() < r.maxAttempts:
		delay := r.strategy.Delay(env.DeliveryCount())
		r.settle(logger, "Abandon", func(sctx context.Context) error {
			return r.tr.Abandon(sctx, env, delay)
		})
		if r.metrics != nil {
			r.metrics.RecordRetry(reg.subject)
			r.metrics.RecordDelivered(reg.subject, "retried")
		}
		if r.tracker != nil {
			r.tracker.Record(health.SignalFailed, 1)
		}
		logger.Warn("delivery failed; scheduled for redelivery",
			"reason", outcome.Reason(),
			"error", outcome.Err(),
			"redeliver_after", delay)

	case outcome.Retryable():
		r.deadLetter(logger, reg.subject, env, transport.ReasonMaxDeliveryAttempts)
		if r.tracker != nil {
			r.tracker.Record(health.SignalFailed, 1)
		}
		logger.Error("delivery attempts exhausted; envelope dead-lettered",
			"reason", outcome.Reason(),
			"error", outcome.Err())

	default:
		reason := outcome.Reason()
		if reason == "" {
			reason = "PermanentFailure"
		}
		r.deadLetter(logger, reg.subject, env, reason)
		if r.tracker != nil {
			r.tracker.Record(health.SignalFailed, 1)
		}
		logger.Error("permanent failure; envelope dead-lettered",
			"reason", reason,
			"error", outcome.Err())
	}
}

// invoke runs the handler with panic containment. A panicking handler is a
// retryable failure, never a crashed worker.
func (r *Router) invoke(ctx context.Context, h Handler, env *envelope.Envelope) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic recovered",
				"envelope_id", env.ID(),
				"panic", rec,
				"stack", string(debug.Stack()))
			out = RetryableFailure("HandlerPanic", fmt.Errorf("handler panic: %v", rec))
		}
	}()
	return h(ctx, env)
}

// startRenewal launches the lock-renewal heartbeat for one delivery and
// returns a stop function. A failed renewal means the transport may already
// have requeued the envelope, so the handler context is canceled to stop
// work that can no longer be settled.
func (r *Router) startRenewal(reg *registration, env *envelope.Envelope, cancelHandler context.CancelFunc, logger *slog.Logger) func() {
	interval := reg.opts.LockRenewalInterval
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sctx, scancel := context.WithTimeout(context.Background(), settleTimeout)
				err := r.tr.RenewLock(sctx, env)
				scancel()

				if r.metrics != nil {
					r.metrics.RecordLockRenewal(reg.subject, err == nil)
				}
				if err != nil {
					logger.Warn("lock renewal failed; canceling handler", "error", err)
					cancelHandler()
					return
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// deadLetter settles an envelope into the dead-letter queue and records it.
func (r *Router) deadLetter(logger *slog.Logger, subject string, env *envelope.Envelope, reason string) {
	r.settle(logger, "DeadLetter", func(sctx context.Context) error {
		return r.tr.DeadLetter(sctx, env, reason)
	})
	if r.metrics != nil {
		r.metrics.RecordDeadLetter(subject, reason)
		r.metrics.RecordDelivered(subject, "dead_lettered")
	}
}

// settle runs one transport settlement on a bounded background context. A
// lost lock is logged and dropped: the transport has already reclaimed the
// envelope and redelivery handles the rest.
func (r *Router) settle(logger *slog.Logger, op string, fn func(ctx context.Context) error) {
	sctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := fn(sctx); err != nil {
		logger.Warn("settlement failed", "op", op, "error", err)
		r.recordError(err)
	}
}

// recordError counts a classified error against the dispatch component.
func (r *Router) recordError(err error) {
	if r.metrics != nil {
		r.metrics.RecordError("dispatch", errors.Classify(err).String())
	}
}
