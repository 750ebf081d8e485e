package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
)

// memEntry is a queued envelope with the earliest time it may be delivered.
type memEntry struct {
	env         *envelope.Envelope
	availableAt time.Time
}

// memQueue holds one subject's pending envelopes, bucketed by priority.
// Within a bucket, ready envelopes deliver in enqueue order; entries delayed
// for redelivery never block ready entries behind them.
type memQueue struct {
	buckets [][]*memEntry
	notify  chan struct{}
}

func newMemQueue() *memQueue {
	return &memQueue{
		buckets: make([][]*memEntry, len(envelope.Priorities())),
		notify:  make(chan struct{}, 1),
	}
}

func (q *memQueue) depth() int {
	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}

// signal wakes the subject's pump without blocking. A single buffered token
// is enough: the pump always re-scans after waking.
func (q *memQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// inflightEntry tracks a delivered envelope until it is completed,
// abandoned, dead-lettered, or its lock expires.
type inflightEntry struct {
	env         *envelope.Envelope
	subject     string
	lockedUntil time.Time
}

// receiver is the consumer side of one subject's stream.
type receiver struct {
	ch chan *envelope.Envelope
}

// MemoryOption configures the memory transport.
type MemoryOption func(*Memory)

// WithLockDuration sets how long delivered envelopes stay locked before the
// reaper may requeue them. Ignored if d <= 0.
func WithLockDuration(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.lockDuration = d
		}
	}
}

// WithSweepInterval sets how often expired locks are reaped and TTL-expired
// envelopes are dead-lettered. Ignored if d <= 0.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithMaxQueueDepth bounds each subject's pending queue. Sends beyond the
// bound fail with a transient queue-full error. Zero means unbounded.
func WithMaxQueueDepth(n int) MemoryOption {
	return func(m *Memory) {
		if n >= 0 {
			m.maxQueueDepth = n
		}
	}
}

// WithMemoryLogger sets the structured logger for background activity.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMemoryMetrics wires queue depth gauges and sweep counters to the core
// metrics. The router records delivery outcomes itself.
func WithMemoryMetrics(metrics *metric.Metrics) MemoryOption {
	return func(m *Memory) {
		m.metrics = metrics
	}
}

// Memory is an in-process Transport for development and tests. It honors the
// full contract: priority-then-FIFO ordering, delivery locks with expiry
// recovery, delayed redelivery, TTL sweep to the dead-letter queue, and a
// health round trip through its background machinery.
type Memory struct {
	mu          sync.Mutex
	queues      map[string]*memQueue
	inflight    map[string]*inflightEntry
	deadLetters map[string][]DeadLetter
	receivers   map[string]*receiver
	closed      bool

	lockDuration  time.Duration
	sweepInterval time.Duration
	maxQueueDepth int

	logger  *slog.Logger
	metrics *metric.Metrics

	shutdown chan struct{}
	wg       sync.WaitGroup

	// probes carries health check round trips through the reaper loop.
	probes chan chan struct{}
}

// NewMemory creates a memory transport and starts its reaper goroutine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		queues:        make(map[string]*memQueue),
		inflight:      make(map[string]*inflightEntry),
		deadLetters:   make(map[string][]DeadLetter),
		receivers:     make(map[string]*receiver),
		lockDuration:  DefaultLockDuration,
		sweepInterval: DefaultSweepInterval,
		maxQueueDepth: DefaultMaxQueueDepth,
		logger:        slog.Default(),
		shutdown:      make(chan struct{}),
		probes:        make(chan chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.wg.Add(1)
	go m.reaper()

	return m
}

// queueLocked returns the subject's queue, creating it on first use. Caller
// must hold m.mu.
func (m *Memory) queueLocked(subject string) *memQueue {
	q, ok := m.queues[subject]
	if !ok {
		q = newMemQueue()
		m.queues[subject] = q
	}
	return q
}

func (m *Memory) updateDepthLocked(subject string, q *memQueue) {
	if m.metrics != nil {
		m.metrics.SetQueueDepth(subject, q.depth())
	}
}

// Send accepts an envelope for delivery. Expired or invalid envelopes are
// rejected synchronously and the queue is left unchanged.
func (m *Memory) Send(_ context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Send", "nil envelope")
	}
	if err := env.Validate(); err != nil {
		return errors.WrapInvalid(err, "transport", "Send", "envelope validation failed")
	}

	now := time.Now()
	if env.Expired(now) {
		return errors.WrapExpired(errors.ErrEnvelopeExpired, "transport", "Send",
			"time-to-live elapsed before enqueue")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.WrapFatal(errors.ErrTransportClosed, "transport", "Send", "transport closed")
	}

	q := m.queueLocked(env.Subject())
	if m.maxQueueDepth > 0 && q.depth() >= m.maxQueueDepth {
		return errors.WrapTransient(errors.ErrQueueFull, "transport", "Send",
			"subject queue at capacity")
	}

	rank := env.Priority().Rank()
	q.buckets[rank] = append(q.buckets[rank], &memEntry{env: env.Clone(), availableAt: now})
	q.signal()
	m.updateDepthLocked(env.Subject(), q)

	return nil
}

// Receive starts streaming envelopes for subject. Only one receiver per
// subject may be active; the channel closes when ctx is canceled or the
// transport closes.
func (m *Memory) Receive(ctx context.Context, subject string) (<-chan *envelope.Envelope, error) {
	if subject == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Receive", "empty subject")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.WrapFatal(errors.ErrTransportClosed, "transport", "Receive", "transport closed")
	}
	if _, exists := m.receivers[subject]; exists {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "transport", "Receive",
			"subject already has a receiver")
	}

	q := m.queueLocked(subject)
	r := &receiver{ch: make(chan *envelope.Envelope)}
	m.receivers[subject] = r

	m.wg.Add(1)
	go m.pump(ctx, subject, q, r)

	return r.ch, nil
}

// pump moves envelopes from the subject queue to the receiver channel,
// claiming each one (lock + delivery count) before handing it out.
func (m *Memory) pump(ctx context.Context, subject string, q *memQueue, r *receiver) {
	defer func() {
		m.mu.Lock()
		delete(m.receivers, subject)
		m.mu.Unlock()
		close(r.ch)
		m.wg.Done()
	}()

	for {
		env, wait := m.claimNext(subject, q)
		if env == nil {
			var timer *time.Timer
			var timerC <-chan time.Time
			if wait > 0 {
				timer = time.NewTimer(wait)
				timerC = timer.C
			}
			select {
			case <-m.shutdown:
				stopTimer(timer)
				return
			case <-ctx.Done():
				stopTimer(timer)
				return
			case <-q.notify:
			case <-timerC:
			}
			stopTimer(timer)
			continue
		}

		select {
		case r.ch <- env:
			// Delivered; the envelope stays locked until the consumer
			// settles it or the lock expires.
		case <-m.shutdown:
			m.release(env, subject)
			return
		case <-ctx.Done():
			m.release(env, subject)
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// claimNext pops the highest-priority ready envelope, locks it, and
// increments its delivery count. When nothing is ready it returns the wait
// until the next delayed entry becomes available (zero means wait for a
// signal). TTL-expired entries found during the scan are dead-lettered.
func (m *Memory) claimNext(subject string, q *memQueue) (*envelope.Envelope, time.Duration) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var earliest time.Time
	for rank := len(q.buckets) - 1; rank >= 0; rank-- {
		bucket := q.buckets[rank]
		for i := 0; i < len(bucket); {
			e := bucket[i]

			if e.env.Expired(now) {
				bucket = append(bucket[:i], bucket[i+1:]...)
				q.buckets[rank] = bucket
				m.deadLetterLocked(subject, e.env, ReasonExpired, now)
				continue
			}
			if e.availableAt.After(now) {
				if earliest.IsZero() || e.availableAt.Before(earliest) {
					earliest = e.availableAt
				}
				i++
				continue
			}

			bucket = append(bucket[:i], bucket[i+1:]...)
			q.buckets[rank] = bucket

			delivered := e.env.WithDeliveryCount(e.env.DeliveryCount() + 1)
			m.inflight[delivered.ID()] = &inflightEntry{
				env:         delivered,
				subject:     subject,
				lockedUntil: now.Add(m.lockDuration),
			}
			m.updateDepthLocked(subject, q)
			return delivered, 0
		}
	}

	m.updateDepthLocked(subject, q)
	if earliest.IsZero() {
		return nil, 0
	}
	return nil, earliest.Sub(now)
}

// release returns a claimed envelope to the front of its queue after a
// failed handoff, undoing the claim.
func (m *Memory) release(env *envelope.Envelope, subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.inflight[env.ID()]
	if !ok || entry.env.DeliveryCount() != env.DeliveryCount() {
		return
	}
	delete(m.inflight, env.ID())

	q := m.queueLocked(subject)
	rank := entry.env.Priority().Rank()
	q.buckets[rank] = append([]*memEntry{{env: entry.env, availableAt: time.Now()}}, q.buckets[rank]...)
	q.signal()
	m.updateDepthLocked(subject, q)
}

// lockedEntryLocked returns the in-flight entry for env only if env is the
// current delivery attempt. A handle from an earlier attempt whose lock was
// reclaimed cannot settle a newer delivery. Caller must hold m.mu.
func (m *Memory) lockedEntryLocked(env *envelope.Envelope, op string) (*inflightEntry, error) {
	entry, ok := m.inflight[env.ID()]
	if !ok || entry.env.DeliveryCount() != env.DeliveryCount() {
		return nil, errors.WrapInvalid(errors.ErrLockLost, "transport", op,
			"envelope not locked by this transport")
	}
	return entry, nil
}

// Complete acknowledges a delivered envelope. If the lock expired but the
// envelope has not been requeued yet, completion still wins.
func (m *Memory) Complete(_ context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Complete", "nil envelope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.lockedEntryLocked(env, "Complete"); err != nil {
		return err
	}
	delete(m.inflight, env.ID())
	return nil
}

// Abandon releases a delivered envelope for redelivery no sooner than
// redeliverAfter from now, preserving its delivery count.
func (m *Memory) Abandon(_ context.Context, env *envelope.Envelope, redeliverAfter time.Duration) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Abandon", "nil envelope")
	}
	if redeliverAfter < 0 {
		redeliverAfter = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lockedEntryLocked(env, "Abandon")
	if err != nil {
		return err
	}
	delete(m.inflight, env.ID())

	q := m.queueLocked(entry.subject)
	rank := entry.env.Priority().Rank()
	q.buckets[rank] = append(q.buckets[rank], &memEntry{
		env:         entry.env,
		availableAt: time.Now().Add(redeliverAfter),
	})
	q.signal()
	m.updateDepthLocked(entry.subject, q)
	return nil
}

// DeadLetter removes a delivered envelope from circulation, recording it
// with the given reason.
func (m *Memory) DeadLetter(_ context.Context, env *envelope.Envelope, reason string) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "DeadLetter", "nil envelope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lockedEntryLocked(env, "DeadLetter")
	if err != nil {
		return err
	}
	delete(m.inflight, env.ID())
	m.deadLetterLocked(entry.subject, entry.env, reason, time.Now())
	return nil
}

// deadLetterLocked records a dead letter. Caller must hold m.mu.
func (m *Memory) deadLetterLocked(subject string, env *envelope.Envelope, reason string, at time.Time) {
	m.deadLetters[subject] = append(m.deadLetters[subject], DeadLetter{
		Envelope: env,
		Reason:   reason,
		At:       at,
	})
	if m.metrics != nil && reason == ReasonExpired {
		m.metrics.RecordDeadLetter(subject, reason)
	}
}

// RenewLock extends the delivery lock on an envelope still being processed.
func (m *Memory) RenewLock(_ context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "RenewLock", "nil envelope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lockedEntryLocked(env, "RenewLock")
	if err != nil {
		return err
	}
	entry.lockedUntil = time.Now().Add(m.lockDuration)
	return nil
}

// HealthCheck performs a round trip through the reaper loop without
// touching application queues.
func (m *Memory) HealthCheck(ctx context.Context) error {
	reply := make(chan struct{})

	select {
	case m.probes <- reply:
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "transport", "HealthCheck", "probe send timed out")
	case <-m.shutdown:
		return errors.WrapFatal(errors.ErrTransportClosed, "transport", "HealthCheck", "transport closed")
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "transport", "HealthCheck", "probe reply timed out")
	case <-m.shutdown:
		return errors.WrapFatal(errors.ErrTransportClosed, "transport", "HealthCheck", "transport closed")
	}
}

// Close stops the reaper and pumps and closes all receive channels. Safe to
// call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case <-m.shutdown:
		// Already shutting down.
	default:
		close(m.shutdown)
	}

	m.wg.Wait()
	return nil
}

// reaper periodically requeues envelopes whose locks expired and sweeps
// TTL-expired pending envelopes to the dead-letter queue. It also answers
// health probes, so a wedged reaper fails health checks.
func (m *Memory) reaper() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case reply := <-m.probes:
			close(reply)
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep requeues expired locks and dead-letters expired envelopes.
func (m *Memory) sweep(now time.Time) {
	var requeued, expired int

	m.mu.Lock()
	for id, entry := range m.inflight {
		if entry.lockedUntil.After(now) {
			continue
		}
		delete(m.inflight, id)
		q := m.queueLocked(entry.subject)
		rank := entry.env.Priority().Rank()
		q.buckets[rank] = append(q.buckets[rank], &memEntry{env: entry.env, availableAt: now})
		q.signal()
		m.updateDepthLocked(entry.subject, q)
		requeued++
	}

	for subject, q := range m.queues {
		for rank, bucket := range q.buckets {
			kept := bucket[:0]
			for _, e := range bucket {
				if e.env.Expired(now) {
					m.deadLetterLocked(subject, e.env, ReasonExpired, now)
					expired++
					continue
				}
				kept = append(kept, e)
			}
			q.buckets[rank] = kept
		}
		m.updateDepthLocked(subject, q)
	}
	m.mu.Unlock()

	if requeued > 0 {
		m.logger.Warn("requeued envelopes with expired locks", "count", requeued)
	}
	if expired > 0 {
		m.logger.Info("dead-lettered expired envelopes", "count", expired)
	}
}

// QueueDepth reports the number of envelopes waiting on subject.
func (m *Memory) QueueDepth(_ context.Context, subject string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[subject]
	if !ok {
		return 0, nil
	}
	return q.depth(), nil
}

// DeadLetters returns up to limit dead-letter records for subject, oldest
// first.
func (m *Memory) DeadLetters(_ context.Context, subject string, limit int) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.deadLetters[subject]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out := make([]DeadLetter, len(records))
	copy(out, records)
	return out, nil
}

// ReplayDeadLetters re-enqueues up to max dead-lettered envelopes for
// subject. Replayed envelopes restart with delivery count zero and a fresh
// enqueue time so their time-to-live starts over.
func (m *Memory) ReplayDeadLetters(_ context.Context, subject string, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.WrapFatal(errors.ErrTransportClosed, "transport", "ReplayDeadLetters", "transport closed")
	}

	records := m.deadLetters[subject]
	n := len(records)
	if max > 0 && n > max {
		n = max
	}

	q := m.queueLocked(subject)
	replayed := 0
	for _, record := range records[:n] {
		old := record.Envelope
		fresh, err := envelope.New(old.Subject(), old.Schema(), old.Payload(),
			envelope.WithID(old.ID()),
			envelope.WithCorrelationID(old.CorrelationID()),
			envelope.WithPriority(old.Priority()),
			envelope.WithTTL(old.TTL()),
			envelope.WithProperties(old.Properties()),
		)
		if err != nil {
			m.deadLetters[subject] = records[replayed:]
			return replayed, errors.WrapInvalid(err, "transport", "ReplayDeadLetters",
				"dead letter cannot be rebuilt")
		}
		if m.maxQueueDepth > 0 && q.depth() >= m.maxQueueDepth {
			m.deadLetters[subject] = records[replayed:]
			return replayed, errors.WrapTransient(errors.ErrQueueFull, "transport", "ReplayDeadLetters",
				"subject queue at capacity")
		}
		rank := fresh.Priority().Rank()
		q.buckets[rank] = append(q.buckets[rank], &memEntry{env: fresh, availableAt: time.Now()})
		replayed++
	}

	m.deadLetters[subject] = records[n:]
	if len(m.deadLetters[subject]) == 0 {
		delete(m.deadLetters, subject)
	}
	q.signal()
	m.updateDepthLocked(subject, q)

	m.logger.Info("replayed dead letters", "subject", subject, "count", replayed)
	return replayed, nil
}

// PurgeDeadLetters drops every dead-letter record for subject.
func (m *Memory) PurgeDeadLetters(_ context.Context, subject string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.deadLetters[subject])
	delete(m.deadLetters, subject)
	return n, nil
}

// Purge drops every pending envelope on subject. In-flight envelopes are
// not affected.
func (m *Memory) Purge(_ context.Context, subject string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[subject]
	if !ok {
		return 0, nil
	}

	n := q.depth()
	for rank := range q.buckets {
		q.buckets[rank] = nil
	}
	m.updateDepthLocked(subject, q)

	m.logger.Info("purged pending envelopes", "subject", subject, "count", n)
	return n, nil
}

// Compile-time interface checks.
var (
	_ Transport         = (*Memory)(nil)
	_ QueueIntrospector = (*Memory)(nil)
	_ DeadLetterManager = (*Memory)(nil)
	_ Purger            = (*Memory)(nil)
)
