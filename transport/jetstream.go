package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/natsclient"
)

// JetStreamConfig configures the JetStream transport. Zero values take the
// defaults noted per field.
type JetStreamConfig struct {
	// StreamName names the work-queue stream; the dead-letter stream is
	// StreamName + "_DLQ". Default "SERVICEDESK".
	StreamName string

	// SubjectPrefix prefixes every NATS subject the transport touches:
	// pending envelopes flow on <prefix>.q.<subject>, dead letters on
	// <prefix>.dlq.<subject>. Default "servicedesk".
	SubjectPrefix string

	// LockDuration maps to the consumer AckWait: how long a delivered
	// envelope stays locked before the server redelivers it. Default
	// DefaultLockDuration.
	LockDuration time.Duration

	// MaxQueueDepth caps the work stream's message count; sends beyond it
	// fail with a transient queue-full error. Zero takes
	// DefaultMaxQueueDepth, negative means unbounded.
	MaxQueueDepth int64

	// Replicas is the stream replication factor. Default 1.
	Replicas int

	Logger  *slog.Logger
	Metrics *metric.Metrics
}

func (c JetStreamConfig) withDefaults() JetStreamConfig {
	if c.StreamName == "" {
		c.StreamName = "SERVICEDESK"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "servicedesk"
	}
	if c.LockDuration <= 0 {
		c.LockDuration = DefaultLockDuration
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c JetStreamConfig) validate() error {
	for _, s := range []string{c.StreamName, c.SubjectPrefix} {
		if strings.ContainsAny(s, " \t*>") {
			return errors.WrapInvalid(errors.ErrInvalidConfig,
				"transport", "NewJetStream", "stream name and subject prefix must not contain spaces or wildcards")
		}
	}
	return nil
}

// jsInflight tracks one delivered envelope's server-side message handle.
type jsInflight struct {
	env     *envelope.Envelope
	msg     jetstream.Msg
	subject string
}

// jsReceiver is the consumer side of one subject's stream.
type jsReceiver struct {
	ch   chan *envelope.Envelope
	iter jetstream.MessagesContext
}

// dlqRecord is the wire format of a dead-letter entry on the DLQ stream.
type dlqRecord struct {
	Envelope json.RawMessage `json:"envelope"`
	Reason   string          `json:"reason"`
	At       time.Time       `json:"at"`
}

// JetStream is a Transport backed by NATS JetStream: one work-queue stream
// carries pending envelopes, a companion limits-retention stream holds dead
// letters for inspection and replay. Delivery locks are the consumer's
// AckWait; redelivery after a crashed consumer comes from the server, not
// from transport bookkeeping.
//
// The transport borrows the connection: Close stops consumers and releases
// in-flight messages but leaves the natsclient.Client to its owner.
type JetStream struct {
	client *natsclient.Client
	js     jetstream.JetStream
	work   jetstream.Stream
	dlq    jetstream.Stream
	cfg    JetStreamConfig

	mu        sync.Mutex
	inflight  map[string]*jsInflight
	receivers map[string]*jsReceiver
	closed    bool

	shutdown chan struct{}
	wg       sync.WaitGroup

	logger  *slog.Logger
	metrics *metric.Metrics
}

var (
	_ Transport         = (*JetStream)(nil)
	_ QueueIntrospector = (*JetStream)(nil)
	_ DeadLetterManager = (*JetStream)(nil)
	_ Purger            = (*JetStream)(nil)
)

// NewJetStream creates the transport and ensures both streams exist. The
// client must already be connected.
func NewJetStream(ctx context.Context, client *natsclient.Client, cfg JetStreamConfig) (*JetStream, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"transport", "NewJetStream", "client is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	js, err := client.JetStream()
	if err != nil {
		return nil, err
	}

	j := &JetStream{
		client:    client,
		js:        js,
		cfg:       cfg,
		inflight:  make(map[string]*jsInflight),
		receivers: make(map[string]*jsReceiver),
		shutdown:  make(chan struct{}),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	maxMsgs := cfg.MaxQueueDepth
	if maxMsgs < 0 {
		maxMsgs = -1
	}
	j.work, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.SubjectPrefix + ".q.>"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		MaxMsgs:   maxMsgs,
		Discard:   jetstream.DiscardNew,
		Replicas:  cfg.Replicas,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "NewJetStream", "ensure work stream")
	}

	j.dlq, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.StreamName + "_DLQ",
		Subjects:  []string{cfg.SubjectPrefix + ".dlq.>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		Replicas:  cfg.Replicas,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "NewJetStream", "ensure dead-letter stream")
	}

	return j, nil
}

// workSubject maps an application subject onto the work stream.
func (j *JetStream) workSubject(subject string) string {
	return j.cfg.SubjectPrefix + ".q." + subject
}

// dlqSubject maps an application subject onto the dead-letter stream.
func (j *JetStream) dlqSubject(subject string) string {
	return j.cfg.SubjectPrefix + ".dlq." + subject
}

// durableFor derives a consumer name from a subject. Durable names cannot
// contain dots or wildcards.
func durableFor(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, subject)
}

// isStreamFullError matches the server's discard-new rejection.
func isStreamFullError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "maximum messages exceeded")
}

// checkOpen fails fast once the transport is closed.
func (j *JetStream) checkOpen(op string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.WrapFatal(errors.ErrTransportClosed, "transport", op, "transport closed")
	}
	return nil
}

// Send publishes an envelope onto the work stream. Invalid and already
// expired envelopes are rejected synchronously without touching the stream.
func (j *JetStream) Send(ctx context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Send", "nil envelope")
	}
	if err := env.Validate(); err != nil {
		return errors.WrapInvalid(err, "transport", "Send", "envelope validation failed")
	}
	if env.Expired(time.Now()) {
		return errors.WrapExpired(errors.ErrEnvelopeExpired, "transport", "Send",
			"time-to-live elapsed before enqueue")
	}

	if err := j.checkOpen("Send"); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(err, "transport", "Send", "encode envelope")
	}

	if _, err := j.js.Publish(ctx, j.workSubject(env.Subject()), data); err != nil {
		if isStreamFullError(err) {
			return errors.WrapTransient(errors.ErrQueueFull, "transport", "Send",
				"work stream at capacity")
		}
		return errors.WrapTransient(err, "transport", "Send", "publish envelope")
	}

	return nil
}

// Receive creates (or resumes) the subject's durable consumer and streams
// its envelopes. One receiver per subject; the pump stops when ctx ends or
// the transport closes.
func (j *JetStream) Receive(ctx context.Context, subject string) (<-chan *envelope.Envelope, error) {
	if subject == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", "Receive", "empty subject")
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil, errors.WrapFatal(errors.ErrTransportClosed, "transport", "Receive", "transport closed")
	}
	if _, exists := j.receivers[subject]; exists {
		j.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "transport", "Receive",
			"subject already has a receiver")
	}
	j.mu.Unlock()

	cons, err := j.js.CreateOrUpdateConsumer(ctx, j.cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       durableFor(subject),
		FilterSubject: j.workSubject(subject),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       j.cfg.LockDuration,
		MaxDeliver:    -1, // the router owns the retry cap
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Receive", "ensure consumer")
	}

	// One message pulled at a time: a message is only claimed from the
	// server when the pump is ready to hand it to a worker, so its AckWait
	// clock starts at (nearly) the moment of processing.
	iter, err := cons.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return nil, errors.WrapTransient(err, "transport", "Receive", "start consumer")
	}

	ch := make(chan *envelope.Envelope)
	rcv := &jsReceiver{ch: ch, iter: iter}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		iter.Stop()
		return nil, errors.WrapFatal(errors.ErrTransportClosed, "transport", "Receive", "transport closed")
	}
	if _, exists := j.receivers[subject]; exists {
		j.mu.Unlock()
		iter.Stop()
		return nil, errors.WrapInvalid(errors.ErrAlreadyStarted, "transport", "Receive",
			"subject already has a receiver")
	}
	j.receivers[subject] = rcv
	j.wg.Add(1)
	j.mu.Unlock()

	go j.pump(ctx, subject, rcv)

	return ch, nil
}

// pump converts server deliveries into channel handoffs for one subject.
func (j *JetStream) pump(ctx context.Context, subject string, rcv *jsReceiver) {
	defer func() {
		rcv.iter.Stop()
		j.mu.Lock()
		if j.receivers[subject] == rcv {
			delete(j.receivers, subject)
		}
		j.mu.Unlock()
		close(rcv.ch)
		j.wg.Done()
	}()

	// The iterator blocks in Next; watch for cancellation separately so a
	// quiet subject still shuts down promptly.
	stop := context.AfterFunc(ctx, rcv.iter.Stop)
	defer stop()

	for {
		select {
		case <-j.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		msg, err := rcv.iter.Next()
		if err != nil {
			if stderrors.Is(err, jetstream.ErrMsgIteratorClosed) {
				return
			}
			j.logger.Error("consumer pull failed", "subject", subject, "error", err)
			continue
		}

		env := &envelope.Envelope{}
		if err := json.Unmarshal(msg.Data(), env); err != nil {
			// Poison message: never decodable, never redeliverable.
			j.logger.Error("terminating undecodable message", "subject", subject, "error", err)
			_ = msg.Term()
			continue
		}

		count := env.DeliveryCount() + 1
		if meta, err := msg.Metadata(); err == nil {
			count = int(meta.NumDelivered)
		}
		env = env.WithDeliveryCount(count)

		if env.Expired(time.Now()) {
			j.deadLetterExpired(ctx, env, msg)
			continue
		}

		entry := &jsInflight{env: env, msg: msg, subject: subject}
		j.mu.Lock()
		if j.closed {
			j.mu.Unlock()
			_ = msg.Nak()
			return
		}
		j.inflight[env.ID()] = entry
		j.mu.Unlock()

		select {
		case rcv.ch <- env:
		case <-ctx.Done():
			j.releaseInflight(entry)
			return
		case <-j.shutdown:
			j.releaseInflight(entry)
			return
		}
	}
}

// releaseInflight drops a never-handed-out delivery and tells the server to
// redeliver it.
func (j *JetStream) releaseInflight(entry *jsInflight) {
	j.mu.Lock()
	if current, ok := j.inflight[entry.env.ID()]; ok && current == entry {
		delete(j.inflight, entry.env.ID())
	}
	j.mu.Unlock()
	_ = entry.msg.Nak()
}

// deadLetterExpired moves a TTL-expired delivery to the DLQ stream.
func (j *JetStream) deadLetterExpired(ctx context.Context, env *envelope.Envelope, msg jetstream.Msg) {
	if err := j.publishDeadLetter(ctx, env, ReasonExpired); err != nil {
		j.logger.Error("dead-letter publish failed, leaving for redelivery",
			"envelope_id", env.ID(), "subject", env.Subject(), "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
	if j.metrics != nil {
		j.metrics.RecordDeadLetter(env.Subject(), ReasonExpired)
	}
	j.logger.Info("envelope expired, dead-lettered",
		"envelope_id", env.ID(), "subject", env.Subject())
}

// publishDeadLetter writes a dead-letter record for env onto the DLQ stream.
func (j *JetStream) publishDeadLetter(ctx context.Context, env *envelope.Envelope, reason string) error {
	envData, err := json.Marshal(env)
	if err != nil {
		return errors.WrapInvalid(err, "transport", "DeadLetter", "encode envelope")
	}
	data, err := json.Marshal(dlqRecord{Envelope: envData, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return errors.WrapInvalid(err, "transport", "DeadLetter", "encode record")
	}
	if _, err := j.js.Publish(ctx, j.dlqSubject(env.Subject()), data); err != nil {
		return errors.WrapTransient(err, "transport", "DeadLetter", "publish record")
	}
	return nil
}

// lockedEntry returns the in-flight entry for env, or a lock-lost error when
// the envelope is unknown or the handle is stale (the server already
// redelivered it to someone else). Callers hold j.mu.
func (j *JetStream) lockedEntry(env *envelope.Envelope, op string) (*jsInflight, error) {
	if env == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidEnvelope, "transport", op, "nil envelope")
	}
	entry, ok := j.inflight[env.ID()]
	if !ok || entry.env.DeliveryCount() != env.DeliveryCount() {
		return nil, errors.WrapInvalid(errors.ErrLockLost, "transport", op,
			"envelope not locked by this transport")
	}
	return entry, nil
}

// Complete acknowledges a delivered envelope, removing it permanently.
func (j *JetStream) Complete(_ context.Context, env *envelope.Envelope) error {
	j.mu.Lock()
	entry, err := j.lockedEntry(env, "Complete")
	if err != nil {
		j.mu.Unlock()
		return err
	}
	delete(j.inflight, env.ID())
	j.mu.Unlock()

	if err := entry.msg.Ack(); err != nil {
		return errors.WrapTransient(err, "transport", "Complete", "ack message")
	}
	return nil
}

// Abandon returns a delivered envelope to the server for redelivery after
// the given delay.
func (j *JetStream) Abandon(_ context.Context, env *envelope.Envelope, redeliverAfter time.Duration) error {
	j.mu.Lock()
	entry, err := j.lockedEntry(env, "Abandon")
	if err != nil {
		j.mu.Unlock()
		return err
	}
	delete(j.inflight, env.ID())
	j.mu.Unlock()

	if redeliverAfter > 0 {
		err = entry.msg.NakWithDelay(redeliverAfter)
	} else {
		err = entry.msg.Nak()
	}
	if err != nil {
		return errors.WrapTransient(err, "transport", "Abandon", "nak message")
	}
	return nil
}

// DeadLetter records the envelope on the DLQ stream and acknowledges the
// original so it never redelivers. The record is written first: if that
// publish fails the delivery stays locked and retryable.
func (j *JetStream) DeadLetter(ctx context.Context, env *envelope.Envelope, reason string) error {
	j.mu.Lock()
	entry, err := j.lockedEntry(env, "DeadLetter")
	j.mu.Unlock()
	if err != nil {
		return err
	}

	if err := j.publishDeadLetter(ctx, entry.env, reason); err != nil {
		return err
	}

	j.mu.Lock()
	delete(j.inflight, env.ID())
	j.mu.Unlock()

	if err := entry.msg.Ack(); err != nil {
		return errors.WrapTransient(err, "transport", "DeadLetter", "ack original")
	}
	return nil
}

// RenewLock extends the delivery lock by resetting the server's AckWait
// clock for this message.
func (j *JetStream) RenewLock(_ context.Context, env *envelope.Envelope) error {
	j.mu.Lock()
	entry, err := j.lockedEntry(env, "RenewLock")
	j.mu.Unlock()
	if err != nil {
		return err
	}

	if err := entry.msg.InProgress(); err != nil {
		return errors.WrapTransient(err, "transport", "RenewLock", "extend ack deadline")
	}
	return nil
}

// HealthCheck round-trips the connection without touching any stream.
func (j *JetStream) HealthCheck(ctx context.Context) error {
	if err := j.checkOpen("HealthCheck"); err != nil {
		return err
	}
	return j.client.HealthCheck(ctx)
}

// Close stops every receiver and releases in-flight deliveries back to the
// server. The underlying connection stays open; it belongs to the caller.
func (j *JetStream) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.shutdown)
	for _, rcv := range j.receivers {
		rcv.iter.Stop()
	}
	j.mu.Unlock()

	j.wg.Wait()

	j.mu.Lock()
	entries := make([]*jsInflight, 0, len(j.inflight))
	for _, entry := range j.inflight {
		entries = append(entries, entry)
	}
	j.inflight = make(map[string]*jsInflight)
	j.mu.Unlock()

	for _, entry := range entries {
		_ = entry.msg.Nak()
	}

	return nil
}

// QueueDepth reports undelivered envelopes for subject. Envelopes delayed
// for redelivery count once the server requeues them, not while their Nak
// delay runs.
func (j *JetStream) QueueDepth(ctx context.Context, subject string) (int, error) {
	if err := j.checkOpen("QueueDepth"); err != nil {
		return 0, err
	}

	cons, err := j.js.Consumer(ctx, j.cfg.StreamName, durableFor(subject))
	if err == nil {
		info, err := cons.Info(ctx)
		if err != nil {
			return 0, errors.WrapTransient(err, "transport", "QueueDepth", "consumer info")
		}
		return int(info.NumPending), nil
	}

	// No durable yet: count with a throwaway consumer.
	return j.countPending(ctx, j.cfg.StreamName, j.workSubject(subject))
}

// countPending counts messages matching filter via a short-lived consumer.
func (j *JetStream) countPending(ctx context.Context, streamName, filter string) (int, error) {
	cons, err := j.js.CreateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject:     filter,
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return 0, errors.WrapTransient(err, "transport", "QueueDepth", "create counting consumer")
	}
	info, err := cons.Info(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "transport", "QueueDepth", "counting consumer info")
	}
	_ = j.js.DeleteConsumer(ctx, streamName, info.Name)
	return int(info.NumPending), nil
}

// DeadLetters returns up to limit dead-letter records for subject, oldest
// first, without consuming them. A non-positive limit returns all of them.
func (j *JetStream) DeadLetters(ctx context.Context, subject string, limit int) ([]DeadLetter, error) {
	if err := j.checkOpen("DeadLetters"); err != nil {
		return nil, err
	}

	records := make([]DeadLetter, 0)
	err := j.eachDeadLetter(ctx, subject, limit, func(rec DeadLetter, _ jetstream.Msg) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// eachDeadLetter walks subject's DLQ records in stream order through a
// throwaway non-acking consumer.
func (j *JetStream) eachDeadLetter(ctx context.Context, subject string, limit int, fn func(DeadLetter, jetstream.Msg) error) error {
	cons, err := j.js.CreateConsumer(ctx, j.dlqStreamName(), jetstream.ConsumerConfig{
		FilterSubject:     j.dlqSubject(subject),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return errors.WrapTransient(err, "transport", "DeadLetters", "create inspection consumer")
	}
	defer func() {
		if info := cons.CachedInfo(); info != nil {
			_ = j.js.DeleteConsumer(ctx, j.dlqStreamName(), info.Name)
		}
	}()

	seen := 0
	for limit <= 0 || seen < limit {
		batchSize := 64
		if limit > 0 && limit-seen < batchSize {
			batchSize = limit - seen
		}

		batch, err := cons.Fetch(batchSize, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return errors.WrapTransient(err, "transport", "DeadLetters", "fetch records")
		}

		got := 0
		for msg := range batch.Messages() {
			got++
			rec, err := decodeDeadLetter(msg.Data())
			if err != nil {
				j.logger.Error("skipping undecodable dead-letter record", "subject", subject, "error", err)
				continue
			}
			if err := fn(rec, msg); err != nil {
				return err
			}
			seen++
			if limit > 0 && seen >= limit {
				break
			}
		}
		if err := batch.Error(); err != nil {
			return errors.WrapTransient(err, "transport", "DeadLetters", "fetch records")
		}
		if got == 0 {
			break
		}
	}

	return nil
}

func decodeDeadLetter(data []byte) (DeadLetter, error) {
	var rec dlqRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DeadLetter{}, err
	}
	env := &envelope.Envelope{}
	if err := json.Unmarshal(rec.Envelope, env); err != nil {
		return DeadLetter{}, err
	}
	return DeadLetter{Envelope: env, Reason: rec.Reason, At: rec.At}, nil
}

func (j *JetStream) dlqStreamName() string {
	return j.cfg.StreamName + "_DLQ"
}

// ReplayDeadLetters re-enqueues up to max dead-lettered envelopes for
// subject with a fresh enqueue time and delivery count, then drops the
// replayed records. A non-positive max replays all of them.
func (j *JetStream) ReplayDeadLetters(ctx context.Context, subject string, max int) (int, error) {
	if err := j.checkOpen("ReplayDeadLetters"); err != nil {
		return 0, err
	}

	replayed := 0
	var lastSeq uint64

	walkErr := j.eachDeadLetter(ctx, subject, max, func(rec DeadLetter, msg jetstream.Msg) error {
		old := rec.Envelope
		fresh, err := envelope.New(old.Subject(), old.Schema(), old.Payload(),
			envelope.WithID(old.ID()),
			envelope.WithCorrelationID(old.CorrelationID()),
			envelope.WithPriority(old.Priority()),
			envelope.WithTTL(old.TTL()),
			envelope.WithProperties(old.Properties()),
		)
		if err != nil {
			return errors.WrapInvalid(err, "transport", "ReplayDeadLetters",
				"dead letter cannot be rebuilt")
		}
		if err := j.Send(ctx, fresh); err != nil {
			return err
		}

		replayed++
		if meta, err := msg.Metadata(); err == nil {
			lastSeq = meta.Sequence.Stream
		}
		return nil
	})

	// Drop exactly the replayed records; later ones (including any that
	// failed to rebuild or re-enqueue) stay for another attempt.
	if replayed > 0 && lastSeq > 0 {
		purgeErr := j.dlq.Purge(ctx,
			jetstream.WithPurgeSubject(j.dlqSubject(subject)),
			jetstream.WithPurgeSequence(lastSeq+1),
		)
		if purgeErr != nil && walkErr == nil {
			walkErr = errors.WrapTransient(purgeErr, "transport", "ReplayDeadLetters", "drop replayed records")
		}
	}

	if replayed > 0 {
		j.logger.Info("replayed dead letters", "subject", subject, "count", replayed)
	}
	return replayed, walkErr
}

// PurgeDeadLetters drops every dead-letter record for subject, returning
// how many were dropped.
func (j *JetStream) PurgeDeadLetters(ctx context.Context, subject string) (int, error) {
	if err := j.checkOpen("PurgeDeadLetters"); err != nil {
		return 0, err
	}

	count, err := j.countPending(ctx, j.dlqStreamName(), j.dlqSubject(subject))
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := j.dlq.Purge(ctx, jetstream.WithPurgeSubject(j.dlqSubject(subject))); err != nil {
		return 0, errors.WrapTransient(err, "transport", "PurgeDeadLetters", "purge records")
	}
	return count, nil
}

// Purge drops subject's messages from the work stream, returning the
// undelivered count. Unlike the memory transport, the server cannot exclude
// outstanding deliveries: their later settles fail with lock-lost errors.
func (j *JetStream) Purge(ctx context.Context, subject string) (int, error) {
	count, err := j.QueueDepth(ctx, subject)
	if err != nil {
		return 0, err
	}
	if err := j.work.Purge(ctx, jetstream.WithPurgeSubject(j.workSubject(subject))); err != nil {
		return 0, errors.WrapTransient(err, "transport", "Purge", "purge subject")
	}
	return count, nil
}
