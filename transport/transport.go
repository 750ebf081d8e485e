package transport

import (
	"context"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
)

// Default tuning values shared by the transport implementations.
const (
	// DefaultLockDuration is how long a delivered envelope stays locked to
	// its consumer before the transport may redeliver it.
	DefaultLockDuration = 30 * time.Second

	// DefaultSweepInterval is how often the memory transport reaps expired
	// locks and sweeps TTL-expired envelopes to the dead-letter queue.
	DefaultSweepInterval = time.Second

	// DefaultMaxQueueDepth bounds each subject's pending queue in the
	// memory transport.
	DefaultMaxQueueDepth = 10000
)

// Dead-letter reasons recorded by the router and the transports themselves.
// Handler-supplied reasons pass through verbatim.
const (
	// ReasonExpired marks envelopes whose time-to-live elapsed while queued.
	ReasonExpired = "Expired"

	// ReasonMaxDeliveryAttempts marks envelopes that exhausted their
	// delivery attempts.
	ReasonMaxDeliveryAttempts = "MaxDeliveryAttemptsExceeded"
)

// Transport moves envelopes between producers and consumers with delivery
// guarantees: an accepted envelope survives until it is completed or
// dead-lettered, and a delivered envelope is locked to one consumer until
// completed, abandoned, or its lock expires.
type Transport interface {
	// Send accepts an envelope for delivery. It synchronously rejects
	// invalid envelopes, envelopes whose time-to-live has already elapsed,
	// and sends to a full queue, leaving the queue unchanged.
	Send(ctx context.Context, env *envelope.Envelope) error

	// Receive returns a channel streaming envelopes for subject. Each
	// delivered envelope has its delivery count already incremented and is
	// locked until Complete, Abandon, DeadLetter, or lock expiry. One
	// receiver per subject; the channel closes when the transport closes.
	Receive(ctx context.Context, subject string) (<-chan *envelope.Envelope, error)

	// Complete acknowledges a delivered envelope, removing it permanently.
	Complete(ctx context.Context, env *envelope.Envelope) error

	// Abandon releases a delivered envelope for redelivery no sooner than
	// redeliverAfter from now. The delivery count is preserved.
	Abandon(ctx context.Context, env *envelope.Envelope, redeliverAfter time.Duration) error

	// DeadLetter removes a delivered envelope from circulation, recording
	// it with the given reason for later inspection or replay.
	DeadLetter(ctx context.Context, env *envelope.Envelope, reason string) error

	// RenewLock extends the delivery lock on an envelope still being
	// processed. Fails with a lock-lost error if the lock already expired
	// and the envelope was requeued.
	RenewLock(ctx context.Context, env *envelope.Envelope) error

	// HealthCheck verifies the transport can still move messages, via a
	// non-mutating round trip. It never touches application queues.
	HealthCheck(ctx context.Context) error

	// Close stops background work and closes receive channels. In-flight
	// envelopes are released for redelivery after their locks expire.
	Close() error
}

// DeadLetter is the inspection record for a dead-lettered envelope.
type DeadLetter struct {
	Envelope *envelope.Envelope `json:"envelope"`
	Reason   string             `json:"reason"`
	At       time.Time          `json:"at"`
}

// QueueIntrospector is implemented by transports that can report queue
// depth. Asserted where needed rather than widening Transport.
type QueueIntrospector interface {
	// QueueDepth reports the number of envelopes waiting on subject,
	// including ones delayed for redelivery.
	QueueDepth(ctx context.Context, subject string) (int, error)
}

// DeadLetterManager is implemented by transports that expose dead-letter
// inspection and recovery.
type DeadLetterManager interface {
	// DeadLetters returns up to limit dead-letter records for subject,
	// oldest first. A non-positive limit returns all of them.
	DeadLetters(ctx context.Context, subject string, limit int) ([]DeadLetter, error)

	// ReplayDeadLetters re-enqueues up to max dead-lettered envelopes for
	// subject with a fresh delivery count and enqueue time, returning how
	// many were replayed. A non-positive max replays all of them.
	ReplayDeadLetters(ctx context.Context, subject string, max int) (int, error)

	// PurgeDeadLetters drops every dead-letter record for subject,
	// returning how many were dropped.
	PurgeDeadLetters(ctx context.Context, subject string) (int, error)
}

// Purger is implemented by transports that support administratively
// clearing a subject's pending queue.
type Purger interface {
	// Purge drops every pending envelope on subject, returning how many
	// were dropped. In-flight envelopes are not affected.
	Purge(ctx context.Context, subject string) (int, error)
}
