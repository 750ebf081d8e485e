package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func newTestMemory(t *testing.T, opts ...MemoryOption) *Memory {
	t.Helper()
	m := NewMemory(opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testEnvelope(t *testing.T, subject string, opts ...envelope.Option) *envelope.Envelope {
	t.Helper()
	env, err := envelope.New(subject, "ticket.v1", []byte(`{"id":"TCK-1"}`), opts...)
	require.NoError(t, err)
	return env
}

func recvEnvelope(t *testing.T, ch <-chan *envelope.Envelope) *envelope.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "receive channel closed unexpectedly")
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func expectNoEnvelope(t *testing.T, ch <-chan *envelope.Envelope, within time.Duration) {
	t.Helper()
	select {
	case env := <-ch:
		t.Fatalf("unexpected delivery of %s", env.ID())
	case <-time.After(within):
	}
}

func TestMemorySendReceive(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	sent := testEnvelope(t, "ticket.triage")
	require.NoError(t, m.Send(ctx, sent))

	got := recvEnvelope(t, ch)
	assert.Equal(t, sent.ID(), got.ID())
	assert.Equal(t, 1, got.DeliveryCount(), "first delivery should carry count 1")

	require.NoError(t, m.Complete(ctx, got))
}

func TestMemoryFIFOWithinPriority(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	var ids []string
	for i := range 5 {
		env := testEnvelope(t, "ticket.triage",
			envelope.WithID(fmt.Sprintf("env-%d", i)))
		require.NoError(t, m.Send(ctx, env))
		ids = append(ids, env.ID())
	}

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	for _, want := range ids {
		got := recvEnvelope(t, ch)
		assert.Equal(t, want, got.ID(), "same-priority envelopes must deliver in enqueue order")
		require.NoError(t, m.Complete(ctx, got))
	}
}

func TestMemoryPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	low := testEnvelope(t, "ticket.triage", envelope.WithPriority(envelope.PriorityLow))
	critical := testEnvelope(t, "ticket.triage", envelope.WithPriority(envelope.PriorityCritical))
	medium := testEnvelope(t, "ticket.triage", envelope.WithPriority(envelope.PriorityMedium))

	require.NoError(t, m.Send(ctx, low))
	require.NoError(t, m.Send(ctx, critical))
	require.NoError(t, m.Send(ctx, medium))

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	wantOrder := []string{critical.ID(), medium.ID(), low.ID()}
	for _, want := range wantOrder {
		got := recvEnvelope(t, ch)
		assert.Equal(t, want, got.ID())
		require.NoError(t, m.Complete(ctx, got))
	}
}

func TestMemorySubjectIsolation(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	triageCh, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)
	knowledgeCh, err := m.Receive(ctx, "ticket.knowledge")
	require.NoError(t, err)

	triageEnv := testEnvelope(t, "ticket.triage")
	require.NoError(t, m.Send(ctx, triageEnv))

	got := recvEnvelope(t, triageCh)
	assert.Equal(t, triageEnv.ID(), got.ID())
	expectNoEnvelope(t, knowledgeCh, 50*time.Millisecond)
	require.NoError(t, m.Complete(ctx, got))
}

func TestMemoryRejectsExpiredEnvelope(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	env := testEnvelope(t, "ticket.triage",
		envelope.WithEnqueuedAt(time.Now().Add(-time.Hour)),
		envelope.WithTTL(time.Minute))

	err := m.Send(ctx, env)
	require.Error(t, err)
	assert.True(t, errors.IsExpired(err), "expired envelope should classify as expired")

	// The rejected envelope never entered the queue.
	depth, err := m.QueueDepth(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestMemoryRejectsNilAndInvalid(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	err := m.Send(ctx, nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestMemoryQueueFull(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, WithMaxQueueDepth(2))

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))

	err := m.Send(ctx, testEnvelope(t, "ticket.triage"))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err), "queue-full should classify as transient")

	depth, err := m.QueueDepth(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 2, depth, "failed send must leave the queue unchanged")
}

func TestMemoryAbandonDelaysRedelivery(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))

	first := recvEnvelope(t, ch)
	assert.Equal(t, 1, first.DeliveryCount())

	require.NoError(t, m.Abandon(ctx, first, 120*time.Millisecond))

	// Not redelivered before the delay elapses.
	expectNoEnvelope(t, ch, 60*time.Millisecond)

	second := recvEnvelope(t, ch)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 2, second.DeliveryCount(), "redelivery increments the count")
	require.NoError(t, m.Complete(ctx, second))
}

func TestMemoryDelayedEntryDoesNotBlockReadyOnes(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	delayed := testEnvelope(t, "ticket.triage")
	require.NoError(t, m.Send(ctx, delayed))

	first := recvEnvelope(t, ch)
	require.NoError(t, m.Abandon(ctx, first, 500*time.Millisecond))

	// An envelope enqueued after the abandoned one must still flow.
	ready := testEnvelope(t, "ticket.triage")
	require.NoError(t, m.Send(ctx, ready))

	got := recvEnvelope(t, ch)
	assert.Equal(t, ready.ID(), got.ID())
	require.NoError(t, m.Complete(ctx, got))
}

func TestMemoryAtMostOneConcurrentDelivery(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, WithSweepInterval(10*time.Millisecond))

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))

	got := recvEnvelope(t, ch)
	// While locked, the envelope must not be handed out again.
	expectNoEnvelope(t, ch, 100*time.Millisecond)
	require.NoError(t, m.Complete(ctx, got))
}

func TestMemoryLockExpiryRequeues(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t,
		WithLockDuration(40*time.Millisecond),
		WithSweepInterval(10*time.Millisecond))

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))

	first := recvEnvelope(t, ch)
	assert.Equal(t, 1, first.DeliveryCount())

	// Never settled: the reaper requeues it after the lock expires.
	second := recvEnvelope(t, ch)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 2, second.DeliveryCount())

	// The first handle lost its lock.
	err = m.Complete(ctx, first)
	require.Error(t, err)

	require.NoError(t, m.Complete(ctx, second))
}

func TestMemoryRenewLockKeepsEnvelope(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t,
		WithLockDuration(60*time.Millisecond),
		WithSweepInterval(10*time.Millisecond))

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	got := recvEnvelope(t, ch)

	// Renew past several lock lifetimes.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, m.RenewLock(ctx, got))
		time.Sleep(20 * time.Millisecond)
	}

	expectNoEnvelope(t, ch, 50*time.Millisecond)
	require.NoError(t, m.Complete(ctx, got))
}

func TestMemoryRenewLockAfterLossFails(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t,
		WithLockDuration(30*time.Millisecond),
		WithSweepInterval(10*time.Millisecond))

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	first := recvEnvelope(t, ch)

	// Wait for the reaper to reclaim it.
	second := recvEnvelope(t, ch)

	err = m.RenewLock(ctx, first)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "renewing a lost lock should classify as invalid")

	require.NoError(t, m.Complete(ctx, second))
}

func TestMemoryTTLSweepDeadLetters(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, WithSweepInterval(10*time.Millisecond))

	env := testEnvelope(t, "ticket.triage", envelope.WithTTL(30*time.Millisecond))
	require.NoError(t, m.Send(ctx, env))

	require.Eventually(t, func() bool {
		records, err := m.DeadLetters(ctx, "ticket.triage", 0)
		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond, "expired envelope should reach the dead-letter queue")

	records, err := m.DeadLetters(ctx, "ticket.triage", 0)
	require.NoError(t, err)
	assert.Equal(t, env.ID(), records[0].Envelope.ID())
	assert.Equal(t, ReasonExpired, records[0].Reason)

	depth, err := m.QueueDepth(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestMemoryDeadLetterVerbatimReason(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	got := recvEnvelope(t, ch)

	require.NoError(t, m.DeadLetter(ctx, got, "schema unknown to handler"))

	records, err := m.DeadLetters(ctx, "ticket.triage", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "schema unknown to handler", records[0].Reason)

	// Dead-lettered envelopes are out of circulation.
	expectNoEnvelope(t, ch, 50*time.Millisecond)
}

func TestMemoryReplayDeadLetters(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	got := recvEnvelope(t, ch)
	require.NoError(t, m.DeadLetter(ctx, got, ReasonMaxDeliveryAttempts))

	replayed, err := m.ReplayDeadLetters(ctx, "ticket.triage", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	redelivered := recvEnvelope(t, ch)
	assert.Equal(t, got.ID(), redelivered.ID())
	assert.Equal(t, 1, redelivered.DeliveryCount(), "replay restarts the delivery count")
	require.NoError(t, m.Complete(ctx, redelivered))

	records, err := m.DeadLetters(ctx, "ticket.triage", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryPurgeDeadLetters(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
		got := recvEnvelope(t, ch)
		require.NoError(t, m.DeadLetter(ctx, got, "handler rejected"))
	}

	purged, err := m.PurgeDeadLetters(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 3, purged)

	records, err := m.DeadLetters(ctx, "ticket.triage", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryPurgePending(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	for range 4 {
		require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	}

	purged, err := m.Purge(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 4, purged)

	depth, err := m.QueueDepth(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestMemoryCompleteTwiceFails(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Send(ctx, testEnvelope(t, "ticket.triage")))
	got := recvEnvelope(t, ch)

	require.NoError(t, m.Complete(ctx, got))
	err = m.Complete(ctx, got)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMemoryDuplicateReceiverRejected(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	_, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	_, err = m.Receive(ctx, "ticket.triage")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMemoryHealthCheck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m := newTestMemory(t)
	require.NoError(t, m.HealthCheck(ctx))

	// The probe must not touch application queues.
	depth, err := m.QueueDepth(ctx, "ticket.triage")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestMemoryCloseStopsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	require.NoError(t, m.Close())

	// Receive channel drains and closes.
	_, open := <-ch
	assert.False(t, open, "receive channel should close on shutdown")

	err = m.Send(ctx, testEnvelope(t, "ticket.triage"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err), "send after close should classify as fatal")

	err = m.HealthCheck(ctx)
	require.Error(t, err)

	// Close is idempotent.
	require.NoError(t, m.Close())
}

func TestMemoryReceiveContextCancelStopsPump(t *testing.T) {
	m := newTestMemory(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.Receive(ctx, "ticket.triage")
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should close after context cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// The subject is free for a new receiver afterwards.
	require.Eventually(t, func() bool {
		_, err := m.Receive(context.Background(), "ticket.triage")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
