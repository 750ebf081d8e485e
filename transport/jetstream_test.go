package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/natsclient"
)

func TestJetStreamConfigDefaults(t *testing.T) {
	cfg := JetStreamConfig{}.withDefaults()

	assert.Equal(t, "SERVICEDESK", cfg.StreamName)
	assert.Equal(t, "servicedesk", cfg.SubjectPrefix)
	assert.Equal(t, DefaultLockDuration, cfg.LockDuration)
	assert.Equal(t, int64(DefaultMaxQueueDepth), cfg.MaxQueueDepth)
	assert.Equal(t, 1, cfg.Replicas)
	assert.NotNil(t, cfg.Logger)

	custom := JetStreamConfig{
		StreamName:    "TICKETS",
		SubjectPrefix: "desk",
		LockDuration:  5 * time.Second,
		MaxQueueDepth: -1,
		Replicas:      3,
	}.withDefaults()

	assert.Equal(t, "TICKETS", custom.StreamName)
	assert.Equal(t, "desk", custom.SubjectPrefix)
	assert.Equal(t, 5*time.Second, custom.LockDuration)
	assert.Equal(t, int64(-1), custom.MaxQueueDepth, "negative depth should stay unbounded")
	assert.Equal(t, 3, custom.Replicas)
}

func TestJetStreamConfigRejectsUnsafeNames(t *testing.T) {
	tests := []struct {
		name string
		cfg  JetStreamConfig
		ok   bool
	}{
		{name: "defaults", cfg: JetStreamConfig{}, ok: true},
		{name: "space in stream name", cfg: JetStreamConfig{StreamName: "BAD NAME"}},
		{name: "wildcard in prefix", cfg: JetStreamConfig{SubjectPrefix: "desk.*"}},
		{name: "full wildcard in prefix", cfg: JetStreamConfig{SubjectPrefix: "desk.>"}},
		{name: "tab in stream name", cfg: JetStreamConfig{StreamName: "BAD\tNAME"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.withDefaults().validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestJetStreamSubjectMapping(t *testing.T) {
	j := &JetStream{cfg: JetStreamConfig{}.withDefaults()}

	assert.Equal(t, "servicedesk.q.ticket.triage", j.workSubject("ticket.triage"))
	assert.Equal(t, "servicedesk.dlq.ticket.triage", j.dlqSubject("ticket.triage"))
}

func TestJetStreamDurableNames(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{subject: "ticket.triage", want: "ticket_triage"},
		{subject: "ticket.knowledge", want: "ticket_knowledge"},
		{subject: "already_safe-name9", want: "already_safe-name9"},
		{subject: "odd>chars*here", want: "odd_chars_here"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, durableFor(tt.subject), "subject %q", tt.subject)
	}
}

func TestJetStreamStreamFullDetection(t *testing.T) {
	assert.False(t, isStreamFullError(nil))
	assert.False(t, isStreamFullError(stderrors.New("nats: timeout")))
	assert.True(t, isStreamFullError(stderrors.New("nats: maximum messages exceeded")))
}

func TestJetStreamDeadLetterRecordDecode(t *testing.T) {
	env := testEnvelope(t, "ticket.triage", envelope.WithID("env-dlq-1"))
	envData, err := json.Marshal(env)
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	data, err := json.Marshal(dlqRecord{Envelope: envData, Reason: "HandlerRejected", At: at})
	require.NoError(t, err)

	rec, err := decodeDeadLetter(data)
	require.NoError(t, err)
	assert.Equal(t, "env-dlq-1", rec.Envelope.ID())
	assert.Equal(t, "HandlerRejected", rec.Reason)
	assert.True(t, rec.At.Equal(at))

	_, err = decodeDeadLetter([]byte("not json"))
	assert.Error(t, err)

	bad, err := json.Marshal(dlqRecord{Envelope: json.RawMessage(`{"id":42}`), Reason: "x", At: at})
	require.NoError(t, err)
	_, err = decodeDeadLetter(bad)
	assert.Error(t, err, "corrupt embedded envelope should fail decode")
}

func TestNewJetStreamRequiresClient(t *testing.T) {
	_, err := NewJetStream(context.Background(), nil, JetStreamConfig{})
	assert.True(t, errors.IsInvalid(err))
}

func TestJetStreamClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	j := &JetStream{closed: true}
	env := testEnvelope(t, "ticket.triage")

	assert.True(t, errors.IsFatal(j.Send(ctx, env)))
	assert.True(t, errors.IsFatal(j.HealthCheck(ctx)))

	_, err := j.Receive(ctx, "ticket.triage")
	assert.True(t, errors.IsFatal(err))

	_, err = j.QueueDepth(ctx, "ticket.triage")
	assert.True(t, errors.IsFatal(err))

	_, err = j.DeadLetters(ctx, "ticket.triage", 0)
	assert.True(t, errors.IsFatal(err))
}

func TestJetStreamSettleWithoutLockFails(t *testing.T) {
	ctx := context.Background()
	j := &JetStream{}
	env := testEnvelope(t, "ticket.triage")

	assert.True(t, errors.IsInvalid(j.Complete(ctx, env)))
	assert.True(t, errors.IsInvalid(j.Abandon(ctx, env, 0)))
	assert.True(t, errors.IsInvalid(j.RenewLock(ctx, env)))
	assert.True(t, errors.IsInvalid(j.DeadLetter(ctx, env, "whatever")))
	assert.True(t, errors.IsInvalid(j.Complete(ctx, nil)))
}

func TestJetStreamIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed transport test in short mode")
	}

	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx := context.Background()

	// Each subtest gets its own stream pair so purges and depth counts
	// cannot bleed between them.
	newTransport := func(t *testing.T, key string, cfg JetStreamConfig) *JetStream {
		t.Helper()
		cfg.StreamName = "T_" + key
		cfg.SubjectPrefix = "t_" + key
		j, err := NewJetStream(ctx, tc.Client, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		return j
	}

	t.Run("SendReceiveComplete", func(t *testing.T) {
		j := newTransport(t, "RT", JetStreamConfig{})

		ch, err := j.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		sent := testEnvelope(t, "ticket.triage")
		require.NoError(t, j.Send(ctx, sent))

		got := recvEnvelope(t, ch)
		assert.Equal(t, sent.ID(), got.ID())
		assert.Equal(t, 1, got.DeliveryCount())

		require.NoError(t, j.Complete(ctx, got))
		err = j.Complete(ctx, got)
		assert.True(t, errors.IsInvalid(err), "second settle should report the lock lost")
	})

	t.Run("AbandonRedeliversWithStaleHandleRejected", func(t *testing.T) {
		j := newTransport(t, "REDELIVER", JetStreamConfig{})

		ch, err := j.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		require.NoError(t, j.Send(ctx, testEnvelope(t, "ticket.triage")))

		first := recvEnvelope(t, ch)
		require.Equal(t, 1, first.DeliveryCount())
		require.NoError(t, j.Abandon(ctx, first, 0))

		second := recvEnvelope(t, ch)
		assert.Equal(t, first.ID(), second.ID())
		assert.Equal(t, 2, second.DeliveryCount())

		err = j.Complete(ctx, first)
		assert.True(t, errors.IsInvalid(err), "stale handle should have lost the lock")
		require.NoError(t, j.Complete(ctx, second))
	})

	t.Run("DeadLetterInspectAndReplay", func(t *testing.T) {
		j := newTransport(t, "DLQ", JetStreamConfig{})

		ch, err := j.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		sent := testEnvelope(t, "ticket.triage")
		require.NoError(t, j.Send(ctx, sent))

		got := recvEnvelope(t, ch)
		require.NoError(t, j.DeadLetter(ctx, got, "HandlerRejected"))

		records, err := j.DeadLetters(ctx, "ticket.triage", 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, sent.ID(), records[0].Envelope.ID())
		assert.Equal(t, "HandlerRejected", records[0].Reason)
		assert.False(t, records[0].At.IsZero())

		replayed, err := j.ReplayDeadLetters(ctx, "ticket.triage", 0)
		require.NoError(t, err)
		assert.Equal(t, 1, replayed)

		fresh := recvEnvelope(t, ch)
		assert.Equal(t, sent.ID(), fresh.ID())
		assert.Equal(t, 1, fresh.DeliveryCount(), "replay should reset the delivery count")
		require.NoError(t, j.Complete(ctx, fresh))

		records, err = j.DeadLetters(ctx, "ticket.triage", 0)
		require.NoError(t, err)
		assert.Empty(t, records, "replayed records should be dropped")
	})

	t.Run("ExpiredEnvelopeDeadLettersAtDelivery", func(t *testing.T) {
		j := newTransport(t, "EXPIRED", JetStreamConfig{})

		env := testEnvelope(t, "ticket.triage", envelope.WithTTL(250*time.Millisecond))
		require.NoError(t, j.Send(ctx, env))
		time.Sleep(600 * time.Millisecond)

		ch, err := j.Receive(ctx, "ticket.triage")
		require.NoError(t, err)
		expectNoEnvelope(t, ch, 500*time.Millisecond)

		require.Eventually(t, func() bool {
			records, err := j.DeadLetters(ctx, "ticket.triage", 0)
			return err == nil && len(records) == 1 && records[0].Reason == ReasonExpired
		}, 3*time.Second, 100*time.Millisecond, "expired envelope should land in the dead-letter queue")
	})

	t.Run("QueueFullRejectsSend", func(t *testing.T) {
		j := newTransport(t, "FULL", JetStreamConfig{MaxQueueDepth: 2})

		require.NoError(t, j.Send(ctx, testEnvelope(t, "ticket.triage")))
		require.NoError(t, j.Send(ctx, testEnvelope(t, "ticket.triage")))

		err := j.Send(ctx, testEnvelope(t, "ticket.triage"))
		assert.True(t, errors.IsTransient(err), "queue-full should classify as transient")
	})

	t.Run("QueueDepthAndPurge", func(t *testing.T) {
		j := newTransport(t, "DEPTH", JetStreamConfig{})

		for range 3 {
			require.NoError(t, j.Send(ctx, testEnvelope(t, "ticket.triage")))
		}

		depth, err := j.QueueDepth(ctx, "ticket.triage")
		require.NoError(t, err)
		assert.Equal(t, 3, depth)

		purged, err := j.Purge(ctx, "ticket.triage")
		require.NoError(t, err)
		assert.Equal(t, 3, purged)

		depth, err = j.QueueDepth(ctx, "ticket.triage")
		require.NoError(t, err)
		assert.Zero(t, depth)
	})

	t.Run("RenewLockOnlyWhileHeld", func(t *testing.T) {
		j := newTransport(t, "RENEW", JetStreamConfig{})

		ch, err := j.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		require.NoError(t, j.Send(ctx, testEnvelope(t, "ticket.triage")))
		got := recvEnvelope(t, ch)

		require.NoError(t, j.RenewLock(ctx, got))
		require.NoError(t, j.Complete(ctx, got))

		err = j.RenewLock(ctx, got)
		assert.True(t, errors.IsInvalid(err), "renewing after settle should report the lock lost")
	})

	t.Run("CloseReleasesInflightForNextTransport", func(t *testing.T) {
		first := newTransport(t, "RESTART", JetStreamConfig{})

		ch, err := first.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		sent := testEnvelope(t, "ticket.triage")
		require.NoError(t, first.Send(ctx, sent))

		got := recvEnvelope(t, ch)
		require.Equal(t, 1, got.DeliveryCount())
		require.NoError(t, first.Close())

		second := newTransport(t, "RESTART", JetStreamConfig{})
		ch, err = second.Receive(ctx, "ticket.triage")
		require.NoError(t, err)

		redelivered := recvEnvelope(t, ch)
		assert.Equal(t, sent.ID(), redelivered.ID())
		assert.Equal(t, 2, redelivered.DeliveryCount(), "unsettled delivery should survive a transport restart")
		require.NoError(t, second.Complete(ctx, redelivered))
	})

	t.Run("HealthCheckRoundTrips", func(t *testing.T) {
		j := newTransport(t, "HEALTH", JetStreamConfig{})
		require.NoError(t, j.HealthCheck(ctx))
		require.NoError(t, j.Close())
		assert.True(t, errors.IsFatal(j.HealthCheck(ctx)))
	})
}
