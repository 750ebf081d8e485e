package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func TestNew_Defaults(t *testing.T) {
	before := time.Now()
	env, err := New("ticket.triage", "ticket.v1", []byte(`{"id":"TCK-1"}`))
	require.NoError(t, err)

	_, err = uuid.Parse(env.ID())
	assert.NoError(t, err, "generated ID should be a UUID")
	assert.Equal(t, env.ID(), env.CorrelationID(), "correlation ID defaults to envelope ID")
	assert.Equal(t, "ticket.triage", env.Subject())
	assert.Equal(t, "ticket.v1", env.Schema())
	assert.Equal(t, DefaultPriority, env.Priority())
	assert.Equal(t, DefaultTTL, env.TTL())
	assert.Equal(t, 0, env.DeliveryCount())
	assert.False(t, env.EnqueuedAt().Before(before))
	assert.False(t, env.Expired(time.Now()))
}

func TestNew_Options(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env, err := New("ticket.knowledge", "ticket.v1", []byte(`{}`),
		WithID("env-42"),
		WithCorrelationID("corr-7"),
		WithPriority(PriorityCritical),
		WithTTL(30*time.Minute),
		WithProperty("category", "network"),
		WithProperties(map[string]string{"submitted_by": "portal"}),
		WithEnqueuedAt(enqueued),
	)
	require.NoError(t, err)

	assert.Equal(t, "env-42", env.ID())
	assert.Equal(t, "corr-7", env.CorrelationID())
	assert.Equal(t, PriorityCritical, env.Priority())
	assert.Equal(t, 30*time.Minute, env.TTL())
	assert.Equal(t, enqueued, env.EnqueuedAt())
	assert.Equal(t, enqueued.Add(30*time.Minute), env.ExpiresAt())

	category, ok := env.Property("category")
	require.True(t, ok)
	assert.Equal(t, "network", category)
	assert.Equal(t, map[string]string{
		"category":     "network",
		"submitted_by": "portal",
	}, env.Properties())
}

func TestNew_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		schema  string
		payload []byte
		opts    []Option
	}{
		{"empty subject", "", "ticket.v1", []byte(`{}`), nil},
		{"empty schema", "ticket.triage", "", []byte(`{}`), nil},
		{"empty payload", "ticket.triage", "ticket.v1", nil, nil},
		{"unknown priority", "ticket.triage", "ticket.v1", []byte(`{}`),
			[]Option{WithPriority(Priority("urgent"))}},
		{"zero ttl", "ticket.triage", "ticket.v1", []byte(`{}`),
			[]Option{WithTTL(0)}},
		{"negative ttl", "ticket.triage", "ticket.v1", []byte(`{}`),
			[]Option{WithTTL(-time.Minute)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env, err := New(test.subject, test.schema, test.payload, test.opts...)
			require.Error(t, err)
			assert.Nil(t, env)
			assert.True(t, errors.IsInvalid(err), "validation failures must classify as invalid: %v", err)
		})
	}
}

func TestEnvelope_Expiry(t *testing.T) {
	env, err := New("ticket.triage", "ticket.v1", []byte(`{}`),
		WithEnqueuedAt(time.Now().Add(-time.Hour)),
		WithTTL(30*time.Minute),
	)
	require.NoError(t, err, "backdated envelopes are structurally valid")
	assert.True(t, env.Expired(time.Now()))
	assert.False(t, env.Expired(env.EnqueuedAt().Add(time.Minute)))
}

func TestEnvelope_WithDeliveryCount(t *testing.T) {
	env, err := New("ticket.triage", "ticket.v1", []byte(`{"id":"TCK-1"}`))
	require.NoError(t, err)

	delivered := env.WithDeliveryCount(3)
	assert.Equal(t, 3, delivered.DeliveryCount())
	assert.Equal(t, 0, env.DeliveryCount(), "original must stay untouched")
	assert.Equal(t, env.ID(), delivered.ID())
	assert.Equal(t, env.Payload(), delivered.Payload())
}

func TestEnvelope_CloneIsDeep(t *testing.T) {
	env, err := New("ticket.triage", "ticket.v1", []byte(`{"id":"TCK-1"}`),
		WithProperty("category", "network"))
	require.NoError(t, err)

	clone := env.Clone()
	clone.payload[0] = 'X'
	clone.properties["category"] = "hardware"

	assert.Equal(t, byte('{'), env.Payload()[0], "payload copy must be independent")
	category, _ := env.Property("category")
	assert.Equal(t, "network", category, "properties copy must be independent")
}

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env, err := New("ticket.knowledge", "ticket.v1", []byte(`{"id":"TCK-9"}`),
		WithID("env-9"),
		WithCorrelationID("corr-9"),
		WithPriority(PriorityHigh),
		WithTTL(45*time.Minute),
		WithProperty("category", "access"),
		WithEnqueuedAt(enqueued),
	)
	require.NoError(t, err)
	delivered := env.WithDeliveryCount(2)

	data, err := json.Marshal(delivered)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, delivered.ID(), decoded.ID())
	assert.Equal(t, delivered.CorrelationID(), decoded.CorrelationID())
	assert.Equal(t, delivered.Subject(), decoded.Subject())
	assert.Equal(t, delivered.Schema(), decoded.Schema())
	assert.Equal(t, delivered.Payload(), decoded.Payload())
	assert.Equal(t, delivered.Properties(), decoded.Properties())
	assert.Equal(t, delivered.Priority(), decoded.Priority())
	assert.True(t, delivered.EnqueuedAt().Equal(decoded.EnqueuedAt()))
	assert.Equal(t, delivered.TTL(), decoded.TTL())
	assert.Equal(t, 2, decoded.DeliveryCount())
}

func TestEnvelope_UnmarshalRejectsMalformed(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{not json`), &env)
	require.Error(t, err)

	// Structurally valid JSON missing required envelope fields must also fail.
	err = json.Unmarshal([]byte(`{"id":"x","schema":"ticket.v1"}`), &env)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
