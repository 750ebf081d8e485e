package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func TestEncodeDecode_Ticket(t *testing.T) {
	tk := New("TCK-7", "Password reset loop", "user stuck on reset page")
	tk.Category = CategoryAuthentication
	tk.Priority = envelope.PriorityHigh
	tk.Confidence = 0.92
	tk.KnowledgeResults = []KnowledgeResult{
		{Title: "Reset flow", Content: "clear SSO cookies", RelevanceScore: 0.9, Source: "kb"},
	}

	env, err := NewEnvelope(tk, "ticket.knowledge")
	require.NoError(t, err)

	assert.Equal(t, Schema, env.Schema())
	assert.Equal(t, tk.ID, env.CorrelationID(), "ticket id should correlate the journey")
	assert.Equal(t, envelope.PriorityHigh, env.Priority())

	category, ok := env.Property(PropertyCategory)
	require.True(t, ok)
	assert.Equal(t, "authentication", category)

	decoded, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, decoded.ID)
	assert.Equal(t, tk.Category, decoded.Category)
	assert.Equal(t, tk.KnowledgeResults, decoded.KnowledgeResults)
}

func TestDecode_RejectsWrongSchema(t *testing.T) {
	env, err := envelope.New("ticket.triage", "other.v1", []byte(`{"id":"x"}`))
	require.NoError(t, err)

	_, err = Decode(env)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecode_RejectsInvalidTicket(t *testing.T) {
	// Well-formed JSON, but the decoded ticket fails validation (no title).
	env, err := envelope.New("ticket.triage", Schema,
		[]byte(`{"id":"TCK-1","status":"submitted","priority":"medium"}`))
	require.NoError(t, err)

	_, err = Decode(env)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestFeedback_Validate(t *testing.T) {
	tests := []struct {
		name    string
		f       Feedback
		wantErr bool
	}{
		{"valid", Feedback{TicketID: "TCK-1", Satisfaction: 4, ResolutionSuccessful: true}, false},
		{"valid with category", Feedback{TicketID: "TCK-1", Category: CategoryAccess, Satisfaction: 1}, false},
		{"missing ticket id", Feedback{Satisfaction: 3}, true},
		{"satisfaction too low", Feedback{TicketID: "TCK-1", Satisfaction: 0}, true},
		{"satisfaction too high", Feedback{TicketID: "TCK-1", Satisfaction: 6}, true},
		{"unknown category", Feedback{TicketID: "TCK-1", Category: "printing", Satisfaction: 3}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.f.Validate()
			if test.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEncodeDecode_Feedback(t *testing.T) {
	f := &Feedback{
		TicketID:             "TCK-7",
		Category:             CategoryNetwork,
		Satisfaction:         2,
		ResolutionSuccessful: false,
		Comments:             "took three calls",
	}

	payload, err := EncodeFeedback(f)
	require.NoError(t, err)

	env, err := envelope.New("ticket.learning", FeedbackSchema, payload)
	require.NoError(t, err)

	decoded, err := DecodeFeedback(env)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)

	// Ticket envelopes must not decode as feedback.
	wrong, err := envelope.New("ticket.learning", Schema, payload)
	require.NoError(t, err)
	_, err = DecodeFeedback(wrong)
	require.Error(t, err)
}

func TestNewFeedbackEnvelope(t *testing.T) {
	fb := &Feedback{
		TicketID:             "TCK-7",
		Category:             CategorySoftware,
		Satisfaction:         4,
		ResolutionSuccessful: true,
	}

	env, err := NewFeedbackEnvelope(fb, "ticket.learning")
	require.NoError(t, err)

	assert.Equal(t, FeedbackSchema, env.Schema())
	assert.Equal(t, "TCK-7", env.CorrelationID())

	decoded, err := DecodeFeedback(env)
	require.NoError(t, err)
	assert.Equal(t, fb, decoded)
}
