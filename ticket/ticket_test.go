package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func TestNew_Defaults(t *testing.T) {
	tk := New("TCK-1", "VPN down", "cannot connect to vpn from home office")

	assert.Equal(t, StatusSubmitted, tk.Status)
	assert.Equal(t, envelope.DefaultPriority, tk.Priority)
	assert.NotNil(t, tk.Metadata)
	assert.False(t, tk.SubmittedAt.IsZero())
	require.NoError(t, tk.Validate())
}

func TestTicket_AdvanceWalksFullLifecycle(t *testing.T) {
	tk := New("TCK-1", "VPN down", "desc")

	for _, next := range []Status{
		StatusTriaged,
		StatusKnowledgeEnriched,
		StatusInProgress,
		StatusResolved,
		StatusClosed,
	} {
		require.NoError(t, tk.Advance(next))
		assert.Equal(t, next, tk.Status)
	}
}

func TestTicket_AdvanceRejectsSkipsAndRegressions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"skip forward", StatusSubmitted, StatusKnowledgeEnriched},
		{"skip to terminal", StatusTriaged, StatusResolved},
		{"regression", StatusInProgress, StatusTriaged},
		{"same state", StatusTriaged, StatusTriaged},
		{"unknown target", StatusSubmitted, Status("archived")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tk := New("TCK-1", "title", "desc")
			tk.Status = test.from

			err := tk.Advance(test.to)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Equal(t, test.from, tk.Status, "failed transition must not mutate status")
		})
	}
}

func TestTicket_Validate(t *testing.T) {
	valid := func() *Ticket {
		tk := New("TCK-1", "title", "desc")
		tk.Category = CategoryNetwork
		tk.Confidence = 0.8
		return tk
	}

	tests := []struct {
		name   string
		mutate func(*Ticket)
	}{
		{"missing id", func(tk *Ticket) { tk.ID = "" }},
		{"missing title", func(tk *Ticket) { tk.Title = "" }},
		{"unknown status", func(tk *Ticket) { tk.Status = "archived" }},
		{"unknown category", func(tk *Ticket) { tk.Category = "printing" }},
		{"unknown priority", func(tk *Ticket) { tk.Priority = "urgent" }},
		{"confidence below range", func(tk *Ticket) { tk.Confidence = -0.1 }},
		{"confidence above range", func(tk *Ticket) { tk.Confidence = 1.1 }},
	}

	require.NoError(t, valid().Validate())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tk := valid()
			test.mutate(tk)
			err := tk.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory("  Network ")
	require.NoError(t, err)
	assert.Equal(t, CategoryNetwork, got)

	_, err = ParseCategory("printing")
	require.Error(t, err)
}
