package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

func TestFakerTicketsAreValid(t *testing.T) {
	g := NewFaker(1)
	for _, tk := range g.Tickets(50) {
		require.NoError(t, tk.Validate())
		assert.Equal(t, ticket.StatusSubmitted, tk.Status)
		assert.NotEmpty(t, tk.Metadata["reporter"])
	}
}

func TestFakerIDsAreUnique(t *testing.T) {
	g := NewFaker(1)
	seen := map[string]bool{}
	for _, tk := range g.Tickets(100) {
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

func TestFakerIsDeterministic(t *testing.T) {
	a := NewFaker(42).Tickets(10)
	b := NewFaker(42).Tickets(10)
	for i := range a {
		assert.Equal(t, a[i].Title, b[i].Title)
		assert.Equal(t, a[i].Description, b[i].Description)
	}
}

func TestFakerTicketForUsesCategoryTemplates(t *testing.T) {
	g := NewFaker(7)
	tk := g.TicketFor(ticket.CategoryNetwork)

	found := false
	for _, c := range complaintsByCategory[ticket.CategoryNetwork] {
		if c.title == tk.Title {
			found = true
		}
	}
	assert.True(t, found, "title %q not from network templates", tk.Title)
}

func TestFakerFeedbackIsValid(t *testing.T) {
	g := NewFaker(3)
	for i := 0; i < 50; i++ {
		tk := g.Ticket()
		tk.Category = ticket.CategorySoftware
		if i%2 == 0 {
			tk.Status = ticket.StatusResolved
		}

		fb := g.Feedback(tk)
		require.NoError(t, fb.Validate())
		assert.Equal(t, tk.ID, fb.TicketID)
		if fb.ResolutionSuccessful {
			assert.GreaterOrEqual(t, fb.Satisfaction, 3)
		}
	}
}
