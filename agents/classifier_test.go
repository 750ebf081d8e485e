package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

func TestRuleClassifierCategories(t *testing.T) {
	c := NewRuleClassifier()

	tests := []struct {
		name        string
		title       string
		description string
		want        ticket.Category
	}{
		{"password reset", "Cannot log in", "My password expired and I am locked out", ticket.CategoryAuthentication},
		{"vpn trouble", "VPN keeps dropping", "The vpn connection fails every hour", ticket.CategoryNetwork},
		{"app crash", "Spreadsheet crash", "The application shows an error and crashes on save", ticket.CategorySoftware},
		{"dead laptop", "Laptop will not charge", "Battery drains instantly and the screen flickers", ticket.CategoryHardware},
		{"drive access", "Need shared drive access", "Please grant permission to the finance folder", ticket.CategoryAccess},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tc.title, tc.description, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Category)
			assert.Greater(t, got.Confidence, fallbackConfidence)
		})
	}
}

func TestRuleClassifierPriority(t *testing.T) {
	c := NewRuleClassifier()

	tests := []struct {
		name string
		text string
		want envelope.Priority
	}{
		{"outage is critical", "production outage, everyone affected", envelope.PriorityCritical},
		{"urgent is high", "urgent: blocked on deadline", envelope.PriorityHigh},
		{"degraded is medium", "intermittent slowness, degraded service", envelope.PriorityMedium},
		{"calm text is low", "small cosmetic request whenever convenient", envelope.PriorityLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tc.text, "", "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Priority)
		})
	}
}

func TestRuleClassifierFallback(t *testing.T) {
	c := NewRuleClassifier()

	got, err := c.Classify(context.Background(), "xyzzy", "quux", "")
	require.NoError(t, err)
	assert.Equal(t, fallbackCategory, got.Category)
	assert.InDelta(t, fallbackConfidence, got.Confidence, 1e-9)
}

func TestRuleClassifierUsesHintWhenNothingMatches(t *testing.T) {
	c := NewRuleClassifier()

	got, err := c.Classify(context.Background(), "xyzzy", "quux", "hardware")
	require.NoError(t, err)
	assert.Equal(t, ticket.CategoryHardware, got.Category)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestRuleClassifierIgnoresHintOnMatch(t *testing.T) {
	c := NewRuleClassifier()

	got, err := c.Classify(context.Background(), "password locked out", "", "hardware")
	require.NoError(t, err)
	assert.Equal(t, ticket.CategoryAuthentication, got.Category)
}

func TestRuleClassifierConfidenceGrowsWithHits(t *testing.T) {
	c := NewRuleClassifier()

	one, err := c.Classify(context.Background(), "password problem", "", "")
	require.NoError(t, err)
	many, err := c.Classify(context.Background(), "password login mfa sso credential", "", "")
	require.NoError(t, err)

	assert.Greater(t, many.Confidence, one.Confidence)
	assert.LessOrEqual(t, many.Confidence, 0.95)
}
