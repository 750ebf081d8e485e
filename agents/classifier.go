package agents

import (
	"context"
	"strings"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// Classification is the triage verdict for one ticket.
type Classification struct {
	Category   ticket.Category
	Priority   envelope.Priority
	Confidence float64
}

// Classifier assigns a category, priority, and confidence to a ticket. A
// real deployment plugs an ML model in here; the shipped RuleClassifier is
// deterministic keyword matching.
type Classifier interface {
	// Classify inspects the ticket text. The hint carries any category the
	// submitter suggested; classifiers may use or ignore it.
	Classify(ctx context.Context, title, description, hint string) (Classification, error)
}

// Fallback classification when no keyword matches anything.
const (
	fallbackCategory   = ticket.CategorySoftware
	fallbackConfidence = 0.3
)

// categoryKeywords drive the rule-based category decision. Matching is
// case-insensitive substring search over title plus description.
var categoryKeywords = map[ticket.Category][]string{
	ticket.CategoryAuthentication: {
		"password", "login", "log in", "sign in", "credential", "mfa",
		"two-factor", "authentication", "locked out", "sso",
	},
	ticket.CategoryNetwork: {
		"network", "vpn", "wifi", "wi-fi", "dns", "connection", "connectivity",
		"latency", "unreachable", "firewall",
	},
	ticket.CategorySoftware: {
		"error", "bug", "crash", "install", "update", "application",
		"license", "freeze", "deployment", "configuration",
	},
	ticket.CategoryHardware: {
		"laptop", "printer", "monitor", "keyboard", "mouse", "disk",
		"battery", "screen", "device", "hardware",
	},
	ticket.CategoryAccess: {
		"access", "permission", "shared drive", "folder", "account",
		"group", "role", "grant", "onboard", "provisioning",
	},
}

// priorityKeywords escalate the priority verdict; the highest matching
// level wins, medium is the floor.
var priorityKeywords = []struct {
	priority envelope.Priority
	terms    []string
}{
	{envelope.PriorityCritical, []string{"outage", "down", "production", "breach", "data loss", "everyone"}},
	{envelope.PriorityHigh, []string{"urgent", "critical", "asap", "blocked", "cannot work", "deadline"}},
	{envelope.PriorityMedium, []string{"important", "soon", "degraded", "intermittent"}},
}

// RuleClassifier classifies tickets by keyword matching. It is stateless
// and safe for concurrent use.
type RuleClassifier struct{}

// NewRuleClassifier creates the deterministic keyword classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify implements Classifier. The category with the most keyword hits
// wins; confidence grows with match strength. When nothing matches, the
// hint decides if it names a valid category, otherwise the low-confidence
// software/medium fallback applies.
func (c *RuleClassifier) Classify(_ context.Context, title, description, hint string) (Classification, error) {
	text := strings.ToLower(title + " " + description)

	best := Classification{
		Category:   fallbackCategory,
		Priority:   envelope.PriorityMedium,
		Confidence: fallbackConfidence,
	}

	bestHits := 0
	for _, category := range ticket.Categories() {
		hits := 0
		for _, term := range categoryKeywords[category] {
			if strings.Contains(text, term) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best.Category = category
			best.Confidence = confidenceFor(hits)
		}
	}

	if bestHits == 0 {
		if hinted, err := ticket.ParseCategory(hint); err == nil {
			best.Category = hinted
			best.Confidence = 0.5
		}
	}

	best.Priority = classifyPriority(text)
	return best, nil
}

// confidenceFor maps keyword hit counts to a bounded confidence score.
func confidenceFor(hits int) float64 {
	confidence := 0.5 + 0.15*float64(hits)
	if confidence > 0.95 {
		return 0.95
	}
	return confidence
}

// classifyPriority returns the highest priority whose terms appear in the
// text, defaulting to low when nothing urgent is mentioned.
func classifyPriority(text string) envelope.Priority {
	for _, level := range priorityKeywords {
		for _, term := range level.terms {
			if strings.Contains(text, term) {
				return level.priority
			}
		}
	}
	return envelope.PriorityLow
}
