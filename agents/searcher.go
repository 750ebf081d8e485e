package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// maxKnowledgeResults caps the results attached to a ticket.
const maxKnowledgeResults = 5

// Searcher finds knowledge articles relevant to a query. A real deployment
// backs this with a search index; the shipped StaticSearcher ranks a fixed
// article set.
type Searcher interface {
	// Query returns articles ranked by descending relevance. Filters narrow
	// the corpus; the "category" filter restricts results to one category.
	Query(ctx context.Context, text string, filters map[string]string) ([]ticket.KnowledgeResult, error)
}

// article is one entry in the static corpus.
type article struct {
	category ticket.Category
	title    string
	content  string
	keywords []string
}

// staticCorpus is the built-in knowledge base, a few articles per category.
var staticCorpus = []article{
	{
		category: ticket.CategoryAuthentication,
		title:    "Password Reset Runbook",
		content:  "Self-service password reset steps, helpdesk-assisted reset, and unlock procedures for expired credentials.",
		keywords: []string{"password", "reset", "expired", "locked"},
	},
	{
		category: ticket.CategoryAuthentication,
		title:    "Multi-Factor Authentication Setup",
		content:  "Enrolling a new device for MFA, recovering from a lost authenticator, and temporary bypass policy.",
		keywords: []string{"mfa", "two-factor", "authenticator", "enroll"},
	},
	{
		category: ticket.CategoryAuthentication,
		title:    "Single Sign-On Troubleshooting",
		content:  "Diagnosing SSO redirect loops, stale sessions, and identity-provider certificate expiry.",
		keywords: []string{"sso", "sign in", "redirect", "session"},
	},
	{
		category: ticket.CategoryNetwork,
		title:    "VPN Connection Troubleshooting",
		content:  "Resolving VPN client failures: profile refresh, split-tunnel conflicts, and gateway selection.",
		keywords: []string{"vpn", "tunnel", "remote", "gateway"},
	},
	{
		category: ticket.CategoryNetwork,
		title:    "DNS Resolution Failures",
		content:  "Diagnosing name-resolution problems: cache flush, resolver order, and internal-zone forwarding.",
		keywords: []string{"dns", "resolve", "domain", "lookup"},
	},
	{
		category: ticket.CategoryNetwork,
		title:    "Office Wi-Fi Connectivity Guide",
		content:  "Reconnecting to corporate wireless, certificate renewal for 802.1X, and roaming dead zones.",
		keywords: []string{"wifi", "wireless", "connect", "signal"},
	},
	{
		category: ticket.CategorySoftware,
		title:    "Application Crash Diagnostics",
		content:  "Collecting crash logs, safe-mode launch, and profile reset for repeatedly crashing applications.",
		keywords: []string{"crash", "error", "freeze", "log"},
	},
	{
		category: ticket.CategorySoftware,
		title:    "Deployment Troubleshooting Guide",
		content:  "Common deployment failures and rollbacks: version pinning, dependency conflicts, and staged rollout.",
		keywords: []string{"deploy", "rollback", "version", "release"},
	},
	{
		category: ticket.CategorySoftware,
		title:    "License Activation Issues",
		content:  "Re-activating seats after hardware changes, license-server reachability, and grace-period limits.",
		keywords: []string{"license", "activation", "seat", "expired"},
	},
	{
		category: ticket.CategoryHardware,
		title:    "Printer Setup and Queue Recovery",
		content:  "Installing network printers, clearing stuck queues, and driver reinstallation.",
		keywords: []string{"printer", "print", "queue", "driver"},
	},
	{
		category: ticket.CategoryHardware,
		title:    "Laptop Battery and Power Diagnostics",
		content:  "Battery health checks, charger validation, and firmware power-management fixes.",
		keywords: []string{"battery", "power", "charge", "laptop"},
	},
	{
		category: ticket.CategoryHardware,
		title:    "External Display Configuration",
		content:  "Resolving undetected monitors: cable and port checks, resolution limits, and docking-station firmware.",
		keywords: []string{"monitor", "display", "screen", "dock"},
	},
	{
		category: ticket.CategoryAccess,
		title:    "Shared Drive Access Requests",
		content:  "Requesting and approving shared-drive permissions, owner lookup, and inheritance rules.",
		keywords: []string{"shared drive", "folder", "permission", "request"},
	},
	{
		category: ticket.CategoryAccess,
		title:    "Role-Based Access Provisioning",
		content:  "Mapping job roles to entitlement bundles, approval chains, and periodic access review.",
		keywords: []string{"role", "provisioning", "entitlement", "grant"},
	},
	{
		category: ticket.CategoryAccess,
		title:    "Account Onboarding Checklist",
		content:  "New-starter account creation, group memberships, and first-login verification.",
		keywords: []string{"onboard", "account", "new starter", "group"},
	},
}

// StaticSearcher serves the built-in corpus, relevance-ranked by term
// overlap. It is stateless and safe for concurrent use.
type StaticSearcher struct{}

// NewStaticSearcher creates the built-in corpus searcher.
func NewStaticSearcher() *StaticSearcher {
	return &StaticSearcher{}
}

// Query implements Searcher. Relevance is the fraction of an article's
// keywords present in the query text, with a small boost for title words;
// zero-relevance articles are dropped unless nothing at all matches, in
// which case the category's articles return with baseline relevance so a
// ticket never goes onward empty-handed.
func (s *StaticSearcher) Query(_ context.Context, text string, filters map[string]string) ([]ticket.KnowledgeResult, error) {
	query := strings.ToLower(text)
	categoryFilter := filters["category"]

	var results []ticket.KnowledgeResult
	var baseline []ticket.KnowledgeResult

	for _, a := range staticCorpus {
		if categoryFilter != "" && a.category.String() != categoryFilter {
			continue
		}

		score := s.score(query, a)
		result := ticket.KnowledgeResult{
			Title:          a.title,
			Content:        a.content,
			RelevanceScore: score,
			Source:         "builtin-kb",
		}

		if score > 0 {
			results = append(results, result)
		} else {
			result.RelevanceScore = 0.1
			baseline = append(baseline, result)
		}
	}

	if len(results) == 0 {
		results = baseline
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if len(results) > maxKnowledgeResults {
		results = results[:maxKnowledgeResults]
	}
	return results, nil
}

// score rates one article against the query text.
func (s *StaticSearcher) score(query string, a article) float64 {
	if len(a.keywords) == 0 {
		return 0
	}

	hits := 0
	for _, keyword := range a.keywords {
		if strings.Contains(query, keyword) {
			hits++
		}
	}

	score := float64(hits) / float64(len(a.keywords))
	for _, word := range strings.Fields(strings.ToLower(a.title)) {
		if len(word) > 3 && strings.Contains(query, word) {
			score += 0.05
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}
