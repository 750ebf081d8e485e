package agents

import (
	"fmt"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/config"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// Subjects the pipeline stages consume.
const (
	SubjectTriage     = "ticket.triage"
	SubjectKnowledge  = "ticket.knowledge"
	SubjectAutomation = "ticket.automation"
	SubjectEscalation = "ticket.escalation"
	SubjectAnalytics  = "ticket.analytics"
	SubjectLearning   = "ticket.learning"
)

// Agent identifies a pipeline stage in the routing table.
type Agent string

// Stage identities.
const (
	AgentAutomation Agent = "automation"
	AgentEscalation Agent = "escalation"
)

// subjectFor maps assignable agents to their subjects.
var subjectFor = map[Agent]string{
	AgentAutomation: SubjectAutomation,
	AgentEscalation: SubjectEscalation,
}

// Rules is the category routing table the knowledge stage consults to send
// an enriched ticket onward. It is validated exhaustively at startup so an
// unmapped category fails fast instead of defaulting silently.
type Rules struct {
	// Assignments maps every category to the agent that handles it when no
	// escalation condition fires.
	Assignments map[ticket.Category]Agent

	// EscalationCategories escalate regardless of their assignment when the
	// ticket priority is in EscalationPriorities.
	EscalationCategories []ticket.Category

	// EscalationPriorities are the priorities that force escalation for an
	// escalation category.
	EscalationPriorities []envelope.Priority
}

// DefaultRules routes remediable categories to automation and
// infrastructure categories to escalation, with high and critical
// authentication or access tickets escalating regardless.
func DefaultRules() Rules {
	return Rules{
		Assignments: map[ticket.Category]Agent{
			ticket.CategoryAuthentication: AgentAutomation,
			ticket.CategoryNetwork:        AgentEscalation,
			ticket.CategorySoftware:       AgentAutomation,
			ticket.CategoryHardware:       AgentEscalation,
			ticket.CategoryAccess:         AgentAutomation,
		},
		EscalationCategories: []ticket.Category{
			ticket.CategoryAuthentication,
			ticket.CategoryAccess,
		},
		EscalationPriorities: []envelope.Priority{
			envelope.PriorityHigh,
			envelope.PriorityCritical,
		},
	}
}

// RulesFromConfig builds Rules from the loaded configuration. An empty
// routing section yields DefaultRules; a partial one is rejected by
// Validate rather than silently completed.
func RulesFromConfig(rc config.RoutingConfig) (Rules, error) {
	if len(rc.Assignments) == 0 && len(rc.EscalationCategories) == 0 && len(rc.EscalationPriorities) == 0 {
		return DefaultRules(), nil
	}

	rules := Rules{Assignments: make(map[ticket.Category]Agent, len(rc.Assignments))}

	for cat, agent := range rc.Assignments {
		category, err := ticket.ParseCategory(cat)
		if err != nil {
			return Rules{}, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RulesFromConfig",
				fmt.Sprintf("routing.assignments: %v", err))
		}
		rules.Assignments[category] = Agent(agent)
	}

	for _, cat := range rc.EscalationCategories {
		category, err := ticket.ParseCategory(cat)
		if err != nil {
			return Rules{}, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RulesFromConfig",
				fmt.Sprintf("routing.escalation_categories: %v", err))
		}
		rules.EscalationCategories = append(rules.EscalationCategories, category)
	}

	for _, pri := range rc.EscalationPriorities {
		priority, err := envelope.ParsePriority(pri)
		if err != nil {
			return Rules{}, errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "RulesFromConfig",
				fmt.Sprintf("routing.escalation_priorities: %v", err))
		}
		rules.EscalationPriorities = append(rules.EscalationPriorities, priority)
	}

	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// isZero reports whether the table was never populated.
func (r Rules) isZero() bool {
	return len(r.Assignments) == 0 && len(r.EscalationCategories) == 0 && len(r.EscalationPriorities) == 0
}

// Validate checks the table is total over the known categories and only
// names known agents.
func (r Rules) Validate() error {
	for _, category := range ticket.Categories() {
		agent, ok := r.Assignments[category]
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "Validate",
				fmt.Sprintf("category %q has no agent assignment", category))
		}
		if _, known := subjectFor[agent]; !known {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "Validate",
				fmt.Sprintf("category %q assigned to unknown agent %q", category, agent))
		}
	}
	return nil
}

// NextSubject decides where an enriched ticket goes: escalation when its
// category and priority both match the escalation conditions or its
// assignment is the escalation agent, automation otherwise.
func (r Rules) NextSubject(t *ticket.Ticket) (string, error) {
	agent, ok := r.Assignments[t.Category]
	if !ok {
		return "", errors.WrapInvalid(errors.ErrInvalidConfig, "agents", "NextSubject",
			fmt.Sprintf("category %q has no agent assignment", t.Category))
	}

	if agent != AgentEscalation && r.escalates(t) {
		return SubjectEscalation, nil
	}
	return subjectFor[agent], nil
}

// escalates reports whether the ticket meets both escalation conditions.
func (r Rules) escalates(t *ticket.Ticket) bool {
	categoryMatch := false
	for _, category := range r.EscalationCategories {
		if t.Category == category {
			categoryMatch = true
			break
		}
	}
	if !categoryMatch {
		return false
	}

	for _, priority := range r.EscalationPriorities {
		if t.Priority == priority {
			return true
		}
	}
	return false
}
