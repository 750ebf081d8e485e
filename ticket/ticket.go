package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Category classifies a ticket into one of the supported problem domains.
type Category string

// Supported categories.
const (
	CategoryAuthentication Category = "authentication"
	CategoryNetwork        Category = "network"
	CategorySoftware       Category = "software"
	CategoryHardware       Category = "hardware"
	CategoryAccess         Category = "access"
)

// Categories returns all supported categories.
func Categories() []Category {
	return []Category{
		CategoryAuthentication,
		CategoryNetwork,
		CategorySoftware,
		CategoryHardware,
		CategoryAccess,
	}
}

// Valid reports whether the category is one of the supported domains.
func (c Category) Valid() bool {
	switch c {
	case CategoryAuthentication, CategoryNetwork, CategorySoftware,
		CategoryHardware, CategoryAccess:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c Category) String() string { return string(c) }

// ParseCategory converts a string to a Category, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Status is the ticket lifecycle state. Transitions are forward-only and may
// not skip stages; the consuming stage enforces this, not the router.
type Status string

// Lifecycle states in order.
const (
	StatusSubmitted         Status = "submitted"
	StatusTriaged           Status = "triaged"
	StatusKnowledgeEnriched Status = "knowledge_enriched"
	StatusInProgress        Status = "in_progress"
	StatusResolved          Status = "resolved"
	StatusClosed            Status = "closed"
)

var statusOrder = []Status{
	StatusSubmitted,
	StatusTriaged,
	StatusKnowledgeEnriched,
	StatusInProgress,
	StatusResolved,
	StatusClosed,
}

// sequence returns the position of the status in the lifecycle, or -1.
func (s Status) sequence() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	return s.sequence() >= 0
}

// String returns the string representation of the status.
func (s Status) String() string { return string(s) }

// KnowledgeResult is one ranked article attached to a ticket by the
// knowledge stage. Results are ordered by descending relevance.
type KnowledgeResult struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	Source         string  `json:"source"`
}

// Ticket is the work record carried as an envelope payload between stages.
// Exactly one stage owns a ticket at a time; ownership moves when the stage
// routes it onward.
type Ticket struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         Category          `json:"category,omitempty"`
	Priority         envelope.Priority `json:"priority"`
	Confidence       float64           `json:"confidence"`
	Status           Status            `json:"status"`
	AssignedTeam     string            `json:"assigned_team,omitempty"`
	Resolution       string            `json:"resolution,omitempty"`
	KnowledgeResults []KnowledgeResult `json:"knowledge_results,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	ResolvedAt       time.Time         `json:"resolved_at,omitzero"`
}

// New creates a submitted ticket with defaults applied.
func New(id, title, description string) *Ticket {
	return &Ticket{
		ID:          id,
		Title:       title,
		Description: description,
		Priority:    envelope.DefaultPriority,
		Status:      StatusSubmitted,
		Metadata:    make(map[string]string),
		SubmittedAt: time.Now(),
	}
}

// Advance moves the ticket exactly one stage forward. Skipping stages or
// moving backward is rejected.
func (t *Ticket) Advance(next Status) error {
	cur := t.Status.sequence()
	nxt := next.sequence()

	if nxt < 0 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Advance",
			fmt.Sprintf("unknown status %q", next))
	}
	if cur < 0 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Advance",
			fmt.Sprintf("ticket %s has unknown status %q", t.ID, t.Status))
	}
	if nxt != cur+1 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Advance",
			fmt.Sprintf("ticket %s cannot move from %s to %s", t.ID, t.Status, next))
	}

	t.Status = next
	return nil
}

// Validate checks the invariants every ticket payload must hold.
func (t *Ticket) Validate() error {
	if t.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate", "missing id")
	}
	if t.Title == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate", "missing title")
	}
	if !t.Status.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate",
			fmt.Sprintf("unknown status %q", t.Status))
	}
	if t.Category != "" && !t.Category.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate",
			fmt.Sprintf("unknown category %q", t.Category))
	}
	if !t.Priority.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate",
			fmt.Sprintf("unknown priority %q", t.Priority))
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Ticket", "Validate",
			fmt.Sprintf("confidence %.3f outside [0,1]", t.Confidence))
	}
	return nil
}
