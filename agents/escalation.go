package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// escalationTeams maps categories to the human team that takes over.
var escalationTeams = map[ticket.Category]string{
	ticket.CategoryAuthentication: "Identity & Access",
	ticket.CategoryNetwork:        "Network Operations",
	ticket.CategorySoftware:       "Application Support",
	ticket.CategoryHardware:       "Field Support",
	ticket.CategoryAccess:         "Identity & Access",
}

// Escalation hands tickets to a human team: it assigns the team, marks the
// ticket in progress, and forwards a copy to analytics. Resolution happens
// outside the pipeline.
type Escalation struct {
	enqueue EnqueueFunc
	logger  *slog.Logger
}

// NewEscalation creates the escalation stage.
func NewEscalation(enqueue EnqueueFunc, logger *slog.Logger) *Escalation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalation{enqueue: enqueue, logger: logger}
}

// Handle escalates one enriched ticket.
func (s *Escalation) Handle(ctx context.Context, env *envelope.Envelope) dispatch.Outcome {
	t, err := ticket.Decode(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedTicket, err)
	}

	team, ok := escalationTeams[t.Category]
	if !ok {
		return dispatch.PermanentFailure(ReasonInvalidTransition,
			fmt.Errorf("no escalation team for category %q", t.Category))
	}

	t.AssignedTeam = team
	if err := t.Advance(ticket.StatusInProgress); err != nil {
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	if err := forwardTicket(ctx, s.enqueue, t, SubjectAnalytics, env); err != nil {
		return dispatch.RetryableFailure(ReasonForwardFailed, err)
	}

	s.logger.Info("ticket escalated",
		"ticket_id", t.ID,
		"category", t.Category,
		"team", team)
	return dispatch.Success()
}
