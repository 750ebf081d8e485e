package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// resolutionTemplates are the automated remediation texts per category.
// Real remediation is an external system; these stand in for its output.
var resolutionTemplates = map[ticket.Category]string{
	ticket.CategoryAuthentication: "Issued a password reset link and cleared the account lockout counter.",
	ticket.CategoryNetwork:        "Refreshed the VPN profile and flushed the local DNS cache.",
	ticket.CategorySoftware:       "Reinstalled the affected application at the latest supported version.",
	ticket.CategoryHardware:       "Dispatched a remote diagnostic and queued a device health report.",
	ticket.CategoryAccess:         "Re-synced group memberships and re-applied the entitlement bundle.",
}

// Automation applies the category's remediation template, resolves the
// ticket, and forwards a copy to analytics.
type Automation struct {
	enqueue EnqueueFunc
	logger  *slog.Logger
}

// NewAutomation creates the automated remediation stage.
func NewAutomation(enqueue EnqueueFunc, logger *slog.Logger) *Automation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Automation{enqueue: enqueue, logger: logger}
}

// Handle remediates one enriched ticket.
func (s *Automation) Handle(ctx context.Context, env *envelope.Envelope) dispatch.Outcome {
	t, err := ticket.Decode(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedTicket, err)
	}

	template, ok := resolutionTemplates[t.Category]
	if !ok {
		return dispatch.PermanentFailure(ReasonInvalidTransition,
			fmt.Errorf("no remediation template for category %q", t.Category))
	}

	if err := t.Advance(ticket.StatusInProgress); err != nil {
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	t.Resolution = template
	t.ResolvedAt = time.Now()
	if err := t.Advance(ticket.StatusResolved); err != nil {
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	if err := forwardTicket(ctx, s.enqueue, t, SubjectAnalytics, env); err != nil {
		return dispatch.RetryableFailure(ReasonForwardFailed, err)
	}

	s.logger.Info("ticket auto-resolved",
		"ticket_id", t.ID,
		"category", t.Category)
	return dispatch.Success()
}
