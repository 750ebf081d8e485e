package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/dispatch"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/ticket"
)

// Dead-letter reasons the stages use. The router passes them through to the
// transport verbatim.
const (
	ReasonMalformedTicket   = "MalformedTicket"
	ReasonMalformedFeedback = "MalformedFeedback"
	ReasonInvalidTransition = "InvalidStatusTransition"
	ReasonClassifierFailed  = "ClassifierUnavailable"
	ReasonSearchFailed      = "SearchUnavailable"
	ReasonForwardFailed     = "ForwardFailed"
)

// Triage classifies submitted tickets and routes them to knowledge
// enrichment.
type Triage struct {
	classifier Classifier
	enqueue    EnqueueFunc
	logger     *slog.Logger
}

// EnqueueFunc sends an envelope onward; stages depend on it instead of the
// whole router so tests can capture forwarded envelopes directly.
type EnqueueFunc func(ctx context.Context, env *envelope.Envelope) error

// NewTriage creates the triage stage.
func NewTriage(classifier Classifier, enqueue EnqueueFunc, logger *slog.Logger) *Triage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Triage{classifier: classifier, enqueue: enqueue, logger: logger}
}

// Handle classifies one submitted ticket. Malformed payloads dead-letter
// immediately; classifier outages retry; everything else moves the ticket
// forward to the knowledge stage.
func (s *Triage) Handle(ctx context.Context, env *envelope.Envelope) dispatch.Outcome {
	t, err := ticket.Decode(env)
	if err != nil {
		return dispatch.PermanentFailure(ReasonMalformedTicket, err)
	}

	classification, err := s.classifier.Classify(ctx, t.Title, t.Description, t.Category.String())
	if err != nil {
		return dispatch.RetryableFailure(ReasonClassifierFailed, err)
	}

	t.Category = classification.Category
	t.Priority = classification.Priority
	t.Confidence = classification.Confidence

	if err := t.Advance(ticket.StatusTriaged); err != nil {
		return dispatch.PermanentFailure(ReasonInvalidTransition, err)
	}

	if err := forwardTicket(ctx, s.enqueue, t, SubjectKnowledge, env); err != nil {
		return dispatch.RetryableFailure(ReasonForwardFailed, err)
	}

	s.logger.Info("ticket triaged",
		"ticket_id", t.ID,
		"category", t.Category,
		"priority", t.Priority,
		"confidence", t.Confidence)
	return dispatch.Success()
}

// forwardTicket wraps the ticket in a fresh envelope bound for subject,
// preserving the correlation chain and the remaining time-to-live so the
// ticket's overall deadline survives stage hops.
func forwardTicket(ctx context.Context, enqueue EnqueueFunc, t *ticket.Ticket, subject string, src *envelope.Envelope) error {
	remaining := time.Until(src.ExpiresAt())
	if remaining <= 0 {
		remaining = time.Second
	}

	env, err := ticket.NewEnvelope(t, subject,
		envelope.WithCorrelationID(src.CorrelationID()),
		envelope.WithTTL(remaining),
	)
	if err != nil {
		return err
	}
	return enqueue(ctx, env)
}
