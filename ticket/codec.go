package ticket

import (
	"encoding/json"
	"fmt"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/envelope"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Schema tags for the payloads this package can encode and decode.
const (
	Schema         = "ticket.v1"
	FeedbackSchema = "feedback.v1"
)

// Envelope property keys stamped by the codec so the routing layer can read
// ticket attributes without decoding the payload.
const (
	PropertyCategory = "category"
	PropertyTicketID = "ticket_id"
)

// Encode serializes a ticket for use as an envelope payload.
func Encode(t *Ticket) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Ticket", "Encode", "marshal ticket")
	}
	return data, nil
}

// Decode extracts the ticket carried by an envelope, verifying the schema
// tag before touching the payload bytes.
func Decode(env *envelope.Envelope) (*Ticket, error) {
	if env.Schema() != Schema {
		return nil, errors.WrapInvalid(errors.ErrSchemaMismatch, "Ticket", "Decode",
			fmt.Sprintf("expected schema %s, got %s", Schema, env.Schema()))
	}

	var t Ticket
	if err := json.Unmarshal(env.Payload(), &t); err != nil {
		return nil, errors.WrapInvalid(err, "Ticket", "Decode", "unmarshal ticket payload")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// NewEnvelope wraps a ticket in an envelope bound for subject. The envelope
// priority mirrors the ticket priority, and the ticket ID becomes the
// correlation ID so every envelope in one ticket's journey groups together.
func NewEnvelope(t *Ticket, subject string, opts ...envelope.Option) (*envelope.Envelope, error) {
	payload, err := Encode(t)
	if err != nil {
		return nil, err
	}

	base := []envelope.Option{
		envelope.WithCorrelationID(t.ID),
		envelope.WithPriority(t.Priority),
		envelope.WithProperty(PropertyTicketID, t.ID),
	}
	if t.Category != "" {
		base = append(base, envelope.WithProperty(PropertyCategory, t.Category.String()))
	}
	base = append(base, opts...)

	return envelope.New(subject, Schema, payload, base...)
}

// Feedback is the satisfaction record the learning stage consumes after a
// ticket reaches a terminal state.
type Feedback struct {
	TicketID             string   `json:"ticket_id"`
	Category             Category `json:"category,omitempty"`
	Satisfaction         int      `json:"satisfaction"`
	ResolutionSuccessful bool     `json:"resolution_successful"`
	Comments             string   `json:"comments,omitempty"`
}

// Validate checks the feedback invariants.
func (f *Feedback) Validate() error {
	if f.TicketID == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Feedback", "Validate", "missing ticket id")
	}
	if f.Satisfaction < 1 || f.Satisfaction > 5 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Feedback", "Validate",
			fmt.Sprintf("satisfaction %d outside 1..5", f.Satisfaction))
	}
	if f.Category != "" && !f.Category.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Feedback", "Validate",
			fmt.Sprintf("unknown category %q", f.Category))
	}
	return nil
}

// EncodeFeedback serializes feedback for use as an envelope payload.
func EncodeFeedback(f *Feedback) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Feedback", "Encode", "marshal feedback")
	}
	return data, nil
}

// NewFeedbackEnvelope wraps feedback in an envelope bound for subject,
// correlated to the ticket it rates.
func NewFeedbackEnvelope(f *Feedback, subject string, opts ...envelope.Option) (*envelope.Envelope, error) {
	payload, err := EncodeFeedback(f)
	if err != nil {
		return nil, err
	}

	base := []envelope.Option{
		envelope.WithCorrelationID(f.TicketID),
		envelope.WithProperty(PropertyTicketID, f.TicketID),
	}
	base = append(base, opts...)

	return envelope.New(subject, FeedbackSchema, payload, base...)
}

// DecodeFeedback extracts the feedback carried by an envelope.
func DecodeFeedback(env *envelope.Envelope) (*Feedback, error) {
	if env.Schema() != FeedbackSchema {
		return nil, errors.WrapInvalid(errors.ErrSchemaMismatch, "Feedback", "Decode",
			fmt.Sprintf("expected schema %s, got %s", FeedbackSchema, env.Schema()))
	}

	var f Feedback
	if err := json.Unmarshal(env.Payload(), &f); err != nil {
		return nil, errors.WrapInvalid(err, "Feedback", "Decode", "unmarshal feedback payload")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
