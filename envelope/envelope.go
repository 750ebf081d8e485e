package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// DefaultTTL is the envelope time-to-live applied when the producer does not
// set one explicitly.
const DefaultTTL = 14 * 24 * time.Hour

// Envelope is one unit of routed work plus its delivery metadata.
//
// An Envelope is immutable after creation - all fields are set during
// construction and cannot be modified. The single piece of state that evolves
// across redeliveries, the delivery count, is carried by handing out copies
// via WithDeliveryCount, so no two holders ever share mutable state.
//
// Construction uses functional options:
//
//	// Simple envelope (most common)
//	env, err := envelope.New("ticket.triage", "ticket.v1", payload)
//
//	// With routing priority and a bounded lifetime
//	env, err := envelope.New("ticket.triage", "ticket.v1", payload,
//	    envelope.WithPriority(envelope.PriorityHigh),
//	    envelope.WithTTL(30*time.Minute))
//
//	// Correlating a follow-up with the envelope that caused it
//	env, err := envelope.New("ticket.knowledge", "ticket.v1", payload,
//	    envelope.WithCorrelationID(parent.CorrelationID()))
type Envelope struct {
	id            string
	correlationID string
	subject       string
	schema        string
	payload       []byte
	properties    map[string]string
	priority      Priority
	enqueuedAt    time.Time
	ttl           time.Duration
	deliveryCount int
}

// Option is a functional option for configuring Envelope construction.
type Option func(*Envelope)

// WithID sets a specific envelope ID instead of generating one.
// Useful for deterministic IDs in tests and for replaying captured traffic.
func WithID(id string) Option {
	return func(e *Envelope) {
		e.id = id
	}
}

// WithCorrelationID groups this envelope with related envelopes. When unset,
// the correlation ID defaults to the envelope's own ID.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) {
		e.correlationID = id
	}
}

// WithPriority sets the routing priority. Defaults to DefaultPriority.
func WithPriority(p Priority) Option {
	return func(e *Envelope) {
		e.priority = p
	}
}

// WithTTL bounds the envelope lifetime. The envelope must never be delivered
// once enqueuedAt+ttl has passed. Defaults to DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Envelope) {
		e.ttl = ttl
	}
}

// WithProperty sets one open metadata property.
func WithProperty(key, value string) Option {
	return func(e *Envelope) {
		e.properties[key] = value
	}
}

// WithProperties merges a set of open metadata properties.
func WithProperties(props map[string]string) Option {
	return func(e *Envelope) {
		for k, v := range props {
			e.properties[k] = v
		}
	}
}

// WithEnqueuedAt backdates the envelope clock. Useful for tests exercising
// expiry and for historical replay.
func WithEnqueuedAt(t time.Time) Option {
	return func(e *Envelope) {
		e.enqueuedAt = t
	}
}

// New creates an Envelope bound for subject, carrying payload tagged with the
// given schema. The envelope is validated before being returned.
func New(subject, schema string, payload []byte, opts ...Option) (*Envelope, error) {
	e := &Envelope{
		id:         uuid.New().String(),
		subject:    subject,
		schema:     schema,
		payload:    payload,
		properties: make(map[string]string),
		priority:   DefaultPriority,
		enqueuedAt: time.Now(),
		ttl:        DefaultTTL,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.correlationID == "" {
		e.correlationID = e.id
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// ID returns the unique envelope identifier.
func (e *Envelope) ID() string { return e.id }

// CorrelationID returns the identifier grouping related envelopes.
func (e *Envelope) CorrelationID() string { return e.correlationID }

// Subject returns the routing subject.
func (e *Envelope) Subject() string { return e.subject }

// Schema returns the payload schema tag.
func (e *Envelope) Schema() string { return e.schema }

// Payload returns the opaque serialized payload. Callers must treat the
// returned bytes as read-only; use Clone for an independent copy.
func (e *Envelope) Payload() []byte { return e.payload }

// Priority returns the routing priority.
func (e *Envelope) Priority() Priority { return e.priority }

// EnqueuedAt returns the envelope clock origin used for expiry.
func (e *Envelope) EnqueuedAt() time.Time { return e.enqueuedAt }

// TTL returns the envelope time-to-live.
func (e *Envelope) TTL() time.Duration { return e.ttl }

// DeliveryCount returns how many times the envelope has been handed to a
// worker. It starts at zero and increases monotonically per envelope ID.
func (e *Envelope) DeliveryCount() int { return e.deliveryCount }

// Property returns one open metadata property.
func (e *Envelope) Property(key string) (string, bool) {
	v, ok := e.properties[key]
	return v, ok
}

// Properties returns a copy of the open metadata bag.
func (e *Envelope) Properties() map[string]string {
	props := make(map[string]string, len(e.properties))
	for k, v := range e.properties {
		props[k] = v
	}
	return props
}

// ExpiresAt returns the instant after which the envelope must not be
// delivered.
func (e *Envelope) ExpiresAt() time.Time {
	return e.enqueuedAt.Add(e.ttl)
}

// Expired reports whether the time-to-live has elapsed at the given instant.
func (e *Envelope) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// WithDeliveryCount returns a copy of the envelope carrying the given
// delivery count. Transports hand out these copies on each dispatch attempt.
func (e *Envelope) WithDeliveryCount(n int) *Envelope {
	clone := e.Clone()
	clone.deliveryCount = n
	return clone
}

// Clone returns a deep copy of the envelope.
func (e *Envelope) Clone() *Envelope {
	payload := make([]byte, len(e.payload))
	copy(payload, e.payload)

	props := make(map[string]string, len(e.properties))
	for k, v := range e.properties {
		props[k] = v
	}

	return &Envelope{
		id:            e.id,
		correlationID: e.correlationID,
		subject:       e.subject,
		schema:        e.schema,
		payload:       payload,
		properties:    props,
		priority:      e.priority,
		enqueuedAt:    e.enqueuedAt,
		ttl:           e.ttl,
		deliveryCount: e.deliveryCount,
	}
}

// Validate checks the structural invariants every queued envelope must hold.
// Expiry is deliberately not part of validation; it is checked at enqueue and
// again at dispatch against the wall clock.
func (e *Envelope) Validate() error {
	if e.id == "" {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate", "missing id")
	}
	if e.subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate", "missing subject")
	}
	if e.schema == "" {
		return errors.WrapInvalid(errors.ErrSchemaMismatch, "Envelope", "Validate", "missing payload schema tag")
	}
	if len(e.payload) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Envelope", "Validate", "empty payload")
	}
	if !e.priority.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate",
			fmt.Sprintf("unknown priority %q", e.priority))
	}
	if e.enqueuedAt.IsZero() {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate", "missing enqueuedAt")
	}
	if e.ttl <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate", "non-positive time-to-live")
	}
	if e.deliveryCount < 0 {
		return errors.WrapInvalid(errors.ErrInvalidEnvelope, "Envelope", "Validate", "negative delivery count")
	}
	return nil
}

// wireFormat is the JSON wire representation. It has public fields so the
// private Envelope fields can round-trip through encoding/json.
type wireFormat struct {
	ID            string            `json:"id"`
	CorrelationID string            `json:"correlation_id"`
	Subject       string            `json:"subject"`
	Schema        string            `json:"schema"`
	Payload       []byte            `json:"payload"`
	Properties    map[string]string `json:"properties,omitempty"`
	Priority      Priority          `json:"priority"`
	EnqueuedAt    time.Time         `json:"enqueued_at"`
	TTL           time.Duration     `json:"ttl"`
	DeliveryCount int               `json:"delivery_count"`
}

// MarshalJSON implements json.Marshaler.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	wire := wireFormat{
		ID:            e.id,
		CorrelationID: e.correlationID,
		Subject:       e.subject,
		Schema:        e.schema,
		Payload:       e.payload,
		Properties:    e.properties,
		Priority:      e.priority,
		EnqueuedAt:    e.enqueuedAt,
		TTL:           e.ttl,
		DeliveryCount: e.deliveryCount,
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded envelope is
// validated so a malformed wire image cannot enter the routing core.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire wireFormat
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.WrapInvalid(err, "Envelope", "UnmarshalJSON", "decode wire format")
	}

	e.id = wire.ID
	e.correlationID = wire.CorrelationID
	e.subject = wire.Subject
	e.schema = wire.Schema
	e.payload = wire.Payload
	e.properties = wire.Properties
	e.priority = wire.Priority
	e.enqueuedAt = wire.EnqueuedAt
	e.ttl = wire.TTL
	e.deliveryCount = wire.DeliveryCount

	if e.properties == nil {
		e.properties = make(map[string]string)
	}
	if e.correlationID == "" {
		e.correlationID = e.id
	}

	return e.Validate()
}
