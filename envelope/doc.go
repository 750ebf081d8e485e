// Package envelope defines the typed message envelope flowing between
// processing stages.
//
// An envelope couples an opaque, schema-tagged payload with the delivery
// metadata the routing core inspects: subject, priority, time-to-live, and
// delivery count. The fields the router reads are strongly typed and
// validated at construction; producer-defined metadata stays in the loose
// Properties bag for forward compatibility.
//
// Envelopes are immutable values. Redelivery state advances by copy: a
// transport hands each dispatch attempt a fresh copy carrying the incremented
// delivery count (WithDeliveryCount), so concurrent holders never share
// mutable state and the count increases monotonically per envelope ID.
//
// The JSON wire format round-trips every field, allowing envelopes to cross
// any byte-oriented transport unchanged.
package envelope
