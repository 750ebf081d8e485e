// Package ticket defines the support-ticket payloads carried inside
// envelopes, their lifecycle, and the codecs binding them to schema tags.
//
// A ticket moves Submitted -> Triaged -> KnowledgeEnriched -> InProgress ->
// Resolved -> Closed, one stage at a time. The transition rule lives in
// Advance and is enforced by the consuming stage - the routing core never
// inspects ticket state.
//
// Two payload schemas exist: ticket.v1 (the work record) and feedback.v1
// (post-resolution satisfaction records consumed by the learning stage).
// Decoders verify the envelope schema tag before unmarshalling.
package ticket
