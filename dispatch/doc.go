// Package dispatch implements the routing core: it accepts envelopes,
// delivers them to registered subject handlers with bounded concurrency,
// retries failed deliveries with capped exponential backoff, and moves
// exhausted or permanently failed envelopes to the dead-letter queue.
//
// The Router never interprets payloads. Handlers return an explicit Outcome
// (Success, RetryableFailure, PermanentFailure) so retry-versus-dead-letter
// is a handler decision, not an exception taxonomy guess. Handler panics are
// contained and treated as retryable failures.
//
// Delivery guarantees come from the transport: each delivered envelope is
// locked to one worker, and the router keeps long-running work alive by
// renewing the lock on a heartbeat. At-least-once delivery holds end to end;
// handlers must tolerate redelivery.
package dispatch
