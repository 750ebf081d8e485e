// Package errors provides standardized error handling for the service desk
// routing core.
//
// # Overview
//
// The package implements a four-class error classification system for
// asynchronous message processing: Transient (temporary, retryable), Invalid
// (bad input, rejected synchronously), Expired (time-to-live elapsed,
// terminal), and Fatal (unrecoverable, stop processing).
//
// Classification lets the dispatch layer make retry and dead-letter decisions
// without string matching on error content. The taxonomy used at the router
// boundary maps as follows:
//
//   - validation failures (malformed envelope, bad schema) -> Invalid,
//     rejected at enqueue, never queued
//   - broker unreachable -> Transient, surfaced to the caller of
//     Enqueue/HealthCheck and retried at the connection level
//   - swept envelopes -> Expired, dead-lettered, never retried
//   - handler failures are not errors in this taxonomy at all; they are
//     expressed through the dispatch outcome type so handlers control
//     the retry-versus-dead-letter decision explicitly
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three classification-aware wrappers plus a class-preserving Wrap:
//
//	errors.WrapTransient(err, "JetStream", "Send", "publish envelope")
//	errors.WrapInvalid(err, "Router", "Enqueue", "validate envelope")
//	errors.WrapExpired(err, "Router", "Enqueue", "check time-to-live")
//	errors.WrapFatal(err, "Config", "Load", "parse file")
//	errors.Wrap(err, "Component", "Method", "action") // preserves class
//
// # Integration with errors.Is/As
//
// All types support standard library error inspection; classification is
// preserved through wrapping chains:
//
//	wrapped := errors.WrapTransient(errors.ErrConnectionTimeout, "Transport", "Send", "publish")
//	errors.IsTransient(wrapped) // true
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify as
// Transient so context-based timeouts follow the same retry paths as network
// timeouts.
package errors
