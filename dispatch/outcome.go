package dispatch

import "fmt"

// outcomeKind discriminates handler outcomes.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomePermanent
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable_failure"
	case outcomePermanent:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Outcome is a handler's verdict on one delivery attempt. Handlers choose
// between retry and dead-letter explicitly instead of signaling through
// error types.
type Outcome struct {
	kind   outcomeKind
	reason string
	err    error
}

// Success reports that the envelope was fully processed and may be
// completed.
func Success() Outcome {
	return Outcome{kind: outcomeSuccess}
}

// RetryableFailure reports a failure worth retrying: the envelope is
// abandoned for redelivery until its delivery attempts run out, then
// dead-lettered with the given reason.
func RetryableFailure(reason string, err error) Outcome {
	return Outcome{kind: outcomeRetryable, reason: reason, err: err}
}

// PermanentFailure reports an unrecoverable failure: the envelope is
// dead-lettered immediately with the given reason, regardless of how many
// attempts remain.
func PermanentFailure(reason string, err error) Outcome {
	return Outcome{kind: outcomePermanent, reason: reason, err: err}
}

// IsSuccess reports whether the delivery succeeded.
func (o Outcome) IsSuccess() bool { return o.kind == outcomeSuccess }

// Retryable reports whether the failure should be retried.
func (o Outcome) Retryable() bool { return o.kind == outcomeRetryable }

// Reason returns the failure reason recorded on dead-letter. Empty for
// success.
func (o Outcome) Reason() string { return o.reason }

// Err returns the underlying handler error, if any.
func (o Outcome) Err() error { return o.err }

// String renders the outcome for logs.
func (o Outcome) String() string {
	if o.kind == outcomeSuccess {
		return "success"
	}
	if o.err != nil {
		return fmt.Sprintf("%s (%s): %v", o.kind, o.reason, o.err)
	}
	return fmt.Sprintf("%s (%s)", o.kind, o.reason)
}
