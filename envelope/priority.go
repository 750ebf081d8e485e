package envelope

import (
	"fmt"
	"strings"
)

// Priority orders envelopes within a subject. Higher-ranked priorities are
// dispatched first; envelopes of equal priority keep FIFO order.
type Priority string

// Priority levels, lowest to highest.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultPriority is assigned when the producer does not specify one.
const DefaultPriority = PriorityMedium

// Priorities returns all valid levels in ascending rank order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Rank returns the numeric ordering of the priority; unknown values rank
// below PriorityLow so they sort last rather than jumping the queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the priority is one of the known levels.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// ParsePriority converts a string to a Priority, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}
