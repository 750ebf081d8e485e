package health

import "time"

// NewHealthy creates a new healthy status.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		State:     StateHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		State:     StateUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a new degraded status.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		State:     StateDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds dependency statuses into one status for component.
// The aggregation rules are:
//   - If any dependency is unhealthy, the aggregate is unhealthy
//   - If none is unhealthy but at least one is degraded, the aggregate is degraded
//   - Otherwise the aggregate is healthy
func Aggregate(component string, statuses []Status) Status {
	if len(statuses) == 0 {
		return NewHealthy(component, "No dependencies to aggregate")
	}

	hasUnhealthy := false
	hasDegraded := false

	for _, st := range statuses {
		if st.IsUnhealthy() {
			hasUnhealthy = true
		} else if st.IsDegraded() {
			hasDegraded = true
		}
	}

	switch {
	case hasUnhealthy:
		return NewUnhealthy(component, "One or more dependencies are unhealthy")
	case hasDegraded:
		return NewDegraded(component, "One or more dependencies are degraded")
	default:
		return NewHealthy(component, "All dependencies are healthy")
	}
}
