package health

import (
	"regexp"
	"strings"
	"time"
)

// State is the three-level health classification.
type State string

const (
	// StateHealthy means the component is fully operational.
	StateHealthy State = "healthy"
	// StateDegraded means the component works but outside its normal
	// operating envelope (slow round trips, failing optional dependencies).
	StateDegraded State = "degraded"
	// StateUnhealthy means the component cannot do its job.
	StateUnhealthy State = "unhealthy"
)

// Status describes one component's health at a point in time.
type Status struct {
	Component string        `json:"component"`
	State     State         `json:"state"`
	Message   string        `json:"message"`
	Latency   time.Duration `json:"latency,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// IsHealthy returns true if the status is healthy.
func (s Status) IsHealthy() bool {
	return s.State == StateHealthy
}

// IsDegraded returns true if the status is degraded.
func (s Status) IsDegraded() bool {
	return s.State == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy.
func (s Status) IsUnhealthy() bool {
	return s.State == StateUnhealthy
}

// WithLatency returns a copy of the status with the probe round trip attached.
func (s Status) WithLatency(d time.Duration) Status {
	s.Latency = d
	return s
}

// Pre-compiled regexes for error message sanitization.
var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex     = regexp.MustCompile(`nats://[^\s]+`)
	redisURLRegex    = regexp.MustCompile(`rediss?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// sanitizeErrorMessage removes potentially sensitive information from error
// messages before they land in health reports, which are served over HTTP.
//
// Sanitization patterns:
//   - URLs (http://, https://, nats://, redis://, rediss://) → [URL]
//   - File paths (Unix: /path/to/file, Windows: C:\path\to\file) → [PATH]
//   - IP addresses (192.168.1.100) → [IP]
//   - Port numbers (:8080) → [PORT]
//   - Credentials (password=X, token=X, key=X, secret=X) → [REDACTED]
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := err

	// URLs first, before paths, as they contain paths.
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = natsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = redisURLRegex.ReplaceAllString(sanitized, "[URL]")

	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")

	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lowerSanitized := strings.ToLower(sanitized)
	if strings.Contains(lowerSanitized, "password") || strings.Contains(lowerSanitized, "token") ||
		strings.Contains(lowerSanitized, "key") || strings.Contains(lowerSanitized, "secret") ||
		strings.Contains(lowerSanitized, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}
