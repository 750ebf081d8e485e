// Package servicedesk is an automated support ticket pipeline built on a
// reliable message-routing core.
//
// # Architecture
//
// Tickets travel between processing stages as immutable envelopes. The
// transport package moves envelopes (in-memory for tests and the demo,
// NATS JetStream in production), the dispatch package delivers them to
// registered handlers with bounded concurrency, lock renewal, retry
// backoff, and dead-lettering, and the agents package implements the
// stages themselves:
//
//	triage -> knowledge -> automation -> analytics
//	                    \> escalation /
//
// Triage classifies free-text tickets into a category and priority. The
// knowledge stage attaches relevant articles, caching lookups, and routes
// the ticket by a validated rules table: remediable categories go to
// automation, infrastructure and high-severity ones to escalation. Both
// paths end at analytics, which keeps aggregate counts. A separate
// learning stage consumes satisfaction feedback and derives per-category
// quality recommendations.
//
// # Delivery guarantees
//
// Delivery is at least once: a handler that fails, panics, or loses its
// lock sees the envelope again, up to the configured attempt limit, after
// which the envelope dead-letters with a reason. At most one delivery of
// an envelope is in flight at a time, enforced by per-delivery lock
// tokens. Handlers signal success, retryable failure, or permanent
// failure explicitly through the dispatch.Outcome type.
//
// # Supporting packages
//
// The envelope package defines the message contract (identity,
// correlation, priority, TTL, delivery accounting). The health package
// tracks rolling throughput and aggregates dependency probes into a
// three-state report. The metric package exports Prometheus metrics, and
// pkg/cache provides the TTL result cache with prefix invalidation used
// for knowledge lookups.
//
// cmd/servicedesk ties everything together: a serve mode for production
// and a self-contained demo mode that generates tickets, drains the
// pipeline, and prints the aggregate report.
package servicedesk
