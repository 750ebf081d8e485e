// Package metric provides Prometheus metrics for the work router: a central
// registry with collision detection, the core routing metrics every
// component shares, and an HTTP server for scrapes.
//
// # Overview
//
// All metrics live under the "servicedesk" namespace. The Registry owns a
// dedicated Prometheus registry (no global default registry use) so tests
// and embedded deployments can run several instances side by side. Core
// routing metrics are registered at construction; components add their own
// through the Registrar interface:
//
//	registry := metric.NewRegistry()
//	if err := stage.RegisterMetrics(registry); err != nil {
//		return err
//	}
//
// Registration is keyed by (component, metric name). A duplicate key or a
// Prometheus-level name collision returns an invalid-classified error, so a
// misconfigured deployment fails at startup instead of silently dropping
// samples.
//
// # Core Metrics
//
// The Metrics struct covers the envelope lifecycle: enqueued, delivered (by
// outcome), retried, dead-lettered (by reason), delivery duration, queue
// depth, in-flight count, and lock renewals. Health gauges track per-
// component status (0=unhealthy, 1=degraded, 2=healthy) and round-trip
// times. Transport gauges track connection state, RTT, reconnects, and the
// circuit breaker. Components record through the typed helpers:
//
//	core := registry.Core()
//	core.RecordEnqueued("ticket.triage")
//	core.RecordDelivered("ticket.triage", "success")
//
// # HTTP Server
//
// Server exposes the registry at a configurable path (default /metrics on
// :9090) plus a /health endpoint. Start blocks, so run it in a goroutine:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() {
//		if err := server.Start(); err != nil {
//			log.Error("metrics server", "error", err)
//		}
//	}()
//	defer server.Stop()
package metric
