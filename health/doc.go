// Package health tracks rolling delivery statistics and aggregates
// dependency probes into a three-state report for the health endpoint.
//
// # States
//
// Health is three-valued: healthy, degraded, unhealthy. Degraded means the
// system still works but outside its normal envelope, such as slow round
// trips or failing optional dependencies. Only the critical round trip (the router
// proving it can still move envelopes) or a panicking probe can make the
// system unhealthy.
//
// # Tracker
//
// Tracker keeps a five-minute sliding window of samples per named signal.
// Writes evict expired samples and recompute the signal's statistics
// synchronously, so reads are O(1) snapshot copies:
//
//	tracker := health.NewTracker()
//	tracker.Record(health.SignalCompleted, 1)
//
//	stats, ok := tracker.Snapshot(health.SignalCompleted)
//	if ok {
//		fmt.Println(stats.RatePerMinute)
//	}
//
// The router records the dispatch signals; the checker derives throughput
// and error rate from them.
//
// # Checker
//
// Checker composes the critical round trip, registered dependency probes,
// tracker statistics, and queue depths into one Report. Probes run in
// parallel with bounded timeouts; Check never returns an error and never
// panics:
//
//	checker, err := health.NewChecker(router,
//		health.WithProbe("cache", probeCache),
//		health.WithTracker(tracker),
//		health.WithQueueDepths(transport, subjects...),
//	)
//	if err != nil {
//		return err
//	}
//
//	report := checker.Check(ctx)
//	fmt.Println(report.State, report.ThroughputPerMinute)
//
// Probe error messages are sanitized before they land in a Report: URLs,
// file paths, addresses, and credential-shaped fragments are redacted, since
// reports are served over HTTP.
package health
