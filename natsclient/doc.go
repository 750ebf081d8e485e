// Package natsclient manages the NATS connection used by the service desk
// transport.
//
// # Overview
//
// Client wraps a single NATS connection with a connection state machine,
// automatic reconnection, a failure-threshold circuit breaker, and optional
// background health monitoring. The transport package builds its JetStream
// queues on top of the connection this package maintains.
//
// # Quick Start
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("servicedesk"),
//		natsclient.WithClientLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	js, err := client.JetStream()
//
// # Circuit Breaker
//
// Connection failures increment a counter; once it reaches the configured
// threshold (default 5) the circuit opens and Connect fails fast with
// errors.ErrCircuitOpen. The cooldown starts at one second and doubles on
// every trip up to WithMaxBackoff (default one minute). When the cooldown
// elapses the circuit half-opens and the next Connect probes the server.
// Any successful connection resets the counters.
//
// # Health Monitoring
//
// With a non-zero WithHealthInterval the client probes the connection in the
// background, flips the status between connected and reconnecting, invokes
// the WithHealthChangeCallback on transitions, and records the round-trip
// time into the metrics gauges when WithClientMetrics is set.
//
// # Testing
//
// TestClient starts a disposable NATS server in a container for integration
// tests:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
//	js, _ := tc.Client.JetStream()
//
// Guard such tests with testing.Short() so unit runs stay hermetic.
package natsclient
