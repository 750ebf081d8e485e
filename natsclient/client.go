// Package natsclient manages the NATS connection for the service desk.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
)

// ConnectionStatus represents the connection state machine.
type ConnectionStatus int32

const (
	// StatusDisconnected means no connection is established.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting means a connection attempt is in progress.
	StatusConnecting
	// StatusConnected means the connection is established and usable.
	StatusConnected
	// StatusReconnecting means the connection dropped and the client is
	// retrying in the background.
	StatusReconnecting
	// StatusCircuitOpen means repeated failures tripped the circuit breaker
	// and connection attempts are suspended until the cooldown elapses.
	StatusCircuitOpen
)

// String returns a human-readable status name.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the connection.
type Status struct {
	Status          ConnectionStatus `json:"status"`
	FailureCount    int32            `json:"failureCount"`
	LastFailureTime time.Time        `json:"lastFailureTime"`
	Reconnects      int64            `json:"reconnects"`
	RTT             time.Duration    `json:"rtt,omitempty"`
}

// Client wraps a NATS connection with status tracking, a failure-threshold
// circuit breaker, and optional background health monitoring. All methods
// are safe for concurrent use.
type Client struct {
	url string

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream

	// Connection state (atomics to avoid locking on hot paths).
	status          atomic.Int32
	failures        atomic.Int32
	circuitFailures atomic.Int32
	lastFailure     atomic.Value // time.Time
	reconnects      atomic.Int64
	currentBackoff  atomic.Int64 // nanoseconds

	// Circuit breaker configuration.
	circuitThreshold int32
	maxBackoff       time.Duration

	// Connection configuration.
	clientName    string
	username      string
	password      string
	token         string
	tlsCertFile   string
	tlsKeyFile    string
	tlsCAFile     string
	tlsEnabled    bool
	compression   bool
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// Health monitoring.
	healthInterval time.Duration
	healthTicker   *time.Ticker
	healthDone     chan struct{}

	// Callbacks.
	onDisconnect   func(error)
	onReconnect    func()
	onHealthChange func(healthy bool)

	logger  *slog.Logger
	metrics *metric.Metrics

	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a client for the given NATS URL. The client does not
// connect until Connect is called.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsclient", "NewClient", "url is required")
	}

	c := &Client{
		url:              url,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		healthInterval:   10 * time.Second,
		logger:           slog.Default(),
	}
	c.lastFailure.Store(time.Time{})
	c.currentBackoff.Store(int64(time.Second))

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
	if c.metrics != nil {
		c.metrics.RecordTransportStatus(s == StatusConnected)
		circuit := 0
		if s == StatusCircuitOpen {
			circuit = 1
		}
		c.metrics.RecordCircuitBreakerState(circuit)
	}
}

// IsConnected reports whether the underlying NATS connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.IsConnected()
}

// IsHealthy reports whether the client considers itself usable.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the total failure count since the last circuit reset.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the current circuit breaker cooldown duration.
func (c *Client) Backoff() time.Duration {
	return time.Duration(c.currentBackoff.Load())
}

// Reconnects returns the number of automatic reconnections observed.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// GetStatus returns a snapshot of the connection state.
func (c *Client) GetStatus() *Status {
	st := &Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
		Reconnects:      c.reconnects.Load(),
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			st.RTT = rtt
		}
	}

	return st
}

// recordFailure counts a failure and opens the circuit once a round of
// circuitThreshold failures accumulates. Each round doubles the cooldown up
// to maxBackoff; a timer half-opens the circuit when the cooldown elapses.
func (c *Client) recordFailure() {
	c.failures.Add(1)
	c.lastFailure.Store(time.Now())

	if c.circuitFailures.Add(1) < c.circuitThreshold {
		return
	}

	current := c.status.Load()
	if ConnectionStatus(current) != StatusCircuitOpen {
		// Only one goroutine wins the transition to open.
		if c.status.CompareAndSwap(current, int32(StatusCircuitOpen)) {
			if c.metrics != nil {
				c.metrics.RecordTransportStatus(false)
				c.metrics.RecordCircuitBreakerState(1)
			}

			cooldown := c.doubleBackoff()
			c.circuitFailures.Store(0)

			c.logger.Warn("circuit breaker opened",
				"url", c.url,
				"failures", c.failures.Load(),
				"cooldown", cooldown)

			time.AfterFunc(cooldown, c.testCircuit)
		}
	} else {
		// Failures kept coming while open; lengthen the next cooldown.
		c.doubleBackoff()
		c.circuitFailures.Store(0)
		c.logger.Warn("circuit breaker still open", "url", c.url, "cooldown", c.Backoff())
	}
}

// doubleBackoff doubles the stored cooldown up to maxBackoff and returns the
// value that was current before doubling.
func (c *Client) doubleBackoff() time.Duration {
	current := time.Duration(c.currentBackoff.Load())
	next := current * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.currentBackoff.Store(int64(next))
	return current
}

// resetCircuit clears failure counters after a successful operation.
func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.currentBackoff.Store(int64(time.Second))
	c.lastFailure.Store(time.Time{})

	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit after the cooldown so the next Connect
// attempt can probe the server.
func (c *Client) testCircuit() {
	if c.closed.Load() {
		return
	}
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
		c.logger.Info("circuit breaker half-open, connection attempts resume", "url", c.url)
	}
}

// buildConnectionOptions assembles nats.Options from the client configuration.
func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsEnabled {
		if c.tlsCertFile != "" && c.tlsKeyFile != "" {
			opts = append(opts, nats.ClientCert(c.tlsCertFile, c.tlsKeyFile))
		}
		if c.tlsCAFile != "" {
			opts = append(opts, nats.RootCAs(c.tlsCAFile))
		}
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.compression {
		opts = append(opts, nats.Compression(true))
	}

	return opts
}

// ConnectionOptions returns the NATS options the client will connect with.
func (c *Client) ConnectionOptions() []nats.Option {
	return c.buildConnectionOptions()
}

// MaxReconnects returns the configured reconnect limit.
func (c *Client) MaxReconnects() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxReconnects
}

// ReconnectWait returns the configured wait between reconnect attempts.
func (c *Client) ReconnectWait() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnectWait
}

// PingInterval returns the configured protocol ping interval.
func (c *Client) PingInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pingInterval
}

// Connect establishes the NATS connection and initializes JetStream.
// It respects the circuit breaker and the context deadline.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("circuit breaker open, skipping connection attempt", "url", c.url)
		return errors.ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	opts := c.buildConnectionOptions()

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.recordFailure()
			if c.Status() != StatusCircuitOpen {
				c.setStatus(StatusDisconnected)
			}
			if c.Status() == StatusCircuitOpen {
				return errors.ErrCircuitOpen
			}
			return errors.WrapTransient(err, "natsclient", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(ctx.Err(), "natsclient", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("connected to NATS", "url", c.url)

	if c.healthInterval > 0 {
		c.startHealthMonitoring()
	}

	if c.onHealthChange != nil {
		c.onHealthChange(true)
	}

	return nil
}

// WaitForConnection blocks until the client reports StatusConnected or the
// context is done.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.Status() == StatusConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(errors.ErrConnectionTimeout,
				"natsclient", "WaitForConnection", "timeout waiting for connection")
		case <-ticker.C:
		}
	}
}

// JetStream returns the JetStream context for the active connection.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection,
			"natsclient", "JetStream", "jetstream not initialized")
	}
	return c.js, nil
}

// Conn returns the underlying NATS connection, or an error when disconnected.
func (c *Client) Conn() (*nats.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return nil, errors.WrapTransient(errors.ErrNoConnection,
			"natsclient", "Conn", "not connected")
	}
	return c.conn, nil
}

// RTT measures the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, errors.WrapTransient(errors.ErrNoConnection,
			"natsclient", "RTT", "not connected")
	}
	return conn.RTT()
}

// HealthCheck performs a non-mutating round trip to the server. It leaves
// streams and queues untouched, so it is safe to call at any time.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection,
			"natsclient", "HealthCheck", "not connected")
	}

	if err := conn.FlushWithContext(ctx); err != nil {
		return errors.WrapTransient(err, "natsclient", "HealthCheck", "flush round trip")
	}

	rtt, err := conn.RTT()
	if err != nil {
		return errors.WrapTransient(err, "natsclient", "HealthCheck", "measure rtt")
	}
	if c.metrics != nil {
		c.metrics.RecordTransportRTT(rtt)
	}

	return nil
}

// Close drains and closes the connection. It is safe to call more than once;
// the drain honors the context deadline and falls back to a forced close.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	c.stopHealthMonitoring()

	c.mu.Lock()
	defer c.mu.Unlock()

	var drainErr error
	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		conn := c.conn
		go func() {
			drainDone <- conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = errors.Wrap(err, "natsclient", "Close", "drain connection")
			}
		case <-time.After(drainTimeout):
			drainErr = errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout),
				"natsclient", "Close", "drain connection")
			c.logger.Warn("drain timed out, forcing close", "timeout", drainTimeout)
		case <-ctx.Done():
			drainErr = errors.Wrap(ctx.Err(), "natsclient", "Close", "context cancelled during drain")
		}

		c.conn.Close()
		c.conn = nil
		c.js = nil
	}

	// Clear credentials so they do not linger in memory.
	c.username = ""
	c.password = ""
	c.token = ""

	c.setStatus(StatusDisconnected)

	return drainErr
}

// Event handlers wired into the NATS connection.

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS connection lost", "url", c.url, "error", err)

	c.mu.RLock()
	onDisconnect := c.onDisconnect
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onDisconnect != nil {
		go onDisconnect(err)
	}
	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.reconnects.Add(1)
	if c.metrics != nil {
		c.metrics.RecordTransportReconnect()
	}
	c.logger.Info("NATS connection restored", "url", conn.ConnectedUrl())

	c.mu.RLock()
	onReconnect := c.onReconnect
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onReconnect != nil {
		go onReconnect()
	}
	if onHealthChange != nil {
		go onHealthChange(true)
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	// Not every async error means the connection failed, so only log here.
	c.logger.Error("NATS async error", "error", err)
}

// startHealthMonitoring launches a goroutine that probes the connection on
// healthInterval and records RTT into the metrics gauges.
func (c *Client) startHealthMonitoring() {
	c.stopHealthMonitoring()

	c.mu.Lock()
	c.healthTicker = time.NewTicker(c.healthInterval)
	c.healthDone = make(chan struct{})
	ticker := c.healthTicker
	done := c.healthDone
	c.mu.Unlock()

	go func() {
		defer ticker.Stop()
		lastHealthy := c.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.RLock()
				conn := c.conn
				onHealthChange := c.onHealthChange
				c.mu.RUnlock()

				if conn == nil {
					continue
				}

				healthy := conn.IsConnected()
				rtt, err := conn.RTT()
				if err != nil {
					healthy = false
				} else if c.metrics != nil {
					c.metrics.RecordTransportRTT(rtt)
				}

				if healthy && c.Status() != StatusConnected {
					c.setStatus(StatusConnected)
				} else if !healthy && c.Status() == StatusConnected {
					c.setStatus(StatusReconnecting)
				}

				if healthy != lastHealthy && onHealthChange != nil {
					onHealthChange(healthy)
				}
				lastHealthy = healthy
			}
		}
	}()
}

func (c *Client) stopHealthMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthTicker != nil {
		c.healthTicker.Stop()
		c.healthTicker = nil
	}
	if c.healthDone != nil {
		close(c.healthDone)
		c.healthDone = nil
	}
}
