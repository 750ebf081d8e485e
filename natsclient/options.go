package natsclient

import (
	"log/slog"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/metric"
)

// Option is a functional option for configuring the Client.
type Option func(*Client) error

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithCredentials sets username and password authentication.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS enables TLS with optional certificate paths.
func WithTLS(certFile, keyFile, caFile string) Option {
	return func(c *Client) error {
		c.tlsCertFile = certFile
		c.tlsKeyFile = keyFile
		c.tlsCAFile = caFile
		c.tlsEnabled = true
		return nil
	}
}

// WithCompression enables wire compression.
func WithCompression(enabled bool) Option {
	return func(c *Client) error {
		c.compression = enabled
		return nil
	}
}

// WithMaxReconnects sets the maximum automatic reconnect attempts
// (-1 for unlimited).
func WithMaxReconnects(n int) Option {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the wait between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) error {
		c.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets the protocol ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.pingInterval = d
		return nil
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout sets how long Close waits for in-flight messages to drain.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.drainTimeout = d
		return nil
	}
}

// WithHealthInterval sets how often the background monitor probes the
// connection. Zero disables monitoring.
func WithHealthInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.healthInterval = d
		return nil
	}
}

// WithCircuitThreshold sets how many consecutive failures open the circuit.
func WithCircuitThreshold(threshold int32) Option {
	return func(c *Client) error {
		if threshold < 1 {
			threshold = 5
		}
		c.circuitThreshold = threshold
		return nil
	}
}

// WithMaxBackoff caps the circuit breaker cooldown.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) error {
		if d < time.Second {
			d = time.Minute
		}
		c.maxBackoff = d
		return nil
	}
}

// WithClientLogger sets the structured logger. A nil logger falls back to
// slog.Default.
func WithClientLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithDisconnectCallback registers a callback invoked when the connection
// drops. The callback runs on its own goroutine.
func WithDisconnectCallback(fn func(error)) Option {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback registers a callback invoked after an automatic
// reconnect. The callback runs on its own goroutine.
func WithReconnectCallback(fn func()) Option {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}

// WithHealthChangeCallback registers a callback invoked when the health
// state flips.
func WithHealthChangeCallback(fn func(healthy bool)) Option {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithClientMetrics wires connection gauges (status, RTT, reconnects,
// circuit breaker state) into the given core metrics. Nil disables them.
func WithClientMetrics(m *metric.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}
