package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TransportMemory, cfg.Transport.Kind)
	assert.Equal(t, 3, cfg.Router.MaxDeliveryAttempts)
	assert.Equal(t, time.Second, cfg.Router.RetryInitialDelay)
	assert.Equal(t, time.Minute, cfg.Router.RetryMaxDelay)
	assert.Equal(t, 14*24*time.Hour, cfg.Router.DefaultTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Second, cfg.Health.LatencyThreshold)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"transport": {"kind": "jetstream", "urls": ["nats://broker:4222"]},
		"router": {"max_delivery_attempts": 5},
		"cache": {"ttl": "10m"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportJetStream, cfg.Transport.Kind)
	assert.Equal(t, []string{"nats://broker:4222"}, cfg.Transport.URLs)
	assert.Equal(t, 5, cfg.Router.MaxDeliveryAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	// Untouched fields keep their defaults.
	assert.Equal(t, 4, cfg.Router.MaxConcurrent)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `{
		"transport": {"lock_duration": "45s"},
		"router": {"retry_initial_delay": "500ms", "retry_max_delay": "2m"},
		"health": {"latency_threshold": "8s"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Transport.LockDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Router.RetryInitialDelay)
	assert.Equal(t, 2*time.Minute, cfg.Router.RetryMaxDelay)
	assert.Equal(t, 8*time.Second, cfg.Health.LatencyThreshold)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `{"logging": {"level": "info"}, "cache": {"kind": "memory"}}`)

	t.Setenv("SERVICEDESK_LOG_LEVEL", "debug")
	t.Setenv("SERVICEDESK_CACHE_KIND", "redis")
	t.Setenv("SERVICEDESK_CACHE_ADDRESS", "localhost:6379")
	t.Setenv("SERVICEDESK_NATS_URLS", "nats://a:4222,nats://b:4222")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, CacheRedis, cfg.Cache.Kind)
	assert.Equal(t, "localhost:6379", cfg.Cache.Address)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Transport.URLs)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"transport":`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport kind", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }},
		{"jetstream without urls", func(c *Config) {
			c.Transport.Kind = TransportJetStream
			c.Transport.URLs = nil
		}},
		{"zero delivery attempts", func(c *Config) { c.Router.MaxDeliveryAttempts = 0 }},
		{"zero concurrency", func(c *Config) { c.Router.MaxConcurrent = 0 }},
		{"max delay below initial", func(c *Config) {
			c.Router.RetryInitialDelay = time.Minute
			c.Router.RetryMaxDelay = time.Second
		}},
		{"non-positive ttl", func(c *Config) { c.Router.DefaultTTL = 0 }},
		{"unknown cache kind", func(c *Config) { c.Cache.Kind = "etcd" }},
		{"redis without address", func(c *Config) {
			c.Cache.Kind = CacheRedis
			c.Cache.Address = ""
		}},
		{"non-positive cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"metrics enabled without address", func(c *Config) { c.Metrics.Address = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "expected invalid class, got %v", err)
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	cfg.Routing.Assignments = map[string]string{"network": "escalation"}

	clone := cfg.Clone()
	clone.Routing.Assignments["network"] = "automation"
	clone.Router.MaxDeliveryAttempts = 9

	assert.Equal(t, "escalation", cfg.Routing.Assignments["network"])
	assert.Equal(t, 3, cfg.Router.MaxDeliveryAttempts)
}
