package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SERVICEDESK"

// Transport kinds.
const (
	TransportMemory    = "memory"
	TransportJetStream = "jetstream"
)

// Cache kinds.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete application configuration. Zero values are filled
// from Default() during Load, so a config file only needs the fields it
// changes.
type Config struct {
	Transport TransportConfig `json:"transport"`
	Router    RouterConfig    `json:"router"`
	Cache     CacheConfig     `json:"cache"`
	Health    HealthConfig    `json:"health"`
	Metrics   MetricsConfig   `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
	Routing   RoutingConfig   `json:"routing"`
}

// TransportConfig selects and tunes the envelope transport.
type TransportConfig struct {
	// Kind is "memory" or "jetstream".
	Kind string `json:"kind"`

	// URLs are the NATS server addresses (jetstream only).
	URLs []string `json:"urls,omitempty"`

	// Name identifies the connection to the NATS server.
	Name string `json:"name,omitempty"`

	// SubjectPrefix namespaces the streams (jetstream only).
	SubjectPrefix string `json:"subject_prefix,omitempty"`

	// LockDuration is the delivery lock length; envelopes not settled
	// within it become eligible for redelivery.
	LockDuration time.Duration `json:"lock_duration,omitempty"`

	// MaxQueueDepth bounds each subject's pending queue. Zero keeps the
	// transport default.
	MaxQueueDepth int `json:"max_queue_depth,omitempty"`
}

// RouterConfig tunes dispatch, retry, and dead-lettering.
type RouterConfig struct {
	MaxDeliveryAttempts int           `json:"max_delivery_attempts"`
	MaxConcurrent       int           `json:"max_concurrent"`
	LockRenewalInterval time.Duration `json:"lock_renewal_interval"`
	RetryInitialDelay   time.Duration `json:"retry_initial_delay"`
	RetryMaxDelay       time.Duration `json:"retry_max_delay"`
	RetryMultiplier     float64       `json:"retry_multiplier"`

	// DefaultTTL is applied to envelopes the producers create without an
	// explicit time-to-live.
	DefaultTTL time.Duration `json:"default_ttl"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	// Kind is "memory" or "redis".
	Kind string `json:"kind"`

	// Address is the Redis address (redis only).
	Address string `json:"address,omitempty"`

	// Namespace prefixes every key (redis only) so several deployments can
	// share one server.
	Namespace string `json:"namespace,omitempty"`

	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// MaxEntries bounds the memory backend. Zero means unbounded.
	MaxEntries int `json:"max_entries,omitempty"`
}

// HealthConfig tunes the composite health checker.
type HealthConfig struct {
	// LatencyThreshold degrades a reachable-but-slow dependency.
	LatencyThreshold time.Duration `json:"latency_threshold"`

	// CheckTimeout bounds one full Check call.
	CheckTimeout time.Duration `json:"check_timeout"`

	// CheckInterval is how often the serve loop re-checks.
	CheckInterval time.Duration `json:"check_interval"`
}

// MetricsConfig tunes the metrics/health HTTP server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// LoggingConfig tunes the root logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level"`

	// Format is "json" or "text".
	Format string `json:"format"`
}

// RoutingConfig carries the category routing table. The agents package
// validates it exhaustively at startup; here it is just structure.
type RoutingConfig struct {
	// Assignments maps ticket categories to agent names.
	Assignments map[string]string `json:"assignments,omitempty"`

	// EscalationCategories are categories that escalate instead of
	// auto-remediating when the priority is high enough.
	EscalationCategories []string `json:"escalation_categories,omitempty"`

	// EscalationPriorities are the priorities that trigger escalation.
	EscalationPriorities []string `json:"escalation_priorities,omitempty"`
}

// Default returns the configuration used when no file or override says
// otherwise.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:          TransportMemory,
			URLs:          []string{"nats://localhost:4222"},
			Name:          "servicedesk",
			SubjectPrefix: "servicedesk",
			LockDuration:  30 * time.Second,
		},
		Router: RouterConfig{
			MaxDeliveryAttempts: 3,
			MaxConcurrent:       4,
			LockRenewalInterval: 10 * time.Second,
			RetryInitialDelay:   time.Second,
			RetryMaxDelay:       time.Minute,
			RetryMultiplier:     2,
			DefaultTTL:          14 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Kind:            CacheMemory,
			Namespace:       "servicedesk",
			TTL:             5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Health: HealthConfig{
			LatencyThreshold: 5 * time.Second,
			CheckTimeout:     10 * time.Second,
			CheckInterval:    30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// durationFields are the config keys whose JSON values may be duration
// strings like "30s" instead of nanosecond numbers.
var durationFields = map[string]bool{
	"lock_duration":         true,
	"lock_renewal_interval": true,
	"retry_initial_delay":   true,
	"retry_max_delay":       true,
	"default_ttl":           true,
	"ttl":                   true,
	"cleanup_interval":      true,
	"latency_threshold":     true,
	"check_timeout":         true,
	"check_interval":        true,
}

// Load builds the configuration: defaults, then the JSON file at path (if
// any), then SERVICEDESK_* environment overrides, then validation. An empty
// path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := loadRawJSON(path)
		if err != nil {
			return nil, err
		}
		if err := applyRaw(cfg, raw); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRawJSON reads the file into a map so only the fields present override.
func loadRawJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", fmt.Sprintf("read %s", path))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", fmt.Sprintf("parse %s", path))
	}

	parseDurations(raw)
	return raw, nil
}

// applyRaw merges a raw override map over the current config via a JSON
// round trip, so absent fields keep their defaults.
func applyRaw(cfg *Config, raw map[string]any) error {
	base, err := json.Marshal(cfg)
	if err != nil {
		return errors.WrapFatal(err, "config", "Load", "marshal defaults")
	}

	var baseMap map[string]any
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return errors.WrapFatal(err, "config", "Load", "unmarshal defaults")
	}

	merged, err := json.Marshal(deepMerge(baseMap, raw))
	if err != nil {
		return errors.WrapInvalid(err, "config", "Load", "marshal merged config")
	}
	if err := json.Unmarshal(merged, cfg); err != nil {
		return errors.WrapInvalid(err, "config", "Load", "unmarshal merged config")
	}
	return nil
}

// deepMerge recursively merges override into base, override winning.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations rewrites duration-string values ("30s") into nanosecond
// numbers so they unmarshal into time.Duration fields.
func parseDurations(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			parseDurations(val)
		case string:
			if !durationFields[k] {
				continue
			}
			if d, err := time.ParseDuration(val); err == nil {
				m[k] = float64(d)
			}
		}
	}
}

// applyEnvOverrides applies SERVICEDESK_* environment variables on top of
// whatever the file set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "_TRANSPORT_KIND"); v != "" {
		cfg.Transport.Kind = v
	}
	if v := os.Getenv(EnvPrefix + "_NATS_URLS"); v != "" {
		cfg.Transport.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvPrefix + "_SUBJECT_PREFIX"); v != "" {
		cfg.Transport.SubjectPrefix = v
	}
	if v := os.Getenv(EnvPrefix + "_MAX_DELIVERY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.MaxDeliveryAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvPrefix + "_CACHE_KIND"); v != "" {
		cfg.Cache.Kind = v
	}
	if v := os.Getenv(EnvPrefix + "_CACHE_ADDRESS"); v != "" {
		cfg.Cache.Address = v
	}
	if v := os.Getenv(EnvPrefix + "_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks every section. It returns classified errors so startup
// failures carry their cause.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportMemory:
	case TransportJetStream:
		if len(c.Transport.URLs) == 0 {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
				"transport.urls required for jetstream")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown transport kind %q", c.Transport.Kind))
	}
	if c.Transport.LockDuration < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"transport.lock_duration must not be negative")
	}

	if c.Router.MaxDeliveryAttempts < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"router.max_delivery_attempts must be at least 1")
	}
	if c.Router.MaxConcurrent < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"router.max_concurrent must be at least 1")
	}
	if c.Router.RetryInitialDelay <= 0 || c.Router.RetryMaxDelay < c.Router.RetryInitialDelay {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"router retry delays must satisfy 0 < initial <= max")
	}
	if c.Router.DefaultTTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"router.default_ttl must be positive")
	}

	switch c.Cache.Kind {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Address == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
				"cache.address required for redis")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown cache kind %q", c.Cache.Kind))
	}
	if c.Cache.TTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"cache.ttl must be positive")
	}

	if c.Health.LatencyThreshold <= 0 || c.Health.CheckTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"health thresholds must be positive")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"metrics.address required when metrics are enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	return nil
}

// Clone returns a deep copy via a JSON round trip.
func (c *Config) Clone() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}
