package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/config"
)

// Run modes.
const (
	modeServe = "serve"
	modeDemo  = "demo"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	Mode            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	DemoTickets     int
	DemoSeed        uint64
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SERVICEDESK_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: SERVICEDESK_CONFIG)")

	flag.StringVar(&cfg.Mode, "mode",
		getEnv("SERVICEDESK_MODE", modeServe),
		"Run mode: serve, demo (env: SERVICEDESK_MODE)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SERVICEDESK_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SERVICEDESK_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SERVICEDESK_LOG_FORMAT", "json"),
		"Log format: json, text (env: SERVICEDESK_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SERVICEDESK_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SERVICEDESK_SHUTDOWN_TIMEOUT)")

	flag.IntVar(&cfg.DemoTickets, "demo-tickets",
		getEnvInt("SERVICEDESK_DEMO_TICKETS", 25),
		"Number of tickets the demo generates (env: SERVICEDESK_DEMO_TICKETS)")

	var seed int
	flag.IntVar(&seed, "demo-seed",
		getEnvInt("SERVICEDESK_DEMO_SEED", 1),
		"Demo generator seed, same seed yields the same run (env: SERVICEDESK_DEMO_SEED)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	cfg.DemoSeed = uint64(seed)
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.Mode != modeServe && cfg.Mode != modeDemo {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.DemoTickets < 1 {
		return fmt.Errorf("demo-tickets must be positive, got %d", cfg.DemoTickets)
	}

	return nil
}

// loadConfiguration reads the config file (when given) and applies
// environment overrides.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Automated Service Desk Ticket Pipeline

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run against NATS with a config file
  %s --config=/etc/servicedesk/config.json

  # Run the self-contained demo with readable logs
  %s --mode=demo --log-format=text --demo-tickets=50

  # Run with environment variables
  export SERVICEDESK_CONFIG=/etc/servicedesk/config.json
  export SERVICEDESK_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s --config=config.json --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
