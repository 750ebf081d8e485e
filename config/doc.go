// Package config loads and validates the application configuration.
//
// Configuration layers, later layers winning:
//
//  1. Default() values
//  2. a JSON config file passed to Load
//  3. SERVICEDESK_* environment overrides
//
// Duration fields accept Go duration strings ("30s", "5m") in the JSON
// file. Validation runs after all layers so the effective configuration is
// what gets checked.
//
// Secrets (transport credentials) resolve separately through the Secrets
// interface so they never land in config files or logs.
package config
