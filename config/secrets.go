package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Secrets resolves sensitive connection parameters at startup. The routing
// core never touches it; only the binary does, to build the transport.
type Secrets interface {
	// GetString returns the secret value for key, or an error carrying
	// errors.ErrSecretNotFound when the key is absent.
	GetString(ctx context.Context, key string) (string, error)
}

// EnvSecrets resolves secrets from environment variables. A key like
// "nats-password" with prefix "SERVICEDESK" reads SERVICEDESK_NATS_PASSWORD.
type EnvSecrets struct {
	Prefix string
}

// NewEnvSecrets creates an environment-backed secret provider. An empty
// prefix defaults to EnvPrefix.
func NewEnvSecrets(prefix string) *EnvSecrets {
	if prefix == "" {
		prefix = EnvPrefix
	}
	return &EnvSecrets{Prefix: prefix}
}

// GetString implements Secrets.
func (s *EnvSecrets) GetString(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "config", "GetString", "empty secret key")
	}

	name := s.Prefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", errors.WrapInvalid(errors.ErrSecretNotFound, "config", "GetString",
			fmt.Sprintf("secret %q (%s)", key, name))
	}
	return value, nil
}

// StaticSecrets is a fixed in-memory provider for tests.
type StaticSecrets map[string]string

// GetString implements Secrets.
func (s StaticSecrets) GetString(_ context.Context, key string) (string, error) {
	value, ok := s[key]
	if !ok {
		return "", errors.WrapInvalid(errors.ErrSecretNotFound, "config", "GetString",
			fmt.Sprintf("secret %q", key))
	}
	return value, nil
}
