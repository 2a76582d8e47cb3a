package secrets

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "RELAY_SECRET_"

// EnvProvider reads secrets from environment variables.
//
// The secret "openai-api-key" is read from RELAY_SECRET_OPENAI_API_KEY
// with the default prefix.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider returns an EnvProvider. An empty prefix selects
// DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{Prefix: prefix}
}

// GetSecret returns the variable for name. Unset and empty variables are
// both reported as missing.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	envVar := p.EnvVar(name)
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret %q not set (env var %s)", name, envVar)
	}
	return value, nil
}

// ListSecrets returns the sorted names of every prefixed variable.
func (p *EnvProvider) ListSecrets(_ context.Context) ([]string, error) {
	var names []string
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, p.Prefix) || key == p.Prefix {
			continue
		}
		names = append(names, strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, p.Prefix), "_", "-")))
	}
	sort.Strings(names)
	return names, nil
}

// Provider returns "env".
func (p *EnvProvider) Provider() string {
	return "env"
}

// Supports always returns true so the environment acts as the fallback.
func (p *EnvProvider) Supports(string) bool {
	return true
}

// EnvVar returns the variable name consulted for a secret.
func (p *EnvProvider) EnvVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
