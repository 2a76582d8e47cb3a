package config

import (
	"context"
	"sort"

	"mercator-hq/relay/pkg/security/secrets"
)

// SecretManager returns a manager for cfg.Secrets: the secrets directory
// when one is configured, then the environment.
func SecretManager(cfg SecretsConfig) (*secrets.Manager, error) {
	var providers []secrets.Provider
	if cfg.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.EnvPrefix))
	return secrets.NewManager(providers...), nil
}

// ResolveSecrets replaces ${secret:name} references in model API keys.
// Every failure is reported as a field error so a bad reference fails the
// load like any other invalid value.
func ResolveSecrets(ctx context.Context, cfg *Config) error {
	keys := make([]string, 0, len(cfg.Models))
	for key, m := range cfg.Models {
		if secrets.HasReference(m.APIKey) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	manager, err := SecretManager(cfg.Secrets)
	if err != nil {
		return ValidationError{Errors: []FieldError{{Field: "secrets.dir", Message: err.Error()}}}
	}

	var errs []FieldError
	for _, key := range keys {
		m := cfg.Models[key]
		value, err := manager.Resolve(ctx, m.APIKey)
		if err != nil {
			errs = append(errs, FieldError{Field: "models." + key + ".api_key", Message: err.Error()})
			continue
		}
		m.APIKey = value
		cfg.Models[key] = m
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
