package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
)

// refPattern matches ${secret:name} references.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets against an ordered list of providers.
type Manager struct {
	providers []Provider
}

// NewManager returns a Manager that tries providers in order.
func NewManager(providers ...Provider) *Manager {
	return &Manager{providers: providers}
}

// GetSecret returns the value from the first provider that supports name
// and returns it without error.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range m.providers {
		if !p.Supports(name) {
			continue
		}
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			slog.Debug("secret provider failed", "provider", p.Provider(), "name", redactName(name), "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Debug("secret resolved", "provider", p.Provider(), "name", redactName(name))
		return value, nil
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("secret %q: %w", name, errors.Join(errs...))
	}
	return "", fmt.Errorf("secret %q: no provider supports it", name)
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return refPattern.MatchString(s)
}

// References returns the secret names referenced in s, in order of
// appearance.
func References(s string) []string {
	var names []string
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// Resolve replaces every ${secret:name} reference in s. Any reference that
// cannot be resolved fails the whole call.
func (m *Manager) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return out, nil
}

// ListSecrets returns the sorted union of names across providers.
// Providers that fail to list are logged and skipped.
func (m *Manager) ListSecrets(ctx context.Context) []string {
	seen := make(map[string]struct{})
	for _, p := range m.providers {
		names, err := p.ListSecrets(ctx)
		if err != nil {
			slog.Warn("failed to list secrets", "provider", p.Provider(), "error", err)
			continue
		}
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
