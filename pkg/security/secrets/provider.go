// Package secrets resolves ${secret:name} references in model credentials.
package secrets

import "context"

// Provider looks up secret values by name.
//
// Providers are consulted in order by a Manager. A provider that does not
// Support a name is skipped without being asked for it.
type Provider interface {
	// GetSecret returns the value stored under name.
	GetSecret(ctx context.Context, name string) (string, error)

	// ListSecrets returns the names this provider can serve. Values are
	// never included.
	ListSecrets(ctx context.Context) ([]string, error)

	// Provider returns a short name for logs ("env", "file").
	Provider() string

	// Supports reports whether the provider may hold name.
	Supports(name string) bool
}
