package session

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by Load for an unknown session identifier.
var ErrSessionNotFound = errors.New("session not found")

// maxIDLength bounds session identifiers so they stay usable as file names.
const maxIDLength = 128

// ValidateID checks that id is usable as a session identifier. Identifiers
// double as file names, so only letters, digits, '-', '_' and '.' are
// accepted. A leading '.' is refused since dot files are reserved for
// temporary files.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("session id exceeds %d characters", maxIDLength)
	}
	if id[0] == '.' {
		return fmt.Errorf("session id %q must not start with '.'", id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("session id contains invalid character %q", r)
		}
	}
	return nil
}
