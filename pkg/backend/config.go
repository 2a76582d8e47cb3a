package backend

import (
	"fmt"
	"strings"
	"time"
)

// Config describes one configured model.
type Config struct {
	// Key is the name clients select the model by.
	Key string

	// ModelName is the model identifier sent to the backend.
	ModelName string

	// BaseURL is the API root; "/chat/completions" is appended to it.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Options are default request fields (temperature, max_tokens, ...).
	Options map[string]any

	// Timeout bounds a non-streaming request and the wait for response
	// headers on a streaming one.
	Timeout time.Duration

	// MaxRetries is the retry budget for non-streaming requests.
	MaxRetries int

	// RetryBackoff is the first retry delay; it doubles on every attempt.
	RetryBackoff time.Duration
}

// Default client settings.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultRetryBackoff = time.Second
)

// reservedOptions are request fields the relay always sets itself.
var reservedOptions = map[string]struct{}{
	"model":    {},
	"messages": {},
	"stream":   {},
}

// DeriveBaseURL turns a full completions URL into an API root by stripping a
// trailing "/chat/completions" or "/completions". Other URLs are returned
// without a trailing slash.
func DeriveBaseURL(apiURL string) string {
	u := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	for _, suffix := range []string{"/chat/completions", "/completions"} {
		if strings.HasSuffix(u, suffix) {
			return strings.TrimSuffix(u, suffix)
		}
	}
	return u
}

// MergeOptions overlays request options on defaults and strips reserved
// keys. Neither input is modified.
func MergeOptions(defaults, request map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(request))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range request {
		merged[k] = v
	}
	for k := range reservedOptions {
		delete(merged, k)
	}
	return merged
}

func (c *Config) validate() error {
	if c.Key == "" {
		return fmt.Errorf("model key is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model %q: model_name is required", c.Key)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("model %q: base_url is required", c.Key)
	}
	return nil
}
