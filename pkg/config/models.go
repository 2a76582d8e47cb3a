package config

import (
	"sort"

	"mercator-hq/relay/pkg/backend"
)

// BackendConfigs converts the model catalog into backend client
// configurations, sorted by key. A model without base_url has it derived
// from api_url.
func (c *Config) BackendConfigs() []backend.Config {
	keys := make([]string, 0, len(c.Models))
	for key := range c.Models {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]backend.Config, 0, len(keys))
	for _, key := range keys {
		m := c.Models[key]
		baseURL := m.BaseURL
		if baseURL == "" {
			baseURL = backend.DeriveBaseURL(m.APIURL)
		}
		out = append(out, backend.Config{
			Key:        key,
			ModelName:  m.ModelName,
			BaseURL:    baseURL,
			APIKey:     m.APIKey,
			Options:    m.Options,
			Timeout:    m.Timeout,
			MaxRetries: m.MaxRetries,
		})
	}
	return out
}
