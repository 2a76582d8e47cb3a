package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownModel is returned by Resolve for a key with no configured client.
var ErrUnknownModel = errors.New("unknown model")

// Registry maps model keys to Clients. It is safe for concurrent use and can
// be replaced wholesale on configuration reload.
type Registry struct {
	mu           sync.RWMutex
	clients      map[string]*Client
	defaultModel string
}

// NewRegistry builds a registry from configs. defaultModel must name one of
// them.
func NewRegistry(configs []Config, defaultModel string) (*Registry, error) {
	r := &Registry{}
	if err := r.Update(configs, defaultModel); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces every client. On error the registry is left unchanged.
func (r *Registry) Update(configs []Config, defaultModel string) error {
	if len(configs) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}

	clients := make(map[string]*Client, len(configs))
	for _, cfg := range configs {
		if _, dup := clients[cfg.Key]; dup {
			return fmt.Errorf("duplicate model key %q", cfg.Key)
		}
		client, err := NewClient(cfg)
		if err != nil {
			return err
		}
		clients[cfg.Key] = client
	}

	if defaultModel == "" && len(clients) == 1 {
		for key := range clients {
			defaultModel = key
		}
	}
	if _, ok := clients[defaultModel]; !ok {
		return fmt.Errorf("default model %q is not configured", defaultModel)
	}

	r.mu.Lock()
	old := r.clients
	r.clients = clients
	r.defaultModel = defaultModel
	r.mu.Unlock()

	for _, c := range old {
		c.CloseIdleConnections()
	}
	return nil
}

// Resolve returns the client for key, or the default client when key is
// empty.
func (r *Registry) Resolve(key string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if key == "" {
		key = r.defaultModel
	}
	client, ok := r.clients[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return client, nil
}

// Keys returns every configured model key in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.clients))
	for k := range r.clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default returns the default model key.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}
