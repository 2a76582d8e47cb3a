package config

import (
	"fmt"
	"slices"
	"sync"
)

var (
	// globalConfig holds the process-wide configuration.
	globalConfig *Config

	// configPath is the file globalConfig was loaded from.
	configPath string

	// configMutex protects globalConfig, configPath and reloadHooks.
	configMutex sync.RWMutex

	// reloadHooks run after every successful reload.
	reloadHooks []func(*Config)
)

// Initialize loads configuration from path with environment overrides and
// installs it as the process-wide configuration.
func Initialize(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}

	configMutex.Lock()
	globalConfig = cfg
	configPath = path
	configMutex.Unlock()

	return nil
}

// GetConfig returns the process-wide configuration, or nil before
// Initialize has succeeded.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the process-wide configuration. Intended for tests.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// Path returns the file the configuration was initialized from.
func Path() string {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return configPath
}

// OnReload registers fn to run after every successful ReloadConfig.
func OnReload(fn func(*Config)) {
	configMutex.Lock()
	defer configMutex.Unlock()
	reloadHooks = append(reloadHooks, fn)
}

// ReloadConfig reloads the configuration from path. The new configuration
// replaces the current one only if loading and validation succeed; reload
// hooks then run with it.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	configMutex.Lock()
	globalConfig = cfg
	configPath = path
	hooks := slices.Clone(reloadHooks)
	configMutex.Unlock()

	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// MustGetConfig returns the process-wide configuration and panics if it has
// not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// resetForTest clears package state.
func resetForTest() {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = nil
	configPath = ""
	reloadHooks = nil
}
