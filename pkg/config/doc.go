// Package config provides configuration management for the relay.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated before use.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// A dotenv file can be loaded into the process environment first with
// LoadEnvFile. Variables already present in the environment win.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RELAY_SECTION_FIELD:
//
//   - RELAY_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RELAY_SESSIONS_DIR overrides sessions.dir
//   - RELAY_MODELS_<KEY>_API_KEY overrides models.<key>.api_key
//   - RELAY_TELEMETRY_TRACING_ENDPOINT overrides telemetry.tracing.endpoint
//
// Model keys are upper-cased with every other non-alphanumeric character
// replaced by '_' (see ModelEnvPrefix).
//
// # Secrets
//
// A model api_key may reference a secret as ${secret:name}. References are
// resolved after environment overrides, first from a file named name in
// secrets.dir and then from RELAY_SECRET_<NAME>. An unresolved reference
// fails the load.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//	models:
//	  local:
//	    model_name: "llama-3.1-8b-instruct"
//	    api_url: "http://localhost:8081/v1/chat/completions"
//	    options:
//	      temperature: 0.7
//	  remote:
//	    model_name: "gpt-4o-mini"
//	    base_url: "https://api.openai.com/v1"
//	    api_key: "${secret:openai-api-key}"
//	default_model: local
//	secrets:
//	  dir: /run/secrets
//	sessions:
//	  backend: file
//	  dir: data/sessions
//
// # Hot Reload
//
// Watcher observes the configuration file and calls ReloadConfig when it
// changes. Hooks registered with OnReload receive the new configuration;
// the server uses one to swap the model registry.
package config
