package config

import "time"

// Config is the root configuration structure for the relay.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts and CORS.
	Server ServerConfig `yaml:"server"`

	// Models maps the model keys clients select by to backend endpoints.
	Models map[string]ModelConfig `yaml:"models"`

	// DefaultModel is the model key used when a request names none.
	// It may be omitted when exactly one model is configured.
	DefaultModel string `yaml:"default_model"`

	// Secrets configures where ${secret:name} references in model API
	// keys are resolved from.
	Secrets SecretsConfig `yaml:"secrets"`

	// Sessions contains session persistence configuration.
	Sessions SessionsConfig `yaml:"sessions"`

	// UI contains configuration for the bundled chat page.
	UI UIConfig `yaml:"ui"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. Streaming turns can run for
	// minutes, so zero (no timeout) is the default.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RequestTimeout bounds requests to the session and model endpoints.
	// Chat turns are bounded by their model's timeout instead.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the chat request body.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS enables HTTPS on the listener.
	TLS TLSConfig `yaml:"tls"`

	// WebSocket configures the chat WebSocket endpoint.
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig configures chat turns over a WebSocket at /ws.
type WebSocketConfig struct {
	// Enabled registers the /ws endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// PingInterval is how often connections are pinged. A client that
	// misses two pings in a row is disconnected.
	// Default: 30s
	PingInterval time.Duration `yaml:"ping_interval"`
}

// TLSConfig contains HTTPS configuration.
type TLSConfig struct {
	// Enabled switches the listener to HTTPS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 suites. Empty uses Go's defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are sent.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows any.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// ModelConfig describes one OpenAI-compatible backend model.
type ModelConfig struct {
	// ModelName is the model identifier sent to the backend.
	ModelName string `yaml:"model_name" validate:"required"`

	// BaseURL is the API root, e.g. "http://localhost:8080/v1".
	BaseURL string `yaml:"base_url" validate:"required_without=APIURL,omitempty,http_url"`

	// APIURL is a full completions URL. It is used to derive BaseURL when
	// BaseURL is not set.
	APIURL string `yaml:"api_url" validate:"omitempty,http_url"`

	// APIKey is sent as a bearer token when set. It may hold
	// ${secret:name} references, or be overridden by the
	// RELAY_MODELS_<KEY>_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Options are default request fields merged under every request.
	Options map[string]any `yaml:"options"`

	// Timeout bounds non-streaming requests.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// MaxRetries is the retry budget for non-streaming requests.
	// Default: 2
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`
}

// SecretsConfig configures secret resolution. Files in Dir are consulted
// first, then EnvPrefix-ed environment variables.
type SecretsConfig struct {
	// Dir holds one file per secret. Empty disables file secrets.
	Dir string `yaml:"dir"`

	// EnvPrefix namespaces secrets in the environment.
	// Default: "RELAY_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`
}

// SessionsConfig contains session persistence configuration.
type SessionsConfig struct {
	// Backend selects durable storage: "file" or "sqlite".
	// Default: "file"
	Backend string `yaml:"backend"`

	// Dir is the directory holding one JSON file per session.
	// Default: "data/sessions"
	Dir string `yaml:"dir"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// SweepSchedule is the cron expression for removing orphaned temp
	// files from Dir. Empty disables the sweep.
	// Default: "*/30 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// TempGrace is the minimum age of a temp file before it is swept.
	// Default: 10m
	TempGrace time.Duration `yaml:"temp_grace"`
}

// SQLiteConfig contains SQLite session storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/sessions.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long writers wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// UIConfig configures the static chat page.
type UIConfig struct {
	// StaticDir holds chat.html, chat.css and chat.js. Empty disables the
	// static routes.
	// Default: "static"
	StaticDir string `yaml:"static_dir"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "relay"
	Namespace string `yaml:"namespace"`

	// TurnDurationBuckets defines histogram buckets for turn duration
	// (seconds).
	// Default: [0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120]
	TurnDurationBuckets []float64 `yaml:"turn_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are recorded and exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of root traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter selects the span exporter. Only "otlp" is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "relay"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
