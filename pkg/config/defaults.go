package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 0
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600

	// WebSocket defaults
	DefaultWebSocketEnabled      = true
	DefaultWebSocketPingInterval = 30 * time.Second

	// TLS defaults
	DefaultTLSMinVersion     = "1.2"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Secrets defaults
	DefaultSecretsEnvPrefix = "RELAY_SECRET_"

	// Model defaults
	DefaultModelTimeout    = 60 * time.Second
	DefaultModelMaxRetries = 2

	// Session defaults
	DefaultSessionsBackend       = "file"
	DefaultSessionsDir           = "data/sessions"
	DefaultSessionsSQLitePath    = "data/sessions.db"
	DefaultSessionsSQLiteDriver  = "sqlite"
	DefaultSessionsSQLiteWAL     = true
	DefaultSessionsSQLiteBusy    = 5 * time.Second
	DefaultSessionsSweepSchedule = "*/30 * * * *"
	DefaultSessionsTempGrace     = 10 * time.Minute

	// UI defaults
	DefaultUIStaticDir = "static"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "relay"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingExporter    = "otlp"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "relay"
	DefaultTracingTimeout     = 10 * time.Second
)

// Default slices.
var (
	DefaultCORSAllowedOrigins  = []string{"*"}
	DefaultCORSAllowedMethods  = []string{"GET", "POST", "OPTIONS"}
	DefaultCORSAllowedHeaders  = []string{"Content-Type", "X-Request-ID"}
	DefaultTurnDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
)

// NewDefaultConfig returns a configuration with every default applied and
// no models configured.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			CORS:      CORSConfig{Enabled: DefaultCORSEnabled},
			WebSocket: WebSocketConfig{Enabled: DefaultWebSocketEnabled},
		},
		Sessions: SessionsConfig{
			SQLite:        SQLiteConfig{WALMode: DefaultSessionsSQLiteWAL},
			SweepSchedule: DefaultSessionsSweepSchedule,
		},
		UI: UIConfig{StaticDir: DefaultUIStaticDir},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean fields
// cannot be distinguished from an explicit false, so they are only
// defaulted by NewDefaultConfig and by LoadConfig before decoding.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)

	for key, m := range cfg.Models {
		if m.Timeout == 0 {
			m.Timeout = DefaultModelTimeout
		}
		if m.MaxRetries == 0 {
			m.MaxRetries = DefaultModelMaxRetries
		}
		cfg.Models[key] = m
	}

	if cfg.DefaultModel == "" && len(cfg.Models) == 1 {
		for key := range cfg.Models {
			cfg.DefaultModel = key
		}
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	applySessionsDefaults(&cfg.Sessions)

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = append([]string(nil), DefaultCORSAllowedOrigins...)
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = DefaultCORSMaxAge
	}

	if cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.TLS.ReloadInterval == 0 {
		cfg.TLS.ReloadInterval = DefaultTLSReloadInterval
	}
	if cfg.WebSocket.PingInterval == 0 {
		cfg.WebSocket.PingInterval = DefaultWebSocketPingInterval
	}
}

func applySessionsDefaults(cfg *SessionsConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultSessionsBackend
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultSessionsDir
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSessionsSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSessionsSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSessionsSQLiteBusy
	}
	if cfg.TempGrace == 0 {
		cfg.TempGrace = DefaultSessionsTempGrace
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.TurnDurationBuckets) == 0 {
		cfg.Metrics.TurnDurationBuckets = append([]float64(nil), DefaultTurnDurationBuckets...)
	}

	// An unset sampler also means an unset ratio; "ratio" with 0.0 is honored.
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
		if cfg.Tracing.SampleRatio == 0 {
			cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
		}
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultTracingTimeout
	}
}
