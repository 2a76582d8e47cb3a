package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

// modelValidator returns the shared validator for tagged config structs.
// Field names in errors are taken from the yaml tags.
func modelValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structValidator = v
	})
	return structValidator
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateModels(cfg.Models, cfg.DefaultModel)...)
	errs = append(errs, validateSessions(&cfg.Sessions)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must not be negative"})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.request_timeout", Message: "request timeout must not be negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must not be negative"})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "certificate file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
	}
	switch cfg.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		errs = append(errs, FieldError{Field: "server.tls.min_version", Message: fmt.Sprintf("unsupported TLS version %q (use 1.2 or 1.3)", cfg.TLS.MinVersion)})
	}
	if cfg.TLS.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "reload interval must not be negative"})
	}
	if cfg.WebSocket.PingInterval < 0 {
		errs = append(errs, FieldError{Field: "server.websocket.ping_interval", Message: "ping interval must not be negative"})
	}

	return errs
}

func validateModels(models map[string]ModelConfig, defaultModel string) []FieldError {
	var errs []FieldError

	if len(models) == 0 {
		return []FieldError{{Field: "models", Message: "at least one model must be configured"}}
	}

	keys := make([]string, 0, len(models))
	for key := range models {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	v := modelValidator()
	for _, key := range keys {
		model := models[key]
		if strings.TrimSpace(key) == "" {
			errs = append(errs, FieldError{Field: "models", Message: "model key must not be empty"})
			continue
		}

		if err := v.Struct(model); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				errs = append(errs, FieldError{Field: "models." + key, Message: err.Error()})
				continue
			}
			for _, fe := range verrs {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("models.%s.%s", key, fe.Field()),
					Message: describeTag(fe),
				})
			}
		}
	}

	if defaultModel == "" {
		errs = append(errs, FieldError{
			Field:   "default_model",
			Message: "default model is required when more than one model is configured",
		})
	} else if _, ok := models[defaultModel]; !ok {
		errs = append(errs, FieldError{
			Field:   "default_model",
			Message: fmt.Sprintf("model %q is not configured", defaultModel),
		})
	}

	return errs
}

// describeTag turns a validator failure into a readable message.
func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "base_url or api_url is required"
	case "http_url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func validateSessions(cfg *SessionsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "file":
		if cfg.Dir == "" {
			errs = append(errs, FieldError{Field: "sessions.dir", Message: "directory is required for the file backend"})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "sessions.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "sessions.sqlite.driver",
				Message: fmt.Sprintf("unsupported driver %q (use sqlite or sqlite3)", cfg.SQLite.Driver),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "sessions.backend",
			Message: fmt.Sprintf("unsupported backend %q (use file or sqlite)", cfg.Backend),
		})
	}

	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "sessions.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.TempGrace < 0 {
		errs = append(errs, FieldError{Field: "sessions.temp_grace", Message: "temp grace must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (use debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (use json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}

	if !cfg.Tracing.Enabled {
		return errs
	}
	switch cfg.Tracing.Sampler {
	case "always", "never":
	case "ratio":
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (use always, never or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.Exporter != "otlp" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("unsupported exporter %q (use otlp)", cfg.Tracing.Exporter),
		})
	}
	if cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.OTLP.Timeout < 0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.otlp.timeout", Message: "timeout must not be negative"})
	}

	return errs
}
