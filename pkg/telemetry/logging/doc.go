// Package logging configures the process-wide slog logger and carries
// request-scoped fields through context.
//
// Setup installs a JSON or text handler at the configured level. The
// handler is wrapped so that secrets (API keys and bearer tokens) never
// reach the log output, whether they appear as attribute values or inside
// free text.
//
// Components derive their logger from the default:
//
//	logger := slog.Default().With("component", "relay")
//
// and enrich it per request with FromContext.
package logging
