// Package metrics provides Prometheus metrics for the relay.
//
// # Metrics
//
//   - relay_turns_total{model,mode,outcome}: completed chat turns
//   - relay_turn_duration_seconds{model,mode}: wall time per turn
//   - relay_backend_latency_seconds{model}: time to backend response headers
//   - relay_stream_deltas_total{model}: delta events forwarded to clients
//   - relay_stream_frames_dropped_total{model}: undecodable backend frames
//   - relay_persist_failures_total: failed session writes
//   - relay_sessions: sessions held in memory
//
// mode is "stream" or "complete". outcome is one of "ok", "invalid",
// "backend_error", "canceled".
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordTurn("local", metrics.ModeStream, metrics.OutcomeOK, time.Since(start))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics
