// Package health provides the readiness probe and version endpoint of the
// relay.
//
// Liveness is answered by the /health handler in pkg/proxy/handlers, which
// never touches storage. Readiness runs named checks concurrently, each under
// its own timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("sessions", health.PingCheck(store))
//	checker.RegisterCheck("models", health.ModelsCheck(registry))
//	mux.Handle("GET /ready", checker.ReadinessHandler())
//
// The probe returns 200 with status "ready" when every check passes, and 503
// with status "degraded" plus the failing check's message otherwise.
package health
