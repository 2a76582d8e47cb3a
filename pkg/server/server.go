// Package server provides the HTTP server of the chat relay.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/handlers"
	"mercator-hq/relay/pkg/proxy/middleware"
	relaytls "mercator-hq/relay/pkg/security/tls"
	"mercator-hq/relay/pkg/session"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
)

// readinessCheckTimeout bounds each readiness check.
const readinessCheckTimeout = 2 * time.Second

// Dependencies are the components the route table serves.
type Dependencies struct {
	// Relay runs chat turns; normally a *relay.Orchestrator.
	Relay handlers.TurnRunner

	// Sessions backs the session endpoints and the readiness probe.
	Sessions *session.Store

	// Models backs the models endpoint and the readiness probe.
	Models *backend.Registry

	// Metrics is served on the metrics path when enabled. May be nil.
	Metrics *metrics.Collector

	// Tracer starts a server span per request. May be nil.
	Tracer *tracing.Tracer

	// Version is reported by /version.
	Version health.VersionInfo

	// Logger receives request and lifecycle logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the relay's HTTP server.
type Server struct {
	config       *config.Config
	deps         Dependencies
	logger       *slog.Logger
	handler      http.Handler
	certs        *relaytls.CertificateReloader
	httpServer   *http.Server
	addr         string
	baseCtx      context.Context
	cancelBase   context.CancelFunc
	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server and builds its route table.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:       cfg,
		deps:         deps,
		logger:       logger.With("component", "server"),
		baseCtx:      baseCtx,
		cancelBase:   cancel,
		shutdownChan: make(chan struct{}),
	}
	if tlsCfg := cfg.Server.TLS; tlsCfg.Enabled {
		s.certs = relaytls.NewCertificateReloader(tlsCfg.CertFile, tlsCfg.KeyFile, tlsCfg.ReloadInterval, logger)
	}
	s.handler = s.setupRoutes(logger)
	return s
}

// Start listens on the configured address and serves until ctx is done,
// Stop is called or the listener fails. It then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	srvCfg := s.config.Server
	tlsConfig, err := s.tlsConfig()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("tls: %w", err)
	}

	ln, err := net.Listen("tcp", srvCfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", srvCfg.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    srvCfg.ReadTimeout,
		WriteTimeout:   srvCfg.WriteTimeout,
		IdleTimeout:    srvCfg.IdleTimeout,
		MaxHeaderBytes: srvCfg.MaxHeaderBytes,
		TLSConfig:      tlsConfig,
		BaseContext:    func(net.Listener) context.Context { return s.baseCtx },
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay server", "address", s.addr, "tls", tlsConfig != nil)
		var err error
		if tlsConfig != nil {
			// Certificates come from TLSConfig.GetCertificate.
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// tlsConfig loads the certificate and returns the listener's TLS settings,
// or nil when TLS is disabled. Reloading stops with the base context.
func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.certs == nil {
		return nil, nil
	}
	if err := s.certs.Start(s.baseCtx); err != nil {
		return nil, err
	}
	return relaytls.ServerConfig(s.config.Server.TLS, s.certs)
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown stops accepting connections and waits up to the shutdown timeout
// for in-flight requests. Turns still running after that are cancelled, so
// streaming turns persist what they have.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.mu.Unlock()
		if !running {
			s.cancelBase()
			return
		}

		timeout := s.config.Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown timed out, cancelling in-flight turns", "error", err)
			s.cancelBase()
			if closeErr := s.httpServer.Close(); closeErr != nil {
				shutdownErr = fmt.Errorf("server shutdown error: %w", closeErr)
			}
		}
		s.cancelBase()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("relay server stopped")
	})

	return shutdownErr
}

// setupRoutes builds the route table and wraps it in the middleware chain.
func (s *Server) setupRoutes(logger *slog.Logger) http.Handler {
	cfg := s.config
	mux := http.NewServeMux()

	timeout := middleware.TimeoutMiddleware(cfg.Server.RequestTimeout)

	// Chat turns. ChatHandler answers other methods itself with a JSON 405.
	chat := handlers.NewChatHandler(s.deps.Relay, cfg.Server.MaxBodyBytes)
	mux.Handle("/chat/completions", chat)
	mux.Handle("/v1/chat/completions", chat)

	if cfg.Server.WebSocket.Enabled {
		var checkOrigin func(*http.Request) bool
		if cors := middleware.NewCORSConfig(cfg.Server.CORS); cors.Enabled {
			checkOrigin = func(r *http.Request) bool { return cors.OriginAllowed(r.Header.Get("Origin")) }
		}
		mux.Handle("GET /ws", handlers.NewWebSocketHandler(s.deps.Relay, cfg.Server.MaxBodyBytes, cfg.Server.WebSocket.PingInterval, checkOrigin))
	}

	sessions := handlers.NewSessionsHandler(s.deps.Sessions)
	mux.Handle("POST /sessions", timeout(http.HandlerFunc(sessions.Create)))
	mux.Handle("GET /sessions", timeout(http.HandlerFunc(sessions.List)))
	mux.Handle("GET /sessions/{id}", timeout(http.HandlerFunc(sessions.Get)))

	mux.Handle("GET /models", timeout(handlers.NewModelsHandler(s.deps.Models)))

	mux.Handle("GET /health", handlers.NewHealthHandler())

	checker := health.New(readinessCheckTimeout)
	checker.RegisterCheck("sessions", health.PingCheck(s.deps.Sessions))
	checker.RegisterCheck("models", health.ModelsCheck(s.deps.Models))
	if s.certs != nil {
		checker.RegisterCheck("certificate", s.certs.Check)
	}
	mux.Handle("GET /ready", checker.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.deps.Version))

	if cfg.Telemetry.Metrics.Enabled && s.deps.Metrics != nil {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	if cfg.UI.StaticDir != "" {
		static := handlers.NewStaticHandler(cfg.UI.StaticDir)
		mux.Handle("GET /{$}", static)
		for _, name := range handlers.StaticFiles {
			mux.Handle("GET /"+name, static)
		}
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(middleware.NewCORSConfig(cfg.Server.CORS))(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	if s.deps.Tracer.Enabled() {
		handler = tracing.Middleware(s.deps.Tracer)(handler)
	}
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// Addr returns the address the server is listening on, which differs from
// the configured one when the port is 0. Empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
