package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/relay/pkg/config"
)

// Turn modes.
const (
	ModeStream   = "stream"
	ModeComplete = "complete"
)

// Turn outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeBackendError = "backend_error"
	OutcomeCanceled     = "canceled"
)

// overflowLabel replaces model labels beyond the cardinality limit.
const overflowLabel = "other"

// Collector owns the relay's Prometheus metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	backendLatency  *prometheus.HistogramVec
	streamDeltas    *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	persistFailures prometheus.Counter
	sessions        prometheus.Gauge

	models *CardinalityLimiter
}

// NewCollector creates and registers the relay metrics. If registry is nil a
// fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.TurnDurationBuckets) == 0 {
		cfg.TurnDurationBuckets = append([]float64(nil), config.DefaultTurnDurationBuckets...)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		models:   NewCardinalityLimiter(100),

		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "turns_total",
				Help:      "Total number of chat turns handled",
			},
			[]string{"model", "mode", "outcome"},
		),

		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of chat turns in seconds",
				Buckets:   cfg.TurnDurationBuckets,
			},
			[]string{"model", "mode"},
		),

		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_latency_seconds",
				Help:      "Time until the backend returned response headers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),

		streamDeltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_deltas_total",
				Help:      "Delta events forwarded to streaming clients",
			},
			[]string{"model"},
		),

		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stream_frames_dropped_total",
				Help:      "Backend stream frames dropped because they could not be decoded",
			},
			[]string{"model"},
		),

		persistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "persist_failures_total",
				Help:      "Session writes that failed",
			},
		),

		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "sessions",
				Help:      "Number of sessions held in memory",
			},
		),
	}

	registry.MustRegister(
		c.turns,
		c.turnDuration,
		c.backendLatency,
		c.streamDeltas,
		c.framesDropped,
		c.persistFailures,
		c.sessions,
	)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// model bounds label cardinality; request-supplied model keys that were
// never seen before are folded into "other" once the limit is reached.
func (c *Collector) model(model string) string {
	if model == "" {
		return "unknown"
	}
	if !c.models.Allow(model) {
		return overflowLabel
	}
	return model
}

// RecordTurn records one finished turn.
func (c *Collector) RecordTurn(model, mode, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	model = c.model(model)
	c.turns.WithLabelValues(model, mode, outcome).Inc()
	c.turnDuration.WithLabelValues(model, mode).Observe(duration.Seconds())
}

// RecordBackendLatency records the time until the backend responded.
func (c *Collector) RecordBackendLatency(model string, latency time.Duration) {
	if !c.enabled() {
		return
	}
	c.backendLatency.WithLabelValues(c.model(model)).Observe(latency.Seconds())
}

// RecordDeltas adds n forwarded delta events.
func (c *Collector) RecordDeltas(model string, n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.streamDeltas.WithLabelValues(c.model(model)).Add(float64(n))
}

// RecordDroppedFrames adds n undecodable frames.
func (c *Collector) RecordDroppedFrames(model string, n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.framesDropped.WithLabelValues(c.model(model)).Add(float64(n))
}

// RecordPersistFailure counts one failed session write.
func (c *Collector) RecordPersistFailure() {
	if !c.enabled() {
		return
	}
	c.persistFailures.Inc()
}

// SetSessions sets the in-memory session count.
func (c *Collector) SetSessions(n int) {
	if !c.enabled() {
		return
	}
	c.sessions.Set(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct values accepted for a
// label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter accepting up to maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or can still be added.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
