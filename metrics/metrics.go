// Package metrics exposes gateway session and store measurements as
// Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/gatemesh/core"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "gatemesh"

// DefaultMaxConnectors caps distinct connector labels when no allow list is
// configured.
const DefaultMaxConnectors = 32

// OtherConnector labels connectors outside the allow list or beyond the cap.
const OtherConnector = "other"

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	// Connectors, when non-empty, is the full set of connector label values;
	// every other name is reported as OtherConnector.
	Connectors []string
	// MaxConnectors caps distinct connector labels when Connectors is empty.
	MaxConnectors int
}

// Collector implements core.Recorder on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	mu        sync.Mutex
	allowed   map[string]struct{}
	fixed     bool
	maxLabels int

	sessionsStarted *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	storeCalls      *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
}

// Interface compliance (compile-time assertion)
var _ core.Recorder = (*Collector)(nil)

// NewCollector creates a collector registering its metrics under namespace.
// Connector names come from request paths, so the connector label is bounded
// by CollectorOptions.
func NewCollector(namespace string, optFns ...func(o *CollectorOptions)) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	opts := CollectorOptions{MaxConnectors: DefaultMaxConnectors}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConnectors <= 0 {
		opts.MaxConnectors = DefaultMaxConnectors
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		allowed:   make(map[string]struct{}, len(opts.Connectors)),
		fixed:     len(opts.Connectors) > 0,
		maxLabels: opts.MaxConnectors,
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Session start records written to the store",
			},
			[]string{"connector", "direction"},
		),
		sessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_closed_total",
				Help:      "Session close events, split by whether a start record was found",
			},
			[]string{"connector", "direction", "matched"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of sessions closed with a known start time",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"connector"},
		),
		storeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_calls_total",
				Help:      "Key-value store operations",
			},
			[]string{"op", "status"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_call_duration_seconds",
				Help:      "Latency of key-value store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	c.registry.MustRegister(
		c.sessionsStarted,
		c.sessionsClosed,
		c.sessionDuration,
		c.storeCalls,
		c.storeLatency,
	)

	for _, name := range opts.Connectors {
		c.allowed[name] = struct{}{}
	}

	return c
}

// connectorLabel bounds the label values derived from connector names.
func (c *Collector) connectorLabel(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.allowed[name]; ok {
		return name
	}
	if c.fixed || len(c.allowed) >= c.maxLabels {
		return OtherConnector
	}
	c.allowed[name] = struct{}{}
	return name
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler serving the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// SessionStarted implements core.Recorder.
func (c *Collector) SessionStarted(connector string, dir core.Direction) {
	c.sessionsStarted.WithLabelValues(c.connectorLabel(connector), dir.String()).Inc()
}

// SessionClosed implements core.Recorder.
func (c *Collector) SessionClosed(connector string, dir core.Direction, matched bool, dur time.Duration) {
	label := c.connectorLabel(connector)
	c.sessionsClosed.WithLabelValues(label, dir.String(), strconv.FormatBool(matched)).Inc()
	if matched {
		c.sessionDuration.WithLabelValues(label).Observe(dur.Seconds())
	}
}

// StoreCall implements core.Recorder.
func (c *Collector) StoreCall(op string, dur time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeCalls.WithLabelValues(op, status).Inc()
	c.storeLatency.WithLabelValues(op).Observe(dur.Seconds())
}
