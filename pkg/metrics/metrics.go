// Package metrics collects request metrics with Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute is the route label used when no route matched the request.
const UnmatchedRoute = "unmatched"

// Config defines the configuration for a Collector.
type Config struct {
	Registry         *prometheus.Registry // Registry to register on; a new one is created when nil
	Namespace        string               // Namespace for metrics
	Subsystem        string               // Subsystem for metrics
	EnableLatency    bool                 // Enable the request duration histogram
	EnableThroughput bool                 // Enable the response size counter
	EnableInFlight   bool                 // Enable the in-flight requests gauge
	Buckets          []float64            // Latency buckets; prometheus.DefBuckets when nil
}

// Collector records per-request metrics. All methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewCollector creates the metrics described by config and registers them.
func NewCollector(config Config) (*Collector, error) {
	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	labels := []string{"method", "route", "status"}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total number of requests handled.",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_errors_total",
			Help:      "Requests that ended with a 5xx status or a pipeline error.",
		}, []string{"method", "route"}),
	}
	collectors := []prometheus.Collector{c.requests, c.errors}

	if config.EnableLatency {
		buckets := config.Buckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		c.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   buckets,
		}, []string{"method", "route"})
		collectors = append(collectors, c.latency)
	}
	if config.EnableThroughput {
		c.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "response_bytes_total",
			Help:      "Response body bytes written.",
		}, []string{"method", "route"})
		collectors = append(collectors, c.bytes)
	}
	if config.EnableInFlight {
		c.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		})
		collectors = append(collectors, c.inFlight)
	}

	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, errors.New("metrics: collector already registered on this registry")
			}
			return nil, err
		}
	}
	return c, nil
}

// Observation describes one finished request.
type Observation struct {
	Method   string
	Route    string
	Status   int
	Duration time.Duration
	Bytes    int
	Err      error
}

// Observe records a finished request.
func (c *Collector) Observe(o Observation) {
	route := o.Route
	if route == "" {
		route = UnmatchedRoute
	}
	c.requests.WithLabelValues(o.Method, route, strconv.Itoa(o.Status)).Inc()
	if o.Err != nil || o.Status >= 500 {
		c.errors.WithLabelValues(o.Method, route).Inc()
	}
	if c.latency != nil {
		c.latency.WithLabelValues(o.Method, route).Observe(o.Duration.Seconds())
	}
	if c.bytes != nil {
		c.bytes.WithLabelValues(o.Method, route).Add(float64(o.Bytes))
	}
}

// Begin marks a request as in flight and returns the function ending it.
func (c *Collector) Begin() func() {
	if c.inFlight == nil {
		return func() {}
	}
	c.inFlight.Inc()
	return c.inFlight.Dec
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the exposition handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
