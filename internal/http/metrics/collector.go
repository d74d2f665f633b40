package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stageportal"

// Collector owns the service registry. Each instance registers its own
// collectors so tests can build independent ones.
type Collector struct {
	registry        *prometheus.Registry
	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	scoringJobs     *prometheus.CounterVec
	scoringDuration prometheus.Histogram
	enqueueFailures prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		scoringJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "jobs_total",
			Help:      "Scoring jobs processed by outcome.",
		}, []string{"outcome"}),
		scoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "job_duration_seconds",
			Help:      "Duration of scorer invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "enqueue_failures_total",
			Help:      "Applications that could not be queued for scoring.",
		}),
	}
	c.registry.MustRegister(
		c.inFlight,
		c.requests,
		c.duration,
		c.scoringJobs,
		c.scoringDuration,
		c.enqueueFailures,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (c *Collector) TrackInFlight() func() {
	c.inFlight.Inc()
	return c.inFlight.Dec
}

func (c *Collector) ObserveRequest(method, path string, status int, duration time.Duration) {
	route := CanonicalPath(path)
	method = strings.ToUpper(method)
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) ObserveScoring(outcome string, duration time.Duration) {
	c.scoringJobs.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.scoringDuration.Observe(duration.Seconds())
	}
}

func (c *Collector) EnqueueFailed() {
	c.enqueueFailures.Inc()
}

// CanonicalPath collapses ids and document names so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if i > 0 && parts[i-1] == "uploads" {
			parts[i] = ":filename"
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
