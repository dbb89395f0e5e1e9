package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates clip-engine metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	clipsGenerated  *prometheus.CounterVec
	clipsFailed     *prometheus.CounterVec
	thumbnailMisses prometheus.Counter
	extractSeconds  prometheus.Histogram
	batchRunning    prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		clipsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipgen_clips_generated_total",
			Help: "Clips generated, by event category.",
		}, []string{"category"}),
		clipsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipgen_clips_failed_total",
			Help: "Clip generation failures, by stage (download, extract, upload).",
		}, []string{"stage"}),
		thumbnailMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipgen_thumbnail_misses_total",
			Help: "Thumbnail syntheses that degraded to no image.",
		}),
		extractSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipgen_extract_duration_seconds",
			Help:    "Wall time of a single clip extraction.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		batchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipgen_batches_running",
			Help: "Batch generations currently in flight.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipgen_http_requests_total",
			Help: "HTTP requests, by route and status class.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clipgen_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.clipsGenerated, c.clipsFailed, c.thumbnailMisses,
		c.extractSeconds, c.batchRunning,
		c.httpRequests, c.httpDuration,
	)
	return c
}

func (c *Collector) ClipGenerated(category string)      { c.clipsGenerated.WithLabelValues(category).Inc() }
func (c *Collector) ClipFailed(stage string)            { c.clipsFailed.WithLabelValues(stage).Inc() }
func (c *Collector) ThumbnailMiss()                     { c.thumbnailMisses.Inc() }
func (c *Collector) ObserveExtract(d time.Duration)     { c.extractSeconds.Observe(d.Seconds()) }
func (c *Collector) BatchStarted()                      { c.batchRunning.Inc() }
func (c *Collector) BatchEnded()                        { c.batchRunning.Dec() }

func (c *Collector) RecordHTTP(route, status string, d time.Duration) {
	c.httpRequests.WithLabelValues(route, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
