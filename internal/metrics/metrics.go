package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	generations   *prometheus.CounterVec
	genDuration   prometheus.Histogram
	leads         *prometheus.CounterVec
	downloads     prometheus.Counter
	subscriptions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_generations_total",
			Help: "Site generations by industry and outcome",
		}, []string{"industry", "outcome"}),
		genDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitegen_generation_duration_seconds",
			Help:    "Time spent writing a generated site",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_leads_total",
			Help: "Email lead captures by result (created, updated, duplicate)",
		}, []string{"result"}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitegen_downloads_total",
			Help: "ZIP downloads served",
		}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitegen_subscription_events_total",
			Help: "Subscription lifecycle events by type",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.inFlight,
		m.generations, m.genDuration, m.leads, m.downloads, m.subscriptions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency per route pattern, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		if path == "" || path == "/" && c.Path() != "/" {
			path = "unmatched"
		}

		m.httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) RecordGeneration(industry string, ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.generations.WithLabelValues(industry, outcome).Inc()
	if ok {
		m.genDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) RecordLead(result string) {
	m.leads.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDownload() {
	m.downloads.Inc()
}

func (m *Metrics) RecordSubscriptionEvent(event string) {
	m.subscriptions.WithLabelValues(event).Inc()
}
