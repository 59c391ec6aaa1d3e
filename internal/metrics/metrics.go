package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the certificate service.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	// Generation
	CertificatesTotal     *prometheus.CounterVec
	RenderDurationSeconds *prometheus.HistogramVec
	RenderFailuresTotal   *prometheus.CounterVec
	DownloadsTotal        *prometheus.CounterVec

	// Bulk archives
	ArchivesBuiltTotal   *prometheus.CounterVec
	ArchivesRemovedTotal prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	// Rate limiting
	RateLimitExceededTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CertificatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificates_generated_total",
				Help: "Certificate generation attempts by final status",
			},
			[]string{"status"},
		),
		RenderDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certificates_render_duration_seconds",
				Help:    "Time spent in each renderer",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"renderer"},
		),
		RenderFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificates_render_failures_total",
				Help: "Renderer failures",
			},
			[]string{"renderer"},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificates_downloads_total",
				Help: "Certificate file downloads by format",
			},
			[]string{"format"},
		),
		ArchivesBuiltTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificates_archives_built_total",
				Help: "Bulk download archives by outcome",
			},
			[]string{"status"},
		),
		ArchivesRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "certificates_archives_removed_total",
				Help: "Expired bulk download archives removed",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "certificates_api_requests_total",
				Help: "HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "certificates_api_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RateLimitExceededTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "certificates_rate_limit_exceeded_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.CertificatesTotal,
		m.RenderDurationSeconds,
		m.RenderFailuresTotal,
		m.DownloadsTotal,
		m.ArchivesBuiltTotal,
		m.ArchivesRemovedTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.RateLimitExceededTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRender matches render.Observer
func (m *Metrics) ObserveRender(renderer string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.RenderDurationSeconds.WithLabelValues(renderer).Observe(took.Seconds())
	if err != nil {
		m.RenderFailuresTotal.WithLabelValues(renderer).Inc()
	}
}

func (m *Metrics) IncCertificates(status string) {
	if m == nil {
		return
	}
	m.CertificatesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDownloads(format string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(format).Inc()
}

func (m *Metrics) IncArchives(status string) {
	if m == nil {
		return
	}
	m.ArchivesBuiltTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddArchivesRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArchivesRemovedTotal.Add(float64(n))
}

func (m *Metrics) IncRateLimitExceeded() {
	if m == nil {
		return
	}
	m.RateLimitExceededTotal.Inc()
}
