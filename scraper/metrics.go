package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	PagesTotal           *prometheus.CounterVec
	ProductsScrapedTotal prometheus.Counter
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	RepeatedPagesTotal   prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kabum_scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kabum_scraper_request_duration_seconds",
			Help:    "HTTP request latency for listing pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kabum_scraper_pages_total",
			Help: "Listing pages processed by outcome.",
		},
		[]string{"outcome"},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kabum_scraper_products_scraped_total",
			Help: "Total number of products normalized.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kabum_scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kabum_scraper_errors_total",
			Help: "Total number of scraper errors by kind and cause.",
		},
		[]string{"kind", "cause"},
	)
	repeated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kabum_scraper_repeated_pages_total",
			Help: "Pages whose product codes were all seen earlier in the run.",
		},
	)

	registry.MustRegister(requests, requestDuration, pages, products, retries, errorsTotal, repeated)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		PagesTotal:           pages,
		ProductsScrapedTotal: products,
		RetriesTotal:         retries,
		ErrorsTotal:          errorsTotal,
		RepeatedPagesTotal:   repeated,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPage counts a processed page by outcome (scraped, terminal, empty).
func (m *Metrics) IncPage(outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
}

// AddProducts increments the products counter.
func (m *Metrics) AddProducts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ProductsScrapedTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter.
func (m *Metrics) IncError(kind Kind, cause string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind.String(), cause).Inc()
}

// IncRepeatedPage counts a page that only repeated known products.
func (m *Metrics) IncRepeatedPage() {
	if m == nil {
		return
	}
	m.RepeatedPagesTotal.Inc()
}
