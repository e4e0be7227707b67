package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/laskutin/internal/billing"
)

// Metrics holds the Prometheus collectors of the service. It implements
// billing.Recorder and middleware.Observer.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InvoicesCreatedTotal *prometheus.CounterVec
	InvoicedCentsTotal   *prometheus.CounterVec
	DeletionsRefused     *prometheus.CounterVec
	BillingRunDuration   *prometheus.HistogramVec
	BillingRunErrors     *prometheus.CounterVec

	SnapshotsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ billing.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go
// runtime collectors, on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laskutin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		InvoicesCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_invoices_created_total",
				Help: "Invoices created by billing runs",
			},
			[]string{"year"},
		),
		InvoicedCentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_invoiced_cents_total",
				Help: "Sum of created invoice amounts in cents",
			},
			[]string{"year"},
		),
		DeletionsRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_deletions_refused_total",
				Help: "Deletes refused because billing history references the record",
			},
			[]string{"entity"},
		),
		BillingRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laskutin_billing_run_duration_seconds",
				Help:    "Duration of invoice validation and generation",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"operation"},
		),
		BillingRunErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_billing_run_errors_total",
				Help: "Failed validation and generation runs",
			},
			[]string{"operation", "kind"},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laskutin_snapshots_total",
				Help: "Database snapshots by outcome",
			},
			[]string{"status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvoicesCreatedTotal,
		m.InvoicedCentsTotal,
		m.DeletionsRefused,
		m.BillingRunDuration,
		m.BillingRunErrors,
		m.SnapshotsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) InvoicesCreated(year int, count int, amountCents int64) {
	y := strconv.Itoa(year)
	m.InvoicesCreatedTotal.WithLabelValues(y).Add(float64(count))
	m.InvoicedCentsTotal.WithLabelValues(y).Add(float64(amountCents))
}

func (m *Metrics) DeletionRefused(entity string) {
	m.DeletionsRefused.WithLabelValues(entity).Inc()
}

func (m *Metrics) ObserveRun(op string, d time.Duration, err error) {
	m.BillingRunDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.BillingRunErrors.WithLabelValues(op, errorKind(err)).Inc()
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SnapshotFinished counts a snapshot attempt by its final status.
func (m *Metrics) SnapshotFinished(status string) {
	m.SnapshotsTotal.WithLabelValues(status).Inc()
}

// LiveFeed is the part of the websocket hub exported as gauges.
type LiveFeed interface {
	ClientCount() int
	Dropped() uint64
}

// WatchLiveFeed exports the connected client count and dropped deliveries
// of feed.
func (m *Metrics) WatchLiveFeed(feed LiveFeed) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "laskutin_websocket_clients",
			Help: "Connected websocket clients",
		}, func() float64 { return float64(feed.ClientCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "laskutin_websocket_dropped_total",
			Help: "Events not delivered to a slow websocket client",
		}, func() float64 { return float64(feed.Dropped()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func errorKind(err error) string {
	var se *billing.StorageError
	switch {
	case errors.Is(err, billing.ErrValidation):
		return "validation"
	case errors.Is(err, billing.ErrReferentialIntegrity):
		return "referential_integrity"
	case errors.Is(err, billing.ErrNotFound):
		return "not_found"
	case errors.As(err, &se):
		return "storage"
	default:
		return "other"
	}
}
