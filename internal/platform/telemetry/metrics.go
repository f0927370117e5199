// Package telemetry exposes Prometheus metrics for the HTTP surface, the
// connection pool and the link managers.
package telemetry

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ehr/phr/internal/platform/apperr"
)

const namespace = "phr"

// Link kinds used as the "kind" label on link counters.
const (
	KindConditionMedication = "condition_medication"
	KindTreatmentMedication = "treatment_medication"
)

// LinkRecorder counts link manager outcomes.
type LinkRecorder interface {
	LinksCreated(kind string, n int)
	LinksSkipped(kind string, n int)
	LinksDeleted(kind string, n int)
}

type discard struct{}

func (discard) LinksCreated(string, int) {}
func (discard) LinksSkipped(string, int) {}
func (discard) LinksDeleted(string, int) {}

// Discard is a LinkRecorder that records nothing.
var Discard LinkRecorder = discard{}

// Metrics owns a private registry so that tests and multiple servers in one
// process do not collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	links    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		links: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Link manager outcomes by link kind",
		}, []string{"kind", "outcome"}),
	}
}

// Registry is exposed for tests and for callers that add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LinksCreated(kind string, n int) { m.addLinks(kind, "created", n) }
func (m *Metrics) LinksSkipped(kind string, n int) { m.addLinks(kind, "skipped", n) }
func (m *Metrics) LinksDeleted(kind string, n int) { m.addLinks(kind, "deleted", n) }

func (m *Metrics) addLinks(kind, outcome string, n int) {
	if n > 0 {
		m.links.WithLabelValues(kind, outcome).Add(float64(n))
	}
}

// WatchPool publishes pool statistics, sampled at scrape time.
func (m *Metrics) WatchPool(stat func() *pgxpool.Stat) {
	gauge := func(name, help string, value func(s *pgxpool.Stat) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stat()) })
	}
	m.registry.MustRegister(
		gauge("total_conns", "Total connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("idle_conns", "Idle connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("acquired_conns", "Connections currently checked out",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
	)
}

// Middleware records request counts and latency keyed by the matched route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			start := time.Now()

			err := next(c)

			m.inFlight.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = apperr.From(err).HTTPStatus
				}
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
