package metricsvc

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmentor/campusmentor/core"
)

const namespace = "campusmentor"

// Prometheus records the domain and HTTP metrics of the portal.
type Prometheus struct {
	registry *prometheus.Registry

	pointsAwarded      *prometheus.CounterVec
	certificatesIssued prometheus.Counter
	doubtsEscalated    prometheus.Counter
	sweeps             *prometheus.CounterVec
	sweepDuration      prometheus.Histogram

	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	dbConnPoolStats  *prometheus.GaugeVec
}

var _ core.Metrics = (*Prometheus)(nil)

// NewPrometheus registers every collector on a fresh registry, along with the Go and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		pointsAwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "points_awarded_total",
				Help:      "Total number of points credited, by action",
			},
			[]string{"action"},
		),
		certificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "certificates_issued_total",
			Help:      "Total number of certificates issued",
		}),
		doubtsEscalated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "doubts",
			Name:      "escalated_total",
			Help:      "Total number of doubts escalated to faculty",
		}),
		sweeps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "escalation",
				Name:      "sweep_doubts_total",
				Help:      "Doubts handled by escalation sweeps, by outcome",
			},
			[]string{"outcome"}, // escalated | failed
		),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "sweep_duration_seconds",
			Help:      "Escalation sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of requests currently being processed",
		}),
		dbConnPoolStats: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"}, // open | in_use | idle | wait_count | wait_duration_ms
		),
	}
}

func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

func (m *Prometheus) PointsAwarded(action string, points int) {
	m.pointsAwarded.WithLabelValues(action).Add(float64(points))
}

func (m *Prometheus) CertificateIssued() { m.certificatesIssued.Inc() }

func (m *Prometheus) DoubtEscalated() { m.doubtsEscalated.Inc() }

func (m *Prometheus) SweepCompleted(escalated, failed int, took time.Duration) {
	m.sweeps.WithLabelValues("escalated").Add(float64(escalated))
	m.sweeps.WithLabelValues("failed").Add(float64(failed))
	m.sweepDuration.Observe(took.Seconds())
}

// RecordDBPoolStats records database connection pool statistics.
func (m *Prometheus) RecordDBPoolStats(s sql.DBStats) {
	m.dbConnPoolStats.WithLabelValues("open").Set(float64(s.OpenConnections))
	m.dbConnPoolStats.WithLabelValues("in_use").Set(float64(s.InUse))
	m.dbConnPoolStats.WithLabelValues("idle").Set(float64(s.Idle))
	m.dbConnPoolStats.WithLabelValues("wait_count").Set(float64(s.WaitCount))
	m.dbConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(s.WaitDuration.Milliseconds()))
}

// Middleware tracks the count, duration and concurrency of HTTP requests.
func (m *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.requestCounter.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
