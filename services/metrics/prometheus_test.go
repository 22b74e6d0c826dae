package metricsvc_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	metricsvc "github.com/campusmentor/campusmentor/services/metrics"
)

func scrape(t *testing.T, m *metricsvc.Prometheus) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape() code = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestPrometheus_Middleware(t *testing.T) {
	m := metricsvc.NewPrometheus()
	app := echo.New()
	app.Use(m.Middleware())
	app.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	app.GET("/boom", func(c echo.Context) error { return echo.ErrTeapot })

	for _, path := range []string{"/ping", "/ping", "/boom", "/nowhere"} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `campusmentor_http_requests_total{method="GET",route="/ping",status="200"} 2`)
	assert.Contains(t, body, `campusmentor_http_requests_total{method="GET",route="/boom",status="418"} 1`)
	assert.Contains(t, body, `campusmentor_http_requests_in_flight 0`)
	assert.Contains(t, body, "go_goroutines")
}

func TestPrometheus_domainMetrics(t *testing.T) {
	m := metricsvc.NewPrometheus()
	m.PointsAwarded("DOUBT_SOLVED", 5)
	m.PointsAwarded("DOUBT_SOLVED", 5)
	m.PointsAwarded("PROJECT_APPROVED", 15)
	m.CertificateIssued()
	m.DoubtEscalated()
	m.DoubtEscalated()
	m.SweepCompleted(2, 1, 30*time.Millisecond)
	m.RecordDBPoolStats(sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2})

	body := scrape(t, m)
	for _, want := range []string{
		`campusmentor_ledger_points_awarded_total{action="DOUBT_SOLVED"} 10`,
		`campusmentor_ledger_points_awarded_total{action="PROJECT_APPROVED"} 15`,
		`campusmentor_ledger_certificates_issued_total 1`,
		`campusmentor_doubts_escalated_total 2`,
		`campusmentor_escalation_sweep_doubts_total{outcome="escalated"} 2`,
		`campusmentor_escalation_sweep_doubts_total{outcome="failed"} 1`,
		`campusmentor_escalation_sweep_duration_seconds_count 1`,
		`campusmentor_db_connection_pool{stat="open"} 3`,
		`campusmentor_db_connection_pool{stat="idle"} 2`,
	} {
		assert.Contains(t, body, want)
	}
}
