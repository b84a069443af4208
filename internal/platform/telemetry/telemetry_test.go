package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHistogram_Observe(t *testing.T) {
	h := newHistogram([]float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)
	h.Observe(100)

	if got := h.Count(); got != 4 {
		t.Errorf("expected count 4, got %d", got)
	}
	if got := h.Sum(); got != 110.5 {
		t.Errorf("expected sum 110.5, got %g", got)
	}

	cum := h.cumulativeBuckets()
	want := []int64{1, 2, 3}
	for i, w := range want {
		if cum[i] != w {
			t.Errorf("bucket %d: expected %d, got %d", i, w, cum[i])
		}
	}
}

func TestCalculationCounter(t *testing.T) {
	p := NewProvider(Config{})

	p.CalculationCounter("primary", "success")
	p.CalculationCounter("primary", "success")
	p.CalculationCounter("combined", "vetoed")

	if got := p.GetCalculationCount("primary", "success"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := p.GetCalculationCount("combined", "vetoed"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := p.GetCalculationCount("combined", "success"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	p := NewProvider(Config{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := p.MetricsMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := p.GetHistogram("http.server.request.duration")
	if h == nil {
		t.Fatal("expected duration histogram")
	}
	if h.Count() != 1 {
		t.Errorf("expected 1 observation, got %d", h.Count())
	}
	if got := p.GetGauge("http.server.active_requests"); got != 0 {
		t.Errorf("expected active requests back to 0, got %d", got)
	}
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	p := NewProvider(Config{MetricsEnabled: BoolPtr(false)})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	if err := p.MetricsMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.GetHistogram("http.server.request.duration") != nil {
		t.Error("expected no histogram when metrics disabled")
	}
}

func TestPrometheusHandler_Exposition(t *testing.T) {
	p := NewProvider(Config{})
	p.CalculationCounter("combined", "success")
	p.WarningCounter("no_active_insurance")
	p.ObserveCalculationDuration(50 * time.Millisecond)
	p.Health().SetDBPoolActive(3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := p.PrometheusHandler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`calc_operations_total{layer="combined",outcome="success"} 1`,
		`calc_warnings_total{code="no_active_insurance"} 1`,
		"calc_duration_seconds_count 1",
		"db_pool_active_connections 3",
		"# TYPE http_server_request_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestResource(t *testing.T) {
	p := NewProvider(Config{ServiceName: "covercalc", ServiceVersion: "1.2.3", Environment: "production"})
	res := p.Resource()
	if res["service.name"] != "covercalc" {
		t.Errorf("unexpected service name %q", res["service.name"])
	}
	if res["deployment.environment"] != "production" {
		t.Errorf("unexpected environment %q", res["deployment.environment"])
	}
}
