package calculation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func postJSON(t *testing.T, h echo.HandlerFunc, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h(c)
}

func TestHandler_Calculate(t *testing.T) {
	h := NewHandler(newCalculator(baseFixture(), 1))

	rec, err := postJSON(t, h.Calculate,
		`{"patient_id":1,"service_id":10,"service_amount":1000000,"date":"2026-06-01"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res CombinedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, got %s", res.FailureReason)
	}
	if !res.TotalInsuranceCoverage.Equal(dec("700000")) {
		t.Errorf("coverage = %s, want 700000", res.TotalInsuranceCoverage)
	}
}

func TestHandler_Calculate_BadDate(t *testing.T) {
	h := NewHandler(newCalculator(baseFixture(), 1))

	_, err := postJSON(t, h.Calculate,
		`{"patient_id":1,"service_id":10,"service_amount":100,"date":"06/01/2026"}`)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Calculate_MissingPatient(t *testing.T) {
	h := NewHandler(newCalculator(baseFixture(), 1))

	_, err := postJSON(t, h.Calculate, `{"service_id":10,"service_amount":100}`)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_CalculateBatch_Mismatch(t *testing.T) {
	h := NewHandler(newCalculator(baseFixture(), 1))

	rec, err := postJSON(t, h.CalculateBatch,
		`{"patient_id":1,"service_ids":[10,11],"service_amounts":[100],"date":"2026-06-01"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res CombinedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success {
		t.Error("expected success=false for mismatched batch")
	}
	if len(res.PerService) != 0 {
		t.Error("expected no per-service results")
	}
}
