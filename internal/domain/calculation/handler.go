package calculation

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/covercalc/covercalc/internal/platform/auth"
)

const dateLayout = "2006-01-02"

type Handler struct {
	calc *Calculator
}

func NewHandler(calc *Calculator) *Handler {
	return &Handler{calc: calc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("admin", "billing", "clerk")

	api.POST("/calculations", h.Calculate, role)
	api.POST("/calculations/batch", h.CalculateBatch, role)
}

type calculateRequest struct {
	PatientID     int64           `json:"patient_id"`
	ServiceID     int64           `json:"service_id"`
	ServiceAmount decimal.Decimal `json:"service_amount"`
	Date          string          `json:"date"`
}

type calculateBatchRequest struct {
	PatientID      int64             `json:"patient_id"`
	ServiceIDs     []int64           `json:"service_ids"`
	ServiceAmounts []decimal.Decimal `json:"service_amounts"`
	Date           string            `json:"date"`
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, s)
}

func (h *Handler) Calculate(c echo.Context) error {
	var req calculateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	result, err := h.calc.CalculateCombined(c.Request().Context(), req.PatientID, req.ServiceID, req.ServiceAmount, date)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CalculateBatch(c echo.Context) error {
	var req calculateBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	result, err := h.calc.CalculateCombinedForServices(c.Request().Context(), req.PatientID, req.ServiceIDs, req.ServiceAmounts, date)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}
