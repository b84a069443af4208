package calculation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LayerType distinguishes the base plan pass from top-up passes.
type LayerType string

const (
	LayerPrimary       LayerType = "primary"
	LayerSupplementary LayerType = "supplementary"
)

// WarningCode classifies recoverable conditions surfaced on results instead
// of failing the calculation.
type WarningCode string

const (
	WarnInvalidAmount      WarningCode = "invalid_amount"
	WarnPatientNotFound    WarningCode = "patient_not_found"
	WarnNoActiveInsurance  WarningCode = "no_active_insurance"
	WarnMissingPlan        WarningCode = "missing_plan"
	WarnMultipleTariffs    WarningCode = "multiple_tariffs_matched"
	WarnMultiplePrimary    WarningCode = "multiple_primary_insurances"
	WarnUnparsableRule     WarningCode = "unparsable_rule_condition"
)

// Warning is a recoverable, flagged condition attached to a service result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// LayerResult records one insurance layer's pass over a remaining amount.
type LayerResult struct {
	LayerType          LayerType       `json:"layer_type"`
	PlanID             int64           `json:"plan_id"`
	CoveredAmount      decimal.Decimal `json:"covered_amount"`
	ResidualAfterLayer decimal.Decimal `json:"residual_after_layer"`
	AppliedRuleID      *int64          `json:"applied_rule_id,omitempty"`
	CappedByMaxPayment bool            `json:"capped_by_max_payment"`
}

// ServiceResult is the per-service breakdown of a combined calculation.
type ServiceResult struct {
	ServiceID              int64           `json:"service_id"`
	ServiceAmount          decimal.Decimal `json:"service_amount"`
	TotalInsuranceCoverage decimal.Decimal `json:"total_insurance_coverage"`
	FinalPatientShare      decimal.Decimal `json:"final_patient_share"`
	Layers                 []LayerResult   `json:"layers"`
	Warnings               []Warning       `json:"warnings,omitempty"`

	validationFailed bool
}

// ValidationFailed reports whether the service was rejected by the
// pre-calculation checks and therefore carries zero coverage.
func (r *ServiceResult) ValidationFailed() bool {
	return r.validationFailed
}

// CombinedResult is the outcome of one combined calculation invocation.
type CombinedResult struct {
	CalculationID          uuid.UUID       `json:"calculation_id"`
	PatientID              int64           `json:"patient_id"`
	CalculationDate        time.Time       `json:"calculation_date"`
	PerService             []ServiceResult `json:"per_service"`
	TotalPatientShare      decimal.Decimal `json:"total_patient_share"`
	TotalInsuranceCoverage decimal.Decimal `json:"total_insurance_coverage"`
	Success                bool            `json:"success"`
	FailureReason          string          `json:"failure_reason,omitempty"`
}
