package calculation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/covercalc/covercalc/internal/domain/insurance"
	"github.com/covercalc/covercalc/internal/domain/rules"
	"github.com/covercalc/covercalc/internal/platform/telemetry"
)

// Calculator orchestrates the combined multi-layer coverage calculation:
// snapshot load, validation gate, tariff resolution, rule evaluation, and
// layer application, primary first and supplementary layers in priority
// order. It holds no mutable state between calls.
type Calculator struct {
	loader      *insurance.SnapshotLoader
	rules       rules.Repository
	logger      zerolog.Logger
	metrics     *telemetry.Provider
	maxParallel int
}

func NewCalculator(loader *insurance.SnapshotLoader, rulesRepo rules.Repository,
	logger zerolog.Logger, metrics *telemetry.Provider, maxParallel int) *Calculator {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Calculator{
		loader:      loader,
		rules:       rulesRepo,
		logger:      logger,
		metrics:     metrics,
		maxParallel: maxParallel,
	}
}

// CalculateCombined computes coverage for a single service.
func (c *Calculator) CalculateCombined(ctx context.Context, patientID, serviceID int64,
	amount decimal.Decimal, date time.Time) (*CombinedResult, error) {
	return c.CalculateCombinedForServices(ctx, patientID, []int64{serviceID}, []decimal.Decimal{amount}, date)
}

// CalculateCombinedForServices computes coverage for a batch of services
// rendered to one patient on one date. A length mismatch between serviceIDs
// and amounts fails the whole batch with no per-service results. Lookup
// failures fail the batch; per-service validation failures are recorded as
// zero-coverage results and do not abort the other services.
func (c *Calculator) CalculateCombinedForServices(ctx context.Context, patientID int64,
	serviceIDs []int64, amounts []decimal.Decimal, date time.Time) (*CombinedResult, error) {

	start := time.Now()
	result := &CombinedResult{
		CalculationID:          uuid.New(),
		PatientID:              patientID,
		CalculationDate:        date,
		TotalPatientShare:      decimal.Zero,
		TotalInsuranceCoverage: decimal.Zero,
	}

	if len(serviceIDs) != len(amounts) {
		result.FailureReason = fmt.Sprintf("service ids and amounts length mismatch: %d vs %d",
			len(serviceIDs), len(amounts))
		c.count("combined", "validation_failed")
		return result, nil
	}

	snap, err := c.loader.Load(ctx, patientID, date)
	if err != nil {
		result.FailureReason = "coverage data unavailable"
		c.count("combined", "error")
		c.logger.Error().Err(err).Int64("patient_id", patientID).Msg("snapshot load failed")
		return result, err
	}

	ruleSet, err := c.rules.ListActive(ctx)
	if err != nil {
		result.FailureReason = "business rules unavailable"
		c.count("combined", "error")
		c.logger.Error().Err(err).Msg("rule load failed")
		return result, err
	}
	ruleWarnings := c.dataQualityWarnings(ruleSet)

	result.PerService = make([]ServiceResult, len(serviceIDs))
	sem := make(chan struct{}, c.maxParallel)
	var wg sync.WaitGroup
	for i := range serviceIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			result.PerService[i] = c.calculateService(snap, ruleSet, ruleWarnings, serviceIDs[i], amounts[i])
		}(i)
	}
	wg.Wait()

	failed := 0
	var reasons []string
	for i := range result.PerService {
		sr := &result.PerService[i]
		result.TotalPatientShare = result.TotalPatientShare.Add(sr.FinalPatientShare)
		result.TotalInsuranceCoverage = result.TotalInsuranceCoverage.Add(sr.TotalInsuranceCoverage)
		if c.metrics != nil {
			for _, w := range sr.Warnings {
				c.metrics.WarningCounter(string(w.Code))
			}
		}
		if sr.validationFailed {
			failed++
			for _, w := range sr.Warnings {
				reasons = append(reasons, fmt.Sprintf("service %d: %s", sr.ServiceID, w.Message))
			}
			c.count("combined", "validation_failed")
		} else {
			c.count("combined", "success")
		}
	}

	result.Success = len(serviceIDs) == 0 || failed < len(serviceIDs)
	if !result.Success {
		result.FailureReason = strings.Join(reasons, "; ")
	}

	if c.metrics != nil {
		c.metrics.ObserveCalculationDuration(time.Since(start))
	}
	c.logger.Debug().
		Str("calculation_id", result.CalculationID.String()).
		Int64("patient_id", patientID).
		Int("services", len(serviceIDs)).
		Int("failed", failed).
		Bool("success", result.Success).
		Msg("combined calculation finished")

	return result, nil
}

// calculateService runs the validation gate and the layer pipeline for one
// service. It is pure over the snapshot and rule set and safe to call
// concurrently for different services.
func (c *Calculator) calculateService(snap *insurance.Snapshot, ruleSet []*rules.Rule,
	ruleWarnings []Warning, serviceID int64, amount decimal.Decimal) ServiceResult {

	sr := ServiceResult{
		ServiceID:              serviceID,
		ServiceAmount:          amount,
		TotalInsuranceCoverage: decimal.Zero,
		FinalPatientShare:      amount,
	}
	sr.Warnings = append(sr.Warnings, ruleWarnings...)

	// Validation gate. Failures are per-service data, not batch errors.
	if !amount.IsPositive() {
		sr.validationFailed = true
		sr.Warnings = append(sr.Warnings, Warning{
			Code:    WarnInvalidAmount,
			Message: fmt.Sprintf("service amount must be positive, got %s", amount),
		})
		return sr
	}
	if snap.Patient == nil {
		sr.validationFailed = true
		sr.Warnings = append(sr.Warnings, Warning{
			Code:    WarnPatientNotFound,
			Message: fmt.Sprintf("patient %d not found", snap.PatientID),
		})
		return sr
	}
	if !snap.HasActiveInsurance() {
		sr.validationFailed = true
		sr.Warnings = append(sr.Warnings, Warning{
			Code:    WarnNoActiveInsurance,
			Message: fmt.Sprintf("patient %d has no active insurance on %s", snap.PatientID, snap.Date.Format("2006-01-02")),
		})
		return sr
	}

	residual := amount

	primary, multiple := snap.SelectPrimary()
	if multiple {
		sr.Warnings = append(sr.Warnings, Warning{
			Code:    WarnMultiplePrimary,
			Message: fmt.Sprintf("patient %d has multiple active primary insurances; using enrollment %d", snap.PatientID, primary.ID),
		})
	}
	if primary != nil {
		layer, warns, ok := c.applyEnrollment(snap, ruleSet, primary, serviceID, amount, residual, LayerPrimary)
		sr.Warnings = append(sr.Warnings, warns...)
		if ok {
			sr.Layers = append(sr.Layers, layer)
			residual = layer.ResidualAfterLayer
		}
	}

	for _, supp := range snap.Supplementary() {
		layer, warns, ok := c.applyEnrollment(snap, ruleSet, supp, serviceID, amount, residual, LayerSupplementary)
		sr.Warnings = append(sr.Warnings, warns...)
		if !ok {
			continue
		}
		sr.Layers = append(sr.Layers, layer)
		residual = layer.ResidualAfterLayer
	}

	sr.FinalPatientShare = residual
	sr.TotalInsuranceCoverage = amount.Sub(residual)
	return sr
}

// applyEnrollment resolves the tariff and rules for one enrollment and
// applies the layer against remaining. The rule context carries the
// service's original amount, not the residual. ok is false when the
// enrollment's plan is missing from the snapshot (a data anomaly surfaced as
// a warning, not a failure).
func (c *Calculator) applyEnrollment(snap *insurance.Snapshot, ruleSet []*rules.Rule,
	enrollment *insurance.PatientInsurance, serviceID int64, serviceAmount, remaining decimal.Decimal,
	layerType LayerType) (LayerResult, []Warning, bool) {

	plan := snap.Plan(enrollment.PlanID)
	if plan == nil {
		return LayerResult{}, []Warning{{
			Code:    WarnMissingPlan,
			Message: fmt.Sprintf("plan %d referenced by enrollment %d not found; layer skipped", enrollment.PlanID, enrollment.ID),
		}}, false
	}

	tariff, _, warnings := ResolveTariff(snap, plan.ID, serviceID)

	outcome := rules.Evaluate(rules.Context{
		PatientID:     snap.PatientID,
		ServiceID:     serviceID,
		PlanID:        plan.ID,
		ServiceAmount: serviceAmount,
		Date:          snap.Date,
	}, ruleSet)

	layer := ApplyLayer(remaining, plan, tariff, outcome, layerType)
	if outcome.IsVeto() {
		c.count(string(layerType), "vetoed")
	} else {
		c.count(string(layerType), "success")
	}
	return layer, warnings, true
}

// dataQualityWarnings flags rules whose conditions failed to parse. Such
// rules never match; the anomaly is surfaced on results and logged once.
func (c *Calculator) dataQualityWarnings(ruleSet []*rules.Rule) []Warning {
	var bad []int64
	for _, r := range ruleSet {
		if r.HasInvalidCondition() {
			bad = append(bad, r.ID)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })

	warnings := make([]Warning, 0, len(bad))
	for _, id := range bad {
		warnings = append(warnings, Warning{
			Code:    WarnUnparsableRule,
			Message: fmt.Sprintf("rule %d has an unparsable condition and can never match", id),
		})
		c.logger.Warn().Int64("rule_id", id).Msg("unparsable rule condition")
	}
	return warnings
}

func (c *Calculator) count(layer, outcome string) {
	if c.metrics != nil {
		c.metrics.CalculationCounter(layer, outcome)
	}
}
