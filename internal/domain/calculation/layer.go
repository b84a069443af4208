package calculation

import (
	"github.com/shopspring/decimal"

	"github.com/covercalc/covercalc/internal/domain/insurance"
	"github.com/covercalc/covercalc/internal/domain/rules"
)

var hundred = decimal.NewFromInt(100)

// ApplyLayer runs one insurance layer over a remaining payable amount.
// remaining is the raw service amount for the primary layer and the previous
// layer's residual for a supplementary layer. tariff may be nil, in which
// case the plan's default coverage percent applies with no tariff-level caps.
//
// Amounts are whole currency units; the covered amount is banker's-rounded
// once, after the coverage formula, with no intermediate rounding.
func ApplyLayer(remaining decimal.Decimal, plan *insurance.Plan, tariff *insurance.Tariff,
	outcome rules.Outcome, layerType LayerType) LayerResult {

	result := LayerResult{
		LayerType:     layerType,
		PlanID:        plan.ID,
		CoveredAmount: decimal.Zero,
	}
	if outcome.Matched {
		id := outcome.RuleID
		result.AppliedRuleID = &id
	}

	if outcome.IsVeto() {
		result.ResidualAfterLayer = remaining
		return result
	}

	// The insurer computes coverage on the allowed amount: the remaining
	// payable, clamped by a tariff price override when present, less any
	// deductible. The deductible stays in the patient share.
	payable := remaining
	if tariff != nil && tariff.PriceOverride.Valid && payable.GreaterThan(tariff.PriceOverride.Decimal) {
		payable = tariff.PriceOverride.Decimal
	}

	if outcome.Matched && outcome.Type == rules.TypeDeductible {
		payable = payable.Sub(outcome.Value)
	} else if plan.Deductible.IsPositive() {
		payable = payable.Sub(plan.Deductible)
	}
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	percent := coveragePercent(plan, tariff, outcome, layerType)
	covered := payable.Mul(percent).Div(hundred).RoundBank(0)

	if layerType == LayerSupplementary && tariff != nil && tariff.SupplementaryMaxPayment.Valid {
		if covered.GreaterThan(tariff.SupplementaryMaxPayment.Decimal) {
			covered = tariff.SupplementaryMaxPayment.Decimal.RoundBank(0)
			result.CappedByMaxPayment = true
		}
	}

	if outcome.Matched && outcome.Type == rules.TypeFixedAmount {
		covered = decimal.Min(outcome.Value, payable).RoundBank(0)
		result.CappedByMaxPayment = false
	}

	if covered.IsNegative() {
		covered = decimal.Zero
	}
	if covered.GreaterThan(remaining) {
		covered = remaining
	}

	result.CoveredAmount = covered
	result.ResidualAfterLayer = remaining.Sub(covered)
	return result
}

// coveragePercent picks the effective percent for the layer: a matching
// CoveragePercent rule wins; a supplementary layer then prefers the tariff's
// supplementary percent; otherwise the tariff override, then the plan
// default.
func coveragePercent(plan *insurance.Plan, tariff *insurance.Tariff,
	outcome rules.Outcome, layerType LayerType) decimal.Decimal {

	if outcome.Matched && outcome.Type == rules.TypeCoveragePercent {
		return outcome.Value
	}
	if tariff != nil {
		if layerType == LayerSupplementary && tariff.SupplementaryCoveragePercent.Valid {
			return tariff.SupplementaryCoveragePercent.Decimal
		}
		if tariff.CoveragePercentOverride.Valid {
			return tariff.CoveragePercentOverride.Decimal
		}
	}
	return plan.DefaultCoveragePercent
}
