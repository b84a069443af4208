package calculation

import (
	"fmt"

	"github.com/covercalc/covercalc/internal/domain/insurance"
)

// ResolveTariff finds the tariff applicable to (plan, service) on the
// snapshot date. A tariff for the exact service beats a wildcard tariff for
// the same plan. When more than one specific tariff matches (a data
// anomaly), the most recently created wins, ties broken by highest id, and a
// MultipleTariffsMatched warning is returned. The second return value is
// false when no candidate exists; callers then fall back to the plan's
// default coverage percent with no tariff-level caps.
func ResolveTariff(snap *insurance.Snapshot, planID, serviceID int64) (*insurance.Tariff, bool, []Warning) {
	var specific, wildcard []*insurance.Tariff
	for _, t := range snap.TariffsForPlan(planID) {
		if !t.ValidOn(snap.Date) || !t.MatchesService(serviceID) {
			continue
		}
		if t.IsWildcard() {
			wildcard = append(wildcard, t)
		} else {
			specific = append(specific, t)
		}
	}

	var warnings []Warning
	candidates := specific
	if len(candidates) == 0 {
		candidates = wildcard
	} else if len(candidates) > 1 {
		warnings = append(warnings, Warning{
			Code:    WarnMultipleTariffs,
			Message: fmt.Sprintf("plan %d has %d tariffs matching service %d; using the newest", planID, len(candidates), serviceID),
		})
	}
	if len(candidates) == 0 {
		return nil, false, warnings
	}

	best := candidates[0]
	for _, t := range candidates[1:] {
		if t.CreatedAt.After(best.CreatedAt) ||
			(t.CreatedAt.Equal(best.CreatedAt) && t.ID > best.ID) {
			best = t
		}
	}
	return best, true, warnings
}
