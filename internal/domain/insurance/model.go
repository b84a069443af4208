package insurance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is an insurance contract template. It is not a patient's enrollment;
// see PatientInsurance for that.
type Plan struct {
	ID                     int64           `json:"id"`
	ProviderID             int64           `json:"provider_id"`
	Name                   string          `json:"name"`
	DefaultCoveragePercent decimal.Decimal `json:"default_coverage_percent"`
	Deductible             decimal.Decimal `json:"deductible"`
	IsPrimaryCapable       bool            `json:"is_primary_capable"`
	IsSupplementaryCapable bool            `json:"is_supplementary_capable"`
	Active                 bool            `json:"active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// PatientInsurance links a patient to a plan for a validity window.
// Priority orders supplementary layers; lower applies first.
type PatientInsurance struct {
	ID           int64      `json:"id"`
	PatientID    int64      `json:"patient_id"`
	PlanID       int64      `json:"plan_id"`
	PolicyNumber string     `json:"policy_number"`
	IsPrimary    bool       `json:"is_primary"`
	Priority     int        `json:"priority"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ActiveOn reports whether the enrollment covers the given date. A nil
// ValidTo means open-ended.
func (pi *PatientInsurance) ActiveOn(date time.Time) bool {
	if !pi.Active {
		return false
	}
	if date.Before(pi.ValidFrom) {
		return false
	}
	if pi.ValidTo != nil && date.After(*pi.ValidTo) {
		return false
	}
	return true
}

// Tariff is a plan-and-service-specific price/coverage agreement. A nil
// ServiceID is a wildcard that applies to all services of the plan, matched
// only when no specific-service tariff exists.
type Tariff struct {
	ID                           int64               `json:"id"`
	PlanID                       int64               `json:"plan_id"`
	ServiceID                    *int64              `json:"service_id,omitempty"`
	PriceOverride                decimal.NullDecimal `json:"price_override,omitempty"`
	PatientShare                 decimal.Decimal     `json:"patient_share"`
	InsurerShare                 decimal.Decimal     `json:"insurer_share"`
	CoveragePercentOverride      decimal.NullDecimal `json:"coverage_percent_override,omitempty"`
	SupplementaryCoveragePercent decimal.NullDecimal `json:"supplementary_coverage_percent,omitempty"`
	SupplementaryMaxPayment      decimal.NullDecimal `json:"supplementary_max_payment,omitempty"`
	ValidFrom                    time.Time           `json:"valid_from"`
	ValidTo                      *time.Time          `json:"valid_to,omitempty"`
	Active                       bool                `json:"active"`
	CreatedAt                    time.Time           `json:"created_at"`
}

// ValidOn reports whether the tariff is active and its validity window
// covers the given date.
func (t *Tariff) ValidOn(date time.Time) bool {
	if !t.Active {
		return false
	}
	if date.Before(t.ValidFrom) {
		return false
	}
	if t.ValidTo != nil && date.After(*t.ValidTo) {
		return false
	}
	return true
}

// MatchesService reports whether the tariff applies to the given service,
// either specifically or as a wildcard.
func (t *Tariff) MatchesService(serviceID int64) bool {
	return t.ServiceID == nil || *t.ServiceID == serviceID
}

// IsWildcard reports whether the tariff applies to all services of its plan.
func (t *Tariff) IsWildcard() bool {
	return t.ServiceID == nil
}

// Patient is the minimal identity record the engine needs.
type Patient struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
