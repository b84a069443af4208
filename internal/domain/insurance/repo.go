package insurance

import (
	"context"
	"time"
)

// PlanRepository is the read-only lookup boundary for insurance plans.
type PlanRepository interface {
	GetByID(ctx context.Context, id int64) (*Plan, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*Plan, error)
	List(ctx context.Context, limit, offset int) ([]*Plan, int, error)
}

// PatientInsuranceRepository is the read-only lookup boundary for patient
// enrollments.
type PatientInsuranceRepository interface {
	ListByPatient(ctx context.Context, patientID int64) ([]*PatientInsurance, error)
	ListActiveByPatient(ctx context.Context, patientID int64, date time.Time) ([]*PatientInsurance, error)
}

// TariffRepository is the read-only lookup boundary for tariffs.
type TariffRepository interface {
	ListByPlanIDs(ctx context.Context, planIDs []int64, date time.Time) ([]*Tariff, error)
	ListByPlan(ctx context.Context, planID int64, limit, offset int) ([]*Tariff, int, error)
}

// PatientRepository is the read-only lookup boundary for patient identity.
type PatientRepository interface {
	GetByID(ctx context.Context, id int64) (*Patient, error)
}
