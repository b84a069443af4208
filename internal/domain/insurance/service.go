package insurance

import (
	"context"
	"time"
)

// Service exposes read-only lookups over the coverage master data.
type Service struct {
	plans      PlanRepository
	insurances PatientInsuranceRepository
	tariffs    TariffRepository
	patients   PatientRepository
}

func NewService(plans PlanRepository, insurances PatientInsuranceRepository,
	tariffs TariffRepository, patients PatientRepository) *Service {
	return &Service{plans: plans, insurances: insurances, tariffs: tariffs, patients: patients}
}

func (s *Service) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	return s.plans.GetByID(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, limit, offset int) ([]*Plan, int, error) {
	return s.plans.List(ctx, limit, offset)
}

func (s *Service) ListPlanTariffs(ctx context.Context, planID int64, limit, offset int) ([]*Tariff, int, error) {
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, 0, err
	}
	return s.tariffs.ListByPlan(ctx, planID, limit, offset)
}

func (s *Service) ListPatientInsurances(ctx context.Context, patientID int64) ([]*PatientInsurance, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.insurances.ListByPatient(ctx, patientID)
}

// Loader returns a snapshot loader over the service's repositories.
func (s *Service) Loader() *SnapshotLoader {
	return NewSnapshotLoader(s.patients, s.plans, s.insurances, s.tariffs)
}

// ActiveEnrollments filters the patient's enrollments to those covering date.
func (s *Service) ActiveEnrollments(ctx context.Context, patientID int64, date time.Time) ([]*PatientInsurance, error) {
	return s.insurances.ListActiveByPatient(ctx, patientID, date)
}
