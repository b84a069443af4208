package insurance

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Snapshot is a read-only view of one patient's coverage data as of a single
// date. It is fetched once per calculation batch and discarded afterwards;
// entities reference each other by id only.
type Snapshot struct {
	PatientID  int64
	Date       time.Time
	Patient    *Patient
	Insurances []*PatientInsurance
	plans      map[int64]*Plan
	tariffs    map[int64][]*Tariff
}

// NewSnapshot builds a snapshot from already-fetched data. The loader is the
// usual entry point; this constructor serves callers that assemble the data
// themselves.
func NewSnapshot(patientID int64, date time.Time, patient *Patient,
	insurances []*PatientInsurance, plans map[int64]*Plan, tariffs map[int64][]*Tariff) *Snapshot {
	if plans == nil {
		plans = make(map[int64]*Plan)
	}
	if tariffs == nil {
		tariffs = make(map[int64][]*Tariff)
	}
	return &Snapshot{
		PatientID:  patientID,
		Date:       date,
		Patient:    patient,
		Insurances: insurances,
		plans:      plans,
		tariffs:    tariffs,
	}
}

// SnapshotLoader assembles snapshots from the lookup repositories.
type SnapshotLoader struct {
	patients   PatientRepository
	plans      PlanRepository
	insurances PatientInsuranceRepository
	tariffs    TariffRepository
}

func NewSnapshotLoader(patients PatientRepository, plans PlanRepository,
	insurances PatientInsuranceRepository, tariffs TariffRepository) *SnapshotLoader {
	return &SnapshotLoader{
		patients:   patients,
		plans:      plans,
		insurances: insurances,
		tariffs:    tariffs,
	}
}

// Load fetches the patient, their active enrollments on date, the referenced
// plans, and those plans' tariffs valid on date. A missing patient yields a
// snapshot with a nil Patient, not an error; infrastructure failures
// propagate as errors.
func (l *SnapshotLoader) Load(ctx context.Context, patientID int64, date time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		PatientID: patientID,
		Date:      date,
		plans:     make(map[int64]*Plan),
		tariffs:   make(map[int64][]*Tariff),
	}

	patient, err := l.patients.GetByID(ctx, patientID)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("load patient %d: %w", patientID, err)
	}
	snap.Patient = patient
	if patient == nil {
		return snap, nil
	}

	enrollments, err := l.insurances.ListActiveByPatient(ctx, patientID, date)
	if err != nil {
		return nil, fmt.Errorf("load insurances for patient %d: %w", patientID, err)
	}
	snap.Insurances = enrollments
	if len(enrollments) == 0 {
		return snap, nil
	}

	planIDs := make([]int64, 0, len(enrollments))
	seen := make(map[int64]bool, len(enrollments))
	for _, pi := range enrollments {
		if !seen[pi.PlanID] {
			seen[pi.PlanID] = true
			planIDs = append(planIDs, pi.PlanID)
		}
	}

	plans, err := l.plans.ListByIDs(ctx, planIDs)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	for _, p := range plans {
		snap.plans[p.ID] = p
	}

	tariffs, err := l.tariffs.ListByPlanIDs(ctx, planIDs, date)
	if err != nil {
		return nil, fmt.Errorf("load tariffs: %w", err)
	}
	for _, t := range tariffs {
		snap.tariffs[t.PlanID] = append(snap.tariffs[t.PlanID], t)
	}

	return snap, nil
}

// Plan returns the plan for the given id, or nil if it was not loaded.
func (s *Snapshot) Plan(id int64) *Plan {
	return s.plans[id]
}

// TariffsForPlan returns the tariffs loaded for the given plan.
func (s *Snapshot) TariffsForPlan(planID int64) []*Tariff {
	return s.tariffs[planID]
}

// SelectPrimary picks the patient's primary enrollment for the snapshot
// date. When more than one active primary exists (a data anomaly), the one
// with the earliest ValidFrom wins, ties broken by lowest id; the second
// return value reports the anomaly.
func (s *Snapshot) SelectPrimary() (*PatientInsurance, bool) {
	var candidates []*PatientInsurance
	for _, pi := range s.Insurances {
		if pi.IsPrimary && pi.ActiveOn(s.Date) {
			candidates = append(candidates, pi)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].ValidFrom.Equal(candidates[j].ValidFrom) {
			return candidates[i].ValidFrom.Before(candidates[j].ValidFrom)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], len(candidates) > 1
}

// Supplementary returns the patient's active supplementary enrollments for
// the snapshot date, ordered by priority ascending, then earliest ValidFrom,
// then lowest id. The sort is total, so storage order never affects results.
func (s *Snapshot) Supplementary() []*PatientInsurance {
	var out []*PatientInsurance
	for _, pi := range s.Insurances {
		if !pi.IsPrimary && pi.ActiveOn(s.Date) {
			out = append(out, pi)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if !out[i].ValidFrom.Equal(out[j].ValidFrom) {
			return out[i].ValidFrom.Before(out[j].ValidFrom)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HasActiveInsurance reports whether the patient has any active enrollment
// on the snapshot date.
func (s *Snapshot) HasActiveInsurance() bool {
	for _, pi := range s.Insurances {
		if pi.ActiveOn(s.Date) {
			return true
		}
	}
	return false
}
