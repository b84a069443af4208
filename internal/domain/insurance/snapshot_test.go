package insurance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y, m, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

// -- mock repositories --

type mockPatientRepo struct {
	patients map[int64]*Patient
	err      error
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

type mockPlanRepo struct {
	plans map[int64]*Plan
	err   error
}

func (m *mockPlanRepo) GetByID(_ context.Context, id int64) (*Plan, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPlanRepo) ListByIDs(_ context.Context, ids []int64) ([]*Plan, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*Plan
	for _, id := range ids {
		if p, ok := m.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPlanRepo) List(_ context.Context, limit, offset int) ([]*Plan, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Plan
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockInsuranceRepo struct {
	items []*PatientInsurance
	err   error
}

func (m *mockInsuranceRepo) ListByPatient(_ context.Context, patientID int64) ([]*PatientInsurance, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*PatientInsurance
	for _, pi := range m.items {
		if pi.PatientID == patientID {
			out = append(out, pi)
		}
	}
	return out, nil
}

func (m *mockInsuranceRepo) ListActiveByPatient(_ context.Context, patientID int64, d time.Time) ([]*PatientInsurance, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*PatientInsurance
	for _, pi := range m.items {
		if pi.PatientID == patientID && pi.ActiveOn(d) {
			out = append(out, pi)
		}
	}
	return out, nil
}

type mockTariffRepo struct {
	items []*Tariff
	err   error
}

func (m *mockTariffRepo) ListByPlanIDs(_ context.Context, planIDs []int64, d time.Time) ([]*Tariff, error) {
	if m.err != nil {
		return nil, m.err
	}
	want := make(map[int64]bool, len(planIDs))
	for _, id := range planIDs {
		want[id] = true
	}
	var out []*Tariff
	for _, t := range m.items {
		if want[t.PlanID] && t.ValidOn(d) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTariffRepo) ListByPlan(_ context.Context, planID int64, limit, offset int) ([]*Tariff, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Tariff
	for _, t := range m.items {
		if t.PlanID == planID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func testLoader(patients *mockPatientRepo, plans *mockPlanRepo, ins *mockInsuranceRepo, tariffs *mockTariffRepo) *SnapshotLoader {
	if patients == nil {
		patients = &mockPatientRepo{patients: map[int64]*Patient{1: {ID: 1, Name: "A", Active: true}}}
	}
	if plans == nil {
		plans = &mockPlanRepo{plans: map[int64]*Plan{}}
	}
	if ins == nil {
		ins = &mockInsuranceRepo{}
	}
	if tariffs == nil {
		tariffs = &mockTariffRepo{}
	}
	return NewSnapshotLoader(patients, plans, ins, tariffs)
}

// -- tests --

func TestPatientInsurance_ActiveOn(t *testing.T) {
	pi := &PatientInsurance{
		Active:    true,
		ValidFrom: date(2026, 1, 1),
		ValidTo:   datePtr(2026, 12, 31),
	}

	if !pi.ActiveOn(date(2026, 6, 1)) {
		t.Error("expected active inside window")
	}
	if !pi.ActiveOn(date(2026, 1, 1)) {
		t.Error("expected active on lower bound")
	}
	if !pi.ActiveOn(date(2026, 12, 31)) {
		t.Error("expected active on upper bound")
	}
	if pi.ActiveOn(date(2025, 12, 31)) {
		t.Error("expected inactive before window")
	}
	if pi.ActiveOn(date(2027, 1, 1)) {
		t.Error("expected inactive after window")
	}

	pi.ValidTo = nil
	if !pi.ActiveOn(date(2030, 1, 1)) {
		t.Error("expected open-ended enrollment to stay active")
	}

	pi.Active = false
	if pi.ActiveOn(date(2026, 6, 1)) {
		t.Error("expected inactive flag to win")
	}
}

func TestTariff_MatchesService(t *testing.T) {
	svc := int64(10)
	specific := &Tariff{ServiceID: &svc}
	wildcard := &Tariff{}

	if !specific.MatchesService(10) {
		t.Error("expected specific match")
	}
	if specific.MatchesService(11) {
		t.Error("expected no match for other service")
	}
	if !wildcard.MatchesService(10) || !wildcard.MatchesService(99) {
		t.Error("expected wildcard to match everything")
	}
	if !wildcard.IsWildcard() || specific.IsWildcard() {
		t.Error("IsWildcard mismatch")
	}
}

func TestSnapshotLoader_Load(t *testing.T) {
	plans := &mockPlanRepo{plans: map[int64]*Plan{
		100: {ID: 100, DefaultCoveragePercent: decimal.NewFromInt(70), Active: true},
		200: {ID: 200, DefaultCoveragePercent: decimal.NewFromInt(50), Active: true},
	}}
	ins := &mockInsuranceRepo{items: []*PatientInsurance{
		{ID: 1, PatientID: 1, PlanID: 100, IsPrimary: true, ValidFrom: date(2025, 1, 1), Active: true},
		{ID: 2, PatientID: 1, PlanID: 200, ValidFrom: date(2025, 1, 1), Active: true},
	}}
	tariffs := &mockTariffRepo{items: []*Tariff{
		{ID: 1, PlanID: 100, ValidFrom: date(2025, 1, 1), Active: true},
		{ID: 2, PlanID: 200, ValidFrom: date(2025, 1, 1), Active: true},
	}}

	snap, err := testLoader(nil, plans, ins, tariffs).Load(context.Background(), 1, date(2026, 6, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Patient == nil {
		t.Fatal("expected patient")
	}
	if len(snap.Insurances) != 2 {
		t.Fatalf("expected 2 enrollments, got %d", len(snap.Insurances))
	}
	if snap.Plan(100) == nil || snap.Plan(200) == nil {
		t.Error("expected both plans loaded")
	}
	if len(snap.TariffsForPlan(100)) != 1 {
		t.Errorf("expected 1 tariff for plan 100, got %d", len(snap.TariffsForPlan(100)))
	}
}

func TestSnapshotLoader_Load_PatientMissing(t *testing.T) {
	loader := testLoader(&mockPatientRepo{patients: map[int64]*Patient{}}, nil, nil, nil)
	snap, err := loader.Load(context.Background(), 42, date(2026, 6, 1))
	if err != nil {
		t.Fatalf("missing patient should not error: %v", err)
	}
	if snap.Patient != nil {
		t.Error("expected nil patient")
	}
	if snap.HasActiveInsurance() {
		t.Error("expected no active insurance")
	}
}

func TestSnapshotLoader_Load_RepoFailure(t *testing.T) {
	boom := errors.New("connection refused")
	loader := testLoader(nil, nil, &mockInsuranceRepo{err: boom}, nil)
	_, err := loader.Load(context.Background(), 1, date(2026, 6, 1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestSnapshot_SelectPrimary_SingleMatch(t *testing.T) {
	snap := &Snapshot{
		Date: date(2026, 6, 1),
		Insurances: []*PatientInsurance{
			{ID: 1, IsPrimary: true, ValidFrom: date(2025, 1, 1), Active: true},
			{ID: 2, ValidFrom: date(2025, 1, 1), Active: true},
		},
	}
	primary, multiple := snap.SelectPrimary()
	if primary == nil || primary.ID != 1 {
		t.Fatalf("expected primary id 1, got %+v", primary)
	}
	if multiple {
		t.Error("expected no anomaly flag")
	}
}

func TestSnapshot_SelectPrimary_MultipleActives(t *testing.T) {
	snap := &Snapshot{
		Date: date(2026, 6, 1),
		Insurances: []*PatientInsurance{
			{ID: 5, IsPrimary: true, ValidFrom: date(2025, 3, 1), Active: true},
			{ID: 3, IsPrimary: true, ValidFrom: date(2025, 1, 1), Active: true},
			{ID: 4, IsPrimary: true, ValidFrom: date(2025, 1, 1), Active: true},
		},
	}
	primary, multiple := snap.SelectPrimary()
	if primary.ID != 3 {
		t.Errorf("expected earliest validFrom then lowest id (3), got %d", primary.ID)
	}
	if !multiple {
		t.Error("expected anomaly flag for multiple primaries")
	}
}

func TestSnapshot_SelectPrimary_None(t *testing.T) {
	snap := &Snapshot{Date: date(2026, 6, 1)}
	primary, multiple := snap.SelectPrimary()
	if primary != nil || multiple {
		t.Error("expected no primary and no flag")
	}
}

func TestSnapshot_Supplementary_Ordering(t *testing.T) {
	snap := &Snapshot{
		Date: date(2026, 6, 1),
		Insurances: []*PatientInsurance{
			{ID: 9, Priority: 2, ValidFrom: date(2025, 1, 1), Active: true},
			{ID: 7, Priority: 1, ValidFrom: date(2025, 2, 1), Active: true},
			{ID: 8, Priority: 1, ValidFrom: date(2025, 1, 1), Active: true},
			{ID: 6, Priority: 1, ValidFrom: date(2025, 1, 1), Active: true},
			{ID: 1, IsPrimary: true, ValidFrom: date(2025, 1, 1), Active: true},
		},
	}
	got := snap.Supplementary()
	want := []int64{6, 8, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("expected %d supplementary, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected id %d, got %d", i, id, got[i].ID)
		}
	}
}

func TestSnapshot_Supplementary_StorageOrderIrrelevant(t *testing.T) {
	items := []*PatientInsurance{
		{ID: 6, Priority: 1, ValidFrom: date(2025, 1, 1), Active: true},
		{ID: 8, Priority: 1, ValidFrom: date(2025, 1, 1), Active: true},
		{ID: 7, Priority: 1, ValidFrom: date(2025, 2, 1), Active: true},
	}
	reversed := []*PatientInsurance{items[2], items[1], items[0]}

	a := (&Snapshot{Date: date(2026, 6, 1), Insurances: items}).Supplementary()
	b := (&Snapshot{Date: date(2026, 6, 1), Insurances: reversed}).Supplementary()

	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("storage order changed result at %d: %d vs %d", i, a[i].ID, b[i].ID)
		}
	}
}
