package insurance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covercalc/covercalc/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// -- Plan PG Repo --

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository {
	return &planRepoPG{pool: pool}
}

func (r *planRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const planCols = `id, provider_id, name, default_coverage_percent, deductible,
	is_primary_capable, is_supplementary_capable, active, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.ProviderID, &p.Name, &p.DefaultCoveragePercent, &p.Deductible,
		&p.IsPrimaryCapable, &p.IsSupplementaryCapable, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *planRepoPG) GetByID(ctx context.Context, id int64) (*Plan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM insurance_plan WHERE id = $1`, id))
}

func (r *planRepoPG) ListByIDs(ctx context.Context, ids []int64) ([]*Plan, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+planCols+` FROM insurance_plan WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *planRepoPG) List(ctx context.Context, limit, offset int) ([]*Plan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM insurance_plan`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+planCols+` FROM insurance_plan ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// -- PatientInsurance PG Repo --

type patientInsuranceRepoPG struct{ pool *pgxpool.Pool }

func NewPatientInsuranceRepoPG(pool *pgxpool.Pool) PatientInsuranceRepository {
	return &patientInsuranceRepoPG{pool: pool}
}

func (r *patientInsuranceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientInsuranceCols = `id, patient_id, plan_id, policy_number, is_primary, priority,
	valid_from, valid_to, active, created_at, updated_at`

func scanPatientInsurance(row pgx.Row) (*PatientInsurance, error) {
	var pi PatientInsurance
	err := row.Scan(&pi.ID, &pi.PatientID, &pi.PlanID, &pi.PolicyNumber, &pi.IsPrimary, &pi.Priority,
		&pi.ValidFrom, &pi.ValidTo, &pi.Active, &pi.CreatedAt, &pi.UpdatedAt)
	return &pi, err
}

func (r *patientInsuranceRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*PatientInsurance, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientInsuranceCols+`
		FROM patient_insurance WHERE patient_id = $1 ORDER BY id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientInsurance
	for rows.Next() {
		pi, err := scanPatientInsurance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

func (r *patientInsuranceRepoPG) ListActiveByPatient(ctx context.Context, patientID int64, date time.Time) ([]*PatientInsurance, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientInsuranceCols+`
		FROM patient_insurance
		WHERE patient_id = $1 AND active
		  AND valid_from <= $2 AND (valid_to IS NULL OR valid_to >= $2)
		ORDER BY id`, patientID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PatientInsurance
	for rows.Next() {
		pi, err := scanPatientInsurance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

// -- Tariff PG Repo --

type tariffRepoPG struct{ pool *pgxpool.Pool }

func NewTariffRepoPG(pool *pgxpool.Pool) TariffRepository {
	return &tariffRepoPG{pool: pool}
}

func (r *tariffRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const tariffCols = `id, plan_id, service_id, price_override, patient_share, insurer_share,
	coverage_percent_override, supplementary_coverage_percent, supplementary_max_payment,
	valid_from, valid_to, active, created_at`

func scanTariff(row pgx.Row) (*Tariff, error) {
	var t Tariff
	err := row.Scan(&t.ID, &t.PlanID, &t.ServiceID, &t.PriceOverride, &t.PatientShare, &t.InsurerShare,
		&t.CoveragePercentOverride, &t.SupplementaryCoveragePercent, &t.SupplementaryMaxPayment,
		&t.ValidFrom, &t.ValidTo, &t.Active, &t.CreatedAt)
	return &t, err
}

func (r *tariffRepoPG) ListByPlanIDs(ctx context.Context, planIDs []int64, date time.Time) ([]*Tariff, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tariffCols+`
		FROM insurance_tariff
		WHERE plan_id = ANY($1) AND active
		  AND valid_from <= $2 AND (valid_to IS NULL OR valid_to >= $2)
		ORDER BY plan_id, id`, planIDs, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *tariffRepoPG) ListByPlan(ctx context.Context, planID int64, limit, offset int) ([]*Tariff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM insurance_tariff WHERE plan_id = $1`, planID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+tariffCols+`
		FROM insurance_tariff WHERE plan_id = $1 ORDER BY id LIMIT $2 OFFSET $3`, planID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// -- Patient PG Repo --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, active, created_at FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}
