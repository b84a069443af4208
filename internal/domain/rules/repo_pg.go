package rules

import (
	"context"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, name, rule_type, value, priority, active, created_at, updated_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var e Rule
	err := row.Scan(&e.ID, &e.Name, &e.Type, &e.Value, &e.Priority, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

// loadConditions attaches parsed conditions to the given rules.
func (r *repoPG) loadConditions(ctx context.Context, byID map[int64]*Rule) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, rule_id, field, operator, value
		FROM business_rule_condition
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, seq, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, ruleID int64
			field      Field
			op         Operator
			value      string
		)
		if err := rows.Scan(&id, &ruleID, &field, &op, &value); err != nil {
			return err
		}
		if rule, ok := byID[ruleID]; ok {
			rule.Conditions = append(rule.Conditions, ParseCondition(id, field, op, value))
		}
	}
	return rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+`
		FROM business_rule WHERE active ORDER BY priority, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Rule
	byID := make(map[int64]*Rule)
	for rows.Next() {
		e, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadConditions(ctx, byID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Rule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM business_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+`
		FROM business_rule ORDER BY priority, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Rule
	byID := make(map[int64]*Rule)
	for rows.Next() {
		e, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadConditions(ctx, byID); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
