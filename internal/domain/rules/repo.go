package rules

import "context"

// Repository is the read-only lookup boundary for business rules.
type Repository interface {
	ListActive(ctx context.Context) ([]*Rule, error)
	List(ctx context.Context, limit, offset int) ([]*Rule, int, error)
}
