package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpredict/marketd/internal/domain"
)

// ConditionStore implements domain.ConditionStore using PostgreSQL.
type ConditionStore struct {
	pool *pgxpool.Pool
}

// NewConditionStore creates a new ConditionStore backed by the given pool.
func NewConditionStore(pool *pgxpool.Pool) *ConditionStore {
	return &ConditionStore{pool: pool}
}

const conditionSelectCols = `id, description, expiry, state, created_at, resolved_at`

// Insert journals a newly registered condition.
func (s *ConditionStore) Insert(ctx context.Context, c domain.Condition) error {
	const query = `
		INSERT INTO conditions (id, description, expiry, state, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		string(c.ID), c.Description, c.Expiry, string(c.State), c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert condition %s: %w", c.ID, err)
	}
	return nil
}

// MarkResolved journals a condition's terminal transition.
func (s *ConditionStore) MarkResolved(ctx context.Context, id domain.ConditionID, state domain.ConditionState, at time.Time) error {
	const query = `UPDATE conditions SET state = $2, resolved_at = $3 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, string(id), string(state), at)
	if err != nil {
		return fmt.Errorf("postgres: mark condition %s resolved: %w", id, err)
	}
	return nil
}

// GetByID returns the journaled condition record.
func (s *ConditionStore) GetByID(ctx context.Context, id domain.ConditionID) (domain.Condition, error) {
	const query = `SELECT ` + conditionSelectCols + ` FROM conditions WHERE id = $1`

	var c domain.Condition
	err := s.pool.QueryRow(ctx, query, string(id)).Scan(
		&c.ID, &c.Description, &c.Expiry, &c.State, &c.CreatedAt, &c.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Condition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Condition{}, fmt.Errorf("postgres: get condition %s: %w", id, err)
	}
	return c, nil
}

// ListOpen returns conditions still in the pending state, newest first.
func (s *ConditionStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Condition, error) {
	query := `SELECT ` + conditionSelectCols + ` FROM conditions WHERE state = 'pending' ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open conditions: %w", err)
	}
	defer rows.Close()

	var out []domain.Condition
	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(&c.ID, &c.Description, &c.Expiry, &c.State, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan condition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
