package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpredict/marketd/internal/domain"
)

// IOUStore implements domain.IOUStore using PostgreSQL.
type IOUStore struct {
	pool *pgxpool.Pool
}

// NewIOUStore creates a new IOUStore backed by the given connection pool.
func NewIOUStore(pool *pgxpool.Pool) *IOUStore {
	return &IOUStore{pool: pool}
}

const iouSelectCols = `id, issuer, holder, amount, condition_id, negated, state, created_at`

func scanIOURows(rows pgx.Rows) ([]domain.IOU, error) {
	var ious []domain.IOU
	for rows.Next() {
		var (
			iou     domain.IOU
			condID  *string
			negated bool
		)
		if err := rows.Scan(
			&iou.ID, &iou.Issuer, &iou.Holder, &iou.Amount,
			&condID, &negated, &iou.State, &iou.CreatedAt,
		); err != nil {
			return nil, err
		}
		if condID != nil {
			iou.Condition = &domain.CondRef{ID: domain.ConditionID(*condID), Negated: negated}
		}
		ious = append(ious, iou)
	}
	return ious, rows.Err()
}

// Insert journals a freshly minted or split-off IOU.
func (s *IOUStore) Insert(ctx context.Context, iou domain.IOU) error {
	var (
		condID  *string
		negated bool
	)
	if iou.Condition != nil {
		id := string(iou.Condition.ID)
		condID = &id
		negated = iou.Condition.Negated
	}

	const query = `
		INSERT INTO ious (id, issuer, holder, amount, condition_id, negated, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		string(iou.ID), string(iou.Issuer), string(iou.Holder), int64(iou.Amount),
		condID, negated, string(iou.State), iou.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert iou %s: %w", iou.ID, err)
	}
	return nil
}

// UpdateState journals a state transition. Settlement clears the condition
// reference alongside the move to the settled state.
func (s *IOUStore) UpdateState(ctx context.Context, id domain.IOUID, state domain.IOUState) error {
	query := `UPDATE ious SET state = $2 WHERE id = $1`
	if state == domain.IOUSettled {
		query = `UPDATE ious SET state = $2, condition_id = NULL, negated = FALSE WHERE id = $1`
	}
	if _, err := s.pool.Exec(ctx, query, string(id), string(state)); err != nil {
		return fmt.Errorf("postgres: update iou %s state: %w", id, err)
	}
	return nil
}

// UpdateHolder journals a full transfer, which keeps the id and changes the
// holder in place.
func (s *IOUStore) UpdateHolder(ctx context.Context, id domain.IOUID, holder domain.PlayerID, amount domain.Dollars) error {
	const query = `UPDATE ious SET holder = $2, amount = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, string(id), string(holder), int64(amount)); err != nil {
		return fmt.Errorf("postgres: update iou %s holder: %w", id, err)
	}
	return nil
}

// ListByPlayer returns IOUs the player issued or holds, newest first.
func (s *IOUStore) ListByPlayer(ctx context.Context, player domain.PlayerID, opts domain.ListOpts) ([]domain.IOU, error) {
	query := `SELECT ` + iouSelectCols + ` FROM ious WHERE (issuer = $1 OR holder = $1) ORDER BY created_at DESC`
	args := []any{string(player)}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list ious by player: %w", err)
	}
	defer rows.Close()

	ious, err := scanIOURows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ious by player: %w", err)
	}
	return ious, nil
}

// ListByCondition returns every IOU journaled against the condition.
func (s *IOUStore) ListByCondition(ctx context.Context, cond domain.ConditionID) ([]domain.IOU, error) {
	query := `SELECT ` + iouSelectCols + ` FROM ious WHERE condition_id = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, string(cond))
	if err != nil {
		return nil, fmt.Errorf("postgres: list ious by condition: %w", err)
	}
	defer rows.Close()

	ious, err := scanIOURows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ious by condition: %w", err)
	}
	return ious, nil
}
