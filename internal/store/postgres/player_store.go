package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpredict/marketd/internal/domain"
)

// PlayerStore implements domain.PlayerStore using PostgreSQL.
type PlayerStore struct {
	pool *pgxpool.Pool
}

// NewPlayerStore creates a new PlayerStore backed by the given pool.
func NewPlayerStore(pool *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{pool: pool}
}

// Insert journals a newly registered player.
func (s *PlayerStore) Insert(ctx context.Context, p domain.Player) error {
	const query = `
		INSERT INTO players (id, name, locked, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, string(p.ID), p.Name, p.Locked, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert player %s: %w", p.ID, err)
	}
	return nil
}

// SetLocked journals a lock flag change.
func (s *PlayerStore) SetLocked(ctx context.Context, id domain.PlayerID, locked bool) error {
	const query = `UPDATE players SET locked = $2 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, string(id), locked); err != nil {
		return fmt.Errorf("postgres: set player %s locked: %w", id, err)
	}
	return nil
}

// GetByID returns the journaled player record.
func (s *PlayerStore) GetByID(ctx context.Context, id domain.PlayerID) (domain.Player, error) {
	const query = `SELECT id, name, locked, created_at FROM players WHERE id = $1`

	var p domain.Player
	err := s.pool.QueryRow(ctx, query, string(id)).Scan(&p.ID, &p.Name, &p.Locked, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("postgres: get player %s: %w", id, err)
	}
	return p, nil
}

// List returns registered players in registration order.
func (s *PlayerStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Player, error) {
	query := `SELECT id, name, locked, created_at FROM players ORDER BY created_at ASC`
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
		return nil, fmt.Errorf("postgres: list players: %w", err)
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Locked, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
