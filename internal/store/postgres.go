package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists snapshots in Postgres. One row per room, upserted on
// every save so the row always holds the latest whole-state snapshot.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to the given DSN.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Migrate creates the snapshot table if it does not exist.
func (p *PGStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_rooms (
			room_code  text PRIMARY KEY,
			state      jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate game_rooms: %w", err)
	}
	return nil
}

func (p *PGStore) Save(ctx context.Context, code string, snapshot []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO game_rooms (room_code, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (room_code) DO UPDATE
		  SET state = EXCLUDED.state,
		      updated_at = now()
	`, code, snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (p *PGStore) Load(ctx context.Context, code string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM game_rooms WHERE room_code = $1`, code).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

func (p *PGStore) Delete(ctx context.Context, code string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM game_rooms WHERE room_code = $1`, code); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PGStore) Close() {
	p.pool.Close()
}
