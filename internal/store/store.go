package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS digest_runs (
		id                     uuid PRIMARY KEY,
		input_path             text NOT NULL,
		output_dir             text NOT NULL,
		conversations_seen     integer NOT NULL,
		conversations_rendered integer NOT NULL,
		conversations_skipped  integer NOT NULL,
		files_written          integer NOT NULL,
		dry_run                boolean NOT NULL,
		started_at             timestamptz NOT NULL,
		finished_at            timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_digests (
		date          text PRIMARY KEY,
		content       text NOT NULL,
		conversations integer NOT NULL,
		run_id        uuid NOT NULL,
		updated_at    timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the digest tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
