package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/chatdigest/internal/digest"
)

// Run is the persisted record of one conversion run.
type Run struct {
	ID                    uuid.UUID
	InputPath             string
	OutputDir             string
	ConversationsSeen     int
	ConversationsRendered int
	ConversationsSkipped  int
	FilesWritten          int
	DryRun                bool
	StartedAt             time.Time
	FinishedAt            time.Time
}

// SaveDigest upserts the rendered digest for its date. A later run replaces the
// content, matching the file on disk.
func (s *Store) SaveDigest(ctx context.Context, runID uuid.UUID, d digest.Digest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_digests (date, content, conversations, run_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (date) DO UPDATE
		SET content = EXCLUDED.content,
		    conversations = EXCLUDED.conversations,
		    run_id = EXCLUDED.run_id,
		    updated_at = now()`,
		d.Date, d.Render(), d.Conversations, runID,
	)
	if err != nil {
		return fmt.Errorf("upsert daily_digest %s: %w", d.Date, err)
	}
	return nil
}

// RecordRun persists a finished run.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO digest_runs (id, input_path, output_dir, conversations_seen, conversations_rendered,
			conversations_skipped, files_written, dry_run, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.InputPath, run.OutputDir, run.ConversationsSeen, run.ConversationsRendered,
		run.ConversationsSkipped, run.FilesWritten, run.DryRun, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert digest_run: %w", err)
	}
	return nil
}

// ListDates returns the dates with a stored digest, ascending.
func (s *Store) ListDates(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT date FROM daily_digests ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect dates: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Get returns the stored Markdown for date.
func (s *Store) Get(ctx context.Context, date string) (string, error) {
	if _, err := digest.ParseDate(date); err != nil {
		return "", fmt.Errorf("%w: %q", digest.ErrInvalidDate, date)
	}

	var content string
	err := s.pool.QueryRow(ctx, `SELECT content FROM daily_digests WHERE date = $1`, date).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", digest.ErrNotFound, date)
		}
		return "", fmt.Errorf("query digest %s: %w", date, err)
	}
	return content, nil
}
