package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

// StartRetrievalRun records the beginning of a retrieval command.
func (db *DB) StartRetrievalRun(ctx context.Context, run domain.RetrievalRun) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO retrieval_runs (id, kind, seed_list, started_at, status)
		VALUES ($1, $2, $3, COALESCE($4, now()), $5)
	`, toUUID(run.ID), run.Kind, run.SeedList, toTimestamptz(run.StartedAt), domain.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("insert retrieval run: %w", err)
	}

	return nil
}

// FinishRetrievalRun stores the outcome of a retrieval command.
func (db *DB) FinishRetrievalRun(ctx context.Context, run domain.RetrievalRun) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE retrieval_runs
		SET finished_at = COALESCE($2, now()), channels = $3, records = $4, status = $5, error = $6
		WHERE id = $1
	`, toUUID(run.ID), toTimestamptz(run.FinishedAt), run.Channels, run.Records, run.Status, toText(run.Error))
	if err != nil {
		return fmt.Errorf("update retrieval run: %w", err)
	}

	return nil
}

// RecentRetrievalRuns lists the latest runs of a seed list, newest first.
func (db *DB) RecentRetrievalRuns(ctx context.Context, seedList string, limit int) ([]domain.RetrievalRun, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, kind, seed_list, started_at, finished_at, channels, records, status, error
		FROM retrieval_runs
		WHERE seed_list = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, seedList, limit)
	if err != nil {
		return nil, fmt.Errorf("query retrieval runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievalRun

	for rows.Next() {
		var (
			run      domain.RetrievalRun
			id       pgtype.UUID
			started  pgtype.Timestamptz
			finished pgtype.Timestamptz
			channels int32
			records  int32
			errText  pgtype.Text
		)

		if err := rows.Scan(&id, &run.Kind, &run.SeedList, &started, &finished, &channels, &records, &run.Status, &errText); err != nil {
			return nil, fmt.Errorf("scan retrieval run: %w", err)
		}

		run.ID = fromUUID(id)
		run.StartedAt = fromTimestamptz(started)
		run.FinishedAt = fromTimestamptz(finished)
		run.Channels = int(channels)
		run.Records = int(records)
		run.Error = fromText(errText)

		out = append(out, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retrieval runs: %w", err)
	}

	return out, nil
}
