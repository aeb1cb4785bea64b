package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	"github.com/lueurxax/channel-observatory/internal/process/dedup"
)

// tableWriter describes how one table's records are keyed and written.
type tableWriter[T any, K comparable] struct {
	table     string
	key       func(T) K
	existing  func(ctx context.Context, keys []K) (map[K]struct{}, error)
	insertSQL string
	updateSQL string
	args      func(T) []any
}

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// save partitions records against stored keys, inserts the new ones and,
// under DuplicatesUpdate, rewrites the stored ones. All writes share one transaction.
func save[T any, K comparable](
	ctx context.Context,
	pool txBeginner,
	logger *zerolog.Logger,
	w tableWriter[T, K],
	records []T,
	policy DuplicatePolicy,
) (domain.SaveResult, error) {
	var result domain.SaveResult

	if len(records) == 0 {
		return result, nil
	}

	stored, err := w.existing(ctx, dedup.Keys(records, w.key))
	if err != nil {
		return result, fmt.Errorf("select existing %s keys: %w", w.table, err)
	}

	part := dedup.Partition(records, w.key, stored, logger)
	result.Duplicates = len(part.Existing) + part.DroppedCount

	batch := &pgx.Batch{}
	for _, rec := range part.New {
		batch.Queue(w.insertSQL, w.args(rec)...)
	}

	update := policy == DuplicatesUpdate && w.updateSQL != ""
	if update {
		for _, rec := range part.Existing {
			batch.Queue(w.updateSQL, w.args(rec)...)
		}
	}

	if batch.Len() == 0 {
		return result, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin %s tx: %w", w.table, err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	br := tx.SendBatch(ctx, batch)

	for range part.New {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return domain.SaveResult{}, fmt.Errorf("insert %s: %w", w.table, execErr)
		}

		// ON CONFLICT DO NOTHING: a concurrent writer may have won the race.
		if tag.RowsAffected() == 0 {
			result.Duplicates++
			continue
		}

		result.Inserted++
	}

	if update {
		for range part.Existing {
			tag, execErr := br.Exec()
			if execErr != nil {
				_ = br.Close()
				return domain.SaveResult{}, fmt.Errorf("update %s: %w", w.table, execErr)
			}

			result.Updated += int(tag.RowsAffected())
		}
	}

	if err := br.Close(); err != nil {
		return domain.SaveResult{}, fmt.Errorf("close %s batch: %w", w.table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SaveResult{}, fmt.Errorf("commit %s: %w", w.table, err)
	}

	return result, nil
}

func collectKeys[K comparable](rows pgx.Rows, scan func(pgx.Rows) (K, error)) (map[K]struct{}, error) {
	defer rows.Close()

	keys := make(map[K]struct{})

	for rows.Next() {
		k, err := scan(rows)
		if err != nil {
			return nil, err
		}

		keys[k] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}

	return keys, nil
}
