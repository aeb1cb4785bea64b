package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

const (
	sqlInsertSeed = `
		INSERT INTO seeds (channel_id, channel_name, seed_list)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, seed_list) DO NOTHING`

	sqlUpdateSeed = `
		UPDATE seeds SET channel_name = $2
		WHERE channel_id = $1 AND seed_list = $3`

	errFmtQuerySeeds = "query seeds: %w"
)

var seedWriter = tableWriter[domain.Seed, domain.SeedKey]{
	table:     "seeds",
	key:       domain.Seed.Key,
	insertSQL: sqlInsertSeed,
	updateSQL: sqlUpdateSeed,
	args: func(s domain.Seed) []any {
		return []any{s.ChannelID, SanitizeUTF8(s.ChannelName), SanitizeUTF8(s.SeedList)}
	},
}

// SaveSeeds stores seed list memberships, skipping (or updating) memberships already present.
func (db *DB) SaveSeeds(ctx context.Context, seeds []domain.Seed, policy DuplicatePolicy) (domain.SaveResult, error) {
	w := seedWriter
	w.existing = db.existingSeedKeys

	return save(ctx, db.Pool, db.Logger, w, seeds, policy)
}

func (db *DB) existingSeedKeys(ctx context.Context, keys []domain.SeedKey) (map[domain.SeedKey]struct{}, error) {
	ids := make([]int64, len(keys))
	lists := make([]string, len(keys))

	for i, k := range keys {
		ids[i] = k.ChannelID
		lists[i] = k.SeedList
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT s.channel_id, s.seed_list
		FROM seeds s
		JOIN unnest($1::bigint[], $2::text[]) AS k(channel_id, seed_list)
		  ON s.channel_id = k.channel_id AND s.seed_list = k.seed_list
	`, ids, lists)
	if err != nil {
		return nil, fmt.Errorf(errFmtQuerySeeds, err)
	}

	return collectKeys(rows, func(r pgx.Rows) (domain.SeedKey, error) {
		var k domain.SeedKey
		if err := r.Scan(&k.ChannelID, &k.SeedList); err != nil {
			return k, fmt.Errorf("scan seed key: %w", err)
		}

		return k, nil
	})
}

// SeedListNames returns the distinct seed list names.
func (db *DB) SeedListNames(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `SELECT DISTINCT seed_list FROM seeds ORDER BY seed_list`)
	if err != nil {
		return nil, fmt.Errorf("query seed list names: %w", err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan seed list name: %w", err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed list names: %w", err)
	}

	return names, nil
}

// SeedListPreview returns the seed rows of the given lists.
func (db *DB) SeedListPreview(ctx context.Context, seedLists []string) ([]domain.Seed, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel_id, channel_name, seed_list
		FROM seeds
		WHERE seed_list = ANY($1)
		ORDER BY seed_list, channel_name
	`, seedLists)
	if err != nil {
		return nil, fmt.Errorf(errFmtQuerySeeds, err)
	}
	defer rows.Close()

	var seeds []domain.Seed

	for rows.Next() {
		var s domain.Seed
		if err := rows.Scan(&s.ChannelID, &s.ChannelName, &s.SeedList); err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}

		seeds = append(seeds, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seeds: %w", err)
	}

	return seeds, nil
}

// SeedChannelIDs returns the distinct channel ids of the given lists.
func (db *DB) SeedChannelIDs(ctx context.Context, seedLists []string) ([]int64, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT channel_id FROM seeds WHERE seed_list = ANY($1) ORDER BY channel_id
	`, seedLists)
	if err != nil {
		return nil, fmt.Errorf(errFmtQuerySeeds, err)
	}
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seed channel id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed channel ids: %w", err)
	}

	return ids, nil
}
