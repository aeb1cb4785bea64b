package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
)

const (
	sqlInsertChannelMetadata = `
		INSERT INTO channel_metadata (
			channel_id, channel_name, channel_title, channel_birthdate, channel_bio,
			num_subscribers, data_source, checkup_time, api_response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), $9)
		ON CONFLICT DO NOTHING`

	sqlUpdateChannelMetadata = `
		UPDATE channel_metadata SET
			channel_name = CASE
				WHEN EXISTS (
					SELECT 1 FROM channel_metadata other
					WHERE other.channel_name = $2 AND other.channel_id <> $1
				) THEN channel_metadata.channel_name
				ELSE $2
			END,
			channel_title = $3,
			channel_birthdate = $4,
			channel_bio = $5,
			num_subscribers = $6,
			data_source = $7,
			checkup_time = COALESCE($8, now()),
			api_response = $9
		WHERE channel_id = $1`

	sqlSelectChannelMetadata = `
		SELECT channel_id, channel_name, channel_title, channel_birthdate, channel_bio,
		       num_subscribers, data_source, checkup_time, api_response
		FROM channel_metadata`

	errFmtQueryChannelMetadata = "query channel metadata: %w"
)

var channelMetadataWriter = tableWriter[domain.ChannelMetadata, int64]{
	table:     "channel_metadata",
	key:       domain.ChannelMetadata.Key,
	insertSQL: sqlInsertChannelMetadata,
	updateSQL: sqlUpdateChannelMetadata,
	args: func(m domain.ChannelMetadata) []any {
		return []any{
			m.ChannelID,
			toText(m.ChannelName),
			toText(m.ChannelTitle),
			toTimestamptz(m.ChannelBirthdate),
			toText(m.ChannelBio),
			pgtype.Int4{Int32: safeIntToInt32(m.NumSubscribers), Valid: true},
			dataSourceOrDefault(m.DataSource),
			toTimestamptz(m.CheckupTime),
			jsonPayload(m.APIResponse),
		}
	},
}

func dataSourceOrDefault(s string) string {
	if s == "" {
		return domain.DataSourceTelegramAPI
	}

	return s
}

// SaveChannelMetadata stores channel snapshots keyed on channel_id.
func (db *DB) SaveChannelMetadata(ctx context.Context, records []domain.ChannelMetadata, policy DuplicatePolicy) (domain.SaveResult, error) {
	w := channelMetadataWriter
	w.existing = db.existingChannelIDs

	return save(ctx, db.Pool, db.Logger, w, records, policy)
}

func (db *DB) existingChannelIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	rows, err := db.Pool.Query(ctx, `SELECT channel_id FROM channel_metadata WHERE channel_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf(errFmtQueryChannelMetadata, err)
	}

	return collectKeys(rows, func(r pgx.Rows) (int64, error) {
		var id int64
		if err := r.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan channel id: %w", err)
		}

		return id, nil
	})
}

func scanChannelMetadata(row pgx.Row) (domain.ChannelMetadata, error) {
	var (
		m           domain.ChannelMetadata
		name, title pgtype.Text
		bio         pgtype.Text
		birthdate   pgtype.Timestamptz
		subscribers pgtype.Int4
		checkup     pgtype.Timestamptz
	)

	if err := row.Scan(&m.ChannelID, &name, &title, &birthdate, &bio, &subscribers, &m.DataSource, &checkup, &m.APIResponse); err != nil {
		return m, err //nolint:wrapcheck // callers wrap with query context
	}

	m.ChannelName = fromText(name)
	m.ChannelTitle = fromText(title)
	m.ChannelBio = fromText(bio)
	m.ChannelBirthdate = fromTimestamptz(birthdate)
	m.CheckupTime = fromTimestamptz(checkup)

	if subscribers.Valid {
		m.NumSubscribers = int(subscribers.Int32)
	}

	return m, nil
}

// ChannelMetadata returns the stored snapshot of one channel.
func (db *DB) ChannelMetadata(ctx context.Context, channelID int64) (domain.ChannelMetadata, error) {
	m, err := scanChannelMetadata(db.Pool.QueryRow(ctx, sqlSelectChannelMetadata+` WHERE channel_id = $1`, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m, fmt.Errorf("channel %d: %w", channelID, apperrors.ErrNotFound)
		}

		return m, fmt.Errorf(errFmtQueryChannelMetadata, err)
	}

	return m, nil
}

// SeedMetadata returns metadata of the seed channels, most subscribed first.
func (db *DB) SeedMetadata(ctx context.Context, seedLists []string) ([]domain.ChannelMetadata, error) {
	rows, err := db.Pool.Query(ctx, sqlSelectChannelMetadata+`
		WHERE channel_id IN (SELECT channel_id FROM seeds WHERE seed_list = ANY($1))
		ORDER BY num_subscribers DESC NULLS LAST, channel_id
	`, seedLists)
	if err != nil {
		return nil, fmt.Errorf(errFmtQueryChannelMetadata, err)
	}
	defer rows.Close()

	var out []domain.ChannelMetadata

	for rows.Next() {
		m, err := scanChannelMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel metadata: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel metadata: %w", err)
	}

	return out, nil
}

// ChannelIDsByNames maps lower-case handles to stored channel ids. Unknown handles are absent.
func (db *DB) ChannelIDsByNames(ctx context.Context, names []string) (map[string]int64, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT lower(channel_name), channel_id FROM channel_metadata WHERE lower(channel_name) = ANY($1)
	`, names)
	if err != nil {
		return nil, fmt.Errorf(errFmtQueryChannelMetadata, err)
	}
	defer rows.Close()

	out := make(map[string]int64, len(names))

	for rows.Next() {
		var (
			name string
			id   int64
		)

		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scan channel id by name: %w", err)
		}

		out[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel ids: %w", err)
	}

	return out, nil
}

// ChannelNames maps channel ids to handles, preferring seed names over metadata names.
func (db *DB) ChannelNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT ON (channel_id) channel_id, channel_name
		FROM (
			SELECT channel_id, channel_name, 0 AS prio FROM seeds WHERE channel_id = ANY($1)
			UNION ALL
			SELECT channel_id, channel_name, 1 AS prio FROM channel_metadata
			WHERE channel_id = ANY($1) AND channel_name IS NOT NULL
		) names
		ORDER BY channel_id, prio
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query channel names: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))

	for rows.Next() {
		var (
			id   int64
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan channel name: %w", err)
		}

		out[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel names: %w", err)
	}

	return out, nil
}
