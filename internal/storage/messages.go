package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

const (
	sqlInsertChannelMessage = `
		INSERT INTO channel_messages (
			channel_id, message_id, message_datetime, message_views, message_forwards,
			message_text, forwardee_channel_id, forwardee_message_id, message_is_forward,
			data_source, checkup_time, api_response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()), $12)
		ON CONFLICT (channel_id, message_id) DO NOTHING`

	sqlUpdateChannelMessage = `
		UPDATE channel_messages SET
			message_datetime = $3,
			message_views = $4,
			message_forwards = $5,
			message_text = $6,
			forwardee_channel_id = $7,
			forwardee_message_id = $8,
			message_is_forward = $9,
			data_source = $10,
			checkup_time = COALESCE($11, now()),
			api_response = $12
		WHERE channel_id = $1 AND message_id = $2`
)

var channelMessageWriter = tableWriter[domain.ChannelMessage, domain.MessageKey]{
	table:     "channel_messages",
	key:       domain.ChannelMessage.Key,
	insertSQL: sqlInsertChannelMessage,
	updateSQL: sqlUpdateChannelMessage,
	args: func(m domain.ChannelMessage) []any {
		return []any{
			m.ChannelID,
			safeIntToInt32(m.MessageID),
			toTimestamptz(m.MessageDatetime),
			toInt4Ptr(m.MessageViews),
			toInt4Ptr(m.MessageForwards),
			pgtype.Text{String: SanitizeUTF8(m.MessageText), Valid: true},
			toInt8Ptr(m.ForwardeeChannelID),
			toInt4Ptr(m.ForwardeeMessageID),
			m.MessageIsForward,
			dataSourceOrDefault(m.DataSource),
			toTimestamptz(m.CheckupTime),
			jsonPayload(m.APIResponse),
		}
	},
}

// SaveChannelMessages stores messages keyed on (channel_id, message_id).
func (db *DB) SaveChannelMessages(ctx context.Context, records []domain.ChannelMessage, policy DuplicatePolicy) (domain.SaveResult, error) {
	w := channelMessageWriter
	w.existing = db.existingMessageKeys

	return save(ctx, db.Pool, db.Logger, w, records, policy)
}

func (db *DB) existingMessageKeys(ctx context.Context, keys []domain.MessageKey) (map[domain.MessageKey]struct{}, error) {
	channelIDs := make([]int64, len(keys))
	messageIDs := make([]int32, len(keys))

	for i, k := range keys {
		channelIDs[i] = k.ChannelID
		messageIDs[i] = safeIntToInt32(k.MessageID)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT m.channel_id, m.message_id
		FROM channel_messages m
		JOIN unnest($1::bigint[], $2::int[]) AS k(channel_id, message_id)
		  ON m.channel_id = k.channel_id AND m.message_id = k.message_id
	`, channelIDs, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("query channel messages: %w", err)
	}

	return collectKeys(rows, func(r pgx.Rows) (domain.MessageKey, error) {
		var (
			k  domain.MessageKey
			id int32
		)

		if err := r.Scan(&k.ChannelID, &id); err != nil {
			return k, fmt.Errorf("scan message key: %w", err)
		}

		k.MessageID = int(id)

		return k, nil
	})
}

// LatestMessageID returns the newest stored message id of a channel, or 0 when none is stored.
func (db *DB) LatestMessageID(ctx context.Context, channelID int64) (int, error) {
	var id pgtype.Int4

	err := db.Pool.QueryRow(ctx, `
		SELECT max(message_id) FROM channel_messages WHERE channel_id = $1
	`, channelID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("query latest message id: %w", err)
	}

	if !id.Valid {
		return 0, nil
	}

	return int(id.Int32), nil
}
