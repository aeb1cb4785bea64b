package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

const (
	// seedChannelFilter restricts a query to channels of the seed lists bound to $1.
	seedChannelFilter = `channel_id IN (SELECT channel_id FROM seeds WHERE seed_list = ANY($1))`

	errFmtIterateTimeCounts = "iterate time counts: %w"
)

// BirthChart counts seed channels by creation date bucket.
func (db *DB) BirthChart(ctx context.Context, seedLists []string, unit domain.TimeUnit) ([]domain.TimeCount, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT date_trunc($2::text, channel_birthdate) AS bucket, count(*)
		FROM channel_metadata
		WHERE `+seedChannelFilter+` AND channel_birthdate IS NOT NULL
		GROUP BY bucket
		ORDER BY bucket
	`, seedLists, string(unit))
	if err != nil {
		return nil, fmt.Errorf("query birth chart: %w", err)
	}

	return scanTimeCounts(rows)
}

// TimeSeries counts seed channel messages by date bucket within the range.
func (db *DB) TimeSeries(ctx context.Context, seedLists []string, r domain.DateRange, unit domain.TimeUnit) ([]domain.TimeCount, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT date_trunc($2::text, message_datetime) AS bucket, count(*)
		FROM channel_messages
		WHERE `+seedChannelFilter+`
		  AND message_datetime >= $3 AND message_datetime <= $4
		GROUP BY bucket
		ORDER BY bucket
	`, seedLists, string(unit), r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}

	return scanTimeCounts(rows)
}

func scanTimeCounts(rows pgx.Rows) ([]domain.TimeCount, error) {
	defer rows.Close()

	var out []domain.TimeCount

	for rows.Next() {
		var (
			bucket pgtype.Timestamptz
			count  int64
		)

		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan time count: %w", err)
		}

		out = append(out, domain.TimeCount{Bucket: fromTimestamptz(bucket), Count: int(count)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errFmtIterateTimeCounts, err)
	}

	return out, nil
}

// TopMessages returns the most viewed seed channel messages in the range.
func (db *DB) TopMessages(ctx context.Context, seedLists []string, r domain.DateRange, limit int) ([]domain.TopMessage, error) {
	if limit <= 0 {
		limit = DefaultTopMessagesLimit
	}

	if limit > maxTopMessagesLimit {
		limit = maxTopMessagesLimit
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT m.channel_id, COALESCE(n.channel_name, ''), m.message_id, m.message_datetime,
		       m.message_views, m.message_forwards, m.message_text,
		       m.forwardee_channel_id, m.forwardee_message_id, m.message_is_forward
		FROM channel_messages m
		LEFT JOIN LATERAL (
			SELECT s.channel_name FROM seeds s
			WHERE s.channel_id = m.channel_id AND s.seed_list = ANY($1)
			ORDER BY s.seed_list
			LIMIT 1
		) n ON TRUE
		WHERE m.`+seedChannelFilter+`
		  AND m.message_views IS NOT NULL
		  AND m.message_datetime >= $2 AND m.message_datetime <= $3
		ORDER BY m.message_views DESC, m.message_datetime DESC
		LIMIT $4
	`, seedLists, r.Start, r.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query top messages: %w", err)
	}
	defer rows.Close()

	var out []domain.TopMessage

	for rows.Next() {
		var (
			m               domain.TopMessage
			messageID       int32
			datetime        pgtype.Timestamptz
			views, forwards pgtype.Int4
			text            pgtype.Text
			fwdChannel      pgtype.Int8
			fwdMessage      pgtype.Int4
		)

		if err := rows.Scan(&m.ChannelID, &m.ChannelName, &messageID, &datetime, &views, &forwards, &text,
			&fwdChannel, &fwdMessage, &m.MessageIsForward); err != nil {
			return nil, fmt.Errorf("scan top message: %w", err)
		}

		m.MessageID = int(messageID)
		m.MessageDatetime = fromTimestamptz(datetime)
		m.MessageViews = fromInt4Ptr(views)
		m.MessageForwards = fromInt4Ptr(forwards)
		m.MessageText = fromText(text)
		m.ForwardeeChannelID = fromInt8Ptr(fwdChannel)
		m.ForwardeeMessageID = fromInt4Ptr(fwdMessage)
		m.URL = domain.MessageURL(m.ChannelName, m.MessageID)

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top messages: %w", err)
	}

	return out, nil
}

// ForwardEdges counts, per channel, forwarded posts grouped by originating channel.
func (db *DB) ForwardEdges(ctx context.Context, channelIDs []int64, r domain.DateRange) ([]domain.ForwardEdge, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel_id, forwardee_channel_id, count(*)
		FROM channel_messages
		WHERE channel_id = ANY($1)
		  AND forwardee_channel_id IS NOT NULL
		  AND message_datetime >= $2 AND message_datetime <= $3
		GROUP BY channel_id, forwardee_channel_id
		ORDER BY channel_id, count(*) DESC
	`, channelIDs, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query forward edges: %w", err)
	}
	defer rows.Close()

	var out []domain.ForwardEdge

	for rows.Next() {
		var (
			e     domain.ForwardEdge
			count int64
		)

		if err := rows.Scan(&e.ChannelID, &e.ForwardeeChannelID, &count); err != nil {
			return nil, fmt.Errorf("scan forward edge: %w", err)
		}

		e.Weight = int(count)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forward edges: %w", err)
	}

	return out, nil
}

// LinkSources returns the text and raw payload of messages that may carry links.
func (db *DB) LinkSources(ctx context.Context, channelIDs []int64, r domain.DateRange) ([]domain.LinkSource, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT channel_id, COALESCE(message_text, ''), api_response
		FROM channel_messages
		WHERE channel_id = ANY($1)
		  AND message_datetime >= $2 AND message_datetime <= $3
		  AND (message_text ~* '(https?://|www\.)' OR api_response::text ~* '"url"')
		ORDER BY channel_id, message_id
	`, channelIDs, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("query link sources: %w", err)
	}
	defer rows.Close()

	var out []domain.LinkSource

	for rows.Next() {
		var s domain.LinkSource
		if err := rows.Scan(&s.ChannelID, &s.MessageText, &s.APIResponse); err != nil {
			return nil, fmt.Errorf("scan link source: %w", err)
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link sources: %w", err)
	}

	return out, nil
}
