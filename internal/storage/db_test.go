package db

import (
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "valid", in: "привет", want: "привет"},
		{name: "invalid bytes", in: "a\xffb", want: "ab"},
		{name: "nul byte", in: "a\x00b", want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeUTF8(tt.in))
		})
	}
}

func TestSafeIntToInt32(t *testing.T) {
	assert.Equal(t, int32(math.MaxInt32), safeIntToInt32(math.MaxInt32+10))
	assert.Equal(t, int32(math.MinInt32), safeIntToInt32(math.MinInt32-10))
	assert.Equal(t, int32(7), safeIntToInt32(7))
}

func TestNullableConversions(t *testing.T) {
	assert.False(t, toInt4Ptr(nil).Valid)
	assert.Nil(t, fromInt4Ptr(pgtype.Int4{}))

	v := 12
	got := fromInt4Ptr(toInt4Ptr(&v))
	require.NotNil(t, got)
	assert.Equal(t, 12, *got)

	assert.False(t, toInt8Ptr(nil).Valid)
	assert.False(t, toTimestamptz(time.Time{}).Valid)
	assert.Equal(t, "{}", string(jsonPayload(nil)))
}

func TestChannelMessageWriterArgs(t *testing.T) {
	views := 100
	fwdChannel := int64(555)
	fwdMessage := 9

	args := channelMessageWriter.args(domain.ChannelMessage{
		ChannelID:          1,
		MessageID:          2,
		MessageViews:       &views,
		MessageText:        "hi\x00",
		ForwardeeChannelID: &fwdChannel,
		ForwardeeMessageID: &fwdMessage,
		MessageIsForward:   true,
	})

	require.Len(t, args, 12)
	assert.Equal(t, int64(1), args[0])
	assert.Equal(t, int32(2), args[1])
	assert.Equal(t, pgtype.Int4{Int32: 100, Valid: true}, args[3])
	assert.Equal(t, pgtype.Int4{}, args[4])
	assert.Equal(t, pgtype.Text{String: "hi", Valid: true}, args[5])
	assert.Equal(t, pgtype.Int8{Int64: 555, Valid: true}, args[6])
	assert.Equal(t, true, args[8])
	assert.Equal(t, domain.DataSourceTelegramAPI, args[9])
	assert.Equal(t, []byte("{}"), args[11])
}

func TestChannelMetadataWriterArgs(t *testing.T) {
	args := channelMetadataWriter.args(domain.ChannelMetadata{
		ChannelID:      10,
		ChannelName:    "example",
		NumSubscribers: 3,
		DataSource:     "csv-import",
		APIResponse:    []byte(`{"a":1}`),
	})

	require.Len(t, args, 9)
	assert.Equal(t, int64(10), args[0])
	assert.Equal(t, pgtype.Text{String: "example", Valid: true}, args[1])
	assert.Equal(t, pgtype.Text{}, args[2])
	assert.Equal(t, "csv-import", args[6])
	assert.Equal(t, []byte(`{"a":1}`), args[8])
}

func TestSeedWriterKey(t *testing.T) {
	s := domain.Seed{ChannelID: 1, ChannelName: "a", SeedList: "list"}

	assert.Equal(t, domain.SeedKey{ChannelID: 1, SeedList: "list"}, seedWriter.key(s))
}
