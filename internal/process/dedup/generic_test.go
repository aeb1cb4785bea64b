package dedup

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

func msg(channelID int64, messageID int, text string) domain.ChannelMessage {
	return domain.ChannelMessage{ChannelID: channelID, MessageID: messageID, MessageText: text}
}

func TestDeduplicateByKey(t *testing.T) {
	tests := []struct {
		name      string
		items     []domain.ChannelMessage
		wantTexts []string
	}{
		{
			name:      "empty input",
			items:     []domain.ChannelMessage{},
			wantTexts: nil,
		},
		{
			name:      "distinct keys kept in order",
			items:     []domain.ChannelMessage{msg(1, 1, "a"), msg(1, 2, "b"), msg(2, 1, "c")},
			wantTexts: []string{"a", "b", "c"},
		},
		{
			name:      "first occurrence wins",
			items:     []domain.ChannelMessage{msg(1, 1, "first"), msg(1, 1, "second"), msg(1, 2, "other")},
			wantTexts: []string{"first", "other"},
		},
	}

	logger := zerolog.Nop()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeduplicateByKey(tt.items, domain.ChannelMessage.Key, &logger)

			var texts []string
			for _, m := range got {
				texts = append(texts, m.MessageText)
			}

			assert.Equal(t, tt.wantTexts, texts)
		})
	}
}

func TestPartition(t *testing.T) {
	items := []domain.ChannelMessage{
		msg(1, 1, "stored"),
		msg(1, 2, "new"),
		msg(1, 2, "new again"),
		msg(2, 1, "stored elsewhere"),
	}

	stored := map[domain.MessageKey]struct{}{
		{ChannelID: 1, MessageID: 1}: {},
		{ChannelID: 2, MessageID: 1}: {},
		{ChannelID: 9, MessageID: 9}: {},
	}

	res := Partition(items, domain.ChannelMessage.Key, stored, nil)

	assert.Len(t, res.New, 1)
	assert.Equal(t, "new", res.New[0].MessageText)
	assert.Len(t, res.Existing, 2)
	assert.Equal(t, 1, res.DroppedCount)
}

func TestPartition_NothingStored(t *testing.T) {
	seeds := []domain.Seed{
		{ChannelID: 1, ChannelName: "a", SeedList: "x"},
		{ChannelID: 1, ChannelName: "a", SeedList: "y"},
	}

	res := Partition(seeds, domain.Seed.Key, nil, nil)

	assert.Len(t, res.New, 2)
	assert.Empty(t, res.Existing)
	assert.Zero(t, res.DroppedCount)
}

func TestKeys(t *testing.T) {
	items := []domain.ChannelMessage{msg(1, 1, ""), msg(1, 1, ""), msg(1, 3, "")}

	assert.Equal(t, []domain.MessageKey{{ChannelID: 1, MessageID: 1}, {ChannelID: 1, MessageID: 3}}, Keys(items, domain.ChannelMessage.Key))
}
