package reader

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
)

// ExtractChannelMetadata flattens a channels.getFullChannel response.
func ExtractChannelMetadata(full *tg.MessagesChatFull, handle string, checkedAt time.Time) (domain.ChannelMetadata, error) {
	if full == nil {
		return domain.ChannelMetadata{}, fmt.Errorf("%s: %w", handle, apperrors.ErrEmptyResponse)
	}

	channelFull, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return domain.ChannelMetadata{}, fmt.Errorf("%s: %w", handle, apperrors.ErrNotAChannel)
	}

	channel := findChannel(full.Chats, channelFull.ID)
	if channel == nil {
		return domain.ChannelMetadata{}, fmt.Errorf("%s: channel %d missing from chats: %w", handle, channelFull.ID, apperrors.ErrEmptyResponse)
	}

	subscribers, _ := channelFull.GetParticipantsCount()

	return domain.ChannelMetadata{
		ChannelID:        channelFull.ID,
		ChannelName:      handle,
		ChannelTitle:     channel.Title,
		ChannelBirthdate: time.Unix(int64(channel.Date), 0).UTC(),
		ChannelBio:       channelFull.About,
		NumSubscribers:   subscribers,
		DataSource:       domain.DataSourceTelegramAPI,
		CheckupTime:      checkedAt,
		APIResponse:      marshalResponse(full),
	}, nil
}

// findChannel prefers the chat matching id and falls back to the first channel listed.
func findChannel(chats []tg.ChatClass, id int64) *tg.Channel {
	var first *tg.Channel

	for _, chat := range chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}

		if ch.ID == id {
			return ch
		}

		if first == nil {
			first = ch
		}
	}

	return first
}

// ExtractMessage flattens a channel post. Service and empty messages, and posts
// outside a channel, are rejected.
func ExtractMessage(m tg.MessageClass, checkedAt time.Time) (domain.ChannelMessage, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return domain.ChannelMessage{}, false
	}

	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return domain.ChannelMessage{}, false
	}

	rec := domain.ChannelMessage{
		ChannelID:       peer.ChannelID,
		MessageID:       msg.ID,
		MessageDatetime: time.Unix(int64(msg.Date), 0).UTC(),
		MessageText:     msg.Message,
		DataSource:      domain.DataSourceTelegramAPI,
		CheckupTime:     checkedAt,
		APIResponse:     marshalResponse(msg),
	}

	if views, ok := msg.GetViews(); ok {
		rec.MessageViews = &views
	}

	if forwards, ok := msg.GetForwards(); ok {
		rec.MessageForwards = &forwards
	}

	if fwd, ok := msg.GetFwdFrom(); ok {
		rec.MessageIsForward = true

		if from, ok := fwd.GetFromID(); ok {
			if source, ok := from.(*tg.PeerChannel); ok {
				sourceID := source.ChannelID
				rec.ForwardeeChannelID = &sourceID

				if post, ok := fwd.GetChannelPost(); ok {
					rec.ForwardeeMessageID = &post
				}
			}
		}
	}

	return rec, true
}

// historyMessages unwraps a messages.getHistory response.
// The second result is false when the server reports the history as not modified.
func historyMessages(res tg.MessagesMessagesClass) ([]tg.MessageClass, bool) {
	switch h := res.(type) {
	case *tg.MessagesMessages:
		return h.Messages, true
	case *tg.MessagesMessagesSlice:
		return h.Messages, true
	case *tg.MessagesChannelMessages:
		return h.Messages, true
	default:
		return nil, false
	}
}

func marshalResponse(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}

	return raw
}
