package domain

import (
	"fmt"
	"time"
)

// ChannelMessage is a flattened channel post.
type ChannelMessage struct {
	ChannelID          int64
	MessageID          int
	MessageDatetime    time.Time
	MessageViews       *int
	MessageForwards    *int
	MessageText        string
	ForwardeeChannelID *int64
	ForwardeeMessageID *int
	MessageIsForward   bool
	DataSource         string
	CheckupTime        time.Time
	APIResponse        []byte
}

// MessageKey identifies a message row.
type MessageKey struct {
	ChannelID int64
	MessageID int
}

func (m ChannelMessage) Key() MessageKey {
	return MessageKey{ChannelID: m.ChannelID, MessageID: m.MessageID}
}

// TopMessage is a ranked message with its public link.
type TopMessage struct {
	URL                string    `json:"url"`
	ChannelID          int64     `json:"channel_id"`
	ChannelName        string    `json:"channel_name"`
	MessageID          int       `json:"message_id"`
	MessageDatetime    time.Time `json:"message_datetime"`
	MessageViews       *int      `json:"message_views"`
	MessageForwards    *int      `json:"message_forwards"`
	MessageText        string    `json:"message_text"`
	ForwardeeChannelID *int64    `json:"forwardee_channel_id,omitempty"`
	ForwardeeMessageID *int      `json:"forwardee_message_id,omitempty"`
	MessageIsForward   bool      `json:"message_is_forward"`
}

// MessageURL returns the public post link for a channel message.
func MessageURL(channelName string, messageID int) string {
	return fmt.Sprintf("https://t.me/%s/%d", channelName, messageID)
}

// LinkSource carries the fields that URLs are extracted from.
type LinkSource struct {
	ChannelID   int64
	MessageText string
	APIResponse []byte
}
