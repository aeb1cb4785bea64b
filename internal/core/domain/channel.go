package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DataSourceTelegramAPI marks records retrieved live from the platform API.
const DataSourceTelegramAPI = "telegram-api"

// Seed links a channel to a named seed list.
type Seed struct {
	ChannelID   int64  `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	SeedList    string `json:"seed_list"`
}

// SeedKey identifies a seed row.
type SeedKey struct {
	ChannelID int64
	SeedList  string
}

func (s Seed) Key() SeedKey {
	return SeedKey{ChannelID: s.ChannelID, SeedList: s.SeedList}
}

// ChannelMetadata is a flattened snapshot of a channel's profile.
type ChannelMetadata struct {
	ChannelID        int64
	ChannelName      string
	ChannelTitle     string
	ChannelBirthdate time.Time
	ChannelBio       string
	NumSubscribers   int
	DataSource       string
	CheckupTime      time.Time
	APIResponse      []byte
}

func (m ChannelMetadata) Key() int64 {
	return m.ChannelID
}

// ChannelProfile is the public view of ChannelMetadata.
type ChannelProfile struct {
	ChannelID        int64     `json:"channel_id"`
	ChannelName      string    `json:"channel_name"`
	ChannelTitle     string    `json:"channel_title"`
	ChannelBirthdate time.Time `json:"channel_birthdate"`
	ChannelBio       string    `json:"channel_bio"`
	NumSubscribers   int       `json:"num_subscribers"`
}

// Public drops raw API payloads and bookkeeping columns.
func (m ChannelMetadata) Public() ChannelProfile {
	return ChannelProfile{
		ChannelID:        m.ChannelID,
		ChannelName:      m.ChannelName,
		ChannelTitle:     m.ChannelTitle,
		ChannelBirthdate: m.ChannelBirthdate,
		ChannelBio:       m.ChannelBio,
		NumSubscribers:   m.NumSubscribers,
	}
}

var handleFolder = cases.Fold()

// NormalizeHandle trims whitespace, a leading @ and a t.me prefix, then case-folds the handle.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	for _, prefix := range []string{"https://", "http://", "t.me/", "telegram.me/"} {
		h = strings.TrimPrefix(h, prefix)
	}

	h = strings.TrimPrefix(h, "@")
	h = strings.TrimSuffix(h, "/")

	return handleFolder.String(h)
}

// NormalizeHandles normalizes handles, dropping empties and duplicates while keeping order.
func NormalizeHandles(handles []string) []string {
	seen := make(map[string]struct{}, len(handles))
	out := make([]string, 0, len(handles))

	for _, raw := range handles {
		h := NormalizeHandle(raw)
		if h == "" {
			continue
		}

		if _, ok := seen[h]; ok {
			continue
		}

		seen[h] = struct{}{}
		out = append(out, h)
	}

	return out
}
