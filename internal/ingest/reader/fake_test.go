package reader

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

const (
	testSeedList     = "news"
	testSaveSeeds    = "SaveSeeds"
	testSaveMetadata = "SaveChannelMetadata"
	testSaveMessages = "SaveChannelMessages"
	testSeedPreview  = "SeedListPreview"
	testIDsByNames   = "ChannelIDsByNames"
	testLatestID     = "LatestMessageID"
	testStartRun     = "StartRetrievalRun"
	testFinishRun    = "FinishRetrievalRun"
)

var errUnknownChannel = errors.New("unknown channel")

type fakeChannel struct {
	id         int64
	title      string
	about      string
	members    int
	resolveErr error
}

type fakeAPI struct {
	channels map[string]fakeChannel

	// errors returned once per method before the real answer
	resolveErrs []error
	historyErrs []error

	pages    [][]tg.MessageClass
	requests []*tg.MessagesGetHistoryRequest
	lookups  []string
}

func (f *fakeAPI) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	f.lookups = append(f.lookups, req.Username)

	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]

		return nil, err
	}

	ch, ok := f.channels[req.Username]
	if !ok {
		return &tg.ContactsResolvedPeer{Peer: &tg.PeerUser{UserID: 1}}, nil
	}

	if ch.resolveErr != nil {
		return nil, ch.resolveErr
	}

	return &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerChannel{ChannelID: ch.id},
		Chats: []tg.ChatClass{testChannel(ch)},
	}, nil
}

func (f *fakeAPI) ChannelsGetFullChannel(_ context.Context, input tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	in, ok := input.(*tg.InputChannel)
	if !ok {
		return nil, errUnknownChannel
	}

	for _, ch := range f.channels {
		if ch.id != in.ChannelID {
			continue
		}

		full := &tg.ChannelFull{ID: ch.id, About: ch.about}
		full.SetParticipantsCount(ch.members)

		return &tg.MessagesChatFull{
			FullChat: full,
			Chats:    []tg.ChatClass{testChannel(ch)},
		}, nil
	}

	return nil, errUnknownChannel
}

func (f *fakeAPI) MessagesGetHistory(_ context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	f.requests = append(f.requests, req)

	if len(f.historyErrs) > 0 {
		err := f.historyErrs[0]
		f.historyErrs = f.historyErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	if len(f.pages) == 0 {
		return &tg.MessagesChannelMessages{}, nil
	}

	page := f.pages[0]
	f.pages = f.pages[1:]

	return &tg.MessagesChannelMessages{Messages: page}, nil
}

func testChannel(ch fakeChannel) *tg.Channel {
	return &tg.Channel{
		ID:         ch.id,
		AccessHash: ch.id * 10,
		Title:      ch.title,
		Date:       int(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).Unix()),
	}
}

// testPage builds count channel posts with descending ids starting at top.
func testPage(channelID int64, top, count int) []tg.MessageClass {
	page := make([]tg.MessageClass, 0, count)

	for i := 0; i < count; i++ {
		page = append(page, &tg.Message{
			ID:      top - i,
			PeerID:  &tg.PeerChannel{ChannelID: channelID},
			Date:    int(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix()),
			Message: "post",
		})
	}

	return page
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) SaveSeeds(ctx context.Context, seeds []domain.Seed, policy db.DuplicatePolicy) (domain.SaveResult, error) {
	args := m.Called(ctx, seeds, policy)
	res, _ := args.Get(0).(domain.SaveResult)

	return res, args.Error(1)
}

func (m *mockRepo) SaveChannelMetadata(ctx context.Context, records []domain.ChannelMetadata, policy db.DuplicatePolicy) (domain.SaveResult, error) {
	args := m.Called(ctx, records, policy)
	res, _ := args.Get(0).(domain.SaveResult)

	return res, args.Error(1)
}

func (m *mockRepo) SaveChannelMessages(ctx context.Context, records []domain.ChannelMessage, policy db.DuplicatePolicy) (domain.SaveResult, error) {
	args := m.Called(ctx, records, policy)
	res, _ := args.Get(0).(domain.SaveResult)

	return res, args.Error(1)
}

func (m *mockRepo) SeedListPreview(ctx context.Context, seedLists []string) ([]domain.Seed, error) {
	args := m.Called(ctx, seedLists)
	res, _ := args.Get(0).([]domain.Seed)

	return res, args.Error(1)
}

func (m *mockRepo) ChannelIDsByNames(ctx context.Context, names []string) (map[string]int64, error) {
	args := m.Called(ctx, names)
	res, _ := args.Get(0).(map[string]int64)

	return res, args.Error(1)
}

func (m *mockRepo) LatestMessageID(ctx context.Context, channelID int64) (int, error) {
	args := m.Called(ctx, channelID)

	return args.Int(0), args.Error(1)
}

func (m *mockRepo) StartRetrievalRun(ctx context.Context, run domain.RetrievalRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRepo) FinishRetrievalRun(ctx context.Context, run domain.RetrievalRun) error {
	return m.Called(ctx, run).Error(0)
}

func newTestRetriever(api API, repo Repository, opts Options) (*Retriever, *[]time.Duration) {
	logger := zerolog.Nop()
	r := NewRetriever(api, repo, opts, &logger)

	var slept []time.Duration

	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	r.now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }

	return r, &slept
}
