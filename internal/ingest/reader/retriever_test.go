package reader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

func runWithStatus(status string) interface{} {
	return mock.MatchedBy(func(run domain.RetrievalRun) bool {
		return run.Status == status && run.ID != ""
	})
}

func TestRetrieveAndSaveChannelMetadata(t *testing.T) {
	api := &fakeAPI{channels: map[string]fakeChannel{
		"alpha": {id: 1, title: "Alpha", about: "first", members: 10},
		"bad":   {id: 2, resolveErr: tgerr.New(400, "USERNAME_INVALID")},
		"known": {id: 4, title: "Known"},
	}}
	repo := new(mockRepo)

	var order []string

	repo.On(testStartRun, mock.Anything, runWithStatus(domain.RunStatusRunning)).Return(nil)
	repo.On(testSeedPreview, mock.Anything, []string{testSeedList}).Return([]domain.Seed{
		{ChannelID: 4, ChannelName: "Known", SeedList: testSeedList},
	}, nil)
	repo.On(testSaveMetadata, mock.Anything, mock.MatchedBy(func(recs []domain.ChannelMetadata) bool {
		return len(recs) == 1 && recs[0].ChannelID == 1 && recs[0].ChannelName == "alpha" && recs[0].NumSubscribers == 10
	}), db.DuplicatesSkip).Run(func(mock.Arguments) { order = append(order, testSaveMetadata) }).
		Return(domain.SaveResult{Inserted: 1}, nil)
	repo.On(testIDsByNames, mock.Anything, []string{"alpha", "bad", "ghost", "stored"}).
		Return(map[string]int64{"stored": 7}, nil)
	repo.On(testSaveSeeds, mock.Anything, []domain.Seed{
		{ChannelID: 1, ChannelName: "alpha", SeedList: testSeedList},
		{ChannelID: 7, ChannelName: "stored", SeedList: testSeedList},
	}, db.DuplicatesSkip).Run(func(mock.Arguments) { order = append(order, testSaveSeeds) }).
		Return(domain.SaveResult{Inserted: 2}, nil)
	repo.On(testFinishRun, mock.Anything, runWithStatus(domain.RunStatusFinished)).Return(nil)

	r, _ := newTestRetriever(api, repo, Options{SkipKnown: true})

	summary, err := r.RetrieveAndSaveChannelMetadata(context.Background(), []string{"@Alpha", "alpha", "bad", "ghost", "@known", "Stored"}, testSeedList)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Channels)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Metadata.Inserted)
	assert.Equal(t, 1, summary.Reused)
	assert.Equal(t, 2, summary.Seeds.Inserted)
	assert.Equal(t, []string{testSaveMetadata, testSaveSeeds}, order)
	assert.Equal(t, []string{"alpha", "bad", "ghost"}, api.lookups)
	repo.AssertExpectations(t)
}

func TestRetrieveAndSaveChannelMetadata_AbortKeepsRetrieved(t *testing.T) {
	api := &fakeAPI{channels: map[string]fakeChannel{
		"alpha":  {id: 1, title: "Alpha"},
		"broken": {id: 2, resolveErr: tgerr.New(500, "INTERNAL")},
		"gamma":  {id: 3, title: "Gamma"},
	}}
	repo := new(mockRepo)

	repo.On(testStartRun, mock.Anything, mock.Anything).Return(nil)
	repo.On(testSaveMetadata, mock.Anything, mock.MatchedBy(func(recs []domain.ChannelMetadata) bool {
		return len(recs) == 1 && recs[0].ChannelID == 1
	}), db.DuplicatesUpdate).Return(domain.SaveResult{Updated: 1}, nil)
	repo.On(testSaveSeeds, mock.Anything, mock.Anything, db.DuplicatesUpdate).Return(domain.SaveResult{Duplicates: 1}, nil)
	repo.On(testFinishRun, mock.Anything, runWithStatus(domain.RunStatusFailed)).Return(nil)

	r, _ := newTestRetriever(api, repo, Options{Duplicates: db.DuplicatesUpdate})

	summary, err := r.RetrieveAndSaveChannelMetadata(context.Background(), []string{"alpha", "broken", "gamma"}, testSeedList)
	require.Error(t, err)

	assert.Equal(t, 1, summary.Metadata.Updated)
	assert.Equal(t, []string{"alpha", "broken"}, api.lookups)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, testSeedPreview, mock.Anything, mock.Anything)
}

func TestRetrieveChannelMetadata_FloodWait(t *testing.T) {
	api := &fakeAPI{
		channels:    map[string]fakeChannel{"alpha": {id: 1, title: "Alpha"}},
		resolveErrs: []error{tgerr.New(420, "FLOOD_WAIT_3")},
	}

	r, slept := newTestRetriever(api, nil, Options{FloodWaitMax: time.Minute})

	records, err := r.RetrieveChannelMetadata(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
	assert.Equal(t, []string{"alpha", "alpha"}, api.lookups)
}

func TestRetrieveChannelMetadata_FloodWaitTooLong(t *testing.T) {
	api := &fakeAPI{
		channels:    map[string]fakeChannel{"alpha": {id: 1}},
		resolveErrs: []error{tgerr.New(420, "FLOOD_WAIT_3600")},
	}

	r, slept := newTestRetriever(api, nil, Options{FloodWaitMax: time.Minute})

	_, err := r.RetrieveChannelMetadata(context.Background(), []string{"alpha"})
	require.ErrorIs(t, err, apperrors.ErrFloodWaitTooLong)
	assert.Empty(t, *slept)
}

func TestRetrieveChannelMessages_Paging(t *testing.T) {
	lastPage := append(testPage(1, 4, 1), &tg.MessageService{ID: 3, PeerID: &tg.PeerChannel{ChannelID: 1}})

	api := &fakeAPI{
		channels: map[string]fakeChannel{"alpha": {id: 1}},
		pages: [][]tg.MessageClass{
			testPage(1, 10, 3),
			testPage(1, 7, 3),
			lastPage,
		},
	}

	r, slept := newTestRetriever(api, nil, Options{PageSize: 3, PagePause: time.Second})

	msgs, err := r.RetrieveChannelMessages(context.Background(), "alpha", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 7)

	assert.Equal(t, 10, msgs[0].MessageID)
	assert.Equal(t, 4, msgs[6].MessageID)

	require.Len(t, api.requests, 3)
	assert.Equal(t, 0, api.requests[0].OffsetID)
	assert.Equal(t, 8, api.requests[1].OffsetID)
	assert.Equal(t, 5, api.requests[2].OffsetID)

	for _, req := range api.requests {
		assert.Equal(t, 2, req.MinID)
		assert.Equal(t, 3, req.Limit)
	}

	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
}

func TestRetrieveChannelMessages_PageErrorKeepsRetrieved(t *testing.T) {
	pageErr := errors.New("connection reset")
	api := &fakeAPI{
		channels:    map[string]fakeChannel{"alpha": {id: 1}},
		pages:       [][]tg.MessageClass{testPage(1, 10, 3)},
		historyErrs: []error{nil, pageErr},
	}

	r, _ := newTestRetriever(api, nil, Options{PageSize: 3})

	msgs, err := r.RetrieveChannelMessages(context.Background(), "alpha", 0)
	require.ErrorIs(t, err, pageErr)
	assert.Len(t, msgs, 3)
}

func TestRetrieveAndSaveChannelMessages(t *testing.T) {
	api := &fakeAPI{
		channels: map[string]fakeChannel{
			"alpha": {id: 1},
			"gone":  {id: 2, resolveErr: tgerr.New(400, "USERNAME_NOT_OCCUPIED")},
		},
		pages: [][]tg.MessageClass{testPage(1, 8, 3)},
	}
	repo := new(mockRepo)

	repo.On(testStartRun, mock.Anything, mock.Anything).Return(nil)
	repo.On(testSeedPreview, mock.Anything, []string{testSeedList}).Return([]domain.Seed{
		{ChannelID: 1, ChannelName: "alpha", SeedList: testSeedList},
		{ChannelID: 2, ChannelName: "gone", SeedList: testSeedList},
	}, nil)
	repo.On(testLatestID, mock.Anything, int64(1)).Return(5, nil)
	repo.On(testLatestID, mock.Anything, int64(2)).Return(0, nil)
	repo.On(testSaveMessages, mock.Anything, mock.MatchedBy(func(recs []domain.ChannelMessage) bool {
		return len(recs) == 3 && recs[0].MessageID == 8
	}), db.DuplicatesSkip).Return(domain.SaveResult{Inserted: 3}, nil)
	repo.On(testFinishRun, mock.Anything, runWithStatus(domain.RunStatusFinished)).Return(nil)

	r, _ := newTestRetriever(api, repo, Options{})

	summary, err := r.RetrieveAndSaveChannelMessages(context.Background(), testSeedList, false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Channels)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 3, summary.Messages.Inserted)

	require.Len(t, api.requests, 1)
	assert.Equal(t, 5, api.requests[0].MinID)
	assert.Equal(t, defaultPageSize, api.requests[0].Limit)
	repo.AssertExpectations(t)
}

func TestRetrieveAndSaveChannelMessages_FullIgnoresStoredIDs(t *testing.T) {
	api := &fakeAPI{channels: map[string]fakeChannel{"alpha": {id: 1}}}
	repo := new(mockRepo)

	repo.On(testStartRun, mock.Anything, mock.Anything).Return(nil)
	repo.On(testSeedPreview, mock.Anything, []string{testSeedList}).Return([]domain.Seed{
		{ChannelID: 1, ChannelName: "alpha", SeedList: testSeedList},
	}, nil)
	repo.On(testFinishRun, mock.Anything, mock.Anything).Return(nil)

	r, _ := newTestRetriever(api, repo, Options{})

	_, err := r.RetrieveAndSaveChannelMessages(context.Background(), testSeedList, true)
	require.NoError(t, err)

	require.Len(t, api.requests, 1)
	assert.Equal(t, 0, api.requests[0].MinID)
	repo.AssertNotCalled(t, testLatestID, mock.Anything, mock.Anything)
}

func TestRetrieveAndSaveChannelMessages_EmptySeedList(t *testing.T) {
	repo := new(mockRepo)

	repo.On(testStartRun, mock.Anything, mock.Anything).Return(nil)
	repo.On(testSeedPreview, mock.Anything, []string{testSeedList}).Return([]domain.Seed(nil), nil)
	repo.On(testFinishRun, mock.Anything, runWithStatus(domain.RunStatusFailed)).Return(nil)

	r, _ := newTestRetriever(&fakeAPI{}, repo, Options{})

	_, err := r.RetrieveAndSaveChannelMessages(context.Background(), testSeedList, false)
	require.ErrorIs(t, err, apperrors.ErrNoSeedLists)
}

func TestNewRetriever_PageSizeCapped(t *testing.T) {
	for _, size := range []int{0, -5, 101, 1000} {
		r, _ := newTestRetriever(&fakeAPI{}, new(mockRepo), Options{PageSize: size})
		assert.Equal(t, defaultPageSize, r.opts.PageSize, "page size %d", size)
	}

	r, _ := newTestRetriever(&fakeAPI{}, new(mockRepo), Options{PageSize: 40})
	assert.Equal(t, 40, r.opts.PageSize)
}

func TestRetrieveAndSaveChannelMetadata_AllReused(t *testing.T) {
	api := &fakeAPI{channels: map[string]fakeChannel{}}
	repo := new(mockRepo)

	repo.On(testStartRun, mock.Anything, mock.Anything).Return(nil)
	repo.On(testSeedPreview, mock.Anything, []string{testSeedList}).Return([]domain.Seed(nil), nil)
	repo.On(testIDsByNames, mock.Anything, []string{"alpha"}).Return(map[string]int64{"alpha": 1}, nil)
	repo.On(testSaveSeeds, mock.Anything, []domain.Seed{
		{ChannelID: 1, ChannelName: "alpha", SeedList: testSeedList},
	}, db.DuplicatesSkip).Return(domain.SaveResult{Inserted: 1}, nil)
	repo.On(testFinishRun, mock.Anything, runWithStatus(domain.RunStatusFinished)).Return(nil)

	r, _ := newTestRetriever(api, repo, Options{SkipKnown: true})

	summary, err := r.RetrieveAndSaveChannelMetadata(context.Background(), []string{"@alpha"}, testSeedList)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Reused)
	assert.Zero(t, summary.Channels)
	assert.Empty(t, api.lookups)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, testSaveMetadata, mock.Anything, mock.Anything, mock.Anything)
}
