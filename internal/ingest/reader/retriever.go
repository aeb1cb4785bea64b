package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	"github.com/lueurxax/channel-observatory/internal/platform/config"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
	"github.com/lueurxax/channel-observatory/internal/platform/worker"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

const (
	floodWaitType = "FLOOD_WAIT"

	logFieldChannel  = "channel"
	logFieldSeedList = "seed_list"
	logFieldRunID    = "run_id"
	logFieldCount    = "count"

	tableSeeds           = "seeds"
	tableChannelMetadata = "channel_metadata"
	tableChannelMessages = "channel_messages"
)

// Error types that mean the handle cannot be looked up; the channel is skipped.
var skippableErrorTypes = []string{
	"USERNAME_INVALID",
	"USERNAME_NOT_OCCUPIED",
	"CHANNEL_PRIVATE",
	"CHANNEL_INVALID",
}

// Options controls pacing and persistence of retrieval runs.
type Options struct {
	LookupPause  time.Duration
	PagePause    time.Duration
	PageSize     int
	FloodWaitMax time.Duration
	SkipKnown    bool
	Duplicates   db.DuplicatePolicy
}

// OptionsFromConfig maps configuration onto retrieval options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LookupPause:  cfg.ChannelLookupPause,
		PagePause:    cfg.HistoryPagePause,
		PageSize:     cfg.HistoryPageSize,
		FloodWaitMax: cfg.FloodWaitMax,
		SkipKnown:    cfg.SkipKnownChannels,
		Duplicates:   db.DuplicatePolicy(cfg.DuplicatePolicy),
	}
}

// Summary reports what a retrieval run did.
type Summary struct {
	RunID    string
	Channels int
	Skipped  int
	Failed   int
	// Reused counts handles seeded from stored metadata without a lookup.
	Reused   int
	Metadata domain.SaveResult
	Seeds    domain.SaveResult
	Messages domain.SaveResult
}

// Retriever pages the platform API and hands flattened records to the repository.
type Retriever struct {
	api     API
	repo    Repository
	opts    Options
	limiter *rate.Limiter
	sleep   worker.SleepFunc
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewRetriever(api API, repo Repository, opts Options, logger *zerolog.Logger) *Retriever {
	if opts.PageSize <= 0 || opts.PageSize > config.MaxHistoryPageSize {
		opts.PageSize = defaultPageSize
	}

	if opts.Duplicates == "" {
		opts.Duplicates = db.DuplicatesSkip
	}

	limit := rate.Inf
	if opts.LookupPause > 0 {
		limit = rate.Every(opts.LookupPause)
	}

	return &Retriever{
		api:     api,
		repo:    repo,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   worker.Wait,
		now:     time.Now,
		logger:  logger,
	}
}

const defaultPageSize = config.MaxHistoryPageSize

// call runs fn, sleeping through FLOOD_WAIT responses and retrying.
func (r *Retriever) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		floodErr, ok := tgerr.As(err)
		if !ok || floodErr.Type != floodWaitType {
			return err
		}

		wait := time.Duration(floodErr.Argument) * time.Second
		if r.opts.FloodWaitMax > 0 && wait > r.opts.FloodWaitMax {
			return fmt.Errorf("%s: %w: asked to wait %s", method, apperrors.ErrFloodWaitTooLong, wait)
		}

		observability.FloodWaits.Inc()
		observability.FloodWaitSeconds.Add(wait.Seconds())
		r.logger.Warn().Str("method", method).Int("seconds", floodErr.Argument).Msg("flood wait")

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// resolveChannel turns a handle into a channel with its access hash.
func (r *Retriever) resolveChannel(ctx context.Context, handle string) (*tg.Channel, error) {
	var resolved *tg.ContactsResolvedPeer

	err := r.call(ctx, "contacts.resolveUsername", func(ctx context.Context) error {
		var err error

		resolved, err = r.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: handle})

		return err //nolint:wrapcheck // classified by caller
	})
	if err != nil {
		if tgerr.Is(err, "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidUsername, handle)
		}

		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED") {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrChannelNotFound, handle)
		}

		return nil, fmt.Errorf("resolve %s: %w", handle, err)
	}

	if len(resolved.Chats) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrChannelNotFound, handle)
	}

	var peerID int64
	if peer, ok := resolved.Peer.(*tg.PeerChannel); ok {
		peerID = peer.ChannelID
	}

	channel := findChannel(resolved.Chats, peerID)
	if channel == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotAChannel, handle)
	}

	return channel, nil
}

// isSkippable reports whether err only concerns one unusable handle.
func isSkippable(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidUsername) ||
		errors.Is(err, apperrors.ErrChannelNotFound) ||
		errors.Is(err, apperrors.ErrNotAChannel) ||
		tgerr.Is(err, skippableErrorTypes...)
}

func (r *Retriever) startRun(ctx context.Context, kind, seedList string) (domain.RetrievalRun, error) {
	run := domain.RetrievalRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		SeedList:  seedList,
		StartedAt: r.now(),
		Status:    domain.RunStatusRunning,
	}

	if err := r.repo.StartRetrievalRun(ctx, run); err != nil {
		return run, fmt.Errorf("start %s run: %w", kind, err)
	}

	return run, nil
}

func (r *Retriever) finishRun(ctx context.Context, run domain.RetrievalRun, runErr error) {
	run.FinishedAt = r.now()
	run.Status = domain.RunStatusFinished

	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}

	observability.RetrievalRunDuration.WithLabelValues(run.Kind, run.Status).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	// The run row is still written when the command itself was interrupted.
	if err := r.repo.FinishRetrievalRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Warn().Err(err).Str(logFieldRunID, run.ID).Msg("failed to record retrieval run outcome")
	}
}
