package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
)

// pageFunc receives the plain messages of one history page, newest first.
type pageFunc func(ctx context.Context, page []domain.ChannelMessage) error

// pageHistory walks a channel's history backwards from the newest post down to
// minID (exclusive), pausing between pages.
func (r *Retriever) pageHistory(ctx context.Context, peer tg.InputPeerClass, minID int, onPage pageFunc) error {
	offsetID := 0

	for {
		var res tg.MessagesMessagesClass

		err := r.call(ctx, "messages.getHistory", func(ctx context.Context) error {
			var err error

			res, err = r.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
				Peer:     peer,
				OffsetID: offsetID,
				MinID:    minID,
				Limit:    r.opts.PageSize,
			})

			return err //nolint:wrapcheck // wrapped below
		})
		if err != nil {
			observability.HistoryPages.WithLabelValues(observability.OutcomeError).Inc()
			return fmt.Errorf("get history at offset %d: %w", offsetID, err)
		}

		observability.HistoryPages.WithLabelValues(observability.OutcomeOK).Inc()

		raw, modified := historyMessages(res)
		if !modified || len(raw) == 0 {
			return nil
		}

		checkedAt := r.now().UTC()
		page := make([]domain.ChannelMessage, 0, len(raw))
		lowest := 0

		for _, m := range raw {
			if id := m.GetID(); lowest == 0 || id < lowest {
				lowest = id
			}

			if rec, ok := ExtractMessage(m, checkedAt); ok {
				page = append(page, rec)
			}
		}

		if len(page) > 0 {
			if err := onPage(ctx, page); err != nil {
				return err
			}
		}

		if len(raw) < r.opts.PageSize {
			return nil
		}

		// A server that keeps returning the same window would loop forever.
		if offsetID != 0 && lowest >= offsetID {
			return nil
		}

		offsetID = lowest

		if lowest <= minID+1 {
			return nil
		}

		if err := r.sleep(ctx, r.opts.PagePause); err != nil {
			return err
		}
	}
}

// RetrieveChannelMessages returns the channel's posts newer than minID. When a
// page fails the posts retrieved so far are returned along with the error.
func (r *Retriever) RetrieveChannelMessages(ctx context.Context, handle string, minID int) ([]domain.ChannelMessage, error) {
	channel, err := r.resolveChannel(ctx, handle)
	if err != nil {
		return nil, err
	}

	var out []domain.ChannelMessage

	err = r.pageHistory(ctx, channel.AsInputPeer(), minID, func(_ context.Context, page []domain.ChannelMessage) error {
		out = append(out, page...)
		return nil
	})

	observability.MessagesRetrieved.WithLabelValues(handle).Add(float64(len(out)))

	return out, err
}

// RetrieveAndSaveChannelMessages fetches new posts for every channel of the seed
// list and stores them page by page. Unless full is set only posts newer than
// the latest stored one are requested.
func (r *Retriever) RetrieveAndSaveChannelMessages(ctx context.Context, seedList string, full bool) (Summary, error) {
	run, err := r.startRun(ctx, domain.RunKindMessages, seedList)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{RunID: run.ID}

	runErr := r.retrieveAndSaveMessages(ctx, seedList, full, &summary)

	run.Channels = summary.Channels
	run.Records = summary.Messages.Inserted + summary.Messages.Updated
	r.finishRun(ctx, run, runErr)

	return summary, runErr
}

func (r *Retriever) retrieveAndSaveMessages(ctx context.Context, seedList string, full bool, summary *Summary) error {
	logger := r.logger.With().Str(logFieldSeedList, seedList).Str(logFieldRunID, summary.RunID).Logger()

	seeds, err := r.repo.SeedListPreview(ctx, []string{seedList})
	if err != nil {
		return fmt.Errorf("load seed list %s: %w", seedList, err)
	}

	if len(seeds) == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrNoSeedLists, seedList)
	}

	logger.Info().Int(logFieldCount, len(seeds)).Bool("full", full).Msg("retrieving channel messages")

	for _, seed := range seeds {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for lookup slot: %w", err)
		}

		saved, err := r.saveChannelHistory(ctx, seed, full)
		summary.Messages.Add(saved)

		if err == nil {
			summary.Channels++
			continue
		}

		if ctx.Err() != nil || errors.Is(err, apperrors.ErrFloodWaitTooLong) {
			return err
		}

		if isSkippable(err) {
			summary.Skipped++
		} else {
			summary.Failed++
		}

		logger.Warn().Err(err).Str(logFieldChannel, seed.ChannelName).Msg("channel history incomplete")
	}

	logger.Info().
		Int(logFieldCount, summary.Channels).
		Int("failed", summary.Failed).
		Int("inserted", summary.Messages.Inserted).
		Int("duplicates", summary.Messages.Duplicates).
		Msg("channel messages stored")

	return nil
}

func (r *Retriever) saveChannelHistory(ctx context.Context, seed domain.Seed, full bool) (domain.SaveResult, error) {
	var total domain.SaveResult

	minID := 0

	if !full {
		latest, err := r.repo.LatestMessageID(ctx, seed.ChannelID)
		if err != nil {
			return total, fmt.Errorf("latest message id for %s: %w", seed.ChannelName, err)
		}

		minID = latest
	}

	channel, err := r.resolveChannel(ctx, seed.ChannelName)
	if err != nil {
		return total, err
	}

	retrieved := 0

	err = r.pageHistory(ctx, channel.AsInputPeer(), minID, func(ctx context.Context, page []domain.ChannelMessage) error {
		retrieved += len(page)
		observability.MessagesRetrieved.WithLabelValues(seed.ChannelName).Add(float64(len(page)))

		res, err := r.repo.SaveChannelMessages(ctx, page, r.opts.Duplicates)
		if err != nil {
			return fmt.Errorf("save channel messages: %w", err)
		}

		total.Add(res)
		observability.RecordSave(tableChannelMessages, res.Inserted, res.Duplicates, res.Updated)

		return nil
	})

	r.logger.Debug().
		Str(logFieldChannel, seed.ChannelName).
		Int("min_id", minID).
		Int(logFieldCount, retrieved).
		Msg("channel history retrieved")

	return total, err
}
