package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
)

// RetrieveChannelMetadata looks up each handle in turn. Handles that do not
// resolve to a public channel are skipped; any other failure stops the loop and
// the metadata gathered so far is returned with the error.
func (r *Retriever) RetrieveChannelMetadata(ctx context.Context, handles []string) ([]domain.ChannelMetadata, error) {
	records, _, err := r.retrieveMetadata(ctx, handles)

	return records, err
}

func (r *Retriever) retrieveMetadata(ctx context.Context, handles []string) ([]domain.ChannelMetadata, int, error) {
	records := make([]domain.ChannelMetadata, 0, len(handles))
	skipped := 0

	for _, handle := range handles {
		if err := r.limiter.Wait(ctx); err != nil {
			return records, skipped, fmt.Errorf("waiting for lookup slot: %w", err)
		}

		record, err := r.lookupChannel(ctx, handle)
		if err != nil {
			if isSkippable(err) {
				skipped++

				observability.ChannelLookups.WithLabelValues(observability.OutcomeSkipped).Inc()
				r.logger.Warn().Err(err).Str(logFieldChannel, handle).Msg("skipping channel")

				continue
			}

			observability.ChannelLookups.WithLabelValues(observability.OutcomeError).Inc()

			return records, skipped, err
		}

		observability.ChannelLookups.WithLabelValues(observability.OutcomeOK).Inc()
		r.logger.Info().
			Str(logFieldChannel, handle).
			Int64("channel_id", record.ChannelID).
			Int("subscribers", record.NumSubscribers).
			Msg("retrieved channel metadata")

		records = append(records, record)
	}

	return records, skipped, nil
}

func (r *Retriever) lookupChannel(ctx context.Context, handle string) (domain.ChannelMetadata, error) {
	channel, err := r.resolveChannel(ctx, handle)
	if err != nil {
		return domain.ChannelMetadata{}, err
	}

	var full *tg.MessagesChatFull

	err = r.call(ctx, "channels.getFullChannel", func(ctx context.Context) error {
		var err error

		full, err = r.api.ChannelsGetFullChannel(ctx, channel.AsInput())

		return err //nolint:wrapcheck // classified by caller
	})
	if err != nil {
		return domain.ChannelMetadata{}, fmt.Errorf("get full channel %s: %w", handle, err)
	}

	return ExtractChannelMetadata(full, handle, r.now().UTC())
}

// RetrieveAndSaveChannelMetadata normalises handles, retrieves their metadata
// and stores it together with the seed list membership.
func (r *Retriever) RetrieveAndSaveChannelMetadata(ctx context.Context, handles []string, seedList string) (Summary, error) {
	run, err := r.startRun(ctx, domain.RunKindMetadata, seedList)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{RunID: run.ID}

	runErr := r.retrieveAndSaveMetadata(ctx, handles, seedList, &summary)

	run.Channels = summary.Channels
	run.Records = summary.Metadata.Inserted + summary.Metadata.Updated
	r.finishRun(ctx, run, runErr)

	return summary, runErr
}

func (r *Retriever) retrieveAndSaveMetadata(ctx context.Context, handles []string, seedList string, summary *Summary) error {
	logger := r.logger.With().Str(logFieldSeedList, seedList).Str(logFieldRunID, summary.RunID).Logger()

	pending := domain.NormalizeHandles(handles)

	var reused []domain.Seed

	if r.opts.SkipKnown {
		known, err := r.knownHandles(ctx, seedList)
		if err != nil {
			return err
		}

		pending = filterKnown(pending, known)

		pending, reused, err = r.reuseStored(ctx, pending, seedList)
		if err != nil {
			return err
		}

		summary.Reused = len(reused)
	}

	logger.Info().Int(logFieldCount, len(pending)).Msg("retrieving channel metadata")

	records, skipped, retrieveErr := r.retrieveMetadata(ctx, pending)
	summary.Skipped = skipped

	if retrieveErr != nil && ctx.Err() != nil {
		return retrieveErr
	}

	// Whatever was retrieved before a failure is still stored.
	if err := r.saveMetadata(ctx, records, reused, seedList, summary); err != nil {
		return errors.Join(retrieveErr, err)
	}

	logger.Info().
		Int(logFieldCount, summary.Channels).
		Int("skipped", summary.Skipped).
		Int("reused", summary.Reused).
		Int("inserted", summary.Metadata.Inserted).
		Int("duplicates", summary.Metadata.Duplicates).
		Msg("channel metadata stored")

	return retrieveErr
}

// saveMetadata stores retrieved records first, then the seed rows for them and
// for reused channels.
func (r *Retriever) saveMetadata(ctx context.Context, records []domain.ChannelMetadata, reused []domain.Seed, seedList string, summary *Summary) error {
	seeds := make([]domain.Seed, 0, len(records)+len(reused))

	if len(records) > 0 {
		res, err := r.repo.SaveChannelMetadata(ctx, records, r.opts.Duplicates)
		if err != nil {
			return fmt.Errorf("save channel metadata: %w", err)
		}

		summary.Channels = len(records)
		summary.Metadata.Add(res)
		observability.RecordSave(tableChannelMetadata, res.Inserted, res.Duplicates, res.Updated)

		for _, rec := range records {
			seeds = append(seeds, domain.Seed{
				ChannelID:   rec.ChannelID,
				ChannelName: rec.ChannelName,
				SeedList:    seedList,
			})
		}
	}

	seeds = append(seeds, reused...)
	if len(seeds) == 0 {
		return nil
	}

	res, err := r.repo.SaveSeeds(ctx, seeds, r.opts.Duplicates)
	if err != nil {
		return fmt.Errorf("save seeds: %w", err)
	}

	summary.Seeds.Add(res)
	observability.RecordSave(tableSeeds, res.Inserted, res.Duplicates, res.Updated)

	return nil
}

func (r *Retriever) knownHandles(ctx context.Context, seedList string) (map[string]struct{}, error) {
	seeds, err := r.repo.SeedListPreview(ctx, []string{seedList})
	if err != nil {
		return nil, fmt.Errorf("load seed list %s: %w", seedList, err)
	}

	known := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		known[domain.NormalizeHandle(s.ChannelName)] = struct{}{}
	}

	return known, nil
}

// reuseStored splits off handles whose metadata is already stored. They join the
// seed list under their stored id without another lookup.
func (r *Retriever) reuseStored(ctx context.Context, handles []string, seedList string) ([]string, []domain.Seed, error) {
	if len(handles) == 0 {
		return handles, nil, nil
	}

	ids, err := r.repo.ChannelIDsByNames(ctx, handles)
	if err != nil {
		return nil, nil, fmt.Errorf("look up stored channels: %w", err)
	}

	if len(ids) == 0 {
		return handles, nil, nil
	}

	pending := make([]string, 0, len(handles))

	var reused []domain.Seed

	for _, h := range handles {
		id, ok := ids[h]
		if !ok {
			pending = append(pending, h)
			continue
		}

		reused = append(reused, domain.Seed{ChannelID: id, ChannelName: h, SeedList: seedList})
	}

	return pending, reused, nil
}

func filterKnown(handles []string, known map[string]struct{}) []string {
	if len(known) == 0 {
		return handles
	}

	out := make([]string, 0, len(handles))

	for _, h := range handles {
		if _, ok := known[h]; ok {
			continue
		}

		out = append(out, h)
	}

	return out
}
