package reader

import (
	"context"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

// Repository defines the storage operations required by the Retriever.
type Repository interface {
	// Persistence
	SaveSeeds(ctx context.Context, seeds []domain.Seed, policy db.DuplicatePolicy) (domain.SaveResult, error)
	SaveChannelMetadata(ctx context.Context, records []domain.ChannelMetadata, policy db.DuplicatePolicy) (domain.SaveResult, error)
	SaveChannelMessages(ctx context.Context, records []domain.ChannelMessage, policy db.DuplicatePolicy) (domain.SaveResult, error)

	// Lookups
	SeedListPreview(ctx context.Context, seedLists []string) ([]domain.Seed, error)
	ChannelIDsByNames(ctx context.Context, names []string) (map[string]int64, error)
	LatestMessageID(ctx context.Context, channelID int64) (int, error)

	// Run bookkeeping
	StartRetrievalRun(ctx context.Context, run domain.RetrievalRun) error
	FinishRetrievalRun(ctx context.Context, run domain.RetrievalRun) error
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)
