package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
)

type fakeBatchResults struct {
	pgx.BatchResults

	tags   []pgconn.CommandTag
	failAt int
	err    error
	calls  int
	closed bool
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	i := f.calls
	f.calls++

	if f.err != nil && i == f.failAt {
		return pgconn.CommandTag{}, f.err
	}

	return f.tags[i], nil
}

func (f *fakeBatchResults) Close() error {
	f.closed = true
	return nil
}

type fakeTx struct {
	pgx.Tx

	results    *fakeBatchResults
	batch      *pgx.Batch
	committed  bool
	rolledBack bool
}

func (f *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batch = b
	return f.results
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}

	return nil
}

type fakePool struct {
	tx    *fakeTx
	begun int
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	f.begun++
	return f.tx, nil
}

func newFakePool(tags ...string) *fakePool {
	results := &fakeBatchResults{}
	for _, tag := range tags {
		results.tags = append(results.tags, pgconn.NewCommandTag(tag))
	}

	return &fakePool{tx: &fakeTx{results: results}}
}

func seedsWithStored(stored ...domain.Seed) (tableWriter[domain.Seed, domain.SeedKey], *[]domain.SeedKey) {
	var looked []domain.SeedKey

	w := seedWriter
	w.existing = func(_ context.Context, keys []domain.SeedKey) (map[domain.SeedKey]struct{}, error) {
		looked = keys

		out := make(map[domain.SeedKey]struct{}, len(stored))
		for _, s := range stored {
			out[s.Key()] = struct{}{}
		}

		return out, nil
	}

	return w, &looked
}

var (
	seedAlpha = domain.Seed{ChannelID: 1, ChannelName: "alpha", SeedList: "news"}
	seedBeta  = domain.Seed{ChannelID: 2, ChannelName: "beta", SeedList: "news"}
	seedGamma = domain.Seed{ChannelID: 3, ChannelName: "gamma", SeedList: "news"}
)

func TestSave_SkipPolicyCountsLostInsertRace(t *testing.T) {
	logger := zerolog.Nop()
	w, looked := seedsWithStored(seedBeta)
	pool := newFakePool("INSERT 0 1", "INSERT 0 0")

	res, err := save(context.Background(), pool, &logger, w, []domain.Seed{seedAlpha, seedBeta, seedAlpha, seedGamma}, DuplicatesSkip)
	require.NoError(t, err)

	assert.Equal(t, domain.SaveResult{Inserted: 1, Duplicates: 3}, res)
	assert.Equal(t, []domain.SeedKey{seedAlpha.Key(), seedBeta.Key(), seedGamma.Key()}, *looked)

	tx := pool.tx
	require.NotNil(t, tx.batch)
	require.Len(t, tx.batch.QueuedQueries, 2)

	for _, q := range tx.batch.QueuedQueries {
		assert.Equal(t, sqlInsertSeed, q.SQL)
	}

	assert.Equal(t, int64(1), tx.batch.QueuedQueries[0].Arguments[0])
	assert.Equal(t, int64(3), tx.batch.QueuedQueries[1].Arguments[0])
	assert.True(t, tx.results.closed)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestSave_UpdatePolicyRewritesStored(t *testing.T) {
	logger := zerolog.Nop()
	w, _ := seedsWithStored(seedBeta)
	pool := newFakePool("INSERT 0 1", "UPDATE 1")

	res, err := save(context.Background(), pool, &logger, w, []domain.Seed{seedAlpha, seedBeta}, DuplicatesUpdate)
	require.NoError(t, err)

	assert.Equal(t, domain.SaveResult{Inserted: 1, Duplicates: 1, Updated: 1}, res)

	queued := pool.tx.batch.QueuedQueries
	require.Len(t, queued, 2)
	assert.Equal(t, sqlInsertSeed, queued[0].SQL)
	assert.Equal(t, sqlUpdateSeed, queued[1].SQL)
	assert.True(t, pool.tx.committed)
}

func TestSave_AllStoredSkipsTransaction(t *testing.T) {
	logger := zerolog.Nop()
	w, _ := seedsWithStored(seedAlpha, seedBeta)
	pool := newFakePool()

	res, err := save(context.Background(), pool, &logger, w, []domain.Seed{seedAlpha, seedBeta}, DuplicatesSkip)
	require.NoError(t, err)

	assert.Equal(t, domain.SaveResult{Duplicates: 2}, res)
	assert.Zero(t, pool.begun)
}

func TestSave_Empty(t *testing.T) {
	logger := zerolog.Nop()
	w, looked := seedsWithStored()
	pool := newFakePool()

	res, err := save(context.Background(), pool, &logger, w, nil, DuplicatesSkip)
	require.NoError(t, err)

	assert.Equal(t, domain.SaveResult{}, res)
	assert.Nil(t, *looked)
	assert.Zero(t, pool.begun)
}

func TestSave_InsertErrorRollsBack(t *testing.T) {
	logger := zerolog.Nop()
	w, _ := seedsWithStored()
	pool := newFakePool("INSERT 0 1", "INSERT 0 1")
	pool.tx.results.err = errors.New("connection reset")
	pool.tx.results.failAt = 1

	res, err := save(context.Background(), pool, &logger, w, []domain.Seed{seedAlpha, seedGamma}, DuplicatesSkip)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "insert seeds")
	assert.Equal(t, domain.SaveResult{}, res)
	assert.True(t, pool.tx.results.closed)
	assert.False(t, pool.tx.committed)
	assert.True(t, pool.tx.rolledBack)
}

func TestSave_ExistingLookupError(t *testing.T) {
	logger := zerolog.Nop()
	lookupErr := errors.New("timeout")

	w := seedWriter
	w.existing = func(context.Context, []domain.SeedKey) (map[domain.SeedKey]struct{}, error) {
		return nil, lookupErr
	}

	pool := newFakePool()

	_, err := save(context.Background(), pool, &logger, w, []domain.Seed{seedAlpha}, DuplicatesSkip)
	require.ErrorIs(t, err, lookupErr)
	assert.Zero(t, pool.begun)
}

func TestChannelMetadataUpdateKeepsNameOwnedElsewhere(t *testing.T) {
	assert.Contains(t, sqlUpdateChannelMetadata, "other.channel_name = $2 AND other.channel_id <> $1")
	assert.Contains(t, sqlUpdateChannelMetadata, "THEN channel_metadata.channel_name")
}
