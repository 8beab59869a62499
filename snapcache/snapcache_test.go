package snapcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karttaio/kartta/types"
)

func testSnapshot(accountRef string, finished time.Time) *types.Snapshot {
	return &types.Snapshot{
		AccountRef: accountRef,
		Records: []types.ResourceRecord{{
			ServiceID:            "ec2_instance",
			ResourceID:           "i-1",
			Region:               "us-east-1",
			ServiceType:          types.CategoryCompute,
			EstimatedMonthlyCost: 70.08,
			Count:                1,
		}},
		TotalMonthlyCost: 70.08,
		TotalRecords:     1,
		StartedAt:        finished.Add(-time.Minute),
		FinishedAt:       finished,
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndLatest(t *testing.T) {
	store := openStore(t)

	rev, err := store.Save(testSnapshot("acct-1", time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	snap, err := store.Latest("acct-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 70.08, snap.TotalMonthlyCost)
	assert.Equal(t, "i-1", snap.Records[0].ResourceID)
}

func TestStoreLatestUnknownAccount(t *testing.T) {
	store := openStore(t)

	snap, err := store.Latest("nobody")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreNewRevisionWins(t *testing.T) {
	store := openStore(t)

	first := testSnapshot("acct-1", time.Now().UTC())
	_, err := store.Save(first)
	require.NoError(t, err)

	second := testSnapshot("acct-1", time.Now().UTC())
	second.TotalMonthlyCost = 140.16
	rev, err := store.Save(second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	snap, err := store.Latest("acct-1")
	require.NoError(t, err)
	assert.Equal(t, 140.16, snap.TotalMonthlyCost)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.Save(testSnapshot("acct-1", time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, int64(1), reopened.CurrentRevision())

	meta, ok := reopened.Meta("acct-1")
	require.True(t, ok)
	assert.Equal(t, 70.08, meta.TotalMonthlyCost)

	snap, err := reopened.Latest("acct-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
}

func TestStoreDeleteAndList(t *testing.T) {
	store := openStore(t)

	_, err := store.Save(testSnapshot("acct-1", time.Now().UTC()))
	require.NoError(t, err)
	_, err = store.Save(testSnapshot("acct-2", time.Now().UTC()))
	require.NoError(t, err)

	require.Len(t, store.List(), 2)
	require.NoError(t, store.Delete("acct-1"))

	metas := store.List()
	require.Len(t, metas, 1)
	assert.Equal(t, "acct-2", metas[0].AccountRef)

	snap, err := store.Latest("acct-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCacheReadThrough(t *testing.T) {
	store := openStore(t)
	cache := NewCache(store, time.Hour, nil)
	ctx := context.Background()

	// nothing anywhere: miss
	_, ok := cache.Get(ctx, "acct-1")
	assert.False(t, ok)

	// persisted but not in memory: promoted on read
	_, err := store.Save(testSnapshot("acct-1", time.Now().UTC()))
	require.NoError(t, err)

	snap, ok := cache.Get(ctx, "acct-1")
	require.True(t, ok)
	assert.Equal(t, 70.08, snap.TotalMonthlyCost)
}

func TestCacheExpiry(t *testing.T) {
	store := openStore(t)
	cache := NewCache(store, time.Hour, nil)
	ctx := context.Background()

	stale := testSnapshot("acct-1", time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, cache.Put(ctx, stale))

	// force the memory entry to look expired
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := cache.Get(ctx, "acct-1")
	assert.False(t, ok, "expired snapshot must not be served")
}

func TestCacheInvalidate(t *testing.T) {
	store := openStore(t)
	cache := NewCache(store, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, testSnapshot("acct-1", time.Now().UTC())))
	_, ok := cache.Get(ctx, "acct-1")
	require.True(t, ok)

	require.NoError(t, cache.Invalidate(ctx, "acct-1"))

	_, ok = cache.Get(ctx, "acct-1")
	assert.False(t, ok)
}

func TestCacheInvalidateAll(t *testing.T) {
	store := openStore(t)
	cache := NewCache(store, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, testSnapshot("acct-1", time.Now().UTC())))
	require.NoError(t, cache.Put(ctx, testSnapshot("acct-2", time.Now().UTC())))

	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok := cache.Get(ctx, "acct-1")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "acct-2")
	assert.False(t, ok)
	assert.Empty(t, store.List())
}

func TestStoreCompactKeepsLatest(t *testing.T) {
	store := openStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Save(testSnapshot("acct-1", time.Now().UTC()))
		require.NoError(t, err)
	}

	require.NoError(t, store.Compact(1))

	snap, err := store.Latest("acct-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
}
