package company

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-checkup/internal/snapcache"
	"github.com/sells-group/interview-checkup/internal/store"
)

func TestCache_LoadsAndDecodes(t *testing.T) {
	st := seedStore(t,
		Company{ID: "c1", Name: "Acme Inc", Aliases: []string{"acme"}, SubmissionCount: 2, AverageFlagCount: 3},
		Company{ID: "c2", Name: "Globex"},
	)
	cache := newTestCache(st)
	assert.Equal(t, snapcache.Empty, cache.State())

	got := cache.EnsureLoaded(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, snapcache.Fresh, cache.State())

	byID := map[string]Company{}
	for _, co := range got {
		byID[co.ID] = co
	}
	assert.Equal(t, "acme", byID["c1"].NormalizedName)
	assert.Equal(t, 2, byID["c1"].SubmissionCount)
	assert.InDelta(t, 3.0, byID["c1"].AverageFlagCount, 1e-9)
	assert.NotNil(t, byID["c2"].CommonFlags)
}

func TestCache_SkipsMalformedDocuments(t *testing.T) {
	st := store.NewMemory()
	_, err := st.Put(context.Background(), testCollection, []store.Record{
		{ID: "good", Fields: store.Fields{"name": "Acme"}},
		{ID: "blank", Fields: store.Fields{"name": ""}},
		{ID: "badtype", Fields: store.Fields{"name": 42}},
		{ID: "negative", Fields: store.Fields{"name": "Neg", "submissionCount": -1}},
	})
	require.NoError(t, err)

	got := newTestCache(st).EnsureLoaded(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
	assert.Equal(t, "acme", got[0].NormalizedName)
}

func TestCache_FreshSnapshotSkipsStore(t *testing.T) {
	clock := newFakeClock()
	fs := &flakyStore{Store: seedStore(t, Company{ID: "c1", Name: "Acme"})}
	cache := NewCache(fs, testCollection, CacheOptions{TTL: time.Minute, Now: clock.Now})

	cache.EnsureLoaded(context.Background())
	cache.EnsureLoaded(context.Background())
	assert.Equal(t, int32(1), fs.lists.Load())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, snapcache.Stale, cache.State())
	cache.EnsureLoaded(context.Background())
	assert.Equal(t, int32(2), fs.lists.Load())
}

func TestCache_FetchFailureYieldsEmpty(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemory()}
	fs.failList.Store(true)
	cache := newTestCache(fs)

	assert.Empty(t, cache.EnsureLoaded(context.Background()))
	assert.Equal(t, snapcache.Empty, cache.State())
	assert.Equal(t, int64(1), cache.Stats().Failures)
}

func TestCache_OfflineStoreYieldsEmpty(t *testing.T) {
	cache := newTestCache(store.NewOffline([]string{"CHECKUP_STORE_DATABASE_URL"}))
	assert.Empty(t, cache.EnsureLoaded(context.Background()))
}

func TestCache_StaleSnapshotSurvivesFailedRefresh(t *testing.T) {
	clock := newFakeClock()
	fs := &flakyStore{Store: seedStore(t, Company{ID: "c1", Name: "Acme"})}
	cache := NewCache(fs, testCollection, CacheOptions{TTL: time.Minute, Now: clock.Now})
	require.Len(t, cache.EnsureLoaded(context.Background()), 1)

	clock.Advance(2 * time.Minute)
	fs.failList.Store(true)
	assert.Empty(t, cache.EnsureLoaded(context.Background()))
	assert.Len(t, cache.Snapshot(), 1)
	assert.Equal(t, snapcache.Stale, cache.State())
}

func TestCache_LookupAndUpsertLocal(t *testing.T) {
	cache := newTestCache(seedStore(t, Company{ID: "c1", Name: "Acme"}))
	ctx := context.Background()

	co, ok := cache.Lookup(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, "Acme", co.Name)

	_, ok = cache.Lookup(ctx, "missing")
	assert.False(t, ok)

	co.SubmissionCount = 7
	cache.UpsertLocal(co)
	cache.UpsertLocal(Company{ID: "c2", Name: "Globex", NormalizedName: "globex"})

	got, ok := cache.Lookup(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, 7, got.SubmissionCount)
	assert.Len(t, cache.Snapshot(), 2)
}

func TestCache_InvalidateRefetches(t *testing.T) {
	st := seedStore(t, Company{ID: "c1", Name: "Acme"})
	cache := newTestCache(st)
	ctx := context.Background()
	require.Len(t, cache.EnsureLoaded(ctx), 1)

	_, err := st.Put(ctx, testCollection, []store.Record{{ID: "c2", Fields: store.Fields{"name": "Globex"}}})
	require.NoError(t, err)
	assert.Len(t, cache.EnsureLoaded(ctx), 1)

	cache.Invalidate()
	assert.Equal(t, snapcache.Empty, cache.State())
	assert.Len(t, cache.EnsureLoaded(ctx), 2)
}
