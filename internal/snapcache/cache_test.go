package snapcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string
	Name string
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type loader struct {
	mu    sync.Mutex
	items []item
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (l *loader) Load(ctx context.Context) ([]item, error) {
	l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]item, len(l.items))
	copy(out, l.items)
	return out, nil
}

func (l *loader) set(items []item, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items, l.err = items, err
}

func newTestCache(l *loader, clock *fakeClock) *Cache[item] {
	return New(Options[item]{
		Name: "test",
		TTL:  5 * time.Minute,
		Load: l.Load,
		Key:  func(i item) string { return i.ID },
		Now:  clock.Now,
	})
}

func TestGet_FreshSnapshotSkipsFetch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1", Name: "Acme"}}}
	c := newTestCache(l, clock)

	assert.Equal(t, Empty, c.State())

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, Fresh, c.State())

	clock.Advance(4 * time.Minute)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), l.calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Items)
}

func TestGet_StaleSnapshotRefetches(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1"}}}
	c := newTestCache(l, clock)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, Stale, c.State())

	l.set([]item{{ID: "1"}, {ID: "2"}}, nil)
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), l.calls.Load())
	assert.Equal(t, Fresh, c.State())
}

func TestGet_FailureKeepsPriorState(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1"}}}
	c := newTestCache(l, clock)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	l.set(nil, errors.New("database is locked"))
	got, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, Stale, c.State())
	assert.Len(t, c.Snapshot(), 1)
	assert.Equal(t, int64(1), c.Stats().Failures)

	empty := newTestCache(&loader{err: errors.New("down")}, clock)
	_, err = empty.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, Empty, empty.State())
}

func TestGet_ConcurrentCallersShareOneFetch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1"}}, gate: make(chan struct{})}
	c := newTestCache(l, clock)

	var wg sync.WaitGroup
	results := make([][]item, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return l.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	assert.Equal(t, int32(1), l.calls.Load())
	for _, r := range results {
		assert.Len(t, r, 1)
	}
}

func TestGet_CancelledCallerDoesNotAbortSharedFetch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1"}}, gate: make(chan struct{})}
	c := newTestCache(l, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return l.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(l.gate)
	require.Eventually(t, func() bool { return c.State() == Fresh }, time.Second, time.Millisecond)
	assert.Len(t, c.Snapshot(), 1)
}

func TestUpsert_ReplacesOrAppends(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1", Name: "Acme"}}}
	c := newTestCache(l, clock)

	before, err := c.Get(context.Background())
	require.NoError(t, err)

	c.Upsert(item{ID: "1", Name: "Acme Corp"})
	c.Upsert(item{ID: "2", Name: "Globex"})

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Corp", got[0].Name)
	assert.Equal(t, "Globex", got[1].Name)

	// Earlier snapshots are immutable.
	assert.Equal(t, "Acme", before[0].Name)
	assert.Len(t, before, 1)
}

func TestUpsert_EmptyCacheStaysEmpty(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(&loader{}, clock)

	c.Upsert(item{ID: "1"})
	assert.Equal(t, Empty, c.State())
	assert.Nil(t, c.Snapshot())
}

func TestUpsert_DuringRefreshIsNotLost(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1", Name: "old"}}, gate: make(chan struct{})}
	c := newTestCache(l, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background())
	}()
	require.Eventually(t, func() bool { return l.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Upsert(item{ID: "1", Name: "new"})
	c.Upsert(item{ID: "9", Name: "created"})
	close(l.gate)
	<-done

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Name)
	assert.Equal(t, "created", got[1].Name)
}

func TestInvalidate_DuringRefreshDiscardsResult(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := &loader{items: []item{{ID: "1"}}, gate: make(chan struct{})}
	c := newTestCache(l, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background())
	}()
	require.Eventually(t, func() bool { return l.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate()
	close(l.gate)
	<-done
	assert.Equal(t, Empty, c.State())

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), l.calls.Load())
	assert.Equal(t, Fresh, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "unknown", State(9).String())
}
