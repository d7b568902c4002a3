// Package snapcache holds whole-collection snapshots with a time-to-live.
//
// Readers get an immutable slice published through an atomic pointer.
// Refreshes are coalesced, and local writes made while a refresh is in flight
// are re-applied on top of the fetched data so they are not lost.
package snapcache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State describes the cache lifecycle.
type State int

const (
	// Empty means nothing is loaded.
	Empty State = iota
	// Fresh means the snapshot is younger than the TTL.
	Fresh
	// Stale means the snapshot is older than the TTL and will be refetched on
	// next use.
	Stale
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Options configures a Cache.
type Options[T any] struct {
	// Name labels log lines.
	Name string
	// TTL is the snapshot lifetime. Default: 5 minutes.
	TTL time.Duration
	// FetchTimeout bounds a single load. Default: 15 seconds.
	FetchTimeout time.Duration
	// Load fetches the whole collection.
	Load func(ctx context.Context) ([]T, error)
	// Key identifies an item for local upserts.
	Key func(T) string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	State    string    `json:"state"`
	Items    int       `json:"items"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
	Hits     int64     `json:"hits"`
	Misses   int64     `json:"misses"`
	Failures int64     `json:"failures"`
}

type snapshot[T any] struct {
	items    []T
	loadedAt time.Time
}

type pendingWrite[T any] struct {
	item T
	seq  uint64
}

// Cache is a TTL snapshot of a collection.
type Cache[T any] struct {
	opts    Options[T]
	current atomic.Pointer[snapshot[T]]
	group   singleflight.Group

	mu      sync.Mutex
	epoch   uint64
	seq     uint64
	pending map[string]pendingWrite[T]

	hits, misses, failures atomic.Int64
}

// New creates an empty cache.
func New[T any](opts Options[T]) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[T]{opts: opts, pending: make(map[string]pendingWrite[T])}
}

// Get returns the current snapshot, fetching it first unless it is fresh.
// The fetch runs detached from ctx; a caller whose ctx ends early gets
// ctx.Err() while the shared fetch completes for everyone else. A failed
// fetch leaves the previous state untouched.
func (c *Cache[T]) Get(ctx context.Context) ([]T, error) {
	if snap := c.current.Load(); snap != nil && c.opts.Now().Sub(snap.loadedAt) < c.opts.TTL {
		c.hits.Add(1)
		return snap.items, nil
	}
	c.misses.Add(1)

	c.mu.Lock()
	key := strconv.FormatUint(c.epoch, 10)
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(detached, c.opts.FetchTimeout)
		defer cancel()
		return c.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.failures.Add(1)
			zap.L().Warn("snapshot fetch failed",
				zap.String("cache", c.opts.Name),
				zap.Error(res.Err),
			)
			return nil, res.Err
		}
		return res.Val.([]T), nil
	}
}

func (c *Cache[T]) refresh(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	epoch, startSeq := c.epoch, c.seq
	c.mu.Unlock()

	items, err := c.opts.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "snapcache: load %s", c.opts.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		// Invalidated while loading; the result may predate the write that
		// caused the invalidation.
		return items, nil
	}

	for k, w := range c.pending {
		if w.seq <= startSeq {
			delete(c.pending, k)
			continue
		}
		items = upsert(items, w.item, c.opts.Key)
	}

	c.current.Store(&snapshot[T]{items: items, loadedAt: c.opts.Now()})
	zap.L().Debug("snapshot loaded",
		zap.String("cache", c.opts.Name),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// Snapshot returns the loaded items without I/O, or nil when empty.
func (c *Cache[T]) Snapshot() []T {
	if snap := c.current.Load(); snap != nil {
		return snap.items
	}
	return nil
}

// Upsert replaces the item with the same key, or appends it, without touching
// the snapshot's age. It is a no-op on the visible data while the cache is
// empty, but is remembered until the next refresh that starts after it.
func (c *Cache[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.pending[c.opts.Key(item)] = pendingWrite[T]{item: item, seq: c.seq}

	snap := c.current.Load()
	if snap == nil {
		return
	}
	c.current.Store(&snapshot[T]{
		items:    upsert(snap.items, item, c.opts.Key),
		loadedAt: snap.loadedAt,
	})
}

// Invalidate drops the snapshot. The next Get fetches.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.pending = make(map[string]pendingWrite[T])
	c.current.Store(nil)
}

// State reports the lifecycle state.
func (c *Cache[T]) State() State {
	snap := c.current.Load()
	switch {
	case snap == nil:
		return Empty
	case c.opts.Now().Sub(snap.loadedAt) < c.opts.TTL:
		return Fresh
	default:
		return Stale
	}
}

// Stats returns counters and the current state.
func (c *Cache[T]) Stats() Stats {
	s := Stats{
		State:    c.State().String(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
	}
	if snap := c.current.Load(); snap != nil {
		s.Items = len(snap.items)
		s.LoadedAt = snap.loadedAt
	}
	return s
}

// upsert returns a copy of items with item replacing the entry sharing its key
// or appended at the end.
func upsert[T any](items []T, item T, key func(T) string) []T {
	k := key(item)
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if key(out[i]) == k {
			out[i] = item
			return out
		}
	}
	return append(out, item)
}
