package company

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/snapcache"
	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

// CacheOptions configures the company cache.
type CacheOptions struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Cache is the process-wide snapshot of the companies collection.
type Cache struct {
	snap       *snapcache.Cache[Company]
	store      store.Store
	collection string
	validator  *validation.Validator
}

// NewCache creates an empty company cache over the given collection.
func NewCache(st store.Store, collection string, opts CacheOptions) *Cache {
	c := &Cache{
		store:      st,
		collection: collection,
		validator:  validation.New(),
	}
	c.snap = snapcache.New(snapcache.Options[Company]{
		Name:         "companies",
		TTL:          opts.TTL,
		FetchTimeout: opts.FetchTimeout,
		Load:         c.load,
		Key:          func(co Company) string { return co.ID },
		Now:          opts.Now,
	})
	return c
}

func (c *Cache) load(ctx context.Context) ([]Company, error) {
	docs, err := c.store.ListAll(ctx, c.collection)
	if err != nil {
		return nil, err
	}

	companies := make([]Company, 0, len(docs))
	for _, doc := range docs {
		co, err := fromDocument(doc, c.validator)
		if err != nil {
			zap.L().Warn("company: skipping malformed document",
				zap.String("id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		companies = append(companies, co)
	}
	zap.L().Info("company: loaded companies", zap.Int("count", len(companies)))
	return companies, nil
}

// EnsureLoaded returns the current snapshot, refetching when it is empty or
// stale. Fetch failures and abandoned calls yield an empty result.
func (c *Cache) EnsureLoaded(ctx context.Context) []Company {
	companies, err := c.snap.Get(ctx)
	if err != nil {
		return nil
	}
	return companies
}

// Lookup finds a company by id in the snapshot.
func (c *Cache) Lookup(ctx context.Context, id string) (Company, bool) {
	for _, co := range c.EnsureLoaded(ctx) {
		if co.ID == id {
			return co, true
		}
	}
	return Company{}, false
}

// UpsertLocal mirrors a write into the snapshot without a refetch.
func (c *Cache) UpsertLocal(co Company) {
	c.snap.Upsert(co)
}

// Invalidate forces the next EnsureLoaded to refetch.
func (c *Cache) Invalidate() {
	c.snap.Invalidate()
}

// State reports the cache lifecycle state.
func (c *Cache) State() snapcache.State {
	return c.snap.State()
}

// Snapshot returns the loaded companies without I/O.
func (c *Cache) Snapshot() []Company {
	return c.snap.Snapshot()
}

// Stats reports cache activity.
func (c *Cache) Stats() snapcache.Stats {
	return c.snap.Stats()
}
