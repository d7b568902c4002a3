// Package monitoring collects service status and raises webhook alerts.
package monitoring

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interview-checkup/internal/resilience"
	"github.com/sells-group/interview-checkup/internal/snapcache"
	"github.com/sells-group/interview-checkup/internal/store"
)

// StatusSnapshot holds a point-in-time view of service health.
type StatusSnapshot struct {
	// Store reachability and collection sizes.
	StoreOnline bool   `json:"store_online"`
	StoreError  string `json:"store_error,omitempty"`
	Companies   int    `json:"companies"`
	Flags       int    `json:"flags"`
	Submissions int    `json:"submissions"`

	// Cache activity.
	CompanyCache snapcache.Stats `json:"company_cache"`
	CatalogCache snapcache.Stats `json:"catalog_cache"`

	// Store circuit breaker.
	Breaker         string `json:"breaker"`
	BreakerFailures int    `json:"breaker_failures"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatsSource reports cache activity.
type StatsSource interface {
	Stats() snapcache.Stats
}

// Collections names the collections to count.
type Collections struct {
	Companies   string
	Flags       string
	Submissions string
}

// Collector gathers status from the store, caches and breaker.
type Collector struct {
	store       store.Store
	collections Collections
	companies   StatsSource
	catalog     StatsSource
	breaker     *resilience.CircuitBreaker
}

// NewCollector creates a status collector. Any source may be nil.
func NewCollector(st store.Store, collections Collections, companies, catalog StatsSource, breaker *resilience.CircuitBreaker) *Collector {
	return &Collector{
		store:       st,
		collections: collections,
		companies:   companies,
		catalog:     catalog,
		breaker:     breaker,
	}
}

// Collect gathers a snapshot. An unreachable store is reported in the
// snapshot, not as an error.
func (c *Collector) Collect(ctx context.Context) *StatusSnapshot {
	snap := &StatusSnapshot{
		CollectedAt: time.Now().UTC(),
		Breaker:     "none",
	}
	if c.companies != nil {
		snap.CompanyCache = c.companies.Stats()
	}
	if c.catalog != nil {
		snap.CatalogCache = c.catalog.Stats()
	}
	if c.breaker != nil {
		failures, state := c.breaker.Counters()
		snap.Breaker = state.String()
		snap.BreakerFailures = failures
	}

	if err := c.store.Ping(ctx); err != nil {
		snap.StoreError = err.Error()
		return snap
	}

	g, gctx := errgroup.WithContext(ctx)
	count := func(collection string, dst *int) {
		g.Go(func() error {
			n, err := c.store.Count(gctx, collection)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(c.collections.Companies, &snap.Companies)
	count(c.collections.Flags, &snap.Flags)
	count(c.collections.Submissions, &snap.Submissions)

	if err := g.Wait(); err != nil {
		snap.StoreError = err.Error()
		return snap
	}
	snap.StoreOnline = true
	return snap
}
