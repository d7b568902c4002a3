package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interview-checkup/internal/catalog"
	"github.com/sells-group/interview-checkup/internal/checkup"
	"github.com/sells-group/interview-checkup/internal/company"
	"github.com/sells-group/interview-checkup/internal/config"
	"github.com/sells-group/interview-checkup/internal/monitoring"
	"github.com/sells-group/interview-checkup/internal/resilience"
	"github.com/sells-group/interview-checkup/internal/store"
)

var storeDriver string

// appEnv holds the store and every service built on it.
type appEnv struct {
	Store      store.Store
	Breaker    *resilience.CircuitBreaker
	Companies  *company.Cache
	Resolver   *company.Resolver
	Aggregator *company.Aggregator
	Catalog    *catalog.Service
	Checkups   *checkup.Service
	Collector  *monitoring.Collector
	MatchLimit int
}

// Close releases the store. Callers with detached writes in flight drain them
// first with waitDetached.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured driver. Missing connection settings select
// the offline store instead of failing startup.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if missing := c.MissingStoreKeys(); len(missing) > 0 {
		zap.L().Warn("store configuration incomplete, running offline",
			zap.Strings("missing", missing),
		)
		return store.NewOffline(missing), nil
	}

	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL, c.Store.Namespace)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, c.Store.Namespace, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initApp opens and migrates the store and wires the services. Callers should
// defer env.Close().
func initApp(ctx context.Context, c *config.Config) (*appEnv, error) {
	if storeDriver != "" {
		c.Store.Driver = storeDriver
	}

	raw, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if !c.StoreOffline() {
		if err := raw.Migrate(ctx); err != nil {
			_ = raw.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	}

	r := c.Resilience
	guarded := store.NewGuarded(raw,
		resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction),
		resilience.FromCircuitConfig(r.FailureThreshold, r.ResetTimeoutSecs),
	)

	companies := company.NewCache(guarded, c.Store.CompaniesCollection, company.CacheOptions{
		TTL:          c.Cache.CompanyTTL(),
		FetchTimeout: c.Cache.FetchTimeout(),
	})
	resolver := company.NewResolver(companies, guarded, c.Store.CompaniesCollection, company.MatchConfig{
		FuzzyThreshold: c.Match.FuzzyThreshold,
		ReuseThreshold: c.Match.ReuseThreshold,
	})
	aggregator := company.NewAggregator(companies, guarded, c.Store.CompaniesCollection)
	flags := catalog.NewService(guarded, c.Store.FlagsCollection, catalog.Options{
		TTL:          c.Cache.CatalogTTL(),
		FetchTimeout: c.Cache.FetchTimeout(),
	})
	checkups := checkup.NewService(guarded, c.Store.SubmissionsCollection, resolver, aggregator, flags)

	collector := monitoring.NewCollector(guarded, monitoring.Collections{
		Companies:   c.Store.CompaniesCollection,
		Flags:       c.Store.FlagsCollection,
		Submissions: c.Store.SubmissionsCollection,
	}, companies, flags, guarded.Breaker())

	return &appEnv{
		Store:      guarded,
		Breaker:    guarded.Breaker(),
		Companies:  companies,
		Resolver:   resolver,
		Aggregator: aggregator,
		Catalog:    flags,
		Checkups:   checkups,
		Collector:  collector,
		MatchLimit: c.Match.SearchLimit,
	}, nil
}

// warmUp loads both caches in parallel. Load failures are already logged by
// the caches and never fail startup.
func (e *appEnv) warmUp(ctx context.Context) {
	start := time.Now()
	var companies, flags int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		companies = len(e.Companies.EnsureLoaded(gctx))
		return nil
	})
	g.Go(func() error {
		flags = len(e.Catalog.All(gctx))
		return nil
	})
	_ = g.Wait()

	zap.L().Info("caches warmed",
		zap.Int("companies", companies),
		zap.Int("flags", flags),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDriver, "driver", "", "store driver override: sqlite, postgres, memory")
}
