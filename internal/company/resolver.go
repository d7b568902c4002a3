package company

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/interview-checkup/internal/store"
)

// Default thresholds. Search is looser than reuse so loosely related
// suggestions can be shown without being merged.
const (
	DefaultFuzzyThreshold = 0.7
	DefaultReuseThreshold = 0.8
)

// resolveTimeout bounds a shared find-or-create, which outlives any single
// caller's context.
const resolveTimeout = 30 * time.Second

// MatchConfig holds the similarity thresholds.
type MatchConfig struct {
	FuzzyThreshold float64
	ReuseThreshold float64
}

// Resolver ranks cached companies against a query and decides between
// reusing an existing company and creating a new one.
type Resolver struct {
	cache      *Cache
	store      store.Store
	collection string
	cfg        MatchConfig
	now        func() time.Time
	creates    singleflight.Group
}

// NewResolver creates a resolver. Zero thresholds take the defaults.
func NewResolver(cache *Cache, st store.Store, collection string, cfg MatchConfig) *Resolver {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.ReuseThreshold <= 0 {
		cfg.ReuseThreshold = DefaultReuseThreshold
	}
	return &Resolver{
		cache:      cache,
		store:      st,
		collection: collection,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Search returns up to limit companies, best match first.
func (r *Resolver) Search(ctx context.Context, query string, limit int) []Company {
	matches := r.SearchScored(ctx, query, limit)
	out := make([]Company, len(matches))
	for i, m := range matches {
		out[i] = m.Company
	}
	return out
}

// SearchScored is Search with scores and match tiers.
func (r *Resolver) SearchScored(ctx context.Context, query string, limit int) []Match {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil
	}
	return Rank(r.cache.EnsureLoaded(ctx), query, limit, r.cfg.FuzzyThreshold)
}

// Rank scores each company against query and returns the top limit hits.
// Each company scores in its highest matching tier only: exact normalized
// name (1.0), case-insensitive substring of the display name (0.9),
// normalized alias (0.8), then edit-distance similarity above fuzzyThreshold.
// Ties keep input order.
func Rank(companies []Company, query string, limit int, fuzzyThreshold float64) []Match {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil
	}
	normalized := Normalize(query)
	lowered := strings.ToLower(query)

	var matches []Match
	for _, co := range companies {
		if m, ok := score(co, normalized, lowered, fuzzyThreshold); ok {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func score(co Company, normalized, lowered string, fuzzyThreshold float64) (Match, bool) {
	// An all-stopword query normalizes to "" and must not equal every
	// company whose key is also empty.
	if normalized != "" && co.NormalizedName == normalized {
		return Match{Company: co, Score: 1.0, Type: MatchExact}, true
	}
	if strings.Contains(strings.ToLower(co.Name), lowered) {
		return Match{Company: co, Score: 0.9, Type: MatchPartial}, true
	}
	if normalized == "" {
		return Match{}, false
	}
	for _, alias := range co.Aliases {
		if Normalize(alias) == normalized {
			return Match{Company: co, Score: 0.8, Type: MatchAlias}, true
		}
	}
	if sim := Similarity(normalized, co.NormalizedName); sim > fuzzyThreshold {
		return Match{Company: co, Score: sim, Type: MatchFuzzy}, true
	}
	return Match{}, false
}

// FindOrCreate returns the existing company for name when the best search hit
// is similar enough, and creates one otherwise.
func (r *Resolver) FindOrCreate(ctx context.Context, name string) (Company, error) {
	co, _, err := r.FindOrCreateProfile(ctx, Profile{Name: name})
	return co, err
}

// FindOrCreateProfile is FindOrCreate carrying enrichment fields for the
// created record. It reports whether a company was created. Concurrent calls
// for the same normalized name in this process share one resolution.
func (r *Resolver) FindOrCreateProfile(ctx context.Context, p Profile) (Company, bool, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Company{}, false, eris.Wrap(ErrInvalidInput, "company name cannot be empty")
	}
	p.Name = name

	type result struct {
		company Company
		created bool
	}
	detached := context.WithoutCancel(ctx)
	ch := r.creates.DoChan(Normalize(name), func() (any, error) {
		sctx, cancel := context.WithTimeout(detached, resolveTimeout)
		defer cancel()
		if existing, ok := r.reusable(sctx, name); ok {
			return result{company: existing}, nil
		}
		co, err := r.create(sctx, p)
		return result{company: co, created: err == nil}, err
	})

	select {
	case <-ctx.Done():
		return Company{}, false, eris.Wrapf(ctx.Err(), "company: resolve %q", name)
	case res := <-ch:
		if res.Err != nil {
			return Company{}, false, res.Err
		}
		out := res.Val.(result)
		return out.company, out.created, nil
	}
}

func (r *Resolver) reusable(ctx context.Context, name string) (Company, bool) {
	top := r.SearchScored(ctx, name, 1)
	if len(top) == 0 {
		return Company{}, false
	}
	best := top[0].Company
	if Similarity(Normalize(name), best.NormalizedName) > r.cfg.ReuseThreshold {
		zap.L().Debug("company: reusing existing company",
			zap.String("name", name),
			zap.String("company_id", best.ID),
			zap.String("match_type", string(top[0].Type)),
		)
		return best, true
	}
	return Company{}, false
}

func (r *Resolver) create(ctx context.Context, p Profile) (Company, error) {
	now := r.now()
	co := Company{
		Name:           p.Name,
		NormalizedName: Normalize(p.Name),
		Aliases:        Aliases(p.Name, p.Website),
		Website:        strings.TrimSpace(p.Website),
		Industry:       strings.TrimSpace(p.Industry),
		Location:       strings.TrimSpace(p.Location),
		Size:           strings.TrimSpace(p.Size),
		Type:           strings.TrimSpace(p.Type),
		FoundedYear:    p.FoundedYear,
		Specialities:   strings.TrimSpace(p.Specialities),
		Locations:      strings.TrimSpace(p.Locations),
		CommonFlags:    []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if co.Aliases == nil {
		co.Aliases = []string{}
	}

	id, err := r.store.Insert(ctx, r.collection, createFields(co))
	if err != nil {
		zap.L().Warn("company: create failed",
			zap.String("name", p.Name),
			zap.Error(err),
		)
		if errors.Is(err, store.ErrStoreUnavailable) {
			return Company{}, eris.Wrapf(err, "company: create %q", p.Name)
		}
		return Company{}, eris.Wrapf(store.ErrStoreUnavailable, "company: create %q: %v", p.Name, err)
	}
	co.ID = id
	r.cache.UpsertLocal(co)

	zap.L().Info("company: created",
		zap.String("company_id", id),
		zap.String("name", co.Name),
		zap.String("normalized_name", co.NormalizedName),
	)
	return co, nil
}
