package catalog

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/snapcache"
	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

// usageTimeout bounds one detached usage counter write.
const usageTimeout = 10 * time.Second

// Options configures the catalog service.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
	Rand         *rand.Rand
}

// Service loads and caches the active red flags.
type Service struct {
	snap       *snapcache.Cache[RedFlag]
	store      store.Store
	collection string
	validator  *validation.Validator
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	wg sync.WaitGroup
}

// NewService creates a catalog service over the given collection. A nil
// Rand seeds one from the runtime.
func NewService(st store.Store, collection string, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Service{
		store:      st,
		collection: collection,
		validator:  validation.New(),
		now:        opts.Now,
		rng:        opts.Rand,
	}
	s.snap = snapcache.New(snapcache.Options[RedFlag]{
		Name:         "red_flags",
		TTL:          opts.TTL,
		FetchTimeout: opts.FetchTimeout,
		Load:         s.load,
		Key:          func(f RedFlag) string { return f.ID },
		Now:          opts.Now,
	})
	return s
}

func (s *Service) load(ctx context.Context) ([]RedFlag, error) {
	docs, err := s.store.QueryWhere(ctx, s.collection, "isActive", true)
	if err != nil {
		return nil, err
	}

	flags := make([]RedFlag, 0, len(docs))
	for _, doc := range docs {
		f, err := fromDocument(doc, s.validator)
		if err != nil {
			zap.L().Warn("catalog: skipping malformed flag",
				zap.String("id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		flags = append(flags, f)
	}
	sortFlags(flags)
	zap.L().Info("catalog: loaded red flags", zap.Int("count", len(flags)))
	return flags, nil
}

// sortFlags orders by priority then usage, both descending.
func sortFlags(flags []RedFlag) {
	slices.SortStableFunc(flags, func(a, b RedFlag) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.UsageCount, a.UsageCount)
	})
}

// All returns the active flags ordered by priority then usage. When the store
// cannot be read it returns the fallback catalog.
func (s *Service) All(ctx context.Context) []RedFlag {
	flags, err := s.snap.Get(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zap.L().Warn("catalog: serving fallback flags", zap.Error(err))
		}
		return Fallback()
	}
	return flags
}

// BySeverity returns the active flags of one tier.
func (s *Service) BySeverity(ctx context.Context, sev Severity) []RedFlag {
	return filter(s.All(ctx), func(f RedFlag) bool { return f.Severity == sev })
}

// ByCategory returns the active flags of one category.
func (s *Service) ByCategory(ctx context.Context, cat Category) []RedFlag {
	return filter(s.All(ctx), func(f RedFlag) bool { return f.Category == cat })
}

// Lookup returns the flags with the given ids, in id order, skipping unknown
// ids.
func (s *Service) Lookup(ctx context.Context, ids []string) []RedFlag {
	byID := make(map[string]RedFlag)
	for _, f := range s.All(ctx) {
		byID[f.ID] = f
	}
	out := make([]RedFlag, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

func filter(flags []RedFlag, keep func(RedFlag) bool) []RedFlag {
	out := make([]RedFlag, 0, len(flags))
	for _, f := range flags {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// CuratedBoard returns a freshly shuffled board of count flags.
func (s *Service) CuratedBoard(ctx context.Context, count int) []RedFlag {
	flags := s.All(ctx)

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return Curate(flags, count, s.rng)
}

// IncrementUsage bumps a flag's usage counter in the background and
// invalidates the cache once the write lands. Failures are logged.
func (s *Service) IncrementUsage(ctx context.Context, flagID string) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(detached, usageTimeout)
		defer cancel()

		if err := s.store.Increment(ctx, s.collection, flagID, "usageCount", 1); err != nil {
			zap.L().Warn("catalog: increment usage failed",
				zap.String("flag_id", flagID),
				zap.Error(err),
			)
			return
		}
		if err := s.store.Update(ctx, s.collection, flagID, store.Fields{"updatedAt": s.now().UTC()}); err != nil {
			zap.L().Debug("catalog: touch updatedAt failed",
				zap.String("flag_id", flagID),
				zap.Error(err),
			)
		}
		s.snap.Invalidate()
	}()
}

// Create validates and stores a new flag with zero usage and returns its id.
func (s *Service) Create(ctx context.Context, f RedFlag) (string, error) {
	f.Text = strings.TrimSpace(f.Text)
	f.UsageCount = 0
	now := s.now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	if err := s.validator.Validate(f); err != nil {
		return "", eris.Wrapf(ErrInvalidFlag, "%v", err)
	}

	var (
		id  string
		err error
	)
	if f.ID != "" {
		_, err = s.store.Put(ctx, s.collection, []store.Record{{ID: f.ID, Fields: flagFields(f)}})
		id = f.ID
	} else {
		id, err = s.store.Insert(ctx, s.collection, flagFields(f))
	}
	if err != nil {
		return "", eris.Wrap(err, "catalog: create flag")
	}
	s.snap.Invalidate()

	zap.L().Info("catalog: created flag", zap.String("flag_id", id), zap.String("severity", string(f.Severity)))
	return id, nil
}

// Seed upserts flags by id, preserving nothing from existing records, and
// returns how many were written.
func (s *Service) Seed(ctx context.Context, flags []RedFlag) (int, error) {
	now := s.now().UTC()
	records := make([]store.Record, len(flags))
	for i, f := range flags {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		f.UpdatedAt = now
		records[i] = store.Record{ID: f.ID, Fields: flagFields(f)}
	}

	n, err := s.store.Put(ctx, s.collection, records)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: seed")
	}
	s.snap.Invalidate()
	return n, nil
}

// Invalidate forces the next read to refetch.
func (s *Service) Invalidate() {
	s.snap.Invalidate()
}

// Wait blocks until background usage writes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Stats reports cache activity.
func (s *Service) Stats() snapcache.Stats {
	return s.snap.Stats()
}
