package company

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/store"
)

// Submission is the part of a checkup that feeds company statistics.
type Submission struct {
	MarkedFlags []string
	Severity    SeverityCounts
}

// Fold applies one submission to a company's statistics. Marked flags are
// treated as a set.
func Fold(c Company, sub Submission, now time.Time) Company {
	marked := dedupe(sub.MarkedFlags)

	prev := c.SubmissionCount
	c.SubmissionCount = prev + 1
	c.AverageFlagCount = (c.AverageFlagCount*float64(prev) + float64(len(marked))) / float64(c.SubmissionCount)
	c.SeverityTrends = c.SeverityTrends.Add(sub.Severity)

	flags := make([]string, 0, len(c.CommonFlags)+len(marked))
	seen := make(map[string]bool, cap(flags))
	for _, f := range append(append([]string{}, c.CommonFlags...), marked...) {
		if !seen[f] {
			seen[f] = true
			flags = append(flags, f)
		}
	}
	c.CommonFlags = flags

	if c.LastSubmission == nil || now.After(*c.LastSubmission) {
		t := now
		c.LastSubmission = &t
	}
	c.UpdatedAt = now
	return c
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Aggregator folds submissions into company records. Folds for one company
// are serialized within the process; across processes the last write wins.
type Aggregator struct {
	cache      *Cache
	store      store.Store
	collection string
	now        func() time.Time
	locks      sync.Map // company id -> *sync.Mutex; never pruned, one entry per company seen
}

// NewAggregator creates an aggregator writing to the given collection.
func NewAggregator(cache *Cache, st store.Store, collection string) *Aggregator {
	return &Aggregator{
		cache:      cache,
		store:      st,
		collection: collection,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ApplySubmission folds sub into the cached company, writes the new
// statistics to the store, then mirrors them into the cache. Every failure
// is logged and swallowed.
func (a *Aggregator) ApplySubmission(ctx context.Context, companyID string, sub Submission) {
	mu, _ := a.locks.LoadOrStore(companyID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	current, ok := a.cache.Lookup(ctx, companyID)
	if !ok {
		zap.L().Warn("company: skipping submission",
			zap.String("company_id", companyID),
			zap.Error(ErrNotFoundInCache),
		)
		return
	}

	updated := Fold(current, sub, a.now())
	err := a.store.Update(ctx, a.collection, companyID, store.Fields{
		"submissionCount":  updated.SubmissionCount,
		"commonFlags":      updated.CommonFlags,
		"averageFlagCount": updated.AverageFlagCount,
		"severityTrends":   updated.SeverityTrends,
		"lastSubmission":   updated.LastSubmission,
		"updatedAt":        updated.UpdatedAt,
	})
	if err != nil {
		zap.L().Warn("company: update statistics failed",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return
	}

	a.cache.UpsertLocal(updated)
	zap.L().Debug("company: applied submission",
		zap.String("company_id", companyID),
		zap.Int("submission_count", updated.SubmissionCount),
	)
}
