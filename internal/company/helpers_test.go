package company

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-checkup/internal/store"
)

const testCollection = "companies"

// seedStore returns a memory store holding the given companies.
func seedStore(t *testing.T, companies ...Company) *store.MemoryStore {
	t.Helper()
	st := store.NewMemory()
	records := make([]store.Record, len(companies))
	for i, co := range companies {
		if co.NormalizedName == "" {
			co.NormalizedName = Normalize(co.Name)
		}
		records[i] = store.Record{ID: co.ID, Fields: createFields(co)}
	}
	if len(records) > 0 {
		_, err := st.Put(context.Background(), testCollection, records)
		require.NoError(t, err)
	}
	return st
}

func newTestCache(st store.Store) *Cache {
	return NewCache(st, testCollection, CacheOptions{})
}

// flakyStore fails writes on demand and counts calls.
type flakyStore struct {
	store.Store
	failInsert atomic.Bool
	failUpdate atomic.Bool
	failList   atomic.Bool
	inserts    atomic.Int32
	updates    atomic.Int32
	lists      atomic.Int32
}

var errBackend = eris.New("backend down")

func (f *flakyStore) ListAll(ctx context.Context, collection string) ([]store.Document, error) {
	f.lists.Add(1)
	if f.failList.Load() {
		return nil, errBackend
	}
	return f.Store.ListAll(ctx, collection)
}

func (f *flakyStore) Insert(ctx context.Context, collection string, fields store.Fields) (string, error) {
	f.inserts.Add(1)
	if f.failInsert.Load() {
		return "", errBackend
	}
	return f.Store.Insert(ctx, collection, fields)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	f.updates.Add(1)
	if f.failUpdate.Load() {
		return errBackend
	}
	return f.Store.Update(ctx, collection, id, fields)
}

type fakeClock struct{ now atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.now.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time           { return time.Unix(0, c.now.Load()).UTC() }
func (c *fakeClock) Advance(d time.Duration) { c.now.Add(int64(d)) }
