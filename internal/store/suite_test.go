package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite checks the behavior every driver shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("insert then list", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		id1, err := st.Insert(ctx, "companies", Fields{"name": "Acme", "submissionCount": 0})
		require.NoError(t, err)
		id2, err := st.Insert(ctx, "companies", Fields{"name": "Globex"})
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		docs, err := st.ListAll(ctx, "companies")
		require.NoError(t, err)
		require.Len(t, docs, 2)

		ids := []string{docs[0].ID, docs[1].ID}
		assert.ElementsMatch(t, []string{id1, id2}, ids)

		n, err := st.Count(ctx, "companies")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = st.Count(ctx, "red_flags")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("update merges top-level fields", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		id, err := st.Insert(ctx, "companies", Fields{"name": "Acme", "submissionCount": 1})
		require.NoError(t, err)
		require.NoError(t, st.Update(ctx, "companies", id, Fields{
			"submissionCount": 2,
			"commonFlags":     []string{"f1"},
		}))

		docs, err := st.ListAll(ctx, "companies")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.JSONEq(t, `{"name":"Acme","submissionCount":2,"commonFlags":["f1"]}`, string(docs[0].Data))
	})

	t.Run("update missing document", func(t *testing.T) {
		st := newStore(t)
		err := st.Update(context.Background(), "companies", "missing", Fields{"name": "x"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("query where", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		_, err := st.Insert(ctx, "red_flags", Fields{"text": "a", "isActive": true, "severity": "light"})
		require.NoError(t, err)
		_, err = st.Insert(ctx, "red_flags", Fields{"text": "b", "isActive": false, "severity": "light"})
		require.NoError(t, err)
		_, err = st.Insert(ctx, "red_flags", Fields{"text": "c", "isActive": true, "severity": "medium"})
		require.NoError(t, err)

		active, err := st.QueryWhere(ctx, "red_flags", "isActive", true)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		medium, err := st.QueryWhere(ctx, "red_flags", "severity", "medium")
		require.NoError(t, err)
		require.Len(t, medium, 1)
		assert.JSONEq(t, `{"text":"c","isActive":true,"severity":"medium"}`, string(medium[0].Data))

		none, err := st.QueryWhere(ctx, "red_flags", "severity", "heavy")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("increment", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		id, err := st.Insert(ctx, "red_flags", Fields{"text": "a"})
		require.NoError(t, err)
		require.NoError(t, st.Increment(ctx, "red_flags", id, "usageCount", 1))
		require.NoError(t, st.Increment(ctx, "red_flags", id, "usageCount", 2))

		docs, err := st.ListAll(ctx, "red_flags")
		require.NoError(t, err)
		var got struct {
			UsageCount int `json:"usageCount"`
		}
		require.NoError(t, docs[0].Decode(&got))
		assert.Equal(t, 3, got.UsageCount)

		err = st.Increment(ctx, "red_flags", "missing", "usageCount", 1)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("put upserts by id", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		n, err := st.Put(ctx, "red_flags", []Record{
			{ID: "f1", Fields: Fields{"text": "one"}},
			{ID: "f2", Fields: Fields{"text": "two"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = st.Put(ctx, "red_flags", []Record{{ID: "f1", Fields: Fields{"text": "uno"}}})
		require.NoError(t, err)

		docs, err := st.ListAll(ctx, "red_flags")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		byID := map[string]string{}
		for _, d := range docs {
			byID[d.ID] = string(d.Data)
		}
		assert.JSONEq(t, `{"text":"uno"}`, byID["f1"])
		assert.JSONEq(t, `{"text":"two"}`, byID["f2"])

		_, err = st.Put(ctx, "red_flags", []Record{{Fields: Fields{"text": "x"}}})
		assert.Error(t, err)
	})
}
