package company

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-checkup/internal/store"
)

func newImportResolver(st store.Store) *Resolver {
	return NewResolver(newTestCache(st), st, testCollection, MatchConfig{})
}

func TestImport_NameColumnAndEnrichment(t *testing.T) {
	st := store.NewMemory()
	r := newImportResolver(st)
	csv := "Company_Name,Website,Industry,Size,Founded_Year\n" +
		"Acme Inc.,www.acme.com,Manufacturing,51-200,1949\n" +
		"Globex,,Energy,,\n"

	res, err := Import(context.Background(), r, strings.NewReader(csv), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Rows: 2, Created: 2}, res)

	got := r.Search(context.Background(), "acme", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "https://www.acme.com", got[0].Website)
	assert.Equal(t, "Manufacturing", got[0].Industry)
	assert.Equal(t, "51-200", got[0].Size)
	assert.Equal(t, 1949, got[0].FoundedYear)
	assert.Contains(t, got[0].Aliases, "acme.com")
}

func TestImport_FirstColumnFallback(t *testing.T) {
	st := store.NewMemory()
	r := newImportResolver(st)

	res, err := Import(context.Background(), r, strings.NewReader("employer,city\nInitech,Austin\nHooli,Palo Alto\n"), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	n, err := st.Count(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_SkipsInvalidAndDuplicateNames(t *testing.T) {
	st := store.NewMemory()
	r := newImportResolver(st)
	csv := "name\n" +
		"Acme Inc\n" +
		"A\n" +
		"\n" +
		"Acme Corporation\n" +
		strings.Repeat("x", 101) + "\n" +
		"LLC\n" +
		"Globex\n"

	res, err := Import(context.Background(), r, strings.NewReader(csv), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Reused)
	assert.Equal(t, 4, res.Skipped)
}

func TestImport_ReusesExisting(t *testing.T) {
	st := seedStore(t, Company{ID: "c1", Name: "Acme Inc"})
	r := newImportResolver(st)

	res, err := Import(context.Background(), r, strings.NewReader("name\nACME Corp\nGlobex\n"), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reused)
	assert.Equal(t, 1, res.Created)
}

func TestImport_Limit(t *testing.T) {
	st := store.NewMemory()
	r := newImportResolver(st)

	res, err := Import(context.Background(), r, strings.NewReader("name\nAcme\nGlobex\nInitech\nHooli\n"), ImportOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Rows)

	n, err := st.Count(context.Background(), testCollection)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemory()}
	r := newImportResolver(fs)

	res, err := Import(context.Background(), r, strings.NewReader("name\nAcme\nGlobex\n"), ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, int32(0), fs.inserts.Load())
}

func TestImport_StoreFailuresCounted(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemory()}
	fs.failInsert.Store(true)
	r := newImportResolver(fs)

	res, err := Import(context.Background(), r, strings.NewReader("name\nAcme\nGlobex\n"), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Created)
}

func TestImport_EmptyInput(t *testing.T) {
	r := newImportResolver(store.NewMemory())
	_, err := Import(context.Background(), r, strings.NewReader(""), ImportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company: import")
}
