//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-checkup/internal/catalog"
	"github.com/sells-group/interview-checkup/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{
			Driver:                "memory",
			Namespace:             "test",
			CompaniesCollection:   "companies",
			FlagsCollection:       "red_flags",
			SubmissionsCollection: "submissions",
		},
		Match: config.MatchConfig{FuzzyThreshold: 0.7, ReuseThreshold: 0.8, SearchLimit: 10},
		Server: config.ServerConfig{
			AllowedOrigins: []string{"https://checkup.example"},
			SubmitRPS:      1000,
			SubmitBurst:    100,
		},
		Resilience: config.ResilienceConfig{MaxAttempts: 1},
	}
}

// newTestEnv wires a memory-backed app seeded with the default catalog.
func newTestEnv(t *testing.T, c *config.Config) *appEnv {
	t.Helper()
	env, err := initApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() {
		env.Catalog.Wait()
		env.Checkups.Wait()
		env.Close()
	})

	flags, err := catalog.DefaultSeed()
	require.NoError(t, err)
	if !c.StoreOffline() {
		_, err = env.Catalog.Seed(context.Background(), flags)
		require.NoError(t, err)
	}
	return env
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
