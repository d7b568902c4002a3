package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// OfflineStore rejects every call. It stands in for a real backend when
// required store settings are missing.
type OfflineStore struct {
	reason error
}

// NewOffline returns a store that fails every call with ErrStoreUnavailable,
// naming the missing settings.
func NewOffline(missing []string) *OfflineStore {
	return &OfflineStore{
		reason: eris.Wrapf(ErrStoreUnavailable, "offline: missing %s", strings.Join(missing, ", ")),
	}
}

func (o *OfflineStore) ListAll(context.Context, string) ([]Document, error) { return nil, o.reason }
func (o *OfflineStore) Count(context.Context, string) (int, error)          { return 0, o.reason }
func (o *OfflineStore) Insert(context.Context, string, Fields) (string, error) {
	return "", o.reason
}
func (o *OfflineStore) Put(context.Context, string, []Record) (int, error)       { return 0, o.reason }
func (o *OfflineStore) Update(context.Context, string, string, Fields) error     { return o.reason }
func (o *OfflineStore) QueryWhere(context.Context, string, string, any) ([]Document, error) {
	return nil, o.reason
}
func (o *OfflineStore) Increment(context.Context, string, string, string, int) error {
	return o.reason
}
func (o *OfflineStore) Migrate(context.Context) error { return o.reason }
func (o *OfflineStore) Ping(context.Context) error    { return o.reason }
func (o *OfflineStore) Close() error                  { return nil }
