package store

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

type memDoc struct {
	seq       int64
	data      map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore is a process-local Store used by tests and the memory driver.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]*memDoc
	now         func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memDoc),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Ping(context.Context) error    { return nil }
func (m *MemoryStore) Close() error                  { return nil }

func (m *MemoryStore) ListAll(_ context.Context, collection string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*memDoc, 0, len(m.collections[collection]))
	ids := make(map[*memDoc]string, len(m.collections[collection]))
	for id, d := range m.collections[collection] {
		docs = append(docs, d)
		ids[d] = id
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		doc, err := d.document(ids[d])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}

func (m *MemoryStore) Insert(_ context.Context, collection string, fields Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	data, err := normalizeFields(fields)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.put(collection, id, data)
	return id, nil
}

func (m *MemoryStore) Put(_ context.Context, collection string, records []Record) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	normalized := make([]map[string]any, len(records))
	for i, r := range records {
		if r.ID == "" {
			return 0, eris.Errorf("memory: put into %s: record without id", collection)
		}
		data, err := normalizeFields(r.Fields)
		if err != nil {
			return 0, err
		}
		normalized[i] = data
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range records {
		if existing, ok := m.collections[collection][r.ID]; ok {
			existing.data = normalized[i]
			existing.updatedAt = m.now()
			continue
		}
		m.put(collection, r.ID, normalized[i])
	}
	return len(records), nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	patch, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	merged := make(map[string]any, len(d.data)+len(patch))
	for k, v := range d.data {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	d.data = merged
	d.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}
	want, err := roundTrip(value)
	if err != nil {
		return nil, err
	}

	all, err := m.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []Document
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range all {
		d, ok := m.collections[collection][doc.ID]
		if !ok {
			continue
		}
		if got, ok := d.data[field]; ok && reflect.DeepEqual(got, want) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MemoryStore) Increment(_ context.Context, collection, id, field string, delta int) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkField(field); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.collections[collection][id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	current, _ := d.data[field].(float64)
	merged := make(map[string]any, len(d.data)+1)
	for k, v := range d.data {
		merged[k] = v
	}
	merged[field] = current + float64(delta)
	d.data = merged
	d.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) put(collection, id string, data map[string]any) {
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]*memDoc)
	}
	m.seq++
	now := m.now()
	m.collections[collection][id] = &memDoc{seq: m.seq, data: data, createdAt: now, updatedAt: now}
}

func (d *memDoc) document(id string) (Document, error) {
	raw, err := json.Marshal(d.data)
	if err != nil {
		return Document{}, eris.Wrapf(err, "memory: marshal document %s", id)
	}
	return Document{ID: id, Data: raw, CreatedAt: d.createdAt, UpdatedAt: d.updatedAt}, nil
}

// normalizeFields round-trips fields through JSON so stored values have the
// same shape a real backend would return.
func normalizeFields(fields Fields) (map[string]any, error) {
	if err := checkFields(fields); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, eris.Wrap(err, "memory: marshal fields")
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal fields")
	}
	return out, nil
}

func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "memory: marshal query value")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal query value")
	}
	return out, nil
}
