// Package store is the document store behind every collection: companies,
// red flags and submissions. Records are schemaless JSON objects grouped by
// namespace and collection.
package store

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

var (
	// ErrStoreUnavailable is returned when the backend cannot serve a call:
	// offline mode, an open circuit, or an exhausted retry budget.
	ErrStoreUnavailable = eris.New("document store unavailable")

	// ErrNotFound is returned when an update targets a missing document.
	ErrNotFound = eris.New("document not found")
)

// Fields is a partial or complete document body keyed by top-level field.
type Fields map[string]any

// Document is a stored record.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return eris.Wrapf(err, "store: decode document %s", d.ID)
	}
	return nil
}

// Record is a document written under a caller-chosen id.
type Record struct {
	ID     string
	Fields Fields
}

// Store defines the document persistence contract.
type Store interface {
	// ListAll returns every document in the collection, oldest first.
	ListAll(ctx context.Context, collection string) ([]Document, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)
	// Insert stores a new document and returns its generated id.
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// Put writes records under their own ids, replacing existing bodies.
	Put(ctx context.Context, collection string, records []Record) (int, error)
	// Update shallow-merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// QueryWhere returns documents whose field equals value.
	QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Increment atomically adds delta to a numeric field, treating a missing
	// field as zero.
	Increment(ctx context.Context, collection, id, field string, delta int) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func checkCollection(collection string) error {
	if !identRe.MatchString(collection) {
		return eris.Errorf("store: invalid collection name %q", collection)
	}
	return nil
}

func checkField(field string) error {
	if !identRe.MatchString(field) {
		return eris.Errorf("store: invalid field name %q", field)
	}
	return nil
}

func checkFields(fields Fields) error {
	for k := range fields {
		if err := checkField(k); err != nil {
			return err
		}
	}
	return nil
}
