package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite and its JSON1
// functions.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
	now       func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, namespace string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, namespace: namespace, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(namespace, collection, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE namespace = ? AND collection = ? ORDER BY created_at, id`,
		s.namespace, collection,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", collection)
	}
	return scanDocuments(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE namespace = ? AND collection = ?`,
		s.namespace, collection,
	).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count %s", collection)
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	if err := checkFields(fields); err != nil {
		return "", err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal fields")
	}

	id := uuid.New().String()
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (namespace, collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.namespace, collection, id, string(data), now, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert into %s", collection)
	}
	return id, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection string, records []Record) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	for _, r := range records {
		if r.ID == "" {
			return 0, eris.Errorf("sqlite: put into %s: record without id", collection)
		}
		if err := checkFields(r.Fields); err != nil {
			return 0, err
		}
		data, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal record %s", r.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (namespace, collection, id, data, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (namespace, collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			s.namespace, collection, r.ID, string(data), now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: put %s/%s", collection, r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit put")
	}
	return len(records), nil
}

// Update merges fields with json_patch. Nested objects are merged rather than
// replaced, so callers write complete nested values.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkFields(fields); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = ?
		 WHERE namespace = ? AND collection = ? AND id = ?`,
		string(patch), s.now(), s.namespace, collection, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s/%s", collection, id)
	}
	return checkRowsAffected(res, collection, id)
}

func (s *SQLiteStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkField(field); err != nil {
		return nil, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal query value")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE namespace = ? AND collection = ? AND json_extract(data, ?) = json_extract(?, '$')
		 ORDER BY created_at, id`,
		s.namespace, collection, "$."+field, string(want),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s where %s", collection, field)
	}
	return scanDocuments(rows)
}

func (s *SQLiteStore) Increment(ctx context.Context, collection, id, field string, delta int) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkField(field); err != nil {
		return err
	}
	path := "$." + field
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?), updated_at = ?
		 WHERE namespace = ? AND collection = ? AND id = ?`,
		path, path, delta, s.now(), s.namespace, collection, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment %s/%s.%s", collection, id, field)
	}
	return checkRowsAffected(res, collection, id)
}

func checkRowsAffected(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close() //nolint:errcheck

	var docs []Document
	for rows.Next() {
		var d Document
		var data string
		if err := rows.Scan(&d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.Data = json.RawMessage(data)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}
