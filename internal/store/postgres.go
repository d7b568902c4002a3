package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-checkup/internal/db"
)

// PostgresStore implements Store on a JSONB documents table using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	closeFn   func()
	namespace string
	now       func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString, namespace string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, pool.Close, namespace), nil
}

func newPostgresWithPool(pool db.Pool, closeFn func(), namespace string) *PostgresStore {
	return &PostgresStore{
		pool:      pool,
		closeFn:   closeFn,
		namespace: namespace,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(namespace, collection, created_at);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE namespace = $1 AND collection = $2 ORDER BY created_at, id`,
		s.namespace, collection,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", collection)
	}
	return collectDocuments(rows)
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE namespace = $1 AND collection = $2`,
		s.namespace, collection,
	).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count %s", collection)
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	if err := checkFields(fields); err != nil {
		return "", err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal fields")
	}

	id := uuid.New().String()
	now := s.now()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (namespace, collection, id, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.namespace, collection, id, string(data), now, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert into %s", collection)
	}
	return id, nil
}

// Put upserts records through a COPY-staged bulk upsert.
func (s *PostgresStore) Put(ctx context.Context, collection string, records []Record) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}

	now := s.now()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return 0, eris.Errorf("postgres: put into %s: record without id", collection)
		}
		if err := checkFields(r.Fields); err != nil {
			return 0, err
		}
		data, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal record %s", r.ID)
		}
		rows = append(rows, []any{s.namespace, collection, r.ID, string(data), now, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "documents",
		Columns:      []string{"namespace", "collection", "id", "data", "created_at", "updated_at"},
		ConflictKeys: []string{"namespace", "collection", "id"},
		UpdateCols:   []string{"data", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: put into %s", collection)
	}
	return int(n), nil
}

// Update shallow-merges fields with the jsonb concatenation operator.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkFields(fields); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $1::jsonb, updated_at = $2
		 WHERE namespace = $3 AND collection = $4 AND id = $5`,
		string(patch), s.now(), s.namespace, collection, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s/%s", collection, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func (s *PostgresStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkField(field); err != nil {
		return nil, err
	}
	contains, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal query value")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
		 WHERE namespace = $1 AND collection = $2 AND data @> $3::jsonb
		 ORDER BY created_at, id`,
		s.namespace, collection, string(contains),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s where %s", collection, field)
	}
	return collectDocuments(rows)
}

func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := checkField(field); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET data = jsonb_set(data, ARRAY[$1::text], to_jsonb(COALESCE((data->>$1)::numeric, 0) + $2)), updated_at = $3
		 WHERE namespace = $4 AND collection = $5 AND id = $6`,
		field, delta, s.now(), s.namespace, collection, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment %s/%s.%s", collection, id, field)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func collectDocuments(rows pgx.Rows) ([]Document, error) {
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var data []byte
		if err := rows.Scan(&d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.Data = json.RawMessage(data)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}
