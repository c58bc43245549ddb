// Package repo provides the files repositories: a Postgres blob backend and a ClickHouse update sink
package repo

import (
	"context"
	"errors"
	"time"

	"marketfeed/internal/modkit/repokit"
	perr "marketfeed/internal/platform/errors"
	"marketfeed/internal/platform/store"
	"marketfeed/internal/platform/store/blob"
)

// Schema is applied by Migrate; files are small enough to live in bytea
const Schema = `
CREATE TABLE IF NOT EXISTS feed_files (
	category    text        NOT NULL,
	filename    text        NOT NULL,
	data        bytea       NOT NULL,
	size_bytes  bigint      NOT NULL,
	uploaded_at timestamptz NOT NULL,
	PRIMARY KEY (category, filename)
);
CREATE INDEX IF NOT EXISTS feed_files_recent ON feed_files (category, uploaded_at DESC);`

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage is the feed_files table
type Storage interface {
	Migrate(ctx context.Context) error
	Put(ctx context.Context, cat blob.Category, name string, data []byte, at time.Time) error
	Get(ctx context.Context, cat blob.Category, name string) ([]byte, error)
	Exists(ctx context.Context, cat blob.Category, name string) (bool, error)
	List(ctx context.Context, cat blob.Category) ([]blob.FileInfo, error)
	Clear(ctx context.Context, cat blob.Category) (int64, error)
}

func (s *pg) Migrate(ctx context.Context) error {
	_, err := s.q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "migrate feed_files")
}

func (s *pg) Put(ctx context.Context, cat blob.Category, name string, data []byte, at time.Time) error {
	// an upsert touches exactly one row whether it inserts or updates
	err := store.ExecOne(ctx, s.q, `
		INSERT INTO feed_files (category, filename, data, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (category, filename) DO UPDATE
		SET data = EXCLUDED.data, size_bytes = EXCLUDED.size_bytes, uploaded_at = EXCLUDED.uploaded_at`,
		string(cat), name, data, int64(len(data)), at.UTC())
	return perr.FromPostgresf(err, "put %s/%s", cat, name)
}

func (s *pg) Get(ctx context.Context, cat blob.Category, name string) ([]byte, error) {
	data, err := store.One(ctx, s.q, scanData,
		`SELECT data FROM feed_files WHERE category = $1 AND filename = $2`,
		string(cat), name)
	if errors.Is(err, perr.ErrNotFound) {
		return nil, perr.NotFoundf("%s/%s not found", cat, name)
	}
	if err != nil {
		return nil, perr.FromPostgresf(err, "get %s/%s", cat, name)
	}
	return data, nil
}

func scanData(r store.Row) ([]byte, error) {
	var data []byte
	err := r.Scan(&data)
	return data, err
}

func (s *pg) Exists(ctx context.Context, cat blob.Category, name string) (bool, error) {
	ok, err := store.Scalar[bool](ctx, s.q,
		`SELECT EXISTS (SELECT 1 FROM feed_files WHERE category = $1 AND filename = $2)`,
		string(cat), name)
	return ok, perr.FromPostgresf(err, "exists %s/%s", cat, name)
}

func (s *pg) List(ctx context.Context, cat blob.Category) ([]blob.FileInfo, error) {
	out, err := store.Many(ctx, s.q, scanInfo, `
		SELECT filename, size_bytes, uploaded_at
		FROM feed_files
		WHERE category = $1
		ORDER BY uploaded_at DESC, filename`, string(cat))
	if err != nil {
		return nil, perr.FromPostgresf(err, "list %s", cat)
	}
	return out, nil
}

func (s *pg) Clear(ctx context.Context, cat blob.Category) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM feed_files WHERE category = $1`, string(cat))
	if err != nil {
		return 0, perr.FromPostgresf(err, "clear %s", cat)
	}
	return tag.RowsAffected(), nil
}

func scanInfo(r store.Row) (blob.FileInfo, error) {
	var (
		name string
		size int64
		at   time.Time
	)
	if err := r.Scan(&name, &size, &at); err != nil {
		return blob.FileInfo{}, err
	}
	return blob.NewFileInfo(name, size, at), nil
}
