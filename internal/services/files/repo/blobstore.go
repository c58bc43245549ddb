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

// Blobs adapts the feed_files table to blob.Store
type Blobs struct {
	tx    repokit.TxRunner
	files Storage
	now   func() time.Time
}

var _ blob.Store = (*Blobs)(nil)

// NewBlobs migrates the table and returns the backend
func NewBlobs(ctx context.Context, tx repokit.TxRunner) (*Blobs, error) {
	if tx == nil {
		return nil, errors.New("pg blobs: postgres is not enabled")
	}
	b := &Blobs{tx: tx, files: repokit.MustBind(NewPG(), tx), now: time.Now}
	if err := b.files.Migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Factory plugs the pg backend into store.Open
func Factory(ctx context.Context, s *store.Store, _ store.BlobConfig) (blob.Store, error) {
	return NewBlobs(ctx, s.PG)
}

func valid(cat blob.Category, name string) error {
	if !cat.Valid() {
		return perr.InvalidArgf("unknown category %q", cat)
	}
	return blob.CheckName(name)
}

// Put implements blob.Store
func (b *Blobs) Put(ctx context.Context, cat blob.Category, name string, data []byte) error {
	if err := valid(cat, name); err != nil {
		return err
	}
	return b.files.Put(ctx, cat, name, data, b.now())
}

// Get implements blob.Store
func (b *Blobs) Get(ctx context.Context, cat blob.Category, name string) ([]byte, error) {
	if err := valid(cat, name); err != nil {
		return nil, err
	}
	return b.files.Get(ctx, cat, name)
}

// Exists implements blob.Store
func (b *Blobs) Exists(ctx context.Context, cat blob.Category, name string) (bool, error) {
	if err := valid(cat, name); err != nil {
		return false, err
	}
	return b.files.Exists(ctx, cat, name)
}

// List implements blob.Store
func (b *Blobs) List(ctx context.Context, cat blob.Category) ([]blob.FileInfo, error) {
	if !cat.Valid() {
		return nil, perr.InvalidArgf("unknown category %q", cat)
	}
	return b.files.List(ctx, cat)
}

// Clear implements blob.Store
func (b *Blobs) Clear(ctx context.Context, cat blob.Category) error {
	if !cat.Valid() {
		return perr.InvalidArgf("unknown category %q", cat)
	}
	_, err := b.files.Clear(ctx, cat)
	return err
}

// Backend implements blob.Store
func (*Blobs) Backend() string { return blob.BackendPG }

// Ping implements blob.Store
func (b *Blobs) Ping(ctx context.Context) error {
	_, err := store.Scalar[int](ctx, b.tx, "SELECT 1")
	return err
}

// Close is a no op; the pool belongs to the store
func (*Blobs) Close() error { return nil }
