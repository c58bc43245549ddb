package store

import (
	"context"
	"errors"
	"testing"

	"marketfeed/internal/platform/store/blob"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingStub struct {
	blob.Store
	err    error
	closed bool
}

func (p *pingStub) Ping(context.Context) error { return p.err }
func (p *pingStub) Close() error               { p.closed = true; return nil }
func (p *pingStub) Backend() string            { return "stub" }

func TestOpen_NothingEnabled(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, s.PG)
	assert.Nil(t, s.CH)
	assert.Nil(t, s.Blobs)
	require.NoError(t, s.Guard(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}

func TestOpen_LocalBlobs(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{Blob: BlobConfig{Backend: blob.BackendLocal, Root: t.TempDir()}},
		WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NotNil(t, s.Blobs)
	assert.Equal(t, blob.BackendLocal, s.Blobs.Backend())
	require.NoError(t, s.Guard(context.Background()))
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Blob: BlobConfig{Backend: "s3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown blob backend "s3"`)
}

func TestOpen_RegisteredFactory(t *testing.T) {
	t.Parallel()

	stub := &pingStub{}
	var sawStore *Store
	s, err := Open(context.Background(), Config{Blob: BlobConfig{Backend: "pg"}},
		WithBlobFactory("pg", func(_ context.Context, st *Store, _ BlobConfig) (blob.Store, error) {
			sawStore = st
			return stub, nil
		}))
	require.NoError(t, err)
	assert.Same(t, s, sawStore)
	assert.Same(t, stub, s.Blobs)

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, stub.closed)
}

func TestOpen_FactoryError(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Blob: BlobConfig{Backend: "x"}},
		WithBlobFactory("x", func(context.Context, *Store, BlobConfig) (blob.Store, error) {
			return nil, errors.New("nope")
		}))
	require.ErrorContains(t, err, "open x blobs: nope")
}

func TestWithBlobFactory_Rejects(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{}, WithBlobFactory("", nil))
	require.Error(t, err)
}

func TestGuard_JoinsFailures(t *testing.T) {
	t.Parallel()

	s := &Store{Blobs: &pingStub{err: errors.New("disk gone")}}
	err := s.Guard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob: disk gone")

	var nilStore *Store
	assert.Error(t, nilStore.Guard(context.Background()))
	assert.NoError(t, nilStore.Close(context.Background()))
}
