package store

import (
	"context"
	"fmt"
	"time"

	"marketfeed/internal/platform/store/blob"
	chx "marketfeed/internal/platform/store/ch"
	"marketfeed/internal/platform/store/pg"
)

var (
	openCHClient = chx.Open
	sleep        = time.Sleep
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		AppName:  cfg.AppName,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)

	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx) // pool directly, no trace line per attempt
		cancel()

		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		if ctx.Err() != nil {
			p.Close()
			return nil, ctx.Err()
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Msg("postgres not ready")
		sleep(backoff)
		if backoff < backoffCeiling {
			backoff = min(backoff*2, backoffCeiling)
		}
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Clickhouse, error) {
	c, err := openCHClient(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, Tag: cfg.CH.Tag})
	if err != nil {
		return nil, err
	}
	return newCHAdapter(c), nil
}

func openBlobs(ctx context.Context, cfg Config, s *Store) (blob.Store, error) {
	f, ok := s.factories[cfg.Blob.Backend]
	if !ok {
		return nil, fmt.Errorf("store: unknown blob backend %q", cfg.Blob.Backend)
	}
	b, err := f(ctx, s, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("store: open %s blobs: %w", cfg.Blob.Backend, err)
	}
	s.Log.Info().Str("backend", b.Backend()).Msg("blob store ready")
	return b, nil
}

func builtinBlobs() map[string]BlobFactory {
	return map[string]BlobFactory{
		blob.BackendLocal: func(_ context.Context, _ *Store, c BlobConfig) (blob.Store, error) {
			return blob.NewLocal(c.Root)
		},
		blob.BackendBadger: func(_ context.Context, _ *Store, c BlobConfig) (blob.Store, error) {
			return blob.OpenBadger(c.BadgerPath)
		},
		blob.BackendGCS: func(ctx context.Context, _ *Store, c BlobConfig) (blob.Store, error) {
			return blob.OpenGCS(ctx, blob.GCSConfig{Bucket: c.GCSBucket, CredentialsJSON: c.GCSCredentials})
		},
	}
}
