// @title         Market Feed API
// @version       1.0.0
// @description   Upload, parse and export Betfair historical market feed files

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketfeed/internal/modkit/repokit"
	"marketfeed/internal/platform/config"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/platform/metrics"
	phttp "marketfeed/internal/platform/net/http"
	"marketfeed/internal/platform/store"
	"marketfeed/internal/platform/store/blob"

	"marketfeed/internal/services/api"
	filesrepo "marketfeed/internal/services/files/repo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	// container platforms hand us PORT
	if p := root.MayString("PORT", ""); p != "" && apiCfg.MayString("API_PORT", "") == "" {
		_ = os.Setenv("CORE_API_API_PORT", p)
	}

	l := logger.Get()

	st, err := store.Open(ctx,
		store.ConfigFromEnv(root, "marketfeed-api", "api"),
		store.WithLogger(*l),
		store.WithBlobFactory(blob.BackendPG, filesrepo.Factory),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	srv := phttp.NewServer(apiCfg)
	api.Mount(ctx, srv.Router(), api.FromConfig(root, st, metrics.New()))

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
