// Package api provides the HTTP API for the application
package api

import (
	"context"
	"time"

	"marketfeed/internal/modkit"
	"marketfeed/internal/modkit/httpkit"
	"marketfeed/internal/modkit/swaggerkit"
	"marketfeed/internal/platform/config"
	"marketfeed/internal/platform/metrics"
	phttp "marketfeed/internal/platform/net/http"
	"marketfeed/internal/platform/store"

	metamod "marketfeed/internal/services/api/meta/module"
	filesmod "marketfeed/internal/services/files/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Metrics        *metrics.Metrics
	CORSOrigins    []string
	SlowRequest    time.Duration
	EnableSwagger  bool
	EnableProfiler bool
}

// FromConfig reads CORE_API_* settings into opt, keeping the given Store and Metrics
func FromConfig(cfg config.Conf, s *store.Store, m *metrics.Metrics) Options {
	ac := cfg.Prefix("CORE_API_")
	return Options{
		Config:         cfg,
		Store:          s,
		Metrics:        m,
		CORSOrigins:    ac.MayCSV("CORS_ORIGINS", []string{"*"}),
		SlowRequest:    ac.MayDuration("SLOW_REQUEST", 2*time.Second),
		EnableSwagger:  ac.MayBool("SWAGGER", false),
		EnableProfiler: ac.MayBool("PROFILER", false),
	}
}

// Mount mounts the API service onto the given router
// meta routes sit at the root, file routes under /api
func Mount(ctx context.Context, r phttp.Router, opt Options) {
	deps := modkit.FromStore(opt.Store, opt.Config, opt.Metrics)

	r.Use(httpkit.CommonStack(httpkit.StackOptions{
		CORSOrigins: opt.CORSOrigins,
		SlowRequest: opt.SlowRequest,
		Metrics:     opt.Metrics,
	})...)

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	modkit.MountAll(r,
		metamod.New(deps),
		filesmod.New(ctx, deps, modkit.WithPrefix("/api")),
	)
}
