// Package module wires the files service into the API using modkit
package module

import (
	"context"

	"marketfeed/internal/modkit"
	"marketfeed/internal/modkit/httpkit"
	"marketfeed/internal/platform/logger"
	"marketfeed/internal/services/files/domain"
	fhttp "marketfeed/internal/services/files/http"
	"marketfeed/internal/services/files/repo"
	"marketfeed/internal/services/files/service"
)

// Module implements the files API module
type Module struct {
	built modkit.Built
	opts  Options
	svc   *service.Service
}

// New constructs the files module; the ClickHouse sink is attached when enabled and reachable
func New(ctx context.Context, deps modkit.Deps, opts ...modkit.Option) *Module {
	o := FromConfig(deps.Cfg)

	svcOpts := []service.Option{service.WithMetrics(deps.Metrics)}
	if o.CHSink {
		if sink, err := repo.NewSink(ctx, deps.CH); err != nil {
			logger.Named("files").Warn().Err(err).Msg("update sink disabled")
		} else {
			svcOpts = append(svcOpts, service.WithSink(sink))
		}
	}

	return &Module{
		built: modkit.Build(append([]modkit.Option{modkit.WithName("files")}, opts...)...),
		opts:  o,
		svc: service.New(deps.Blobs, service.Config{
			Workers:     o.Workers,
			MaxExpanded: o.MaxExpanded,
		}, svcOpts...),
	}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Service exposes the files port
func (m *Module) Service() domain.ServicePort { return m.svc }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(rr httpkit.Router) {
		fhttp.Register(rr, m.svc, fhttp.Options{MaxUploadBytes: m.opts.MaxUploadBytes})
	})
}
