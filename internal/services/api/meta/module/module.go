// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	"marketfeed/internal/modkit"
	"marketfeed/internal/modkit/httpkit"
	metahttp "marketfeed/internal/services/api/meta/http"
)

// ServiceName is reported by /service and /version
const ServiceName = "marketfeed-api"

// Module implements the modkit.Module interface
type Module struct {
	built     modkit.Built
	deps      modkit.Deps
	startedAt time.Time
}

// New constructs a meta module; it mounts at the root unless a prefix is given
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	return &Module{
		built:     modkit.Build(append([]modkit.Option{modkit.WithName("meta")}, opts...)...),
		deps:      deps,
		startedAt: time.Now(),
	}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	checks := map[string]metahttp.Pinger{}
	if m.deps.PG != nil {
		if p, ok := m.deps.PG.(metahttp.Pinger); ok {
			checks["pg"] = p
		}
	}
	if m.deps.CH != nil {
		checks["ch"] = m.deps.CH
	}
	if m.deps.Blobs != nil {
		checks["blobs"] = m.deps.Blobs
	}

	m.built.Mount(r, func(rr httpkit.Router) {
		metahttp.Register(rr, metahttp.Deps{
			ServiceName: ServiceName,
			StartedAt:   m.startedAt,
			Checks:      checks,
			Metrics:     m.deps.Metrics.Handler(),
		})
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.built.Name }
