package modkit

import (
	"marketfeed/internal/modkit/httpkit"
)

// Module is the common surface for API modules that can mount routes
// keep this tiny so modules stay decoupled
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r httpkit.Router)
	// Name returns the module name used in logs
	Name() string
}

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module

// MountAll mounts every module on r in order
func MountAll(r httpkit.Router, mods ...Module) {
	for _, m := range mods {
		m.MountRoutes(r)
	}
}
