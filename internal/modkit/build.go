package modkit

import (
	"net/http"

	"marketfeed/internal/modkit/httpkit"
	pstrings "marketfeed/internal/platform/strings"
)

// Built is a plain struct with the fields modules care about
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Register func(httpkit.Router)
}

// Build applies Option funcs and returns a plain struct; later options win
// a prefix is normalized to one leading slash and no trailing slash, and "/" alone panics
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(httpkit.Router) {}
	}
	if c.prefix != "" {
		c.prefix = pstrings.MustPrefix(c.prefix)
	}
	return Built{
		Name:     c.name,
		Prefix:   c.prefix,
		Mw:       append([]func(http.Handler) http.Handler(nil), c.mw...),
		Register: c.register,
	}
}

// Mount routes the module under b.Prefix with its middlewares, then runs own and b.Register
// an empty prefix mounts directly on r inside a group
func (b Built) Mount(r httpkit.Router, own func(httpkit.Router)) {
	body := func(rr httpkit.Router) {
		if len(b.Mw) > 0 {
			rr.Use(b.Mw...)
		}
		own(rr)
		b.Register(rr)
	}
	if b.Prefix == "" {
		r.Group(body)
		return
	}
	r.Route(b.Prefix, body)
}
