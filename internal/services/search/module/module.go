// Package module wires federated search into the API using modkit
package module

import (
	"net/http"

	modkit "bazaar/internal/modkit"
	"bazaar/internal/modkit/httpkit"
	"bazaar/internal/services/search/domain"
	shttp "bazaar/internal/services/search/http"
)

// Module implements the search API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc shttp.Service
}

// Ports declares the injected search service. The service graph (registry,
// cache, rates, telemetry) is owned by the process entry point, which keeps
// lifecycle control out of route wiring
type Ports struct {
	Searcher shttp.Service
	Warmer   domain.WarmerPort
}

// New constructs the search module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("search"),
		modkit.WithPrefix("/search"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Searcher == nil {
		panic("search module requires the Searcher port (built by the entry point)")
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       injected.Searcher,
	}
	m.ports = injected

	external := b.Register
	m.register = func(r httpkit.Router) {
		shttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }
