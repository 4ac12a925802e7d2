// Package api provides the HTTP API for the application
package api

import (
	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	phttp "bazaar/internal/platform/net/http"
	"bazaar/internal/platform/store"

	"bazaar/internal/modkit"
	"bazaar/internal/modkit/httpkit"
	"bazaar/internal/modkit/module"
	"bazaar/internal/modkit/swaggerkit"

	metamod "bazaar/internal/services/api/meta/module"
	searchmod "bazaar/internal/services/search/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool

	// Search is the fully constructed service graph; the entry point owns
	// its lifecycle (rate refresh, cache sweeper, telemetry flush)
	Search searchmod.Ports
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
		KV:  opt.Store.RDS,
	}

	mods := []module.Module{
		metamod.New(deps),
		searchmod.New(deps, modkit.WithPorts(opt.Search)),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
