package module

import (
	"context"
	"strconv"
	"strings"

	"bazaar/internal/core/merge"
	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store"
	qldom "bazaar/internal/services/querylog/domain"
	qlsvc "bazaar/internal/services/querylog/service"
	ratesrepo "bazaar/internal/services/rates/repo"
	ratessvc "bazaar/internal/services/rates/service"
	"bazaar/internal/services/search/cache"
	"bazaar/internal/services/search/connectors"
	"bazaar/internal/services/search/orchestrator"
	searchsvc "bazaar/internal/services/search/service"
)

// Graph is the constructed search service graph. The entry point builds one,
// starts Run in the background and injects Ports() into the API
type Graph struct {
	Registry *connectors.Registry
	Service  *searchsvc.Service
	Cache    *cache.Cache
	Rates    *ratessvc.Service
	Querylog *qlsvc.Writer

	log *logger.Logger
}

// BuildGraph wires registry, orchestrator, merger, cache, rates and
// telemetry from config and the open platform store.
//
// Connector wiring is env driven under the given Conf prefix:
// CONNECTORS names the set, then per connector <NAME>_URL, <NAME>_REGIONS,
// <NAME>_KEY and <NAME>_TIMEOUT describe the upstream. Every connector is
// wrapped in its own circuit breaker
func BuildGraph(cfg config.Conf, st *store.Store, log *logger.Logger) *Graph {
	if log == nil {
		log = logger.Named("search")
	}

	reg := connectors.NewRegistry()
	for _, name := range cfg.MayCSV("CONNECTORS", nil) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cc := cfg.Prefix(strings.ToUpper(name) + "_")
		regions := cc.MayCSV("REGIONS", nil)
		rest := connectors.NewREST(connectors.RESTConfig{
			Name:    name,
			BaseURL: cc.MustString("URL"),
			Regions: regions,
			APIKey:  cc.MayString("KEY", ""),
			Timeout: cc.MayDuration("TIMEOUT", 0),
		})
		reg.Register(connectors.WithBreaker(rest, connectors.BreakerSettings{}), regions...)
	}

	c := cache.New(st.RDS, cache.Config{
		SearchTTL: cfg.MayDuration("TTL_SEARCH", 0),
		OffersTTL: cfg.MayDuration("TTL_OFFERS", 0),
		GeoTTL:    cfg.MayDuration("TTL_GEO", 0),
		WarmTTL:   cfg.MayDuration("TTL_WARM", 0),
	}, logger.Named("cache"))

	rates := ratessvc.New(st.PG, ratesrepo.NewPG(), ratessvc.Config{
		RefreshEvery: cfg.MayDuration("RATES_REFRESH", 0),
		Static:       staticRates(cfg.MayCSV("RATES_STATIC", nil)),
	}, logger.Named("rates"))

	var emitter qldom.EmitterPort = qldom.NopEmitter{}
	var ql *qlsvc.Writer
	if st.CH != nil {
		ql = qlsvc.NewWriter(st.CH, qlsvc.Config{}, logger.Named("querylog"))
		emitter = ql
	}

	svc := searchsvc.New(searchsvc.Deps{
		Registry: reg,
		Orch: orchestrator.New(orchestrator.Config{
			Timeout: cfg.MayDuration("TIMEOUT", 0),
		}, logger.Named("orchestrator")),
		Merger:  merge.New(merge.DefaultConfig()),
		Cache:   c,
		Keys:    cache.NewKeys(),
		Rates:   rates,
		Emitter: emitter,
		Log:     log,
	}, searchsvc.Config{
		DefaultLimit: cfg.MayInt("DEFAULT_LIMIT", 0),
		MaxLimit:     cfg.MayInt("MAX_LIMIT", 0),
	})

	return &Graph{Registry: reg, Service: svc, Cache: c, Rates: rates, Querylog: ql, log: log}
}

// Run starts the background loops (rate refresh, cache sweeper, telemetry
// flush) and blocks until ctx is done
func (g *Graph) Run(ctx context.Context) {
	go g.Rates.Run(ctx)
	go g.Cache.RunSweeper(ctx)
	if g.Querylog != nil {
		go g.Querylog.Run(ctx)
	}
	<-ctx.Done()
}

// Ports exposes the graph to the API module
func (g *Graph) Ports() Ports {
	return Ports{Searcher: g.Service, Warmer: g.Service}
}

// staticRates parses "CODE=rate" pairs from config CSV
func staticRates(pairs []string) map[string]float64 {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		code, val, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || f <= 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = f
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
