// @title         Bazaar API
// @version       0.1.0
// @description   Federated catalog search with multi-class caching

package main

import (
	"context"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	phttp "bazaar/internal/platform/net/http"
	"bazaar/internal/platform/store"

	"bazaar/internal/services/api"
	searchmod "bazaar/internal/services/search/module"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	searchCfg := root.Prefix("SEARCH_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	rdsCfg := root.Prefix("SERVICE_REDIS_")     // rdsCfg lives under SERVICE_REDIS_*

	// bring up logging early
	l := logger.Get()

	// open the platform store (postgres + CH + redis)
	st, err := store.Open(
		context.Background(),
		store.Config{
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", true),
			},
			CH: store.CHConfig{
				Enabled:    chCfg.MayString("DBURL", "") != "",
				URL:        chCfg.MayString("DBURL", ""),
				ClientName: "bazaar",
				ClientTag:  "api",
			},
			RDS: store.RedisConfig{
				Enabled:  true,
				Addr:     rdsCfg.MustString("ADDR"),
				DB:       rdsCfg.MayInt("DB", 0),
				Password: rdsCfg.MayString("PASSWORD", ""),
				PoolSize: rdsCfg.MayInt("POOL_SIZE", 0),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// the search graph plus its background loops
	graph := searchmod.BuildGraph(searchCfg, st, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go graph.Run(ctx)

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
			Search:         graph.Ports(),
		},
	)

	// run
	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
