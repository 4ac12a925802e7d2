package main

import (
	"context"
	"flag"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store"

	searchmod "bazaar/internal/services/search/module"
	warmsvc "bazaar/internal/services/warmer/service"
)

func main() {
	root := config.New()
	searchCfg := root.Prefix("SEARCH_")
	warmCfg := root.Prefix("WARMER_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	st, err := store.Open(
		context.Background(),
		store.Config{
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
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

	var (
		fMode = flag.String("mode", "cron", "warmer mode: cron | once")
	)
	flag.Parse()

	// same connector graph the API serves from, minus the HTTP surface
	graph := searchmod.BuildGraph(searchCfg, st, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go graph.Run(ctx)

	warmer := warmsvc.New(
		graph.Ports().Warmer,
		warmsvc.Config{
			Schedule:    warmCfg.MayString("SCHEDULE", "@every 5m"),
			Concurrency: warmCfg.MayInt("CONCURRENCY", 4),
			Queries:     warmsvc.ParseQueries(warmCfg.MayCSV("QUERIES", nil)),
		},
		logger.Named("warmer"),
	)

	switch *fMode {
	case "once":
		n, err := warmer.RunOnce(ctx)
		if err != nil {
			l.Fatal().Err(err).Msg("warming pass failed")
		}
		l.Info().Int("warmed", n).Msg("warming pass complete")

	case "cron":
		if err := warmer.Run(ctx); err != nil {
			l.Fatal().Err(err).Msg("warmer stopped")
		}

	default:
		l.Panic().Str("mode", *fMode).Msg("warmer unknown -mode (expected: cron | once)")
	}
}
