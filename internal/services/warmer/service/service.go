// Package service schedules cache warming passes for popular queries
package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/services/search/domain"
)

// Config for the warmer
type Config struct {
	// Schedule is a cron spec; defaults to every five minutes
	Schedule string

	// Concurrency bounds parallel warm searches; defaults to 4
	Concurrency int

	// Queries are the popular searches to keep warm
	Queries []domain.SearchRequest
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@every 5m"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Warmer drives WarmerPort on a schedule through a bounded worker pool
type Warmer struct {
	warm domain.WarmerPort
	cfg  Config
	log  *logger.Logger
}

// New constructs the warmer
func New(w domain.WarmerPort, cfg Config, log *logger.Logger) *Warmer {
	if log == nil {
		log = logger.Named("warmer")
	}
	return &Warmer{warm: w, cfg: cfg.withDefaults(), log: log}
}

// RunOnce executes one warming pass and reports how many queries ended up
// with a real cached result
func (w *Warmer) RunOnce(ctx context.Context) (int, error) {
	if len(w.cfg.Queries) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(w.cfg.Concurrency)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var warmed atomic.Int64
	var wg sync.WaitGroup
	for _, q := range w.cfg.Queries {
		q := q
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			n, werr := w.warm.Warm(ctx, []domain.SearchRequest{q})
			if werr != nil {
				w.log.Warn().Err(werr).Str("query", q.Query).Msg("warm pass failed")
				return
			}
			warmed.Add(int64(n))
		}); err != nil {
			wg.Done()
			w.log.Warn().Err(err).Msg("pool submit failed")
		}
	}
	wg.Wait()

	w.log.Info().Int("warmed", int(warmed.Load())).Int("queries", len(w.cfg.Queries)).Msg("warming pass done")
	return int(warmed.Load()), nil
}

// Run warms once immediately, then on the cron schedule until ctx is done
func (w *Warmer) Run(ctx context.Context) error {
	if _, err := w.RunOnce(ctx); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(w.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_, _ = w.RunOnce(runCtx)
	}); err != nil {
		return perr.InvalidArgf("bad warm schedule %q: %v", w.cfg.Schedule, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ParseQueries turns "query|region|currency" config entries into requests
func ParseQueries(entries []string) []domain.SearchRequest {
	out := make([]domain.SearchRequest, 0, len(entries))
	for _, e := range entries {
		parts := strings.Split(e, "|")
		q := domain.SearchRequest{Query: strings.TrimSpace(parts[0])}
		if q.Query == "" {
			continue
		}
		if len(parts) > 1 {
			q.Region = strings.ToUpper(strings.TrimSpace(parts[1]))
		}
		if len(parts) > 2 {
			q.Currency = strings.ToUpper(strings.TrimSpace(parts[2]))
		}
		out = append(out, q)
	}
	return out
}
