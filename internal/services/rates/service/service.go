// Package service holds the in-process currency rate snapshot and keeps it
// refreshed from Postgres
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bazaar/internal/modkit/repokit"
	"bazaar/internal/platform/logger"
	"bazaar/internal/services/rates/domain"
)

// ErrEmptyRateTable is returned when the source has no usable rows; the
// previous snapshot stays in place
var ErrEmptyRateTable = errors.New("rates: source returned no rates")

// Config for the rates service
type Config struct {
	// RefreshEvery is the snapshot refresh interval; defaults to 5m
	RefreshEvery time.Duration

	// MaxRetryElapsed bounds one refresh's retry budget; defaults to 1m
	MaxRetryElapsed time.Duration

	// Static seeds the snapshot without a database; useful for dev and tests
	Static map[string]float64
}

func (c Config) withDefaults() Config {
	if c.RefreshEvery <= 0 {
		c.RefreshEvery = 5 * time.Minute
	}
	if c.MaxRetryElapsed <= 0 {
		c.MaxRetryElapsed = time.Minute
	}
	return c
}

// Service implements domain.SnapshotPort. Readers always see a complete
// table; refresh swaps the pointer atomically and never publishes a partial
// or empty snapshot
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.Repo]
	Cfg    Config

	log  *logger.Logger
	snap atomic.Pointer[map[string]float64]
}

var _ domain.SnapshotPort = (*Service)(nil)

// New constructs the rates service. DB may be nil when Cfg.Static is set
func New(db repokit.TxRunner, b repokit.Binder[domain.Repo], cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Named("rates")
	}
	s := &Service{DB: db, Binder: b, Cfg: cfg.withDefaults(), log: log}
	if len(cfg.Static) > 0 {
		seed := make(map[string]float64, len(cfg.Static))
		for k, v := range cfg.Static {
			seed[k] = v
		}
		s.snap.Store(&seed)
	}
	return s
}

// Snapshot implements domain.SnapshotPort; nil before the first load
func (s *Service) Snapshot() map[string]float64 {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return nil
}

// Refresh loads the current rate rows once and swaps the snapshot
func (s *Service) Refresh(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("rates: no database configured")
	}

	var rows []domain.Rate
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		rows, err = s.Binder.Bind(q).CurrentRates(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrEmptyRateTable
	}

	table := make(map[string]float64, len(rows))
	for _, r := range rows {
		table[r.Code] = r.PerUSD
	}
	s.snap.Store(&table)
	s.log.Debug().Int("currencies", len(table)).Msg("rate snapshot refreshed")
	return nil
}

// refreshWithRetry wraps Refresh in exponential backoff bounded by the
// configured elapsed budget
func (s *Service) refreshWithRetry(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.Cfg.MaxRetryElapsed
	return backoff.Retry(func() error {
		return s.Refresh(ctx)
	}, backoff.WithContext(bo, ctx))
}

// Run refreshes once immediately, then on the configured interval until ctx
// is done. A failed cycle keeps serving the previous snapshot
func (s *Service) Run(ctx context.Context) {
	if err := s.refreshWithRetry(ctx); err != nil {
		s.log.Warn().Err(err).Msg("initial rate refresh failed")
	}

	t := time.NewTicker(s.Cfg.RefreshEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.refreshWithRetry(ctx); err != nil {
				s.log.Warn().Err(err).Msg("rate refresh failed, serving stale snapshot")
			}
		}
	}
}
