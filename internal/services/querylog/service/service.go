// Package service writes search telemetry to ClickHouse in async batches.
// One goroutine owns the buffer; producers only touch the channel, so there
// is no mutex anywhere on the hot path
package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store"
	"bazaar/internal/services/querylog/domain"
)

// Table is the ClickHouse destination table
const Table = `search_queries
	(id, ts, query, mode, region, currency, sources, result_count, cache_hit, elapsed_ms)`

// Config for the querylog writer
type Config struct {
	// Buffer is the channel capacity; full buffer drops records. Defaults 1024
	Buffer int

	// BatchSize flushes when this many records are pending. Defaults 128
	BatchSize int

	// FlushEvery flushes partial batches on this interval. Defaults 2s
	FlushEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 128
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	return c
}

// Writer implements domain.EmitterPort over the CH seam
type Writer struct {
	ch   store.Clickhouse
	cfg  Config
	log  *logger.Logger
	in   chan domain.Record
	drop atomic.Int64
}

var _ domain.EmitterPort = (*Writer)(nil)

// NewWriter constructs the writer; call Run to start the flush loop
func NewWriter(ch store.Clickhouse, cfg Config, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Named("querylog")
	}
	cfg = cfg.withDefaults()
	return &Writer{ch: ch, cfg: cfg, log: log, in: make(chan domain.Record, cfg.Buffer)}
}

// Emit implements domain.EmitterPort. Never blocks; a full buffer drops the
// record and bumps a counter
func (w *Writer) Emit(r domain.Record) {
	select {
	case w.in <- r:
	default:
		w.drop.Add(1)
	}
}

// Dropped reports how many records were shed under pressure
func (w *Writer) Dropped() int64 { return w.drop.Load() }

// Run owns the batch buffer until ctx is done, then drains what is pending.
// Flush failures are logged and the batch discarded; telemetry loss never
// propagates anywhere near a request
func (w *Writer) Run(ctx context.Context) {
	t := time.NewTicker(w.cfg.FlushEvery)
	defer t.Stop()

	batch := make([]domain.Record, 0, w.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.write(batch); err != nil {
			w.log.Warn().Err(err).Int("records", len(batch)).Msg("querylog flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// drain without blocking on producers
			for {
				select {
				case r := <-w.in:
					batch = append(batch, r)
					if len(batch) >= w.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case r := <-w.in:
			batch = append(batch, r)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-t.C:
			flush()
		}
	}
}

func (w *Writer) write(batch []domain.Record) error {
	rows := make([][]any, 0, len(batch))
	for _, r := range batch {
		at := r.At
		if at.IsZero() {
			at = time.Now()
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows = append(rows, []any{
			id,
			at.UTC(),
			r.Query,
			r.Mode,
			r.Region,
			r.Currency,
			strings.Join(r.Sources, ","),
			int32(r.ResultCount),
			boolToUInt8(r.CacheHit),
			r.ElapsedMs,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.ch.Insert(ctx, Table, rows)
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
