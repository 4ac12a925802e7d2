// Package ch provides a clickhouse client
package ch

import (
	"context"
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL string

	// ClientName and ClientTag identify this process in server side logs
	ClientName string
	ClientTag  string
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH owns one native protocol connection pool
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and dials clickhouse
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.ClientName != "" {
		opts.ClientInfo = BuildClientInfo(cfg.ClientTag, cfg.ClientName)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &CH{conn: conn}, nil
}

// Insert appends rows to table via a prepared batch
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if c == nil || c.conn == nil {
		return errors.New("ch: nil connection")
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("ch: nil connection")
	}
	r, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &driverRows{r: r}, nil
}

// Close closes the pool
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// driverRows adapts driver.Rows to ch.Rows
type driverRows struct {
	r driver.Rows
}

func (d *driverRows) Next() bool             { return d.r.Next() }
func (d *driverRows) Scan(dest ...any) error { return d.r.Scan(dest...) }
func (d *driverRows) Err() error             { return d.r.Err() }
func (d *driverRows) Close() error           { return d.r.Close() }
func (d *driverRows) Columns() []string      { return d.r.Columns() }
