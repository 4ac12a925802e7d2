// Package rds wraps the go-redis client behind a small constructor so the
// store package controls connect semantics in one place
package rds

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	Addr     string
	DB       int
	Password string
	PoolSize int

	// DialTimeout bounds the initial connect; go-redis defaults apply when zero
	DialTimeout time.Duration
}

// RDS owns one redis client
type RDS struct {
	Client *redis.Client
}

// Open builds the client and verifies connectivity once
func Open(ctx context.Context, cfg Config) (*RDS, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DB:          cfg.DB,
		Password:    cfg.Password,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RDS{Client: client}, nil
}

// Close releases the client pool
func (r *RDS) Close() error { return r.Client.Close() }
