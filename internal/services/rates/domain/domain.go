// Package domain defines the currency rate snapshot types and ports
package domain

import (
	"context"
	"time"
)

// Rate is one currency's conversion factor against the USD pivot
type Rate struct {
	Code      string    `json:"code"`
	PerUSD    float64   `json:"per_usd"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repo loads the current rate rows
type Repo interface {
	CurrentRates(ctx context.Context) ([]Rate, error)
}

// SnapshotPort serves the latest loaded rate table. Implementations must be
// safe for concurrent reads; the search path calls Snapshot per request
type SnapshotPort interface {
	Snapshot() map[string]float64
}
