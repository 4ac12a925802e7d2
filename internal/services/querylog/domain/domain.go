// Package domain defines the search telemetry record and emitter port
package domain

import "time"

// Record is one search request's telemetry row
type Record struct {
	// ID correlates the row with server logs; assigned by the writer when empty
	ID          string
	At          time.Time
	Query       string
	Mode        string
	Region      string
	Currency    string
	Sources     []string
	ResultCount int
	CacheHit    bool
	ElapsedMs   int64
}

// EmitterPort accepts telemetry without blocking the request path.
// Implementations drop records under pressure rather than slow a search
type EmitterPort interface {
	Emit(r Record)
}

// NopEmitter discards every record
type NopEmitter struct{}

// Emit implements EmitterPort
func (NopEmitter) Emit(Record) {}
