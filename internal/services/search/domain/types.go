// Package domain defines the types and interfaces for the federated search service
package domain

import (
	"time"

	"bazaar/internal/core/geo"
)

// Mode narrows a search to a marketplace segment
type Mode string

// Search modes
const (
	ModeAll       Mode = "all"
	ModeRetail    Mode = "retail"
	ModeWholesale Mode = "wholesale"
	ModeLocal     Mode = "local"
)

// KnownMode reports whether m is one of the supported modes
func KnownMode(m Mode) bool {
	switch m {
	case ModeAll, ModeRetail, ModeWholesale, ModeLocal:
		return true
	}
	return false
}

// Price is an amount in a specific currency
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// SearchRequest is the immutable orchestration input; after normalization it
// also seeds the cache key
type SearchRequest struct {
	Query    string     `json:"q"`
	Mode     Mode       `json:"mode"`
	Locale   string     `json:"locale"`
	Currency string     `json:"currency"`
	Region   string     `json:"region"`
	Geo      *geo.Point `json:"geo,omitempty"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`

	// Intent is an optional caller supplied boost hint ("gift", "bulk", ...)
	// matched against result attributes during ranking
	Intent string `json:"intent,omitempty"`
}

// Offset returns the zero based slice offset for the request page
func (r SearchRequest) Offset() int {
	if r.Page <= 1 {
		return 0
	}
	return (r.Page - 1) * r.Limit
}

// RawResult is a connector native item; it is never cached or returned
// directly and always passes through normalization
type RawResult struct {
	SourceID   string            `json:"source_id"`
	Title      string            `json:"title"`
	Price      Price             `json:"price"`
	Seller     string            `json:"seller"`
	Cities     []string          `json:"cities,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Popularity float64           `json:"popularity"`
	Rating     float64           `json:"rating"`
}

// SearchResult is the canonical item; ID is stable across connectors once the
// merger identifies duplicates, Score is ranking output and never persisted
type SearchResult struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Price  Price    `json:"price"`
	Seller string   `json:"seller"`
	Cities []string `json:"cities,omitempty"`
	Score  float64  `json:"score"`
}

// SearchResponse is the unit stored in and served from the search result cache
type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	Total           int            `json:"total"`
	Query           string         `json:"query"`
	Sources         []string       `json:"sources"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	Suggestions     []string       `json:"suggestions,omitempty"`
}

// Offer is one connector's current listing for a product
type Offer struct {
	Connector    string    `json:"connector"`
	Price        Price     `json:"price"`
	Availability string    `json:"availability"`
	LastSeen     time.Time `json:"last_seen"`
}

// OffersResponse groups live offers for one product; cached under its own TTL
// class because offer freshness is tighter than search relevance
type OffersResponse struct {
	ProductID string  `json:"product_id"`
	Offers    []Offer `json:"offers"`
}

// Location is one geo tiled place record
type Location struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	City   string    `json:"city"`
	Point  geo.Point `json:"point"`
	Seller string    `json:"seller,omitempty"`
}
