package domain

import "context"

// Connector adapts one upstream marketplace's search capability
// Adapters are expected to apply their own short client side timeout below the
// orchestrator deadline, but the orchestrator never relies on that
type Connector interface {
	Name() string
	SupportsRegion(region string) bool
	Search(ctx context.Context, req SearchRequest) ([]RawResult, error)
}

// OfferProvider is an optional connector extension for live per product offers
// The offers path fans out only to connectors that implement it
type OfferProvider interface {
	Offers(ctx context.Context, productID string) ([]Offer, error)
}

// SearcherPort executes federated searches
type SearcherPort interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Offers(ctx context.Context, productID string, req SearchRequest) (OffersResponse, error)
}

// WarmerPort pre-populates the cache for anticipated popular queries
type WarmerPort interface {
	Warm(ctx context.Context, reqs []SearchRequest) (int, error)
}

// RatesPort provides the current currency rate snapshot
type RatesPort interface {
	Snapshot() map[string]float64
}
