// Package service wires registry, orchestrator, merger, currency and cache
// into the federated search request cycle
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"bazaar/internal/core/currency"
	"bazaar/internal/core/merge"
	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	qldom "bazaar/internal/services/querylog/domain"
	"bazaar/internal/services/search/cache"
	"bazaar/internal/services/search/connectors"
	"bazaar/internal/services/search/domain"
	"bazaar/internal/services/search/orchestrator"
)

// Config for the search service
type Config struct {
	// DefaultLimit applies when the request carries none; defaults to 20
	DefaultLimit int

	// MaxLimit rejects larger page sizes; defaults to 100
	MaxLimit int
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 20
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	return c
}

// Deps are the collaborators the service is constructed over. No module
// level singletons anywhere; the process entry point owns every lifecycle
type Deps struct {
	Registry *connectors.Registry
	Orch     *orchestrator.Orchestrator
	Merger   *merge.Merger
	Cache    *cache.Cache
	Keys     *cache.Keys
	Rates    domain.RatesPort
	Emitter  qldom.EmitterPort
	Log      *logger.Logger
}

// Service implements domain.SearcherPort and domain.WarmerPort
type Service struct {
	d   Deps
	cfg Config
	sf  singleflight.Group
}

var (
	_ domain.SearcherPort = (*Service)(nil)
	_ domain.WarmerPort   = (*Service)(nil)
)

// New constructs the search service
func New(d Deps, cfg Config) *Service {
	if d.Log == nil {
		d.Log = logger.Named("search")
	}
	if d.Keys == nil {
		d.Keys = cache.NewKeys()
	}
	if d.Emitter == nil {
		d.Emitter = qldom.NopEmitter{}
	}
	return &Service{d: d, cfg: cfg.withDefaults()}
}

// Search implements domain.SearcherPort. Cache first; misses are collapsed
// per key so a stampede on one cold query costs one fan out
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	started := time.Now()

	req, err := s.normalizeReq(req)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	table := currency.Table(s.d.Rates.Snapshot())
	if !table.Supported(currency.Pivot, req.Currency) {
		return domain.SearchResponse{}, perr.UnsupportedCurrencyf("unsupported currency %q", req.Currency)
	}

	key := s.d.Keys.Search(req)
	if entry, ok := s.d.Cache.Get(ctx, key); ok {
		var resp domain.SearchResponse
		if err := entry.Decode(&resp); err == nil {
			s.emit(req, resp, true, time.Since(started))
			return resp, nil
		}
		s.d.Log.Warn().Str("key", key).Msg("cached search response undecodable, refetching")
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.searchUpstream(ctx, req, table, key)
	})
	if err != nil {
		return domain.SearchResponse{}, err
	}
	resp := v.(domain.SearchResponse)
	s.emit(req, resp, false, time.Since(started))
	return resp, nil
}

// searchUpstream is the uncached path: fan out, merge, price, page, cache
func (s *Service) searchUpstream(
	ctx context.Context,
	req domain.SearchRequest,
	table currency.Table,
	key string,
) (domain.SearchResponse, error) {
	conns := s.d.Registry.Resolve(req.Region, true)
	out := s.d.Orch.FanOut(ctx, conns, req)

	merged, _ := s.d.Merger.Merge(out.Results, req)
	priced := s.priceAll(merged, req.Currency, table)

	resp := domain.SearchResponse{
		Results:         merge.Page(priced, req.Offset(), req.Limit),
		Total:           len(priced),
		Query:           req.Query,
		Sources:         out.Sources,
		ExecutionTimeMs: out.Elapsed.Milliseconds(),
	}
	_ = s.d.Cache.Set(ctx, cache.ClassSearch, key, resp, 0)
	return resp, nil
}

// priceAll converts every result into the target currency before anything is
// cached or returned. An item whose source currency has no rate is dropped,
// never served unconverted
func (s *Service) priceAll(items []domain.SearchResult, target string, table currency.Table) []domain.SearchResult {
	priced := make([]domain.SearchResult, 0, len(items))
	for _, r := range items {
		amt, err := currency.Convert(r.Price.Amount, r.Price.Currency, target, table)
		if err != nil {
			s.d.Log.Debug().
				Str("id", r.ID).
				Str("from", r.Price.Currency).
				Msg("dropping result without a usable rate")
			continue
		}
		r.Price = domain.Price{Amount: currency.Round(amt, target), Currency: target}
		priced = append(priced, r)
	}
	return priced
}

// Offers implements domain.SearcherPort
func (s *Service) Offers(ctx context.Context, productID string, req domain.SearchRequest) (domain.OffersResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.OffersResponse{}, perr.InvalidArgf("product id is required")
	}
	req, err := s.normalizeReq(domain.SearchRequest{
		Query:    productID, // offers validation does not need a free text query
		Mode:     req.Mode,
		Currency: req.Currency,
		Region:   req.Region,
		Geo:      req.Geo,
		Page:     1,
		Limit:    1,
	})
	if err != nil {
		return domain.OffersResponse{}, err
	}
	table := currency.Table(s.d.Rates.Snapshot())
	if !table.Supported(currency.Pivot, req.Currency) {
		return domain.OffersResponse{}, perr.UnsupportedCurrencyf("unsupported currency %q", req.Currency)
	}

	key := s.d.Keys.Offers(productID, req.Currency, req.Geo)
	if entry, ok := s.d.Cache.Get(ctx, key); ok {
		var resp domain.OffersResponse
		if err := entry.Decode(&resp); err == nil {
			return resp, nil
		}
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		conns := s.d.Registry.Resolve(req.Region, true)
		offers, _ := s.d.Orch.FanOutOffers(ctx, conns, productID)

		priced := make([]domain.Offer, 0, len(offers))
		for _, o := range offers {
			amt, cerr := currency.Convert(o.Price.Amount, o.Price.Currency, req.Currency, table)
			if cerr != nil {
				continue
			}
			o.Price = domain.Price{Amount: currency.Round(amt, req.Currency), Currency: req.Currency}
			priced = append(priced, o)
		}
		// completion order is nondeterministic; settle on a stable one
		sort.Slice(priced, func(i, j int) bool {
			if priced[i].Connector != priced[j].Connector {
				return priced[i].Connector < priced[j].Connector
			}
			return priced[i].Price.Amount < priced[j].Price.Amount
		})

		resp := domain.OffersResponse{ProductID: productID, Offers: priced}
		_ = s.d.Cache.Set(ctx, cache.ClassOffers, key, resp, 0)
		return resp, nil
	})
	if err != nil {
		return domain.OffersResponse{}, err
	}
	return v.(domain.OffersResponse), nil
}

// Warm implements domain.WarmerPort: drop a short lived placeholder per
// query, then overwrite it with a real orchestrated search before it lapses
func (s *Service) Warm(ctx context.Context, reqs []domain.SearchRequest) (int, error) {
	warmed := 0
	for _, raw := range reqs {
		req, err := s.normalizeReq(raw)
		if err != nil {
			s.d.Log.Warn().Err(err).Str("query", raw.Query).Msg("skipping unwarmable query")
			continue
		}
		table := currency.Table(s.d.Rates.Snapshot())
		if !table.Supported(currency.Pivot, req.Currency) {
			s.d.Log.Warn().Str("currency", req.Currency).Msg("skipping warm for unsupported currency")
			continue
		}

		key := s.d.Keys.Search(req)
		placeholder := domain.SearchResponse{Query: req.Query, Results: []domain.SearchResult{}, Sources: []string{}}
		if err := s.d.Cache.Warm(ctx, cache.ClassSearch, key, placeholder); err != nil {
			s.d.Log.Warn().Err(err).Str("key", key).Msg("placeholder write failed")
		}

		if _, err := s.searchUpstream(ctx, req, table, key); err != nil {
			s.d.Log.Warn().Err(err).Str("query", req.Query).Msg("warm search failed, placeholder will lapse")
			continue
		}
		warmed++
	}
	return warmed, nil
}

// Stats reports cache counters for the operational endpoint
func (s *Service) Stats(ctx context.Context) cache.Stats { return s.d.Cache.Stats(ctx) }

// Invalidate purges one cache class, optionally narrowed by a key suffix glob
func (s *Service) Invalidate(ctx context.Context, class cache.Class, suffix string) (int64, error) {
	switch class {
	case cache.ClassSearch, cache.ClassOffers, cache.ClassGeo:
	default:
		return 0, perr.InvalidArgf("unknown cache class %q", string(class))
	}
	return s.d.Cache.Invalidate(ctx, cache.Pattern(class, suffix))
}

// normalizeReq applies defaults and rejects invalid input before any fan out
func (s *Service) normalizeReq(req domain.SearchRequest) (domain.SearchRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, perr.InvalidArgf("query is required")
	}
	if req.Mode == "" {
		req.Mode = domain.ModeAll
	}
	if !domain.KnownMode(req.Mode) {
		return req, perr.InvalidArgf("unknown mode %q", string(req.Mode))
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = currency.Pivot
	}
	if len(req.Currency) != 3 {
		return req, perr.InvalidArgf("currency must be a 3 letter ISO code")
	}
	req.Region = strings.ToUpper(strings.TrimSpace(req.Region))
	req.Locale = strings.ToLower(strings.TrimSpace(req.Locale))
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit > s.cfg.MaxLimit {
		return req, perr.InvalidArgf("limit must be at most %d", s.cfg.MaxLimit)
	}
	if req.Geo != nil {
		if req.Geo.Lat < -90 || req.Geo.Lat > 90 || req.Geo.Lon < -180 || req.Geo.Lon > 180 {
			return req, perr.InvalidArgf("geo coordinates out of range")
		}
	}
	return req, nil
}

func (s *Service) emit(req domain.SearchRequest, resp domain.SearchResponse, hit bool, elapsed time.Duration) {
	s.d.Emitter.Emit(qldom.Record{
		At:          time.Now(),
		Query:       req.Query,
		Mode:        string(req.Mode),
		Region:      req.Region,
		Currency:    req.Currency,
		Sources:     resp.Sources,
		ResultCount: resp.Total,
		CacheHit:    hit,
		ElapsedMs:   elapsed.Milliseconds(),
	})
}
