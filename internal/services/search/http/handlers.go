// Package http provides http transport for federated search
package http

import (
	"context"
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"bazaar/internal/core/geo"
	"bazaar/internal/modkit/httpkit"
	"bazaar/internal/services/search/cache"
	"bazaar/internal/services/search/domain"
)

// Service is the surface the transport needs from the search service
type Service interface {
	domain.SearcherPort
	Stats(ctx context.Context) cache.Stats
	Invalidate(ctx context.Context, class cache.Class, suffix string) (int64, error)
}

// Register mounts the search endpoints on the given router
func Register(r httpkit.Router, s Service) {
	h := &handlers{svc: s}

	httpkit.GetQuery[searchParams](r, "/", h.search)
	httpkit.GetQuery[offersParams](r, "/offers/{productId}", h.offers)
	httpkit.Get(r, "/cache-stats", h.cacheStats)
	httpkit.PostJSON[invalidateInput](r, "/invalidate", h.invalidate)
}

type handlers struct{ svc Service }

// searchParams binds GET /search query parameters
type searchParams struct {
	Q        string   `query:"q" validate:"required"`
	Mode     string   `query:"mode"`
	Locale   string   `query:"locale"`
	Currency string   `query:"currency" validate:"omitempty,len=3"`
	Region   string   `query:"region"`
	Lat      *float64 `query:"lat"`
	Lon      *float64 `query:"lon"`
	Page     int      `query:"page" validate:"omitempty,min=1"`
	Limit    int      `query:"limit" validate:"omitempty,min=1,max=100"`
	Intent   string   `query:"intent"`
}

func (p searchParams) toRequest() domain.SearchRequest {
	req := domain.SearchRequest{
		Query:    p.Q,
		Mode:     domain.Mode(p.Mode),
		Locale:   p.Locale,
		Currency: p.Currency,
		Region:   p.Region,
		Page:     p.Page,
		Limit:    p.Limit,
		Intent:   p.Intent,
	}
	if p.Lat != nil && p.Lon != nil {
		req.Geo = &geo.Point{Lat: *p.Lat, Lon: *p.Lon}
	}
	return req
}

// offersParams binds GET /search/offers/{productId} query parameters
type offersParams struct {
	Currency string   `query:"currency" validate:"omitempty,len=3"`
	Region   string   `query:"region"`
	Lat      *float64 `query:"lat"`
	Lon      *float64 `query:"lon"`
}

// invalidateInput is the POST /search/invalidate payload
type invalidateInput struct {
	Class  string `json:"class" validate:"required,oneof=search offers geo"`
	Suffix string `json:"suffix,omitempty"`
}

type invalidateResult struct {
	Deleted int64 `json:"deleted"`
}

// swagger:route GET /search Search search
// @Summary Federated catalog search
// @Tags Search
// @Produce json
// @Param q query string true "Free text query"
// @Param mode query string false "all, retail, wholesale or local"
// @Param region query string false "Region code"
// @Param currency query string false "Target ISO 4217 currency"
// @Param page query int false "Page, 1-based"
// @Param limit query int false "Page size, max 100"
// @Success 200 {object} domain.SearchResponse "ok"
// @Router /search [get]
func (h *handlers) search(r *stdhttp.Request, in searchParams) (any, error) {
	return h.svc.Search(r.Context(), in.toRequest())
}

// swagger:route GET /search/offers/{productId} Search searchOffers
// @Summary Live offers for one product
// @Tags Search
// @Produce json
// @Param productId path string true "Product id"
// @Param currency query string false "Target ISO 4217 currency"
// @Success 200 {object} domain.OffersResponse "ok"
// @Router /search/offers/{productId} [get]
func (h *handlers) offers(r *stdhttp.Request, in offersParams) (any, error) {
	req := domain.SearchRequest{Currency: in.Currency, Region: in.Region}
	if in.Lat != nil && in.Lon != nil {
		req.Geo = &geo.Point{Lat: *in.Lat, Lon: *in.Lon}
	}
	return h.svc.Offers(r.Context(), chi.URLParam(r, "productId"), req)
}

// swagger:route GET /search/cache-stats Search searchCacheStats
// @Summary Cache hit and miss counters
// @Tags Search
// @Produce json
// @Success 200 {object} cache.Stats "ok"
// @Router /search/cache-stats [get]
func (h *handlers) cacheStats(r *stdhttp.Request) (any, error) {
	return h.svc.Stats(r.Context()), nil
}

// swagger:route POST /search/invalidate Search searchInvalidate
// @Summary Purge a cache class
// @Tags Search
// @Accept json
// @Produce json
// @Param payload body invalidateInput true "Class and optional key suffix glob"
// @Success 200 {object} invalidateResult "ok"
// @Router /search/invalidate [post]
func (h *handlers) invalidate(r *stdhttp.Request, in invalidateInput) (any, error) {
	n, err := h.svc.Invalidate(r.Context(), cache.Class(in.Class), in.Suffix)
	if err != nil {
		return nil, err
	}
	return invalidateResult{Deleted: n}, nil
}
