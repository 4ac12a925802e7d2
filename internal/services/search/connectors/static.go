package connectors

import (
	"context"
	"strings"
	"time"

	"bazaar/internal/core/textnorm"
	"bazaar/internal/services/search/domain"
)

// Static is an in-memory connector backed by a fixed catalog.
// It serves local development seeding and the test suite; Delay and Err make
// slow and broken upstreams reproducible
type Static struct {
	ConnName string
	Regions  []string
	Catalog  []domain.RawResult
	ByOffers map[string][]domain.Offer

	// Delay is imposed before answering, honoring context cancellation
	Delay time.Duration
	// Err, when set, fails every call
	Err error

	norm *textnorm.Normalizer
}

// NewStatic constructs a fixture connector
func NewStatic(name string, regions []string, catalog []domain.RawResult) *Static {
	return &Static{
		ConnName: name,
		Regions:  regions,
		Catalog:  catalog,
		norm:     textnorm.New(),
	}
}

// Name satisfies domain.Connector
func (s *Static) Name() string { return s.ConnName }

// SupportsRegion satisfies domain.Connector
func (s *Static) SupportsRegion(region string) bool {
	if len(s.Regions) == 0 {
		return true
	}
	for _, r := range s.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// Search satisfies domain.Connector; matching is normalized token containment
func (s *Static) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.norm == nil {
		s.norm = textnorm.New()
	}

	query := s.norm.Tokens(req.Query)
	out := make([]domain.RawResult, 0, len(s.Catalog))
	for _, item := range s.Catalog {
		if matches(s.norm.Normalize(item.Title), query) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Offers satisfies domain.OfferProvider
func (s *Static) Offers(ctx context.Context, productID string) ([]domain.Offer, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.ByOffers[productID], nil
}

func (s *Static) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// matches reports whether every query token occurs in the normalized title
func matches(title string, query []string) bool {
	if len(query) == 0 {
		return true
	}
	for _, tok := range query {
		if !strings.Contains(title, tok) {
			return false
		}
	}
	return true
}
