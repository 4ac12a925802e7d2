package connectors

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/services/search/domain"
)

// BreakerSettings tunes the per connector circuit breaker
type BreakerSettings struct {
	// MaxFailures trips the breaker once this many consecutive calls fail
	MaxFailures uint32
	// OpenFor is how long the breaker stays open before probing again
	OpenFor time.Duration
}

// DefaultBreakerSettings returns the tuning used in production
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 5, OpenFor: 30 * time.Second}
}

// breaking wraps a connector with a circuit breaker so a consistently failing
// upstream fails fast instead of burning the orchestrator deadline on every
// request. A tripped breaker surfaces as an ordinary connector failure
type breaking struct {
	inner domain.Connector
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps conn with a circuit breaker
func WithBreaker(conn domain.Connector, s BreakerSettings) domain.Connector {
	if s.MaxFailures == 0 {
		s = DefaultBreakerSettings()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    conn.Name(),
		Timeout: s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
	})
	return &breaking{inner: conn, cb: cb}
}

func (b *breaking) Name() string { return b.inner.Name() }

func (b *breaking) SupportsRegion(region string) bool { return b.inner.SupportsRegion(region) }

func (b *breaking) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Search(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, perr.Connectorf("connector %s circuit open", b.inner.Name())
		}
		return nil, err
	}
	results, _ := out.([]domain.RawResult)
	return results, nil
}

// Offers delegates when the wrapped connector provides offers
func (b *breaking) Offers(ctx context.Context, productID string) ([]domain.Offer, error) {
	op, ok := b.inner.(domain.OfferProvider)
	if !ok {
		return nil, perr.Connectorf("connector %s has no offers capability", b.inner.Name())
	}
	out, err := b.cb.Execute(func() (any, error) {
		return op.Offers(ctx, productID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, perr.Connectorf("connector %s circuit open", b.inner.Name())
		}
		return nil, err
	}
	offers, _ := out.([]domain.Offer)
	return offers, nil
}
