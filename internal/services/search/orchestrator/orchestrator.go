// Package orchestrator fans one query out to many connectors concurrently
// under a single wall clock budget, tolerating partial failure
package orchestrator

import (
	"context"
	"sort"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/platform/logger"
	"bazaar/internal/services/search/domain"
)

// Config tunes the orchestrator
type Config struct {
	// Timeout is the single overall deadline for one fan out; connectors still
	// in flight when it fires are abandoned, not awaited
	Timeout time.Duration
}

// Orchestrator executes connector fan outs
type Orchestrator struct {
	cfg Config
	log *logger.Logger
}

// New constructs an Orchestrator
func New(cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if log == nil {
		log = logger.Named("orchestrator")
	}
	return &Orchestrator{cfg: cfg, log: log}
}

// Outcome is the fan out result: per connector results or errors, the
// contributing sources, and the elapsed wall clock time
type Outcome struct {
	Results map[string][]domain.RawResult
	Errors  map[string]error
	Sources []string
	Elapsed time.Duration
}

// reply is one connector's answer crossing the fan in barrier
type reply struct {
	name  string
	items []domain.RawResult
	err   error
}

// FanOut runs req against every connector concurrently. Each goroutine is
// isolated: its error, timeout, or panic is recorded against its own name and
// never aborts a sibling or the whole request. Zero connectors yield an
// immediate empty outcome
func (o *Orchestrator) FanOut(ctx context.Context, conns []domain.Connector, req domain.SearchRequest) Outcome {
	started := time.Now()
	out := Outcome{
		Results: make(map[string][]domain.RawResult, len(conns)),
		Errors:  make(map[string]error),
		Sources: []string{},
	}
	if len(conns) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	// buffered so goroutines finishing after the deadline never block or leak
	replies := make(chan reply, len(conns))
	for _, conn := range conns {
		conn := conn
		go func() {
			items, err := o.searchOne(ctx, conn, req)
			replies <- reply{name: conn.Name(), items: items, err: err}
		}()
	}

	pending := make(map[string]struct{}, len(conns))
	for _, conn := range conns {
		pending[conn.Name()] = struct{}{}
	}

	for len(pending) > 0 {
		select {
		case r := <-replies:
			delete(pending, r.name)
			if r.err != nil {
				out.Errors[r.name] = r.err
				o.log.Warn().Str("connector", r.name).Err(r.err).Msg("connector failed")
				continue
			}
			out.Results[r.name] = r.items
		case <-ctx.Done():
			// deadline fired: abandon the stragglers and record them as timed out
			for name := range pending {
				out.Errors[name] = perr.Connectorf("connector %s deadline exceeded", name)
				o.log.Warn().Str("connector", name).Msg("connector abandoned at deadline")
			}
			pending = nil
		}
	}

	for name, items := range out.Results {
		if len(items) > 0 {
			out.Sources = append(out.Sources, name)
		}
	}
	sort.Strings(out.Sources)

	out.Elapsed = time.Since(started)
	return out
}

// FanOutOffers runs the offers call against every connector that provides the
// capability, under the same deadline and isolation rules as FanOut
func (o *Orchestrator) FanOutOffers(ctx context.Context, conns []domain.Connector, productID string) ([]domain.Offer, []string) {
	providers := make([]domain.OfferProvider, 0, len(conns))
	providerNames := make([]string, 0, len(conns))
	for _, conn := range conns {
		if p, ok := conn.(domain.OfferProvider); ok {
			providers = append(providers, p)
			providerNames = append(providerNames, conn.Name())
		}
	}
	if len(providers) == 0 {
		return []domain.Offer{}, []string{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	type offerReply struct {
		name   string
		offers []domain.Offer
		err    error
	}
	replies := make(chan offerReply, len(providers))
	for i, p := range providers {
		p, name := p, providerNames[i]
		go func() {
			offers, err := o.offersOne(ctx, name, p, productID)
			replies <- offerReply{name: name, offers: offers, err: err}
		}()
	}

	collected := make(map[string][]domain.Offer, len(providers))
	remaining := len(providers)
	for remaining > 0 {
		select {
		case r := <-replies:
			remaining--
			if r.err != nil {
				o.log.Warn().Str("connector", r.name).Err(r.err).Msg("offers failed")
				continue
			}
			if len(r.offers) > 0 {
				collected[r.name] = r.offers
			}
		case <-ctx.Done():
			remaining = 0
		}
	}

	sources := make([]string, 0, len(collected))
	for name := range collected {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	offers := make([]domain.Offer, 0)
	for _, name := range sources {
		offers = append(offers, collected[name]...)
	}
	return offers, sources
}

// searchOne runs a single connector call with panic isolation
func (o *Orchestrator) searchOne(ctx context.Context, conn domain.Connector, req domain.SearchRequest) (items []domain.RawResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = perr.Connectorf("connector %s panicked: %v", conn.Name(), rec)
		}
	}()
	items, err = conn.Search(ctx, req)
	if err != nil {
		return nil, perr.ConnectorWrap(err, "connector %s search", conn.Name())
	}
	return items, nil
}

// offersOne runs a single offers call with panic isolation
func (o *Orchestrator) offersOne(ctx context.Context, name string, p domain.OfferProvider, productID string) (offers []domain.Offer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = perr.Connectorf("connector %s panicked: %v", name, rec)
		}
	}()
	offers, err = p.Offers(ctx, productID)
	if err != nil {
		return nil, perr.ConnectorWrap(err, "connector %s offers", name)
	}
	return offers, nil
}
