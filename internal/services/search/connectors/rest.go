package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "bazaar/internal/platform/errors"
	"bazaar/internal/services/search/domain"
)

// RESTConfig configures a generic JSON-over-HTTP marketplace adapter
type RESTConfig struct {
	Name    string
	BaseURL string
	// Regions this adapter claims; empty means global
	Regions []string
	// APIKey is sent as a bearer token when set
	APIKey string
	// Timeout is the adapter's own client side timeout, kept below the
	// orchestrator deadline so a slow upstream is abandoned early
	Timeout time.Duration
}

// REST is a marketplace adapter speaking the bazaar connector wire contract:
// GET {base}/search?q=...  -> {"items":[...]}
// GET {base}/offers/{id}   -> {"offers":[...]}
type REST struct {
	cfg     RESTConfig
	client  *http.Client
	regions map[string]struct{}
}

// wire shapes for the connector contract

type restSearchPayload struct {
	Items []restItem `json:"items"`
}

type restItem struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency"`
	Seller     string            `json:"seller"`
	Cities     []string          `json:"cities,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Popularity float64           `json:"popularity"`
	Rating     float64           `json:"rating"`
}

type restOffersPayload struct {
	Offers []restOffer `json:"offers"`
}

type restOffer struct {
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Availability string    `json:"availability"`
	LastSeen     time.Time `json:"last_seen"`
}

// NewREST constructs a REST connector
func NewREST(cfg RESTConfig) *REST {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	regions := make(map[string]struct{}, len(cfg.Regions))
	for _, r := range cfg.Regions {
		regions[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}
	return &REST{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		regions: regions,
	}
}

// Name satisfies domain.Connector
func (c *REST) Name() string { return c.cfg.Name }

// SupportsRegion satisfies domain.Connector; no declared regions means global
func (c *REST) SupportsRegion(region string) bool {
	if len(c.regions) == 0 {
		return true
	}
	_, ok := c.regions[strings.ToUpper(strings.TrimSpace(region))]
	return ok
}

// Search satisfies domain.Connector
func (c *REST) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawResult, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("mode", string(req.Mode))
	q.Set("region", req.Region)
	q.Set("locale", req.Locale)
	if req.Geo != nil {
		q.Set("lat", fmt.Sprintf("%.4f", req.Geo.Lat))
		q.Set("lon", fmt.Sprintf("%.4f", req.Geo.Lon))
	}

	var payload restSearchPayload
	if err := c.getJSON(ctx, "/search?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	out := make([]domain.RawResult, 0, len(payload.Items))
	for _, it := range payload.Items {
		out = append(out, domain.RawResult{
			SourceID:   it.ID,
			Title:      it.Title,
			Price:      domain.Price{Amount: it.Price, Currency: strings.ToUpper(it.Currency)},
			Seller:     it.Seller,
			Cities:     it.Cities,
			Attributes: it.Attributes,
			Popularity: it.Popularity,
			Rating:     it.Rating,
		})
	}
	return out, nil
}

// Offers satisfies domain.OfferProvider
func (c *REST) Offers(ctx context.Context, productID string) ([]domain.Offer, error) {
	var payload restOffersPayload
	if err := c.getJSON(ctx, "/offers/"+url.PathEscape(productID), &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Offer, 0, len(payload.Offers))
	for _, o := range payload.Offers {
		out = append(out, domain.Offer{
			Connector:    c.cfg.Name,
			Price:        domain.Price{Amount: o.Price, Currency: strings.ToUpper(o.Currency)},
			Availability: o.Availability,
			LastSeen:     o.LastSeen,
		})
	}
	return out, nil
}

// getJSON performs one GET against the upstream and decodes the JSON body
func (c *REST) getJSON(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return perr.ConnectorWrap(err, "connector %s build request", c.cfg.Name)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return perr.ConnectorWrap(err, "connector %s request", c.cfg.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return perr.Connectorf("connector %s upstream status %d", c.cfg.Name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return perr.ConnectorWrap(err, "connector %s malformed response", c.cfg.Name)
	}
	return nil
}
