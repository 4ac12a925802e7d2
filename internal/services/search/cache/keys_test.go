package cache

import (
	"strings"
	"testing"

	"bazaar/internal/core/geo"
	"bazaar/internal/services/search/domain"
)

func baseReq() domain.SearchRequest {
	return domain.SearchRequest{
		Query:    "shoes",
		Mode:     domain.ModeAll,
		Locale:   "en-US",
		Currency: "USD",
		Region:   "US",
		Page:     1,
		Limit:    20,
	}
}

// TestSearchKey_PureUnderNormalization verifies casing, padding and
// punctuation differences collapse to the same key
func TestSearchKey_PureUnderNormalization(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	a := baseReq()
	b := baseReq()
	b.Query = "  Shoes!! "

	if got, want := k.Search(b), k.Search(a); got != want {
		t.Fatalf("normalized requests diverged: %q vs %q", got, want)
	}
}

func TestSearchKey_DistinguishesInputs(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	base := k.Search(baseReq())

	for name, mut := range map[string]func(*domain.SearchRequest){
		"page":     func(r *domain.SearchRequest) { r.Page = 2 },
		"limit":    func(r *domain.SearchRequest) { r.Limit = 50 },
		"mode":     func(r *domain.SearchRequest) { r.Mode = domain.ModeRetail },
		"currency": func(r *domain.SearchRequest) { r.Currency = "EUR" },
		"region":   func(r *domain.SearchRequest) { r.Region = "TR" },
		"query":    func(r *domain.SearchRequest) { r.Query = "boots" },
		"geo":      func(r *domain.SearchRequest) { r.Geo = &geo.Point{Lat: 41, Lon: 29} },
	} {
		req := baseReq()
		mut(&req)
		if k.Search(req) == base {
			t.Fatalf("%s change did not change the key", name)
		}
	}
}

// TestSearchKey_GeoRounding verifies nearby coordinates inside the rounding
// radius share a key
func TestSearchKey_GeoRounding(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	a := baseReq()
	a.Geo = &geo.Point{Lat: 41.00012, Lon: 29.00024}
	b := baseReq()
	b.Geo = &geo.Point{Lat: 41.00024, Lon: 29.00012}

	if k.Search(a) != k.Search(b) {
		t.Fatalf("coordinates within rounding radius produced different keys")
	}

	far := baseReq()
	far.Geo = &geo.Point{Lat: 41.1, Lon: 29.0}
	if k.Search(a) == k.Search(far) {
		t.Fatalf("distant coordinates collided")
	}
}

// TestSearchKey_LongCompositeHashed verifies oversized composites collapse to
// a bounded digest deterministically
func TestSearchKey_LongCompositeHashed(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	long := baseReq()
	long.Query = strings.Repeat("artisanal hazelnut spread ", 10)

	first := k.Search(long)
	if len(first) > maxReadableKey {
		t.Fatalf("hashed key still exceeds bound: %d bytes", len(first))
	}
	if !strings.HasPrefix(first, "bazaar:search:#") {
		t.Fatalf("hashed key missing digest marker: %q", first)
	}
	if second := k.Search(long); second != first {
		t.Fatalf("digest not deterministic: %q vs %q", second, first)
	}

	other := long
	other.Query += " extra"
	if k.Search(other) == first {
		t.Fatalf("different long queries collided")
	}
}

func TestOffersKey(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	plain := k.Offers("p-123", "eur", nil)
	if plain != "bazaar:offers:p-123|EUR|" {
		t.Fatalf("unexpected offers key: %q", plain)
	}
	if k.Offers("p-123", "USD", nil) == plain {
		t.Fatalf("currency not part of the offers key")
	}
	if k.Offers("p-123", "EUR", &geo.Point{Lat: 41, Lon: 29}) == plain {
		t.Fatalf("geo not part of the offers key")
	}
}

func TestGeoKey_SharedTile(t *testing.T) {
	t.Parallel()

	k := NewKeys()
	a := k.Geo(geo.Point{Lat: 41.0082, Lon: 28.9784}, 14)
	b := k.Geo(geo.Point{Lat: 41.0083, Lon: 28.9785}, 14)
	if a != b {
		t.Fatalf("adjacent points in one tile produced different keys: %q vs %q", a, b)
	}
	if c := k.Geo(geo.Point{Lat: 41.0082, Lon: 28.9784}, 12); c == a {
		t.Fatalf("zoom not part of the geo key")
	}
}

func TestPatternAndClassOf(t *testing.T) {
	t.Parallel()

	if got := Pattern(ClassSearch, ""); got != "bazaar:search:*" {
		t.Fatalf("Pattern default: %q", got)
	}
	if got := Pattern(ClassOffers, "p-123*"); got != "bazaar:offers:p-123*" {
		t.Fatalf("Pattern suffix: %q", got)
	}

	k := NewKeys()
	if c, ok := classOf(k.Search(baseReq())); !ok || c != ClassSearch {
		t.Fatalf("classOf search key: %v %v", c, ok)
	}
	if c, ok := classOf(k.Geo(geo.Point{Lat: 1, Lon: 1}, 14)); !ok || c != ClassGeo {
		t.Fatalf("classOf geo key: %v %v", c, ok)
	}
	if _, ok := classOf("someone:else:key"); ok {
		t.Fatalf("classOf accepted a foreign key")
	}
}
