// Package cache is the shared key value cache in front of federated search.
// Three data classes (search responses, per product offers, geo tiled
// locations) each carry their own TTL and key function
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"bazaar/internal/core/geo"
	"bazaar/internal/core/textnorm"
	"bazaar/internal/services/search/domain"
)

// Class selects a cache data class
type Class string

// Cache data classes
const (
	ClassSearch Class = "search"
	ClassOffers Class = "offers"
	ClassGeo    Class = "geo"
)

const (
	// keyNamespace prefixes every key so invalidation patterns and the
	// sweeper never touch foreign data in a shared store
	keyNamespace = "bazaar"

	// maxReadableKey bounds composite key size; anything longer collapses to
	// a fixed length digest, short keys stay human readable for debugging
	maxReadableKey = 96

	// digestLen is the hex prefix kept from the sha256 digest
	digestLen = 16
)

// Keys builds deterministic cache keys from normalized request inputs.
// Two logically identical requests always map to the same key
type Keys struct {
	norm *textnorm.Normalizer
}

// NewKeys constructs a key builder
func NewKeys() *Keys { return &Keys{norm: textnorm.New()} }

// Search derives the search class key from the normalized query text, mode,
// locale, currency, region, page, limit and rounded geo
func (k *Keys) Search(req domain.SearchRequest) string {
	parts := []string{
		k.norm.Normalize(req.Query),
		string(req.Mode),
		strings.ToLower(req.Locale),
		strings.ToUpper(req.Currency),
		strings.ToUpper(req.Region),
		strconv.Itoa(req.Page),
		strconv.Itoa(req.Limit),
		geoPart(req.Geo),
	}
	if req.Intent != "" {
		parts = append(parts, k.norm.Normalize(req.Intent))
	}
	return seal(ClassSearch, strings.Join(parts, "|"))
}

// Offers derives the offers class key from the product id, target currency
// and optional rounded geo
func (k *Keys) Offers(productID, currency string, p *geo.Point) string {
	parts := []string{productID, strings.ToUpper(currency), geoPart(p)}
	return seal(ClassOffers, strings.Join(parts, "|"))
}

// Geo derives the geo class key from the tile containing p
func (k *Keys) Geo(p geo.Point, zoom int) string {
	return seal(ClassGeo, geo.TileAt(p, zoom).String())
}

// Pattern returns a glob matching every key of a class; suffix "*" matches
// all, anything else narrows within the class namespace
func Pattern(class Class, suffix string) string {
	if suffix == "" {
		suffix = "*"
	}
	return keyNamespace + ":" + string(class) + ":" + suffix
}

// classOf recovers the class from a stored key, false for foreign keys
func classOf(key string) (Class, bool) {
	rest, ok := strings.CutPrefix(key, keyNamespace+":")
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, ":")
	if !ok {
		return "", false
	}
	switch c := Class(name); c {
	case ClassSearch, ClassOffers, ClassGeo:
		return c, true
	}
	return "", false
}

// seal namespaces the composite and hashes it when it would exceed the
// readable bound
func seal(class Class, composite string) string {
	key := keyNamespace + ":" + string(class) + ":" + composite
	if len(key) <= maxReadableKey {
		return key
	}
	sum := sha256.Sum256([]byte(composite))
	return keyNamespace + ":" + string(class) + ":#" + hex.EncodeToString(sum[:])[:digestLen]
}

func geoPart(p *geo.Point) string {
	if p == nil {
		return ""
	}
	r := geo.Round(*p)
	return strconv.FormatFloat(r.Lat, 'f', geo.KeyPrecision, 64) +
		"," + strconv.FormatFloat(r.Lon, 'f', geo.KeyPrecision, 64)
}
