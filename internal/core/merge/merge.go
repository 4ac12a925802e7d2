// Package merge combines per connector result lists into one deduplicated,
// ranked sequence. Everything here is a pure function of its inputs so
// identical inputs always yield identical order, which the cache depends on
package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"bazaar/internal/core/textnorm"
	"bazaar/internal/services/search/domain"
)

// Weights control the base ranking score
type Weights struct {
	Popularity float64
	Rating     float64
	ModeMatch  float64
	Keyword    float64
}

// Config tunes dedup and ranking
type Config struct {
	// TitleSimilarity is the token set similarity threshold above which two
	// results with the same seller are considered the same item
	TitleSimilarity float64

	// IntentBoost multiplies the score of items whose attributes match the
	// request intent hint
	IntentBoost float64

	Weights Weights
}

// DefaultConfig returns the documented tuning constants
func DefaultConfig() Config {
	return Config{
		TitleSimilarity: 0.82,
		IntentBoost:     1.25,
		Weights: Weights{
			Popularity: 0.35,
			Rating:     0.30,
			ModeMatch:  0.20,
			Keyword:    0.15,
		},
	}
}

// Merger dedups and ranks raw results
type Merger struct {
	cfg  Config
	norm *textnorm.Normalizer
}

// New constructs a Merger with cfg; zero weights fall back to defaults
func New(cfg Config) *Merger {
	def := DefaultConfig()
	if cfg.TitleSimilarity <= 0 || cfg.TitleSimilarity > 1 {
		cfg.TitleSimilarity = def.TitleSimilarity
	}
	if cfg.IntentBoost <= 0 {
		cfg.IntentBoost = def.IntentBoost
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	return &Merger{cfg: cfg, norm: textnorm.New()}
}

// keyed is a raw result plus its precomputed dedup identity inputs
type keyed struct {
	raw    domain.RawResult
	title  string
	tokens []string
	seller string
}

// Merge combines per connector lists into one deduplicated ranked slice.
// Connectors are iterated in ascending name order so "first seen wins" is
// deterministic regardless of completion order. The returned total is the
// deduplicated set size before pagination; pagination itself is the caller's
// last step via Page
func (m *Merger) Merge(byConnector map[string][]domain.RawResult, req domain.SearchRequest) ([]domain.SearchResult, int) {
	names := make([]string, 0, len(byConnector))
	for name := range byConnector {
		names = append(names, name)
	}
	sort.Strings(names)

	var kept []keyed
	bySource := make(map[string]struct{})

	for _, name := range names {
		for _, raw := range byConnector[name] {
			k := keyed{
				raw:    raw,
				title:  m.norm.Normalize(raw.Title),
				tokens: m.norm.Tokens(raw.Title),
				seller: m.norm.Normalize(raw.Seller),
			}
			if m.duplicate(k, kept, bySource) {
				continue
			}
			kept = append(kept, k)
			if raw.SourceID != "" {
				bySource[raw.SourceID] = struct{}{}
			}
		}
	}

	queryTokens := m.norm.Tokens(req.Query)
	type scored struct {
		res    domain.SearchResult
		rating float64
	}
	ranked := make([]scored, 0, len(kept))
	for _, k := range kept {
		ranked = append(ranked, scored{
			res: domain.SearchResult{
				ID:     identity(k.title, k.seller, k.raw.SourceID),
				Title:  k.raw.Title,
				Price:  k.raw.Price,
				Seller: k.raw.Seller,
				Cities: k.raw.Cities,
				Score:  m.score(k, req, queryTokens),
			},
			rating: k.raw.Rating,
		})
	}

	// ties break on higher rating then lexicographic id
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].res.Score != ranked[j].res.Score {
			return ranked[i].res.Score > ranked[j].res.Score
		}
		if ranked[i].rating != ranked[j].rating {
			return ranked[i].rating > ranked[j].rating
		}
		return ranked[i].res.ID < ranked[j].res.ID
	})

	out := make([]domain.SearchResult, len(ranked))
	for i, s := range ranked {
		out[i] = s.res
	}
	return out, len(out)
}

// Page slices ranked results for the requested page; total reflects the full
// set so callers apply it after Merge
func Page(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := offset + limit
	if limit <= 0 || end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

// duplicate reports whether k collides with an already kept item under the
// dedup identity: explicit source id match, or title similarity above the
// threshold with the same seller
func (m *Merger) duplicate(k keyed, kept []keyed, bySource map[string]struct{}) bool {
	if k.raw.SourceID != "" {
		if _, ok := bySource[k.raw.SourceID]; ok {
			return true
		}
	}
	for _, other := range kept {
		if k.seller != "" && k.seller == other.seller &&
			tokenSetSimilarity(k.tokens, other.tokens) >= m.cfg.TitleSimilarity {
			return true
		}
	}
	return false
}

// score is the weighted base score with the intent boost applied on top
func (m *Merger) score(k keyed, req domain.SearchRequest, queryTokens []string) float64 {
	w := m.cfg.Weights

	s := w.Popularity * clamp01(k.raw.Popularity)
	s += w.Rating * clamp01(k.raw.Rating/5)

	if req.Mode == domain.ModeAll || k.raw.Attributes["segment"] == string(req.Mode) {
		s += w.ModeMatch
	}

	s += w.Keyword * keywordOverlap(queryTokens, k.tokens)

	if req.Intent != "" && attributeMatch(k.raw.Attributes, req.Intent) {
		s *= m.cfg.IntentBoost
	}
	return s
}

// identity derives the stable result id: the upstream source id when present,
// otherwise a short digest of the normalized title and seller so the same
// logical item keys identically no matter which connector produced it
func identity(title, seller, sourceID string) string {
	if sourceID != "" {
		return sourceID
	}
	sum := sha256.Sum256([]byte(title + "|" + seller))
	return hex.EncodeToString(sum[:8])
}

// tokenSetSimilarity is the Dice coefficient over unique token sets
func tokenSetSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	common := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			common++
		}
	}
	return 2 * float64(common) / float64(len(setA)+len(setB))
}

// keywordOverlap is the fraction of query tokens present in the title
func keywordOverlap(query, title []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(title))
	for _, t := range title {
		set[t] = struct{}{}
	}
	hit := 0
	for _, q := range query {
		if _, ok := set[q]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(query))
}

// attributeMatch reports whether any attribute key or value contains the hint
func attributeMatch(attrs map[string]string, hint string) bool {
	hint = strings.ToLower(hint)
	for k, v := range attrs {
		if strings.Contains(strings.ToLower(k), hint) || strings.Contains(strings.ToLower(v), hint) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
