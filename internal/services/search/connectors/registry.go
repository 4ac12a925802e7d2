// Package connectors holds the connector registry, regional routing, and the
// marketplace adapter implementations
package connectors

import (
	"sort"
	"strings"
	"sync"

	"bazaar/internal/services/search/domain"
)

// GlobalRegion is the pseudo region whose connectors serve every request
const GlobalRegion = "GLOBAL"

// registration pairs a connector with the regions it was registered under
type registration struct {
	conn    domain.Connector
	regions map[string]struct{}
}

// Registry maps regions to connector sets. Reads vastly outnumber writes:
// registration happens at startup or config reload, resolves on every request
type Registry struct {
	mu     sync.RWMutex
	byName map[string]registration
}

// NewRegistry constructs an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: map[string]registration{}}
}

// Register adds conn under the given regions, replacing any prior
// registration with the same name (last write wins). Registering with no
// regions, or with GlobalRegion among them, puts the connector in the global
// set that every resolve includes
func (r *Registry) Register(conn domain.Connector, regions ...string) {
	set := make(map[string]struct{}, len(regions))
	for _, reg := range regions {
		reg = strings.ToUpper(strings.TrimSpace(reg))
		if reg != "" {
			set[reg] = struct{}{}
		}
	}
	if len(set) == 0 {
		set[GlobalRegion] = struct{}{}
	}

	r.mu.Lock()
	r.byName[conn.Name()] = registration{conn: conn, regions: set}
	r.mu.Unlock()
}

// Deregister removes a connector by name
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	delete(r.byName, name)
	r.mu.Unlock()
}

// Resolve returns the working set for region: the union of region specific and
// (when includeGlobal) global connectors, deduplicated by name and sorted by
// name so downstream iteration order is stable. Unknown regions resolve to the
// global set alone, degraded but correct, never an error
func (r *Registry) Resolve(region string, includeGlobal bool) []domain.Connector {
	region = strings.ToUpper(strings.TrimSpace(region))

	r.mu.RLock()
	out := make([]domain.Connector, 0, len(r.byName))
	for _, reg := range r.byName {
		_, regional := reg.regions[region]
		_, global := reg.regions[GlobalRegion]
		if regional || (includeGlobal && global) {
			out = append(out, reg.conn)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Get returns the connector registered under name
func (r *Registry) Get(name string) (domain.Connector, bool) {
	r.mu.RLock()
	reg, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reg.conn, true
}

// Names lists registered connector names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len reports the number of registered connectors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
