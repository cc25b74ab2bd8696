package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoBundle is returned when no candidate bundle can run on this host.
var ErrNoBundle = errors.New("no usable engine bundle")

// Info pairs a bundle with its capabilities and probe outcome.
type Info struct {
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
	Available    bool         `json:"available"`
	Reason       string       `json:"reason,omitempty"`
}

// Registry holds the candidate bundles in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	bundles map[string]Bundle
}

// NewRegistry creates a registry holding the given bundles.
func NewRegistry(bundles ...Bundle) *Registry {
	r := &Registry{bundles: make(map[string]Bundle)}
	for _, b := range bundles {
		r.Register(b)
	}
	return r
}

// Register adds or replaces a bundle under its name.
func (r *Registry) Register(b Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := b.Name()
	if _, ok := r.bundles[name]; !ok {
		r.order = append(r.order, name)
	}
	r.bundles[name] = b
}

// Get returns the bundle registered under name.
func (r *Registry) Get(name string) (Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[name]
	return b, ok
}

// Select walks preference in order and returns the first registered bundle
// whose probe succeeds. An empty preference means registration order. The
// error names every rejected candidate.
func (r *Registry) Select(ctx context.Context, preference []string) (Bundle, error) {
	r.mu.RLock()
	candidates := preference
	if len(candidates) == 0 {
		candidates = append([]string(nil), r.order...)
	}
	bundles := make([]Bundle, len(candidates))
	for i, name := range candidates {
		bundles[i] = r.bundles[name]
	}
	r.mu.RUnlock()

	var rejected []string
	for i, b := range bundles {
		if b == nil {
			rejected = append(rejected, fmt.Sprintf("%s: not registered", candidates[i]))
			continue
		}
		if err := b.Probe(ctx); err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", candidates[i], err))
			continue
		}
		return b, nil
	}

	if len(rejected) == 0 {
		return nil, ErrNoBundle
	}
	return nil, fmt.Errorf("%w (%s)", ErrNoBundle, strings.Join(rejected, "; "))
}

// List probes every registered bundle and reports the outcome in
// registration order.
func (r *Registry) List(ctx context.Context) []Info {
	r.mu.RLock()
	bundles := make([]Bundle, 0, len(r.order))
	for _, name := range r.order {
		bundles = append(bundles, r.bundles[name])
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(bundles))
	for _, b := range bundles {
		info := Info{Name: b.Name(), Capabilities: b.Capabilities(), Available: true}
		if err := b.Probe(ctx); err != nil {
			info.Available = false
			info.Reason = err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}
