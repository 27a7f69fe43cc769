package breaker

import (
	"sort"
	"sync"
)

// Registry lazily creates one breaker per provider so every provider fails
// and recovers independently.
type Registry struct {
	cfg  Config
	opts []Option

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry constructs a registry applying cfg and opts to every breaker it
// creates.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker guarding the named provider, creating it on first
// use.
func (r *Registry) For(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.cfg, r.opts...)
	r.breakers[name] = b
	return b
}

// Snapshots returns per-provider views sorted by name for stable status
// output.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}
