package circuitbreaker

import (
	"sort"
	"sync"
)

// Registry holds one breaker per backend target.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	settings Settings
}

func NewRegistry(settings Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		settings: settings.withDefaults(),
	}
}

func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = NewCircuitBreaker(name, r.settings)
	r.breakers[name] = cb
	return cb
}

// Allows reports whether the named target's breaker would admit a call.
// Targets without a breaker yet are allowed.
func (r *Registry) Allows(name string) bool {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if !exists {
		return true
	}
	return cb.Allows()
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}

// Snapshots returns every breaker's state sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mutex.RLock()
	snaps := make([]Snapshot, 0, len(r.breakers))
	for _, cb := range r.breakers {
		snaps = append(snaps, cb.Snapshot())
	}
	r.mutex.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}
