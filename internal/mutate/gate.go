package mutate

import (
	"sort"
	"sync"
)

// Gate serializes mutations per item key. Different keys proceed
// concurrently; a second acquire on a held key fails instead of waiting.
type Gate struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{held: make(map[string]struct{})}
}

// Acquire claims key. It reports false when key is already held.
func (g *Gate) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

// Release frees key.
func (g *Gate) Release(key string) {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
}

// Held reports whether key has a mutation in flight.
func (g *Gate) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}

// Keys returns the held keys in sorted order.
func (g *Gate) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.held))
	for k := range g.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
