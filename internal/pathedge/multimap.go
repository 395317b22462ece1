package pathedge

import (
	"hash/maphash"
	"sync"
)

// DefaultShards is the shard count used when NewMultiMap is given n <= 0.
const DefaultShards = 64

type shard[K comparable, E comparable] struct {
	mu    sync.RWMutex
	edges map[K]map[E]struct{}
}

// MultiMap is a concurrent multi-map from a key to a set of edges.
// Each shard has its own lock; there is no lock covering the whole map.
type MultiMap[K comparable, E comparable] struct {
	seed   maphash.Seed
	shards []*shard[K, E]
}

// NewMultiMap creates a multi-map with n shards.
func NewMultiMap[K comparable, E comparable](n int) *MultiMap[K, E] {
	if n <= 0 {
		n = DefaultShards
	}
	m := &MultiMap[K, E]{
		seed:   maphash.MakeSeed(),
		shards: make([]*shard[K, E], n),
	}
	for i := range m.shards {
		m.shards[i] = &shard[K, E]{edges: make(map[K]map[E]struct{})}
	}
	return m
}

func (m *MultiMap[K, E]) shardFor(key K) *shard[K, E] {
	h := maphash.Comparable(m.seed, key)
	return m.shards[h%uint64(len(m.shards))]
}

// Put adds edge under key. Returns false if the edge was already present.
func (m *MultiMap[K, E]) Put(key K, edge E) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.edges[key]
	if !ok {
		set = make(map[E]struct{})
		s.edges[key] = set
	}
	if _, exists := set[edge]; exists {
		return false
	}
	set[edge] = struct{}{}
	return true
}

// Contains reports whether edge is stored under key.
func (m *MultiMap[K, E]) Contains(key K, edge E) bool {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[key][edge]
	return ok
}

// Keys returns a snapshot of all keys with at least one edge.
// Shards are visited one at a time, so keys added concurrently may be missed.
func (m *MultiMap[K, E]) Keys() []K {
	var keys []K
	for _, s := range m.shards {
		s.mu.RLock()
		for k := range s.edges {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Edges returns a snapshot of the edges stored under key.
func (m *MultiMap[K, E]) Edges(key K) []E {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.edges[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]E, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// Count returns the number of edges stored under key.
func (m *MultiMap[K, E]) Count(key K) int {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges[key])
}

// Remove deletes all edges stored under key and returns them.
func (m *MultiMap[K, E]) Remove(key K) []E {
	s := m.shardFor(key)
	s.mu.Lock()
	set, ok := s.edges[key]
	delete(s.edges, key)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	out := make([]E, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// Len returns the total number of edges across all keys.
func (m *MultiMap[K, E]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		for _, set := range s.edges {
			total += len(set)
		}
		s.mu.RUnlock()
	}
	return total
}

// KeyCount returns the number of keys with at least one edge.
func (m *MultiMap[K, E]) KeyCount() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.edges)
		s.mu.RUnlock()
	}
	return total
}

var _ Store[string, int] = (*MultiMap[string, int])(nil)
