package gc

import (
	"fmt"
	"hash/maphash"
	"sync"
	"sync/atomic"
)

// ReferenceProvider reports whether other live computations may still
// produce or consume edges for a key. An error means liveness is unknown;
// the collector then keeps the key.
type ReferenceProvider[K comparable] interface {
	IsReferenced(key K) (bool, error)
}

// AtomicReferenceProvider can run a removal while the key is pinned as
// unreferenced. CollectIfUnreferenced calls collect and returns true only if
// the key had no references, and no reference to the key can be acquired
// until collect returns. collect must not call back into the provider.
type AtomicReferenceProvider[K comparable] interface {
	ReferenceProvider[K]
	CollectIfUnreferenced(key K, collect func()) (bool, error)
}

// ProviderFunc adapts a function to ReferenceProvider.
type ProviderFunc[K comparable] func(key K) (bool, error)

// IsReferenced calls f(key).
func (f ProviderFunc[K]) IsReferenced(key K) (bool, error) {
	return f(key)
}

// DefaultRefShards is the shard count used when NewRefTable is given n <= 0.
const DefaultRefShards = 64

type refShard[K comparable] struct {
	mu     sync.Mutex
	counts map[K]int64
}

// RefTable is a concurrent per-key reference-count table. Solver threads
// Acquire a key before scheduling work that can produce edges for it and
// Release it once that work has been processed. Keys with a zero count are
// not stored.
type RefTable[K comparable] struct {
	seed    maphash.Seed
	shards  []*refShard[K]
	changes atomic.Uint64
}

// NewRefTable creates a reference-count table with n shards.
func NewRefTable[K comparable](n int) *RefTable[K] {
	if n <= 0 {
		n = DefaultRefShards
	}
	t := &RefTable[K]{
		seed:   maphash.MakeSeed(),
		shards: make([]*refShard[K], n),
	}
	for i := range t.shards {
		t.shards[i] = &refShard[K]{counts: make(map[K]int64)}
	}
	return t
}

func (t *RefTable[K]) shardFor(key K) *refShard[K] {
	return t.shards[maphash.Comparable(t.seed, key)%uint64(len(t.shards))]
}

// Acquire increments the reference count of key.
func (t *RefTable[K]) Acquire(key K) {
	s := t.shardFor(key)
	s.mu.Lock()
	s.counts[key]++
	t.changes.Add(1)
	s.mu.Unlock()
}

// Release decrements the reference count of key. Releasing a key with no
// references leaves it at zero and returns ErrNegativeRefCount.
func (t *RefTable[K]) Release(key K) error {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.counts[key]
	switch {
	case c <= 0:
		delete(s.counts, key)
		return fmt.Errorf("%w: %v", ErrNegativeRefCount, key)
	case c == 1:
		delete(s.counts, key)
	default:
		s.counts[key] = c - 1
	}
	t.changes.Add(1)
	return nil
}

// Count returns the reference count of key.
func (t *RefTable[K]) Count(key K) int64 {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// ChangeCount returns a counter that moves on every Acquire and Release.
func (t *RefTable[K]) ChangeCount() uint64 {
	return t.changes.Load()
}

// Len returns the number of keys with a positive count.
func (t *RefTable[K]) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.counts)
		s.mu.Unlock()
	}
	return n
}

// IsReferenced reports whether key has a positive count. It never fails.
func (t *RefTable[K]) IsReferenced(key K) (bool, error) {
	return t.Count(key) > 0, nil
}

// CollectIfUnreferenced runs collect under the key's shard lock if the key
// has no references. Acquire calls for keys in the same shard block until
// collect returns.
func (t *RefTable[K]) CollectIfUnreferenced(key K, collect func()) (bool, error) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counts[key] > 0 {
		return false, nil
	}
	collect()
	return true, nil
}

// DefaultDependencyRetries bounds how often DependencyProvider re-runs a
// check that raced with reference changes.
const DefaultDependencyRetries = 8

// DependencyProvider treats a key as referenced while the key itself or any
// of its dependencies (for example the contexts of transitive callees) has a
// positive count in Table. If the table changes while a key is checked, the
// check is repeated; once Retries is exhausted the key is reported
// referenced.
type DependencyProvider[K comparable] struct {
	Table        *RefTable[K]
	Dependencies func(key K) []K
	Retries      int
}

// IsReferenced implements ReferenceProvider.
func (p *DependencyProvider[K]) IsReferenced(key K) (bool, error) {
	retries := p.Retries
	if retries <= 0 {
		retries = DefaultDependencyRetries
	}

	for attempt := 0; attempt < retries; attempt++ {
		before := p.Table.ChangeCount()
		if p.referenced(key) {
			return true, nil
		}
		if p.Table.ChangeCount() == before {
			return false, nil
		}
	}
	return true, nil
}

func (p *DependencyProvider[K]) referenced(key K) bool {
	if p.Table.Count(key) > 0 {
		return true
	}
	if p.Dependencies == nil {
		return false
	}
	for _, dep := range p.Dependencies(key) {
		if p.Table.Count(dep) > 0 {
			return true
		}
	}
	return false
}

var (
	_ AtomicReferenceProvider[string] = (*RefTable[string])(nil)
	_ ReferenceProvider[string]       = (*DependencyProvider[string])(nil)
	_ ReferenceProvider[string]       = ProviderFunc[string](nil)
)
