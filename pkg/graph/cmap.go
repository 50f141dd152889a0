package graph

import (
	"sync"

	"github.com/theQuarky/leafmind/pkg/core"
)

// shardCount balances lock granularity against footprint. Power of two so
// the shard pick is a mask.
const shardCount = 32

// shardedMap is a concurrent map split into independently locked shards.
// Non-overlapping entries mutate in parallel; iteration sees a consistent
// snapshot per shard, not across shards. Maintenance passes that remove
// entries while iterating must collect keys first, then delete.
type shardedMap[K comparable, V any] struct {
	shards [shardCount]struct {
		mu    sync.RWMutex
		items map[K]V
	}
	hash func(K) uint32
}

func newShardedMap[K comparable, V any](hash func(K) uint32) *shardedMap[K, V] {
	m := &shardedMap[K, V]{hash: hash}
	for i := range m.shards {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

func (m *shardedMap[K, V]) shardFor(key K) *struct {
	mu    sync.RWMutex
	items map[K]V
} {
	return &m.shards[m.hash(key)&(shardCount-1)]
}

// Get returns the value stored under key.
func (m *shardedMap[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Contains reports whether key is present.
func (m *shardedMap[K, V]) Contains(key K) bool {
	s := m.shardFor(key)
	s.mu.RLock()
	_, ok := s.items[key]
	s.mu.RUnlock()
	return ok
}

// Set stores value under key, replacing any previous entry.
func (m *shardedMap[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Delete removes key and reports whether it was present.
func (m *shardedMap[K, V]) Delete(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	_, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	return ok
}

// Update mutates an existing entry in place under its shard lock.
// Returns false without calling fn when the key is absent.
func (m *shardedMap[K, V]) Update(key K, fn func(V) V) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	v, ok := s.items[key]
	if ok {
		s.items[key] = fn(v)
	}
	s.mu.Unlock()
	return ok
}

// Len returns the total entry count across shards.
func (m *shardedMap[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Range calls fn for every entry. Each shard is snapshotted under its read
// lock before fn runs, so fn may call back into the map.
func (m *shardedMap[K, V]) Range(fn func(K, V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		keys := make([]K, 0, len(s.items))
		vals := make([]V, 0, len(s.items))
		for k, v := range s.items {
			keys = append(keys, k)
			vals = append(vals, v)
		}
		s.mu.RUnlock()

		for j := range keys {
			if !fn(keys[j], vals[j]) {
				return
			}
		}
	}
}

// Keys returns a snapshot of all keys.
func (m *shardedMap[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Clear removes every entry.
func (m *shardedMap[K, V]) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.items = make(map[K]V)
		s.mu.Unlock()
	}
}

// fnv-1a over raw identifier bytes.
func hashBytes(b []byte) uint32 {
	h := uint32(2166136261)
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

func hashConceptID(id core.ConceptID) uint32 {
	return hashBytes(id.Bytes())
}

func hashEdgeKey(key core.EdgeKey) uint32 {
	h := hashConceptID(key.From)
	return h*31 + hashConceptID(key.To)
}
