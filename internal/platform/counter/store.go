// Package counter keeps approximate aggregate counts per record type and
// per tag without a table scan on every read. Buckets are adjusted
// incrementally as records are written and deleted; a cold bucket is
// recomputed from the store of record and cached with a fixed expiry.
package counter

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is the counter cache backend. Semantics follow memcache:
// Increment and Decrement on an absent key change nothing and report the
// miss, so an unwarmed bucket simply stays cold until the next Get
// recomputes it.
type Store interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64) error
	Increment(ctx context.Context, key string, delta int64) (int64, bool, error)
	Decrement(ctx context.Context, key string, delta int64) (int64, bool, error)
}

// maxBuckets caps the in-memory store; the bucket space is entity types
// crossed with a small tag vocabulary.
const maxBuckets = 1024

// entry pins the expiry decided at Set time. Adjustments must not slide
// it, or a steadily written bucket would never recompute from storage.
type entry struct {
	n        int64
	deadline time.Time
}

// MemoryStore is an in-process Store with a single fixed TTL applied to
// every bucket, backed by an expiring LRU. The deadline set when a bucket
// is warmed survives increments; the LRU's own TTL only garbage-collects
// untouched entries.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration
	lru *expirable.LRU[string, entry]
}

// NewMemoryStore creates a MemoryStore whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl: ttl,
		lru: expirable.NewLRU[string, entry](maxBuckets, nil, ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.n, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(key, entry{n: value, deadline: time.Now().Add(s.ttl)})
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, delta int64) (int64, bool, error) {
	return s.adjust(key, delta)
}

func (s *MemoryStore) Decrement(_ context.Context, key string, delta int64) (int64, bool, error) {
	return s.adjust(key, -delta)
}

// adjust performs the read-modify-write under one lock so concurrent
// adjustments never lose updates. The entry keeps its original deadline.
func (s *MemoryStore) adjust(key string, delta int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return 0, false, nil
	}
	e.n += delta
	if e.n < 0 {
		e.n = 0
	}
	s.lru.Add(key, e)
	return e.n, true, nil
}

// live fetches an entry, dropping it when its deadline has passed. Must
// be called with the lock held.
func (s *MemoryStore) live(key string) (entry, bool) {
	e, ok := s.lru.Get(key)
	if !ok {
		return entry{}, false
	}
	if time.Now().After(e.deadline) {
		s.lru.Remove(key)
		return entry{}, false
	}
	return e, true
}
