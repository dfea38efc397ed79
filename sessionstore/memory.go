package sessionstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements SessionStore using ttlcache. Suitable for
// single-process deployments and tests.
type MemoryStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryStore creates a new in-memory session store with automatic
// cleanup of expired entries.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](DefaultStateTokenTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go cache.Start()

	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) key(sid, name string) string {
	return sid + "/" + name
}

// Get implements SessionStore.Get.
func (s *MemoryStore) Get(_ context.Context, sid, name string) (string, error) {
	item := s.cache.Get(s.key(sid, name))
	if item == nil {
		return "", nil
	}
	return item.Value(), nil
}

// Set implements SessionStore.Set.
func (s *MemoryStore) Set(_ context.Context, sid, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	s.cache.Set(s.key(sid, name), value, ttl)
	return nil
}

// Remove implements SessionStore.Remove.
func (s *MemoryStore) Remove(_ context.Context, sid, name string) error {
	s.cache.Delete(s.key(sid, name))
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ SessionStore = (*MemoryStore)(nil)
