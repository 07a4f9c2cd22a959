package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/memguild/memguild/core"
)

// DefaultCacheTTL is the invalidation window for cached policies. A
// policy change is visible to the coordinator within this window at the
// latest, immediately when the change goes through the same CachedStore.
const DefaultCacheTTL = 30 * time.Second

// CachedStore wraps a Store with a short-TTL read cache so the
// coordinator can load the tenant policy on every call without hitting
// the persistence layer each time.
type CachedStore struct {
	inner Store
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner. ttl <= 0 selects DefaultCacheTTL.
func NewCachedStore(inner Store, ttl time.Duration) (*CachedStore, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("policy: cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}, nil
}

// Get returns an isolated copy on both the hit and the miss path, so
// callers never share the AccessRules backing slice with the cached or
// persisted value.
func (s *CachedStore) Get(ctx context.Context, tenantID string) (*core.MemoryPolicy, error) {
	if v, ok := s.cache.Get(tenantID); ok {
		if p, ok := v.(core.MemoryPolicy); ok {
			return clonePolicy(&p), nil
		}
	}
	p, err := s.inner.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithTTL(tenantID, *clonePolicy(p), 1, s.ttl)
	s.cache.Wait()
	return clonePolicy(p), nil
}

func clonePolicy(p *core.MemoryPolicy) *core.MemoryPolicy {
	cp := *p
	if len(p.AccessRules) > 0 {
		cp.AccessRules = append([]string(nil), p.AccessRules...)
	}
	return &cp
}

// Put writes through and invalidates, so a tenant's own change is
// visible on the next read.
func (s *CachedStore) Put(ctx context.Context, p *core.MemoryPolicy) error {
	if err := s.inner.Put(ctx, p); err != nil {
		return err
	}
	s.cache.Del(p.TenantID)
	s.cache.Wait()
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, tenantID string) error {
	if err := s.inner.Delete(ctx, tenantID); err != nil {
		return err
	}
	s.cache.Del(tenantID)
	s.cache.Wait()
	return nil
}

func (s *CachedStore) List(ctx context.Context) ([]core.MemoryPolicy, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) Close() error {
	s.cache.Close()
	return s.inner.Close()
}
