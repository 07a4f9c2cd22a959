package policy

import (
	"context"
	"sort"
	"sync"

	"github.com/memguild/memguild/core"
)

// MemStore is an in-memory Store for tests and ephemeral deployments.
type MemStore struct {
	mu       sync.RWMutex
	policies map[string]core.MemoryPolicy
}

// NewMemStore creates an empty in-memory policy store.
func NewMemStore() *MemStore {
	return &MemStore{policies: make(map[string]core.MemoryPolicy)}
}

func (s *MemStore) Get(ctx context.Context, tenantID string) (*core.MemoryPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[tenantID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (s *MemStore) Put(ctx context.Context, p *core.MemoryPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.TenantID] = *p
	return nil
}

func (s *MemStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, tenantID)
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]core.MemoryPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policies := make([]core.MemoryPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].TenantID < policies[j].TenantID
	})
	return policies, nil
}

func (s *MemStore) Close() error {
	return nil
}
