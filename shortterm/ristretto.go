package shortterm

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/memguild/memguild/core"
)

// RistrettoStore backs the short-term store with a TTL-capable cache.
// Expiry is enforced by the cache itself; Retrieve never sees a value
// past its expires_at.
type RistrettoStore struct {
	cache *ristretto.Cache
}

// NewRistretto creates the cache-backed store. maxBytes bounds the
// total cost of resident values; zero selects a 256 MiB default.
func NewRistretto(maxBytes int64) (*RistrettoStore, error) {
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}
	return &RistrettoStore{cache: cache}, nil
}

func (s *RistrettoStore) Store(ctx context.Context, tenantID, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	if ttl <= 0 {
		return fmt.Errorf("shortterm: ttl must be positive, got %v", ttl)
	}

	k := entryKey(tenantID, key)
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}

	// Sets pass through an internal buffer, and even a buffered write
	// can be dropped by the admission policy. A store only counts once
	// the entry reads back, so retrieve-after-store always observes it.
	for attempt := 0; attempt < 3; attempt++ {
		s.cache.SetWithTTL(k, value, cost, ttl)
		s.cache.Wait()
		if v, ok := s.cache.Get(k); ok {
			if stored, ok := v.(string); ok && stored == value {
				return nil
			}
		}
	}
	return fmt.Errorf("shortterm: cache rejected entry %q", key)
}

func (s *RistrettoStore) Retrieve(ctx context.Context, tenantID, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.MapContextErr(err)
	}
	v, ok := s.cache.Get(entryKey(tenantID, key))
	if !ok {
		return "", core.ErrNotFound
	}
	value, ok := v.(string)
	if !ok {
		return "", core.ErrNotFound
	}
	return value, nil
}

func (s *RistrettoStore) Delete(ctx context.Context, tenantID, key string) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	s.cache.Del(entryKey(tenantID, key))
	s.cache.Wait()
	return nil
}

func (s *RistrettoStore) Source() core.Source {
	return core.SourceArchivist
}

func (s *RistrettoStore) Close() error {
	s.cache.Close()
	return nil
}
