package shortterm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memguild/memguild/core"
)

// janitorInterval bounds memory growth from entries that expire but are
// never read again. Expiry itself is checked lazily on every read, so
// the sweep affects footprint only, never visibility.
const janitorInterval = time.Minute

type mapEntry struct {
	value     string
	expiresAt time.Time
}

// MapStore is the in-process fallback: a time-indexed map exposing the
// same store/retrieve semantics as the durable backend, at reduced
// durability only.
type MapStore struct {
	mu      sync.RWMutex
	entries map[string]mapEntry
	logger  *slog.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMapStore creates the fallback store and starts its janitor sweep.
func NewMapStore(logger *slog.Logger) *MapStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MapStore{
		entries: make(map[string]mapEntry),
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MapStore) Store(ctx context.Context, tenantID, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	if ttl <= 0 {
		return fmt.Errorf("shortterm: ttl must be positive, got %v", ttl)
	}
	s.mu.Lock()
	s.entries[entryKey(tenantID, key)] = mapEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *MapStore) Retrieve(ctx context.Context, tenantID, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.MapContextErr(err)
	}
	k := entryKey(tenantID, key)

	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	if !ok {
		return "", core.ErrNotFound
	}
	if !time.Now().Before(e.expiresAt) {
		// Lazy eviction: expired entries vanish on first read.
		s.mu.Lock()
		if cur, ok := s.entries[k]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, k)
		}
		s.mu.Unlock()
		return "", core.ErrNotFound
	}
	return e.value, nil
}

func (s *MapStore) Delete(ctx context.Context, tenantID, key string) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	s.mu.Lock()
	delete(s.entries, entryKey(tenantID, key))
	s.mu.Unlock()
	return nil
}

func (s *MapStore) Source() core.Source {
	return core.SourceFallback
}

// Close stops the janitor. Safe to call more than once.
func (s *MapStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// Len reports resident entries, expired or not. Used by tests and the
// janitor's log line.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MapStore) janitor() {
	defer close(s.done)
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MapStore) sweep(now time.Time) {
	s.mu.Lock()
	var evicted int
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			evicted++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()
	if evicted > 0 {
		s.logger.Debug("short-term janitor sweep", "evicted", evicted, "remaining", remaining)
	}
}
