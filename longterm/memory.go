package longterm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memguild/memguild/core"
)

// MemoryStore is the in-process fallback: the same record index, with
// similarity search as a linear scan over tenant records. Ranking and
// filtering are contract-identical to the vector backend; durability
// across restarts is the only degraded property.
type MemoryStore struct {
	index  *recordIndex
	gen    *idGen
	logger *slog.Logger

	mu   sync.Mutex
	dims int
}

// NewMemoryStore creates the linear-scan fallback store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		index:  newRecordIndex(),
		gen:    newIDGen(),
		logger: logger,
	}
}

func (s *MemoryStore) checkDims(n int) error {
	if n == 0 {
		return fmt.Errorf("longterm: empty embedding")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dims == 0 {
		s.dims = n
		return nil
	}
	if n != s.dims {
		return fmt.Errorf("longterm: embedding has %d dimensions, deployment uses %d", n, s.dims)
	}
	return nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec *core.MemoryRecord, maxRecords int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, core.MapContextErr(err)
	}
	if err := s.checkDims(len(rec.Embedding)); err != nil {
		return "", false, err
	}
	stored := *rec
	stored.ID = s.gen.next()
	stored.CreatedAt = time.Now().UTC()

	id, inserted, err := s.index.insert(&stored, maxRecords)
	if err != nil {
		return "", false, err
	}
	return id, !inserted, nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (*core.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}
	rec, ok := s.index.get(tenantID, id)
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) LookupHash(ctx context.Context, tenantID, hash string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, core.MapContextErr(err)
	}
	id, ok := s.index.lookupHash(tenantID, hash)
	return id, ok, nil
}

func (s *MemoryStore) Search(ctx context.Context, p SearchParams) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	var cands []core.SearchResult
	for _, rec := range s.index.all(p.TenantID) {
		if !matchesFilter(rec.Metadata, p.Filter) {
			continue
		}
		cands = append(cands, core.SearchResult{
			Record:     *rec,
			Similarity: Cosine(p.Embedding, rec.Embedding),
		})
	}
	return rank(cands, limit, p.Threshold), nil
}

func (s *MemoryStore) Count(ctx context.Context, tenantID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.MapContextErr(err)
	}
	return s.index.count(tenantID), nil
}

func (s *MemoryStore) SetRetained(ctx context.Context, tenantID, id string, retained bool) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	if !s.index.setRetained(tenantID, id, retained) {
		return core.ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.MapContextErr(err)
	}
	ids := s.index.expired(tenantID, cutoff)
	for _, id := range ids {
		s.index.remove(tenantID, id)
	}
	return len(ids), nil
}

func (s *MemoryStore) Source() core.Source {
	return core.SourceFallback
}

func (s *MemoryStore) Close() error {
	return nil
}
