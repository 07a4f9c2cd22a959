package longterm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/memguild/memguild/core"
)

// ChromemStore backs the long-term store with chromem-go, an embedded
// vector database. Tenants are isolated in separate collections; the
// record index carries record metadata and enforces hash uniqueness,
// while chromem serves the similarity queries.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex

	index  *recordIndex
	gen    *idGen
	dims   int
	dir    string
	logger *slog.Logger
}

// NewChromem creates the vector-backed store. A non-empty dir enables
// on-disk persistence of both the vectors and the record index; dims
// fixes the embedding dimensionality (zero learns it from the first
// insert).
func NewChromem(dir string, dims int, logger *slog.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ChromemStore{
		collections: make(map[string]*chromem.Collection),
		index:       newRecordIndex(),
		gen:         newIDGen(),
		dims:        dims,
		dir:         dir,
		logger:      logger,
	}
	if dir == "" {
		s.db = chromem.NewDB()
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "vectors"), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnavailable, err)
	}
	s.db = db
	if err := s.index.load(s.indexPath()); err != nil {
		return nil, fmt.Errorf("%w: load record index: %v", core.ErrBackendUnavailable, err)
	}
	return s, nil
}

func (s *ChromemStore) indexPath() string {
	return filepath.Join(s.dir, "records.json")
}

// collection returns the tenant's collection, creating it on first use.
func (s *ChromemStore) collection(tenantID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[tenantID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, exists := s.collections[tenantID]; exists {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection("tenant_"+tenantID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	s.collections[tenantID] = col
	return col, nil
}

func (s *ChromemStore) checkDims(n int) error {
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

func (s *ChromemStore) Insert(ctx context.Context, rec *core.MemoryRecord, maxRecords int) (string, bool, error) {
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
	if !inserted {
		return id, true, nil
	}

	col, err := s.collection(stored.TenantID)
	if err != nil {
		s.index.remove(stored.TenantID, stored.ID)
		return "", false, err
	}
	doc := chromem.Document{
		ID:        stored.ID,
		Content:   stored.Content,
		Embedding: stored.Embedding,
		Metadata: map[string]string{
			"tenant_id":    stored.TenantID,
			"content_hash": stored.ContentHash,
			"created_at":   stored.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		s.index.remove(stored.TenantID, stored.ID)
		return "", false, core.MapContextErr(fmt.Errorf("add document: %w", err))
	}

	s.persist()
	return stored.ID, false, nil
}

func (s *ChromemStore) Get(ctx context.Context, tenantID, id string) (*core.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}
	rec, ok := s.index.get(tenantID, id)
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

func (s *ChromemStore) LookupHash(ctx context.Context, tenantID, hash string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, core.MapContextErr(err)
	}
	id, ok := s.index.lookupHash(tenantID, hash)
	return id, ok, nil
}

func (s *ChromemStore) Search(ctx context.Context, p SearchParams) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	if s.index.count(p.TenantID) == 0 {
		return nil, nil
	}
	col, err := s.collection(p.TenantID)
	if err != nil {
		return nil, err
	}

	// Fetch beyond the limit so boundary ties are re-ranked by the
	// canonical chain instead of backend iteration order. The metadata
	// filter lives in the record index, invisible to chromem, so
	// filtered queries must rank the whole collection: a narrow fetch
	// would drop qualifying records hidden behind non-matching high
	// scorers.
	fetch := limit * 2
	if len(p.Filter) > 0 {
		fetch = col.Count()
	} else if n := col.Count(); fetch > n {
		fetch = n
	}
	if fetch == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, p.Embedding, fetch,
		map[string]string{"tenant_id": p.TenantID}, nil)
	if err != nil {
		return nil, core.MapContextErr(fmt.Errorf("query embedding: %w", err))
	}

	cands := make([]core.SearchResult, 0, len(results))
	for _, res := range results {
		rec, ok := s.index.get(p.TenantID, res.ID)
		if !ok {
			continue
		}
		if !matchesFilter(rec.Metadata, p.Filter) {
			continue
		}
		cands = append(cands, core.SearchResult{
			Record:     *rec,
			Similarity: float64(res.Similarity),
		})
	}
	return rank(cands, limit, p.Threshold), nil
}

func (s *ChromemStore) Count(ctx context.Context, tenantID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.MapContextErr(err)
	}
	return s.index.count(tenantID), nil
}

func (s *ChromemStore) SetRetained(ctx context.Context, tenantID, id string, retained bool) error {
	if err := ctx.Err(); err != nil {
		return core.MapContextErr(err)
	}
	if !s.index.setRetained(tenantID, id, retained) {
		return core.ErrNotFound
	}
	s.persist()
	return nil
}

func (s *ChromemStore) Purge(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.MapContextErr(err)
	}
	ids := s.index.expired(tenantID, cutoff)
	if len(ids) == 0 {
		return 0, nil
	}
	col, err := s.collection(tenantID)
	if err != nil {
		return 0, err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, core.MapContextErr(fmt.Errorf("delete documents: %w", err))
	}
	for _, id := range ids {
		s.index.remove(tenantID, id)
	}
	s.persist()
	return len(ids), nil
}

func (s *ChromemStore) Source() core.Source {
	return core.SourceLibrarian
}

func (s *ChromemStore) Close() error {
	s.persist()
	return nil
}

// persist snapshots the record index next to the vector files. Snapshot
// failures degrade durability, not correctness, so they warn instead of
// failing the write.
func (s *ChromemStore) persist() {
	if s.dir == "" {
		return
	}
	if err := s.index.save(s.indexPath()); err != nil {
		s.logger.Warn("record index snapshot failed", "path", s.indexPath(), "err", err)
	}
}
