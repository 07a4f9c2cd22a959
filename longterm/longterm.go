// Package longterm implements persistent memory storage with semantic
// similarity search.
//
// Store is implemented twice: ChromemStore over an embedded vector
// database, and MemoryStore as the in-process fallback performing the
// identical similarity computation via a linear scan. Both share one
// ranking contract: cosine similarity, descending, ties broken by
// created_at descending, then record id descending. Record ids are
// ULIDs, so the id tie-break equals insertion order.
package longterm

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/memguild/memguild/core"
)

// Store is the long-term storage contract. Records are append-only;
// the only mutation is the retained flag and the only deletions come
// from the retention sweep.
type Store interface {
	// Insert stores rec conditionally on (tenant_id, content_hash).
	// When the hash already exists the call is a no-op and returns the
	// existing record's id with existing=true. Otherwise a new ULID id
	// and created_at are assigned and the stored id is returned.
	// maxRecords caps the tenant's record count (zero is unlimited);
	// an insert at the cap returns core.ErrQuotaExceeded unless it
	// resolves to an existing record. The dedup check, the quota check
	// and the write are one critical section.
	Insert(ctx context.Context, rec *core.MemoryRecord, maxRecords int) (id string, existing bool, err error)

	// Get returns the record by id, or core.ErrNotFound.
	Get(ctx context.Context, tenantID, id string) (*core.MemoryRecord, error)

	// LookupHash returns the id of the record with the given content
	// hash, if any.
	LookupHash(ctx context.Context, tenantID, hash string) (id string, ok bool, err error)

	// Search ranks tenant-scoped candidates against the query
	// embedding. At most Limit results are returned, each with
	// similarity >= Threshold, in the canonical order.
	Search(ctx context.Context, p SearchParams) ([]core.SearchResult, error)

	// Count reports the tenant's stored record count, for quota checks.
	Count(ctx context.Context, tenantID string) (int, error)

	// SetRetained flips the purge exemption flag on a record.
	SetRetained(ctx context.Context, tenantID, id string, retained bool) error

	// Purge removes records created before cutoff, skipping retained
	// ones, and returns how many were removed.
	Purge(ctx context.Context, tenantID string, cutoff time.Time) (int, error)

	// Source identifies the backend for response attribution.
	Source() core.Source

	Close() error
}

// SearchParams carries a similarity query.
type SearchParams struct {
	TenantID  string
	Embedding []float32
	Limit     int
	Threshold float64
	// Filter requires exact metadata matches; applied before ranking.
	Filter map[string]string
}

// Select returns primary when its construction succeeded, and the
// in-process linear-scan fallback otherwise. The decision happens once
// at startup, never per-request.
func Select(primary Store, err error, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Warn("long-term backend unavailable, serving from in-process fallback",
			"err", err)
		return NewMemoryStore(logger)
	}
	return primary
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// empty vectors score zero rather than erroring, so one malformed
// record cannot poison a whole search.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// matchesFilter reports whether the record metadata satisfies every
// required key/value pair.
func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// rank applies the threshold, orders candidates by the canonical
// tie-break chain and cuts to limit.
func rank(cands []core.SearchResult, limit int, threshold float64) []core.SearchResult {
	qualified := cands[:0]
	for _, c := range cands {
		if c.Similarity >= threshold {
			qualified = append(qualified, c)
		}
	}
	sort.Slice(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.ID > b.Record.ID
	})
	if limit > 0 && len(qualified) > limit {
		qualified = qualified[:limit]
	}
	return qualified
}

// idGen produces ULID record ids: collision-resistant and
// lexicographically time-ordered.
type idGen struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

func newIDGen() *idGen {
	return &idGen{entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *idGen) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
