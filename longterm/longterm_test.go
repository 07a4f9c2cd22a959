package longterm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/memguild/memguild/core"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	cs, err := NewChromem("", 0, nil)
	if err != nil {
		t.Fatalf("NewChromem: %v", err)
	}
	ms := NewMemoryStore(nil)
	t.Cleanup(func() {
		cs.Close()
		ms.Close()
	})
	return map[string]Store{"chromem": cs, "memory": ms}
}

func rec(tenant, content, hash string, emb []float32) *core.MemoryRecord {
	return &core.MemoryRecord{
		TenantID:    tenant,
		Content:     content,
		ContentHash: hash,
		Embedding:   emb,
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			id, existing, err := s.Insert(ctx, rec("t1", "the sky is blue", "h1", []float32{1, 0, 0}), 0)
			if err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if existing {
				t.Fatal("first insert reported existing")
			}
			if id == "" {
				t.Fatal("empty id")
			}

			got, err := s.Get(ctx, "t1", id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Content != "the sky is blue" {
				t.Errorf("content = %q", got.Content)
			}
			if got.CreatedAt.IsZero() {
				t.Error("created_at not assigned")
			}

			if _, err := s.Get(ctx, "t1", "no-such-id"); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestInsertDeduplicatesByHash(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			first, existing, err := s.Insert(ctx, rec("t1", "the sky is blue", "h1", []float32{1, 0, 0}), 0)
			if err != nil || existing {
				t.Fatalf("first insert: id=%s existing=%v err=%v", first, existing, err)
			}
			second, existing, err := s.Insert(ctx, rec("t1", "the sky is blue", "h1", []float32{1, 0, 0}), 0)
			if err != nil {
				t.Fatalf("second insert: %v", err)
			}
			if !existing {
				t.Error("second insert did not report existing")
			}
			if second != first {
				t.Errorf("second id %s, want %s", second, first)
			}
			n, _ := s.Count(ctx, "t1")
			if n != 1 {
				t.Errorf("count = %d, want 1", n)
			}

			// Same hash under another tenant is a distinct record.
			other, existing, err := s.Insert(ctx, rec("t2", "the sky is blue", "h1", []float32{1, 0, 0}), 0)
			if err != nil || existing {
				t.Fatalf("other tenant insert: existing=%v err=%v", existing, err)
			}
			if other == first {
				t.Error("tenants shared a record id")
			}
		})
	}
}

func TestConcurrentIdenticalInserts(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			ids := make([]string, 8)
			errs := make([]error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					ids[i], _, errs[i] = s.Insert(ctx, rec("t1", "same", "same-hash", []float32{0, 1, 0}), 0)
				}(i)
			}
			wg.Wait()
			for i := 0; i < 8; i++ {
				if errs[i] != nil {
					t.Fatalf("insert %d: %v", i, errs[i])
				}
				if ids[i] != ids[0] {
					t.Errorf("insert %d returned id %s, want %s", i, ids[i], ids[0])
				}
			}
			n, _ := s.Count(ctx, "t1")
			if n != 1 {
				t.Errorf("count = %d, want 1", n)
			}
		})
	}
}

func TestSearchRankingAndThreshold(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// Similarities against the query [1,0,0]: 1.0, ~0.95, ~0.6, 0.
			inserts := []struct {
				content string
				emb     []float32
			}{
				{"exact", []float32{1, 0, 0}},
				{"close", []float32{0.95, 0.312, 0}},
				{"far", []float32{0.6, 0.8, 0}},
				{"orthogonal", []float32{0, 0, 1}},
			}
			for i, in := range inserts {
				hash := fmt.Sprintf("h%d", i)
				if _, _, err := s.Insert(ctx, rec("t1", in.content, hash, in.emb), 0); err != nil {
					t.Fatalf("insert %s: %v", in.content, err)
				}
			}

			results, err := s.Search(ctx, SearchParams{
				TenantID:  "t1",
				Embedding: []float32{1, 0, 0},
				Limit:     5,
				Threshold: 0.5,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 3 {
				t.Fatalf("got %d results, want 3", len(results))
			}
			want := []string{"exact", "close", "far"}
			for i, w := range want {
				if results[i].Record.Content != w {
					t.Errorf("result %d = %q, want %q", i, results[i].Record.Content, w)
				}
			}
			for i := 1; i < len(results); i++ {
				if results[i].Similarity > results[i-1].Similarity {
					t.Error("results not in descending similarity order")
				}
			}
			for _, r := range results {
				if r.Similarity < 0.5 {
					t.Errorf("result %q below threshold: %f", r.Record.Content, r.Similarity)
				}
			}

			// Limit caps the result count.
			capped, err := s.Search(ctx, SearchParams{
				TenantID:  "t1",
				Embedding: []float32{1, 0, 0},
				Limit:     2,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(capped) != 2 {
				t.Errorf("got %d results, want 2", len(capped))
			}
		})
	}
}

func TestSearchTieBreakByRecency(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// Identical embeddings tie on similarity; the newer record
			// ranks first, and ULID order matches insertion order.
			if _, _, err := s.Insert(ctx, rec("t1", "older", "h-old", []float32{0, 1, 0}), 0); err != nil {
				t.Fatalf("insert: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
			if _, _, err := s.Insert(ctx, rec("t1", "newer", "h-new", []float32{0, 1, 0}), 0); err != nil {
				t.Fatalf("insert: %v", err)
			}

			results, err := s.Search(ctx, SearchParams{
				TenantID:  "t1",
				Embedding: []float32{0, 1, 0},
				Limit:     2,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 2 {
				t.Fatalf("got %d results, want 2", len(results))
			}
			if results[0].Record.Content != "newer" || results[1].Record.Content != "older" {
				t.Errorf("tie-break order = [%q %q], want [newer older]",
					results[0].Record.Content, results[1].Record.Content)
			}
		})
	}
}

func TestSearchMetadataFilterAndTenantScope(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			a := rec("t1", "tagged", "h1", []float32{1, 0, 0})
			a.Metadata = map[string]string{"origin": "chat"}
			b := rec("t1", "untagged", "h2", []float32{1, 0, 0})
			b.Metadata = map[string]string{"origin": "import"}
			for _, r := range []*core.MemoryRecord{a, b} {
				if _, _, err := s.Insert(ctx, r, 0); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}

			results, err := s.Search(ctx, SearchParams{
				TenantID:  "t1",
				Embedding: []float32{1, 0, 0},
				Limit:     10,
				Filter:    map[string]string{"origin": "chat"},
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 1 || results[0].Record.Content != "tagged" {
				t.Fatalf("filter results = %v", results)
			}

			// Other tenants see nothing.
			empty, err := s.Search(ctx, SearchParams{
				TenantID:  "t2",
				Embedding: []float32{1, 0, 0},
				Limit:     10,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("cross-tenant search returned %d results", len(empty))
			}
		})
	}
}

func TestPurgeSkipsRetained(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			keepID, _, err := s.Insert(ctx, rec("t1", "keep", "h1", []float32{1, 0, 0}), 0)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			dropID, _, err := s.Insert(ctx, rec("t1", "drop", "h2", []float32{0, 1, 0}), 0)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if err := s.SetRetained(ctx, "t1", keepID, true); err != nil {
				t.Fatalf("SetRetained: %v", err)
			}

			// A cutoff in the future makes every non-retained record
			// purgeable.
			n, err := s.Purge(ctx, "t1", time.Now().Add(time.Hour))
			if err != nil {
				t.Fatalf("Purge: %v", err)
			}
			if n != 1 {
				t.Errorf("purged %d, want 1", n)
			}
			if _, err := s.Get(ctx, "t1", keepID); err != nil {
				t.Errorf("retained record gone: %v", err)
			}
			if _, err := s.Get(ctx, "t1", dropID); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("purged record still present: %v", err)
			}

			// The freed hash can be stored again.
			if _, existing, err := s.Insert(ctx, rec("t1", "drop", "h2", []float32{0, 1, 0}), 0); err != nil || existing {
				t.Errorf("re-insert after purge: existing=%v err=%v", existing, err)
			}
		})
	}
}

func TestEmbeddingDimensionsFixed(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Insert(ctx, rec("t1", "a", "h1", []float32{1, 0, 0}), 0); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if _, _, err := s.Insert(ctx, rec("t1", "b", "h2", []float32{1, 0}), 0); err == nil {
				t.Error("expected dimension mismatch error")
			}
			if _, _, err := s.Insert(ctx, rec("t1", "c", "h3", nil), 0); err == nil {
				t.Error("expected empty embedding error")
			}
		})
	}
}

func TestChromemPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewChromem(dir, 0, nil)
	if err != nil {
		t.Fatalf("NewChromem: %v", err)
	}
	id, _, err := s.Insert(ctx, rec("t1", "durable", "h1", []float32{1, 0, 0}), 0)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewChromem(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "t1", id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Content != "durable" {
		t.Errorf("content = %q", got.Content)
	}
	results, err := reopened.Search(ctx, SearchParams{
		TenantID:  "t1",
		Embedding: []float32{1, 0, 0},
		Limit:     1,
	})
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != id {
		t.Errorf("search after reopen = %v", results)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 0}, []float32{1, 0, 0}, 0}, // mismatched dims
		{nil, nil, 0},
	}
	for _, c := range cases {
		if got := Cosine(c.a, c.b); got < c.want-1e-6 || got > c.want+1e-6 {
			t.Errorf("Cosine(%v, %v) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}

func TestSelectFallsBack(t *testing.T) {
	s := Select(nil, core.ErrBackendUnavailable, nil)
	defer s.Close()
	if s.Source() != core.SourceFallback {
		t.Errorf("Source = %q, want %q", s.Source(), core.SourceFallback)
	}
}

func TestFilterReachesBeyondTopScorers(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// Many high-similarity records that the filter excludes,
			// plus one lower-similarity record that matches it.
			for i := 0; i < 20; i++ {
				r := rec("t1", fmt.Sprintf("imported %d", i), fmt.Sprintf("h-imp-%d", i), []float32{1, 0, 0})
				r.Metadata = map[string]string{"origin": "import"}
				if _, _, err := s.Insert(ctx, r, 0); err != nil {
					t.Fatalf("insert %d: %v", i, err)
				}
			}
			chat := rec("t1", "from a chat", "h-chat", []float32{0.6, 0.8, 0})
			chat.Metadata = map[string]string{"origin": "chat"}
			if _, _, err := s.Insert(ctx, chat, 0); err != nil {
				t.Fatalf("insert chat record: %v", err)
			}

			results, err := s.Search(ctx, SearchParams{
				TenantID:  "t1",
				Embedding: []float32{1, 0, 0},
				Limit:     5,
				Filter:    map[string]string{"origin": "chat"},
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			if results[0].Record.Content != "from a chat" {
				t.Errorf("content = %q", results[0].Record.Content)
			}
		})
	}
}

func TestConcurrentInsertsHonorQuota(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			const max = 3
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, _, errs[i] = s.Insert(ctx,
						rec("t1", fmt.Sprintf("distinct %d", i), fmt.Sprintf("h-%d", i), []float32{1, 0, 0}), max)
				}(i)
			}
			wg.Wait()

			var stored, rejected int
			for i, err := range errs {
				switch {
				case err == nil:
					stored++
				case errors.Is(err, core.ErrQuotaExceeded):
					rejected++
				default:
					t.Fatalf("insert %d: %v", i, err)
				}
			}
			if stored != max || rejected != 8-max {
				t.Errorf("stored %d rejected %d, want %d/%d", stored, rejected, max, 8-max)
			}
			n, _ := s.Count(ctx, "t1")
			if n != max {
				t.Errorf("count = %d, want %d", n, max)
			}

			// A duplicate at the cap resolves to the existing record
			// instead of a quota error.
			for i, err := range errs {
				if err != nil {
					continue
				}
				hash := fmt.Sprintf("h-%d", i)
				if _, existing, err := s.Insert(ctx, rec("t1", "same content again", hash, []float32{1, 0, 0}), max); err != nil || !existing {
					t.Errorf("duplicate at cap: existing=%v err=%v", existing, err)
				}
				break
			}
		})
	}
}
