// Package ingest is the content ingestion pipeline: it deduplicates
// incoming content by canonical hash, obtains an embedding from the
// external provider and stores through the coordinator. Short-term
// memory never passes through here; it is ephemeral and not
// deduplicated.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memguild/memguild/coordinator"
	"github.com/memguild/memguild/core"
	"github.com/memguild/memguild/embedder"
	"github.com/memguild/memguild/longterm"
)

// Scribe ingests content into long-term memory.
type Scribe struct {
	coord    *coordinator.Coordinator
	longTerm longterm.Store
	embedder embedder.Embedder
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a scribe. The long-term store is the same one the
// coordinator routes to; the scribe reads it directly for the dedup
// fast path and stores through the coordinator so policy applies.
func New(coord *coordinator.Coordinator, lt longterm.Store, emb embedder.Embedder, logger *slog.Logger) *Scribe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scribe{
		coord:    coord,
		longTerm: lt,
		embedder: emb,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Ingest deduplicates, embeds and stores content for a tenant. A
// duplicate returns success with Duplicate=true referencing the
// existing record; an embedding failure returns
// core.ErrEmbeddingUnavailable with nothing persisted.
func (s *Scribe) Ingest(ctx context.Context, content, tenantID, source string, metadata map[string]string) (*core.MemoryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}

	normalized := Normalize(content)
	hash := Hash(normalized)
	ingestID := uuid.NewString()

	// Serialize identical concurrent ingestions so only one embeds.
	// The store's conditional insert is the authoritative guard; this
	// lock just avoids paying the provider twice for the same content.
	unlock := s.lock(tenantID + ":" + hash)
	defer unlock()

	if id, ok, err := s.longTerm.LookupHash(ctx, tenantID, hash); err != nil {
		return nil, core.MapContextErr(err)
	} else if ok {
		s.logger.Debug("duplicate content skipped",
			"ingest_id", ingestID, "tenant", tenantID, "memory_id", id)
		return &core.MemoryResponse{
			Success:   true,
			MemoryID:  id,
			Duplicate: true,
			Source:    s.longTerm.Source(),
		}, nil
	}

	vector, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingUnavailable, core.MapContextErr(err))
	}

	meta := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	if source != "" {
		meta["origin"] = source
	}
	meta["ingested_at"] = time.Now().UTC().Format(time.RFC3339)

	resp, err := s.coord.Handle(ctx, &core.MemoryRequest{
		Operation:   core.OpStore,
		MemoryType:  core.LongTerm,
		TenantID:    tenantID,
		Content:     content,
		ContentHash: hash,
		Embedding:   vector,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("content ingested",
		"ingest_id", ingestID, "tenant", tenantID, "memory_id", resp.MemoryID, "duplicate", resp.Duplicate)
	return resp, nil
}

// lock returns a held per-key mutex and its release func.
func (s *Scribe) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
