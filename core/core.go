// Package core defines the shared data model of the memory subsystem.
//
// The subsystem gives stateful, multi-tenant recall to agent workloads:
//   - shortterm: ephemeral key/value storage with per-entry expiry
//   - longterm: content + embedding storage with similarity search
//   - ingest: deduplicating, embedding ingestion pipeline
//   - policy: per-tenant quotas, TTL defaults and retention
//   - coordinator: the single entry point enforcing policy and routing
//
// All operations are scoped to a tenant; no record or query crosses
// tenant boundaries.
package core

import "time"

// Operation identifies a memory operation in the request envelope.
type Operation string

const (
	OpStore    Operation = "STORE"
	OpRetrieve Operation = "RETRIEVE"
	OpSearch   Operation = "SEARCH"
)

// MemoryType selects the backing store for an operation.
type MemoryType string

const (
	ShortTerm MemoryType = "SHORT_TERM"
	LongTerm  MemoryType = "LONG_TERM"
)

// Source reports which backend served a response. Fallback mode is
// selected once at construction and held for the process lifetime, so a
// source never flaps between requests.
type Source string

const (
	SourceArchivist Source = "archivist"
	SourceLibrarian Source = "librarian"
	SourceFallback  Source = "fallback"
)

// MemoryRecord is a stored long-term memory. Records are immutable once
// stored: the only mutation path is the Retained flag, and deletion only
// happens through the retention sweep.
type MemoryRecord struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	Content     string            `json:"content"`
	ContentHash string            `json:"content_hash,omitempty"`
	Embedding   []float32         `json:"embedding,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Retained    bool              `json:"retained,omitempty"`
}

// MemoryPolicy holds the per-tenant configuration read by the
// coordinator on every call.
type MemoryPolicy struct {
	TenantID        string        `json:"tenant_id"`
	ShortTermTTL    time.Duration `json:"short_term_ttl_default"`
	LongTermEnabled bool          `json:"long_term_enabled"`
	// MaxMemorySize caps the number of long-term records per tenant.
	// Zero means unlimited.
	MaxMemorySize int `json:"max_memory_size"`
	RetentionDays int `json:"retention_days"`
	// AccessRules lists permitted operations ("store", "retrieve",
	// "search"). An empty list permits everything.
	AccessRules []string `json:"access_rules,omitempty"`
}

// Allows reports whether the policy's access rules permit op.
func (p *MemoryPolicy) Allows(op Operation) bool {
	if len(p.AccessRules) == 0 {
		return true
	}
	for _, rule := range p.AccessRules {
		switch rule {
		case "store":
			if op == OpStore {
				return true
			}
		case "retrieve":
			if op == OpRetrieve {
				return true
			}
		case "search":
			if op == OpSearch {
				return true
			}
		}
	}
	return false
}

// MemoryRequest is the operation envelope accepted by the coordinator.
// The concrete transport is owned by the caller; this boundary is a
// plain callable interface.
type MemoryRequest struct {
	Operation  Operation         `json:"operation"`
	MemoryType MemoryType        `json:"memory_type"`
	TenantID   string            `json:"tenant_id"`

	// Key addresses short-term entries on STORE/RETRIEVE, and long-term
	// records (by id) on RETRIEVE.
	Key string `json:"key,omitempty"`

	// Content is the short-term value or the long-term record content.
	Content string `json:"content,omitempty"`

	// TTL overrides the tenant's short-term default when positive.
	TTL time.Duration `json:"ttl,omitempty"`

	// ContentHash and Embedding accompany long-term STOREs prepared by
	// the ingestion pipeline.
	ContentHash string    `json:"content_hash,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
	Retained bool              `json:"retained,omitempty"`

	// SEARCH parameters.
	Limit     int               `json:"limit,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
	Filter    map[string]string `json:"filter,omitempty"`
}

// MemoryResponse is the unified response envelope. Errors travel on the
// Go error return of Handle, not inside the response.
type MemoryResponse struct {
	Success  bool           `json:"success"`
	MemoryID string         `json:"memory_id,omitempty"`
	Content  string         `json:"content,omitempty"`
	Results  []SearchResult `json:"results,omitempty"`
	Source   Source         `json:"source"`

	// Duplicate marks a store that matched an existing record by
	// content hash. Informational, not an error: MemoryID references
	// the record that already existed.
	Duplicate bool `json:"duplicate,omitempty"`
}

// SearchResult pairs a record with its similarity to the query.
type SearchResult struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}
