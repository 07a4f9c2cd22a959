// Package shortterm implements the ephemeral key/value store with
// per-entry expiry.
//
// Store is implemented twice: RistrettoStore over a TTL-capable cache
// backend, and MapStore as the in-process fallback with identical
// semantics. The implementation is selected once at construction and
// held fixed for the process lifetime.
package shortterm

import (
	"context"
	"log/slog"
	"time"

	"github.com/memguild/memguild/core"
)

// Store is the short-term storage contract. Entries are keyed by
// tenant and key; a store followed by an immediate retrieve from the
// same caller observes the stored value.
type Store interface {
	// Store persists value under (tenantID, key) with expiry now+ttl.
	// ttl must be positive: every short-term entry has an expiry.
	Store(ctx context.Context, tenantID, key, value string, ttl time.Duration) error

	// Retrieve returns the value if it has not expired, evicting the
	// entry and returning core.ErrNotFound otherwise.
	Retrieve(ctx context.Context, tenantID, key string) (string, error)

	// Delete removes the entry. Absent keys are a no-op.
	Delete(ctx context.Context, tenantID, key string) error

	// Source identifies the backend for response attribution.
	Source() core.Source

	Close() error
}

// entryKey namespaces keys by tenant to prevent cross-tenant
// collisions.
func entryKey(tenantID, key string) string {
	return tenantID + ":" + key
}

// Select returns primary when its construction succeeded, and the
// in-process fallback otherwise. The decision happens exactly once,
// never per-request.
func Select(primary Store, err error, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Warn("short-term backend unavailable, serving from in-process fallback",
			"err", err)
		return NewMapStore(logger)
	}
	return primary
}
