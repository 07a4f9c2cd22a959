// Package policy holds per-tenant memory configuration and drives the
// retention sweep over long-term records.
//
// Store is read by the coordinator on every call, normally through
// CachedStore's short-TTL cache. It is an injected dependency, never a
// process-wide singleton.
package policy

import (
	"context"
	"time"

	"github.com/memguild/memguild/core"
)

// Store persists MemoryPolicy rows. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the tenant's policy, or core.ErrNotFound when the
	// tenant is unknown.
	Get(ctx context.Context, tenantID string) (*core.MemoryPolicy, error)

	// Put creates or overwrites the tenant's policy.
	Put(ctx context.Context, p *core.MemoryPolicy) error

	// Delete removes the tenant's policy. Unknown tenants are a no-op.
	Delete(ctx context.Context, tenantID string) error

	// List returns every stored policy, for the retention sweep.
	List(ctx context.Context) ([]core.MemoryPolicy, error)

	Close() error
}

// Default returns a policy with conservative defaults for a new tenant:
// five-minute short-term TTL, long-term enabled, unlimited size,
// 90-day retention, all operations permitted.
func Default(tenantID string) *core.MemoryPolicy {
	return &core.MemoryPolicy{
		TenantID:        tenantID,
		ShortTermTTL:    5 * time.Minute,
		LongTermEnabled: true,
		MaxMemorySize:   0,
		RetentionDays:   90,
	}
}
