// Package coordinator is the single entry point of the memory
// subsystem: it validates the tenant's policy, routes operations to the
// short-term or long-term store and unifies responses.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/memguild/memguild/core"
	"github.com/memguild/memguild/longterm"
	"github.com/memguild/memguild/policy"
	"github.com/memguild/memguild/shortterm"
)

// Coordinator routes memory operations. It never mutates record
// content; its only side effects are the delegated store and read
// calls.
type Coordinator struct {
	policies  policy.Store
	shortTerm shortterm.Store
	longTerm  longterm.Store
	logger    *slog.Logger
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator over the given policy store and backends.
// Backend selection (durable vs fallback) has already happened at this
// point and is fixed for the process lifetime.
func New(policies policy.Store, st shortterm.Store, lt longterm.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		policies:  policies,
		shortTerm: st,
		longTerm:  lt,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle executes one memory operation. Policy is loaded (through the
// store's cache) on every call; quota applies to writes only, tenant
// existence and access rules apply to every operation.
func (c *Coordinator) Handle(ctx context.Context, req *core.MemoryRequest) (*core.MemoryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.MapContextErr(err)
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant id", core.ErrPolicyViolation)
	}

	pol, err := c.policies.Get(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown tenant %q", core.ErrPolicyViolation, req.TenantID)
		}
		return nil, core.MapContextErr(err)
	}
	if !pol.Allows(req.Operation) {
		return nil, fmt.Errorf("%w: operation %s denied for tenant %q",
			core.ErrPolicyViolation, req.Operation, req.TenantID)
	}

	switch req.Operation {
	case core.OpStore:
		return c.store(ctx, req, pol)
	case core.OpRetrieve:
		return c.retrieve(ctx, req)
	case core.OpSearch:
		return c.search(ctx, req)
	default:
		return nil, fmt.Errorf("coordinator: unknown operation %q", req.Operation)
	}
}

func (c *Coordinator) store(ctx context.Context, req *core.MemoryRequest, pol *core.MemoryPolicy) (*core.MemoryResponse, error) {
	switch req.MemoryType {
	case core.ShortTerm:
		ttl := req.TTL
		if ttl <= 0 {
			ttl = pol.ShortTermTTL
		}
		if err := c.shortTerm.Store(ctx, req.TenantID, req.Key, req.Content, ttl); err != nil {
			return nil, core.MapContextErr(err)
		}
		return &core.MemoryResponse{
			Success:  true,
			MemoryID: req.Key,
			Source:   c.shortTerm.Source(),
		}, nil

	case core.LongTerm:
		if !pol.LongTermEnabled {
			return nil, fmt.Errorf("%w: long-term memory disabled for tenant %q",
				core.ErrPolicyViolation, req.TenantID)
		}
		rec := &core.MemoryRecord{
			TenantID:    req.TenantID,
			Content:     req.Content,
			ContentHash: req.ContentHash,
			Embedding:   req.Embedding,
			Metadata:    req.Metadata,
			Retained:    req.Retained,
		}
		// The quota gate lives inside Insert's critical section, so
		// concurrent stores cannot overshoot max_memory_size.
		id, existing, err := c.longTerm.Insert(ctx, rec, pol.MaxMemorySize)
		if err != nil {
			return nil, core.MapContextErr(err)
		}
		if existing {
			c.logger.Debug("duplicate content skipped", "tenant", req.TenantID, "memory_id", id)
		}
		return &core.MemoryResponse{
			Success:   true,
			MemoryID:  id,
			Duplicate: existing,
			Source:    c.longTerm.Source(),
		}, nil

	default:
		return nil, fmt.Errorf("coordinator: unknown memory type %q", req.MemoryType)
	}
}

func (c *Coordinator) retrieve(ctx context.Context, req *core.MemoryRequest) (*core.MemoryResponse, error) {
	switch req.MemoryType {
	case core.ShortTerm:
		value, err := c.shortTerm.Retrieve(ctx, req.TenantID, req.Key)
		if err != nil {
			return nil, core.MapContextErr(err)
		}
		return &core.MemoryResponse{
			Success: true,
			Content: value,
			Source:  c.shortTerm.Source(),
		}, nil

	case core.LongTerm:
		rec, err := c.longTerm.Get(ctx, req.TenantID, req.Key)
		if err != nil {
			return nil, core.MapContextErr(err)
		}
		return &core.MemoryResponse{
			Success:  true,
			MemoryID: rec.ID,
			Content:  rec.Content,
			Source:   c.longTerm.Source(),
		}, nil

	default:
		return nil, fmt.Errorf("coordinator: unknown memory type %q", req.MemoryType)
	}
}

func (c *Coordinator) search(ctx context.Context, req *core.MemoryRequest) (*core.MemoryResponse, error) {
	if req.MemoryType != core.LongTerm {
		return nil, fmt.Errorf("coordinator: search requires long-term memory, got %q", req.MemoryType)
	}
	results, err := c.longTerm.Search(ctx, longterm.SearchParams{
		TenantID:  req.TenantID,
		Embedding: req.Embedding,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Filter:    req.Filter,
	})
	if err != nil {
		return nil, core.MapContextErr(err)
	}
	return &core.MemoryResponse{
		Success: true,
		Results: results,
		Source:  c.longTerm.Source(),
	}, nil
}
