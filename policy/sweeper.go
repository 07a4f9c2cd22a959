package policy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memguild/memguild/core"
)

// DefaultSweepInterval is how often the retention sweep runs.
const DefaultSweepInterval = time.Hour

// Purger is the slice of the long-term store the sweeper needs.
type Purger interface {
	Purge(ctx context.Context, tenantID string, cutoff time.Time) (int, error)
}

// Sweeper periodically purges long-term records older than each
// tenant's retention_days, except retained ones. It runs independently
// of request handling and never blocks the coordinator.
type Sweeper struct {
	policies Store
	longterm Purger
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
}

// NewSweeper creates a sweeper. interval <= 0 selects
// DefaultSweepInterval.
func NewSweeper(policies Store, lt Purger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		policies: policies,
		longterm: lt,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Stop it with Stop or by cancelling
// ctx. A second Start is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Stop terminates the loop and waits for an in-flight sweep to finish.
// Safe to call more than once, and before Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// SweepOnce runs a single pass over all tenants. Per-tenant failures
// are logged and skipped; a sweep never fails as a whole.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	runID := uuid.NewString()
	policies, err := s.policies.List(ctx)
	if err != nil {
		s.logger.Warn("retention sweep: list policies", "run_id", runID, "err", err)
		return
	}

	now := time.Now().UTC()
	var purged int
	for _, p := range policies {
		if p.RetentionDays <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -p.RetentionDays)
		n, err := s.longterm.Purge(ctx, p.TenantID, cutoff)
		if err != nil {
			s.logger.Warn("retention sweep: purge tenant",
				"run_id", runID, "tenant", p.TenantID, "err", core.MapContextErr(err))
			continue
		}
		purged += n
	}
	if purged > 0 {
		s.logger.Info("retention sweep complete", "run_id", runID, "purged", purged, "tenants", len(policies))
	}
}
