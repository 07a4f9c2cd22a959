package core

import (
	"context"
	"errors"
)

// Error taxonomy for the memory subsystem. Nothing here is fatal to the
// host process; ErrBackendUnavailable in particular is absorbed by each
// backend at construction time and never reaches a caller mid-request.
var (
	// ErrNotFound: key or id absent, or expired.
	ErrNotFound = errors.New("memguild: not found")

	// ErrQuotaExceeded: the tenant is at max_memory_size; nothing was
	// written.
	ErrQuotaExceeded = errors.New("memguild: quota exceeded")

	// ErrPolicyViolation: long-term storage disabled, unknown tenant,
	// or an access rule denied the operation.
	ErrPolicyViolation = errors.New("memguild: policy violation")

	// ErrBackendUnavailable: a durable backend is unreachable. Logged
	// as degraded and replaced by the in-process fallback.
	ErrBackendUnavailable = errors.New("memguild: backend unavailable")

	// ErrEmbeddingUnavailable: the embedding provider failed; ingestion
	// aborts with no partial record.
	ErrEmbeddingUnavailable = errors.New("memguild: embedding unavailable")

	// ErrTimeout: the caller-supplied deadline expired.
	ErrTimeout = errors.New("memguild: deadline exceeded")
)

// MapContextErr converts context cancellation into the subsystem's
// timeout error. Store operations are single-shot and atomic at the
// granularity of one record, so a timeout never leaves a partial write.
func MapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	return err
}
