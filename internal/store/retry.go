package store

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// WithRetry runs fn repeatedly with a flat RetryDelay backoff until it
// succeeds or ctx is cancelled, per spec.md §7's "retried indefinitely with
// 1 s backoff" policy for store-transient errors on read paths.
func WithRetry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.NewConstantBackOff(RetryDelay), ctx)
	return backoff.Retry(fn, policy)
}
