package sheets

import (
	"context"
	"log"
	"time"

	"github.com/lhn-coaching/coachsync/internal/retry"
)

// retryingStore applies a retry policy to every call of the wrapped store.
type retryingStore struct {
	inner  Store
	policy retry.Policy
	logger *log.Logger
}

// retryingDeleter adds DeleteRow when the wrapped store supports it.
type retryingDeleter struct {
	*retryingStore
	deleter RowDeleter
}

// Retrying wraps s so that every call is retried according to policy.
// Only transient errors (see IsTransient) are retried unless the policy sets
// its own Retryable. The returned store implements RowDeleter exactly when
// s does.
func Retrying(s Store, policy retry.Policy, logger *log.Logger) Store {
	if policy.Retryable == nil {
		policy.Retryable = IsTransient
	}
	if logger != nil && policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			logger.Printf("Attempt %d failed, retrying in %v: %v", attempt, wait.Round(time.Millisecond), err)
		}
	}

	rs := &retryingStore{inner: s, policy: policy, logger: logger}
	if d, ok := s.(RowDeleter); ok {
		return &retryingDeleter{retryingStore: rs, deleter: d}
	}
	return rs
}

func (r *retryingStore) ListRows(ctx context.Context, sheet string) (*Table, error) {
	return retry.Value(ctx, r.policy, func() (*Table, error) {
		return r.inner.ListRows(ctx, sheet)
	})
}

func (r *retryingStore) WriteRow(ctx context.Context, sheet string, row int, cells []string) error {
	return retry.Do(ctx, r.policy, func() error {
		return r.inner.WriteRow(ctx, sheet, row, cells)
	})
}

func (r *retryingStore) RewriteRows(ctx context.Context, sheet string, header []string, rows [][]string) error {
	return retry.Do(ctx, r.policy, func() error {
		return r.inner.RewriteRows(ctx, sheet, header, rows)
	})
}

func (r *retryingStore) SetCell(ctx context.Context, sheet string, row int, column, value string) error {
	return retry.Do(ctx, r.policy, func() error {
		return r.inner.SetCell(ctx, sheet, row, column, value)
	})
}

func (r *retryingDeleter) DeleteRow(ctx context.Context, sheet string, row int) error {
	return retry.Do(ctx, r.policy, func() error {
		return r.deleter.DeleteRow(ctx, sheet, row)
	})
}
