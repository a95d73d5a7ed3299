package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func() error {
		calls++
		return errFlaky
	})

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	errPermanent := errors.New("permanent")
	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, errPermanent) }

	calls := 0
	err := Do(context.Background(), p, func() error {
		calls++
		return errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestOnRetryReportsAttempts(t *testing.T) {
	var seen []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), p, func() error { return errFlaky })

	assert.Equal(t, []int{1, 2}, seen)
}

func TestValueReturnsResult(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), fastPolicy(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy(10)
	p.InitialInterval = time.Second
	p.MaxInterval = time.Second

	calls := 0
	err := Do(ctx, p, func() error {
		calls++
		cancel()
		return errFlaky
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{"defaults", func(p *Policy) {}, false},
		{"zero attempts", func(p *Policy) { p.MaxAttempts = 0 }, true},
		{"negative interval", func(p *Policy) { p.InitialInterval = -time.Second }, true},
		{"shrinking multiplier", func(p *Policy) { p.Multiplier = 0.5 }, true},
		{"jitter above one", func(p *Policy) { p.Jitter = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
