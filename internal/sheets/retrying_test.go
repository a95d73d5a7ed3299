package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhn-coaching/coachsync/internal/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

// writeOnly hides the RowDeleter capability of the embedded store.
type writeOnly struct{ Store }

func TestRetryingRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	m.AddSheet("Coach: A", rosterHeader)
	m.FailNext(OpWriteRow, "Coach: A", 2, errors.New("rate limited"))

	s := Retrying(m, testPolicy(), nil)
	require.NoError(t, s.WriteRow(ctx, "Coach: A", 2, []string{"Coach: A", "Jane", "$1.00"}))
	assert.Equal(t, 3, m.Calls(OpWriteRow))
}

func TestRetryingGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("rate limited")
	m := NewMemStore()
	m.AddSheet("Coach: A", rosterHeader)
	m.FailNext(OpWriteRow, "Coach: A", 10, boom)

	s := Retrying(m, testPolicy(), nil)
	require.ErrorIs(t, s.WriteRow(ctx, "Coach: A", 2, []string{"x"}), boom)
	assert.Equal(t, 3, m.Calls(OpWriteRow))
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	m := NewMemStore()
	s := Retrying(m, testPolicy(), nil)

	_, err := s.ListRows(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSheetNotFound)
	assert.Equal(t, 1, m.Calls(OpListRows))
}

func TestRetryingPreservesDeleteCapability(t *testing.T) {
	m := NewMemStore()
	assert.True(t, CanDeleteRows(Retrying(m, testPolicy(), nil)))
	assert.False(t, CanDeleteRows(Retrying(writeOnly{m}, testPolicy(), nil)))
}
