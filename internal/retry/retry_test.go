package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joel-wright/swiftbatch/errors"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	attempts, err := Do(context.Background(), 5, func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), 5, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: status 503", errors.ErrServerBusy)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	attempts, err := Do(context.Background(), 5, func() error {
		return errors.ErrNotFound
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts, err := Do(context.Background(), 2, func() error {
		return errors.ErrConnection
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 2, attempts)
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, 5, func() error { return errors.ErrServerBusy })
	assert.Error(t, err)
}

func TestConstantRetriesApprovedErrors(t *testing.T) {
	calls := 0
	attempts, err := Constant(context.Background(), 10, time.Millisecond, errors.IsConflict, func() error {
		calls++
		if calls < 4 {
			return errors.ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestConstantStopsOnUnapprovedError(t *testing.T) {
	attempts, err := Constant(context.Background(), 10, time.Millisecond, errors.IsConflict, func() error {
		return errors.ErrNotFound
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestConstantExhaustsAttempts(t *testing.T) {
	attempts, err := Constant(context.Background(), 3, time.Millisecond, errors.IsConflict, func() error {
		return errors.ErrConflict
	})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 3, attempts)
}
