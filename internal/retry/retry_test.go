package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableorder/internal/apperr"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0, time.Second))
	assert.Equal(t, 2*time.Second, Backoff(1, time.Second))
	assert.Equal(t, 8*time.Second, Backoff(3, time.Second))
	// capped
	assert.Equal(t, 30*time.Second, Backoff(20, time.Second))
	// zero base falls back to one second
	assert.Equal(t, 4*time.Second, Backoff(2, 0))
}

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return apperr.New(apperr.CodeNetworkTimeout)
		}
		return nil
	}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	cause := apperr.New(apperr.CodeInvalidEmail)
	err := WithBackoff(context.Background(), func(context.Context) error {
		calls++
		return cause
	}, 5, time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, cause)
}

func TestWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), func(context.Context) error {
		calls++
		return apperr.New(apperr.CodeServerInternal)
	}, 3, time.Millisecond)
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "giving up after 3 attempts")
}

func TestWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithBackoff(ctx, func(context.Context) error {
		t.Fatal("op must not run after cancellation")
		return nil
	}, 3, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithCondition(t *testing.T) {
	calls := 0
	sentinel := errors.New("keep trying")
	err := WithCondition(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return sentinel
		}
		return nil
	}, func(err error) bool { return errors.Is(err, sentinel) }, 4, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// predicate rejection stops the loop
	calls = 0
	other := errors.New("fatal")
	err = WithCondition(context.Background(), func(context.Context) error {
		calls++
		return other
	}, func(err error) bool { return errors.Is(err, sentinel) }, 4, time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, other)
}
