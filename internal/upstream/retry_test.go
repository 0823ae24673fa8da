package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/apperrors"
)

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryOptions{maxAttempts: 3, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	nonRetryable := apperrors.New(apperrors.KindUpstreamClient, "bad request")
	err := withRetry(context.Background(), retryOptions{maxAttempts: 5, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}, func() error {
		calls++
		return nonRetryable
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttemptsOnRetryableError(t *testing.T) {
	calls := 0
	retryable := apperrors.New(apperrors.KindUpstreamServer, "server error")
	err := withRetry(context.Background(), retryOptions{maxAttempts: 3, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}, func() error {
		calls++
		return retryable
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), retryOptions{maxAttempts: 3, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}, func() error {
		calls++
		if calls < 2 {
			return apperrors.New(apperrors.KindUpstreamTransport, "timeout")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoffDelayCappedAtMax(t *testing.T) {
	d := backoffDelay(10, 500*time.Millisecond, 2*time.Second)
	assert.LessOrEqual(t, d, 2*time.Second+500*time.Millisecond) // allow jitter headroom
}
