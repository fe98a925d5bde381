package embedder

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(ctx, config, func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(ctx, config, func() (int, error) {
			attempts++
			return 0, errors.New("down")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent errors stop early", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(ctx, config, func() (int, error) {
			attempts++
			return 0, &StatusError{Code: http.StatusUnauthorized, Body: "bad key"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero retries still runs once", func(t *testing.T) {
		attempts := 0
		_, _ = retryWithBackoff(ctx, RetryConfig{}, func() (int, error) {
			attempts++
			return 0, errors.New("x")
		})
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, config, func() (int, error) {
			return 0, errors.New("x")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStatusError_Retryable(t *testing.T) {
	tests := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusRequestTimeout:      true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
	}
	for code, want := range tests {
		assert.Equal(t, want, (&StatusError{Code: code}).Retryable(), code)
	}
}
