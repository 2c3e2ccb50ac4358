package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	t.Run("includes exchange prefix", func(t *testing.T) {
		err := New("binance", "empty price klines payload")
		assert.Equal(t, "binance: empty price klines payload", err.Error())
	})

	t.Run("omits prefix without exchange", func(t *testing.T) {
		err := NewInvalidArgument("limit must be positive")
		assert.Equal(t, "limit must be positive", err.Error())
	})

	t.Run("appends cause", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: connection refused")
		err := WrapTransient("okx", "request failed", cause)
		assert.Equal(t, "okx: request failed: dial tcp: connection refused", err.Error())
	})

	t.Run("formats message arguments", func(t *testing.T) {
		err := Newf("bybit", "error code %d", 10001)
		assert.Equal(t, "bybit: error code 10001", err.Error())
	})
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap("bitget", "decode response", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestClassPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     Class
		predicate func(error) bool
	}{
		{"generic", New("binance", "bad payload"), ClassMarketData, func(err error) bool {
			return IsMarketData(err) && !IsTransient(err) && !IsSymbolNotSupported(err) && !IsIntervalNotSupported(err) && !IsInvalidArgument(err)
		}},
		{"symbol", NewSymbolNotSupported("binance", "Invalid symbol."), ClassSymbolNotSupported, IsSymbolNotSupported},
		{"interval", NewIntervalNotSupported("bybit", "no three-day interval"), ClassIntervalNotSupported, IsIntervalNotSupported},
		{"transient", NewTransientf("okx", "transient HTTP status %d", 429), ClassTransient, IsTransient},
		{"invalid argument", NewInvalidArgumentf("limit %d exceeds maximum %d", 2000, 1500), ClassInvalidArgument, IsInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
			assert.True(t, IsMarketData(tt.err))
			assert.Equal(t, tt.class, ClassOf(tt.err))
		})
	}
}

func TestPredicatesRejectForeignErrors(t *testing.T) {
	err := stderrors.New("not ours")

	assert.False(t, IsMarketData(err))
	assert.False(t, IsTransient(err))
	assert.False(t, IsInvalidArgument(err))
	assert.Equal(t, Class(""), ClassOf(err))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NewTransient("binance", "transient HTTP status 503")
	wrapped := fmt.Errorf("fetch klines: %w", inner)

	assert.True(t, IsTransient(wrapped))
	assert.Equal(t, ClassTransient, ClassOf(wrapped))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "binance", e.Exchange)
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewTransient("okx", "rate limited").Retryable())
	assert.False(t, New("okx", "bad payload").Retryable())
	assert.False(t, NewInvalidArgument("limit must be positive").Retryable())
}

func TestIsMatchesOnClass(t *testing.T) {
	err := NewTransient("bitget", "transient HTTP status 502")

	assert.True(t, stderrors.Is(err, &Error{Class: ClassTransient}))
	assert.True(t, stderrors.Is(err, &Error{Class: ClassTransient, Exchange: "bitget"}))
	assert.False(t, stderrors.Is(err, &Error{Class: ClassTransient, Exchange: "okx"}))
	assert.False(t, stderrors.Is(err, &Error{Class: ClassMarketData}))
}
