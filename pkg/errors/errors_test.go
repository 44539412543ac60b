package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryability(t *testing.T) {
	tests := []struct {
		code      Code
		retryable bool
	}{
		{CodeConnection, false},
		{CodeTimeout, true},
		{CodeAuth, false},
		{CodeRateLimit, true},
		{CodeServer, true},
		{CodeParse, false},
		{CodeInvalidConfig, false},
		{CodeMaxRetries, false},
		{CodeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "boom")
			assert.Equal(t, tt.retryable, Retryable(err))
		})
	}
}

func TestUnclassifiedErrorsAreNotRetryable(t *testing.T) {
	assert.False(t, Retryable(fmt.Errorf("plain failure")))
	assert.False(t, Retryable(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, CodeConnection, "probe failed")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeConnection))
	assert.Contains(t, err.Error(), "CONNECTION_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeServer, "ignored"))
}

func TestWrapClassifiedErrorKeepsInnerCode(t *testing.T) {
	inner := New(CodeAuth, "401 from endpoint")
	outer := Wrap(inner, CodeMaxRetries, "all attempts failed")

	// Outer classification wins for the wrapper itself.
	assert.True(t, IsCode(outer, CodeMaxRetries))
	assert.False(t, Retryable(outer))

	// The original classification is still reachable through Unwrap.
	var e *Error
	require.True(t, As(outer.Unwrap(), &e))
	assert.Equal(t, CodeAuth, e.Code)
}

func TestWithRetryableOverride(t *testing.T) {
	err := New(CodeUnknown, "odd response").WithRetryable(false)
	assert.False(t, Retryable(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeTimeout, CodeOf(New(CodeTimeout, "deadline")))
	assert.Equal(t, CodeUnknown, CodeOf(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(CodeServer, "upstream 503").
		WithDetail("status", 503).
		WithDetail("endpoint", "https://api.example.com/items")

	assert.Equal(t, 503, err.Details["status"])
	assert.Equal(t, "https://api.example.com/items", err.Details["endpoint"])
}

func TestStackCaptured(t *testing.T) {
	err := New(CodeParse, "bad payload")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestStackCaptured")
}
