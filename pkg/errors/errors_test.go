package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeRateLimit, 429, "rate limited, retry in %d seconds", 60)

	assert.Equal(t, ErrorTypeRateLimit, err.Type)
	assert.Equal(t, 429, err.Code)
	assert.Equal(t, "rate limited, retry in 60 seconds", err.Message)
	assert.Zero(t, err.RetryAfter)
}

func TestErrorString(t *testing.T) {
	err := New(ErrorTypeAuth, 401, "invalid signature")
	assert.Equal(t, "auth error (code 401): invalid signature", err.Error())
}

func TestErrorUnwrapsThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeServerError, 503, "over capacity")
	wrapped := fmt.Errorf("lookup failed: %w", inner)

	var apiErr *Error
	require.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, ErrorTypeServerError, apiErr.Type)
	assert.Equal(t, 503, apiErr.Code)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeAuth, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeParsing, false},
		{ErrorTypeLocalIO, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.errorType))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrorTypeAuth))
	assert.True(t, IsFatal(ErrorTypeLocalIO))

	assert.False(t, IsFatal(ErrorTypeNetwork))
	assert.False(t, IsFatal(ErrorTypeRateLimit))
	assert.False(t, IsFatal(ErrorTypeNotFound))
	assert.False(t, IsFatal(ErrorTypeServerError))
	assert.False(t, IsFatal(ErrorTypeParsing))
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{599, true},
		{401, false},
		{403, false},
		{404, false},
		{200, false},
		{400, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryableStatusCode(tt.code))
		})
	}
}

func TestRetryAfterCarriedOnRateLimit(t *testing.T) {
	err := New(ErrorTypeRateLimit, 429, "slow down")
	err.RetryAfter = 45 * time.Second

	assert.Equal(t, 45*time.Second, err.RetryAfter)
}
