package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"comradarr/internal/domain"
)

func TestErrorCategory_Retryable(t *testing.T) {
	tests := []struct {
		category  domain.ErrorCategory
		retryable bool
	}{
		{domain.CategoryNetwork, true},
		{domain.CategoryAuthentication, false},
		{domain.CategoryRateLimit, true},
		{domain.CategoryServer, true},
		{domain.CategoryTimeout, true},
		{domain.CategoryValidation, false},
		{domain.CategoryNotFound, false},
		{domain.CategorySSL, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.category.Retryable())
		})
	}
}

func TestUpstreamError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := domain.NewUpstreamError(domain.CategoryNetwork, 0, cause)

	assert.Contains(t, err.Error(), "network")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.Retryable())
}

func TestAsUpstreamError(t *testing.T) {
	wrapped := domain.NewUpstreamError(domain.CategoryRateLimit, 429, nil)

	ue, ok := domain.AsUpstreamError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, domain.CategoryRateLimit, ue.Category)

	_, ok = domain.AsUpstreamError(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrapStorage(t *testing.T) {
	assert.Nil(t, domain.WrapStorage("op", nil))

	err := domain.WrapStorage("registry.enqueue", errors.New("conn closed"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Contains(t, err.Error(), "op=registry.enqueue")
}

func TestSentinelErrors_DistinctIdentities(t *testing.T) {
	assert.False(t, errors.Is(domain.ErrNotFound, domain.ErrConflict))
	assert.False(t, errors.Is(domain.ErrInvariant, domain.ErrSchemaMismatch))
}
