package adapter

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusForbidden, KindPermission},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadGateway, KindUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusBadRequest, KindProvider},
		{http.StatusNotFound, KindProvider},
	}
	for _, tt := range tests {
		err := Classify(tt.status, "boom")
		assert.Equal(t, tt.kind, err.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, err.Status)
	}
}

func TestClassify_RateLimitKeepsMessage(t *testing.T) {
	err := Classify(http.StatusTooManyRequests, "slow down")
	assert.Equal(t, "slow down", err.Message)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Classify(http.StatusTooManyRequests, "").Retryable())

	for _, status := range []int{401, 403, 500, 503, 400} {
		assert.False(t, Classify(status, "").Retryable(), "status %d", status)
	}
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 1*time.Second, BackoffDelay(0))
	assert.Equal(t, 2*time.Second, BackoffDelay(1))
	assert.Equal(t, 4*time.Second, BackoffDelay(2))
}

func TestIsKind(t *testing.T) {
	err := Classify(http.StatusUnauthorized, "")
	assert.True(t, IsKind(err, KindAuthentication))
	assert.False(t, IsKind(err, KindRateLimited))

	wrapped := fmt.Errorf("call provider: %w", err)
	assert.True(t, IsKind(wrapped, KindAuthentication))

	assert.False(t, IsKind(fmt.Errorf("plain"), KindProvider))
}

func TestErrorString(t *testing.T) {
	withStatus := &Error{Kind: KindRateLimited, Status: 429, Message: "too fast"}
	require.Contains(t, withStatus.Error(), "429")
	require.Contains(t, withStatus.Error(), "too fast")

	noStatus := &Error{Kind: KindConfiguration, Message: "no key"}
	assert.Equal(t, "configuration: no key", noStatus.Error())
}
