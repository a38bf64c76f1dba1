package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_RateLimitedIsExponential(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, Backoff(base, 0, ClassRateLimited))
	assert.Equal(t, 4*time.Second, Backoff(base, 1, ClassRateLimited))
	assert.Equal(t, 8*time.Second, Backoff(base, 2, ClassRateLimited))
}

func TestBackoff_ServerErrorIsLinear(t *testing.T) {
	base := 2 * time.Second
	assert.Equal(t, 2*time.Second, Backoff(base, 0, ClassServerError))
	assert.Equal(t, 4*time.Second, Backoff(base, 1, ClassServerError))
	assert.Equal(t, 6*time.Second, Backoff(base, 2, ClassServerError))
}

func TestBackoff_TimeoutIsLinear(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, Backoff(base, 0, ClassTimeout))
	assert.Equal(t, 3*time.Second, Backoff(base, 2, ClassTimeout))
}

func TestBackoff_ClientErrorGetsNoDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(2*time.Second, 1, ClassClientError))
}

func TestFailureClass_Retryable(t *testing.T) {
	assert.True(t, ClassRateLimited.Retryable())
	assert.True(t, ClassServerError.Retryable())
	assert.True(t, ClassTimeout.Retryable())
	assert.True(t, ClassNetwork.Retryable())
	assert.False(t, ClassClientError.Retryable())
}
