package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(Transient("embedding call", errors.New("timeout"))))
	assert.False(t, Retryable(Permanent("extraction gave zero pages", nil)))
	assert.False(t, Retryable(Inconsistent("record missing", nil)))
	assert.False(t, Retryable(InvalidInput("bad_type", "unsupported file type")))
}

func TestRetryableUnclassifiedDefaultsTrue(t *testing.T) {
	assert.True(t, Retryable(errors.New("connection reset by peer")))
}

func TestRetryableWrappedError(t *testing.T) {
	err := fmt.Errorf("processing document 7: %w", Permanent("upstream said no", nil))
	assert.False(t, Retryable(err))

	err = fmt.Errorf("batch 2: %w", Transient("broker unreachable", nil))
	assert.True(t, Retryable(err))
}

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	ae := Transient("connecting to index", cause)

	assert.Contains(t, ae.Error(), "transient_external")
	assert.Contains(t, ae.Error(), "connecting to index")
	assert.ErrorIs(t, ae, cause)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 500))
	long := strings.Repeat("x", 600)
	assert.Len(t, Truncate(long, 500), 500)
}
