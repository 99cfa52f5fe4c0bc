package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"engdocs-qa-platform/models"
)

// A failed query still closes with a response-type event so the
// per-request rollup is emitted exactly once either way.
func TestFailedResponseEventShape(t *testing.T) {
	cause := errors.New("hybrid search: connection refused")
	event := failedResponseEvent("trace-31", "42", "engineer@example.com",
		"brake test results for Pro 3012", 137, cause)

	assert.Equal(t, models.EventResponse, event.Type)
	assert.Equal(t, models.EventStatusError, event.Status)
	assert.Equal(t, models.LevelError, event.Level)
	assert.Equal(t, "trace-31", event.TraceID)
	assert.Equal(t, "42", event.UserID)
	assert.Equal(t, "engineer@example.com", event.UserEmail)
	assert.Equal(t, "brake test results for Pro 3012", event.Query)
	assert.Equal(t, int64(137), event.LatencyMS)
	assert.Equal(t, "hybrid search: connection refused", event.ErrorDetail)
}

func TestFailedResponseEventNilCause(t *testing.T) {
	event := failedResponseEvent("trace-32", "", "", "q", 5, nil)
	assert.Empty(t, event.ErrorDetail)
	assert.Equal(t, models.EventStatusError, event.Status)
}
