package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventProjectionDropsHeavyFields(t *testing.T) {
	now := time.Now().UTC()
	e := Event{
		ID:         "id-1",
		Timestamp:  now,
		Type:       EventResponse,
		Level:      LevelInfo,
		TraceID:    "trace-1",
		UserEmail:  "eng@example.com",
		Message:    "answered",
		Query:      "what is the GVW?",
		Response:   "the full response body",
		ChunksJSON: `[{"id":"c1"}]`,
		LatencyMS:  420,
		TokenCount: 900,
		Status:     EventStatusSuccess,
		Provider:   "cloud-chat",
		Model:      "gpt-4o-mini",
	}

	p := e.Projection()
	assert.Equal(t, now, p.Timestamp)
	assert.Equal(t, EventResponse, p.Type)
	assert.Equal(t, "trace-1", p.TraceID)
	assert.Equal(t, "answered", p.Message)
	assert.Equal(t, "eng@example.com", p.UserEmail)
	assert.Equal(t, int64(420), p.LatencyMS)
	assert.Equal(t, EventStatusSuccess, p.Status)
	assert.Equal(t, "cloud-chat", p.Provider)
	assert.Equal(t, "gpt-4o-mini", p.Model)
}
