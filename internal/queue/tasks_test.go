package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/models"
)

func TestNewDocumentProcessTask(t *testing.T) {
	task, err := NewDocumentProcessTask(42, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, TaskDocumentProcess, task.Type())

	var payload DocumentProcessPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(42), payload.DocumentID)
	assert.Equal(t, "trace-1", payload.TraceID)
}

func TestIngestRetryDelayFixed(t *testing.T) {
	assert.Equal(t, 30*time.Second, IngestRetryDelay(0, errors.New("x"), nil))
	assert.Equal(t, 30*time.Second, IngestRetryDelay(5, nil, nil))
}

func TestDocumentKind(t *testing.T) {
	assert.Equal(t, models.KindPDF, documentKind("ETR_02_24_12.pdf"))
	assert.Equal(t, models.KindPDF, documentKind("ETR_02_24_12.PDF"))
	assert.Equal(t, models.KindPPTX, documentKind("cooling_review.pptx"))
	assert.Equal(t, models.KindPPT, documentKind("legacy_deck.ppt"))
	// Unknown extensions take the PDF path and fail there if unreadable.
	assert.Equal(t, models.KindPDF, documentKind("notes.txt"))
}

func TestLeadingTextCapped(t *testing.T) {
	pages := []models.Page{
		{Content: "first page body"},
		{Content: "second page body"},
	}
	got := leadingText(pages, 8000)
	assert.Contains(t, got, "first page body")
	assert.Contains(t, got, "second page body")

	capped := leadingText(pages, 10)
	assert.Len(t, capped, 10)
	assert.Equal(t, "first page", capped)
}
