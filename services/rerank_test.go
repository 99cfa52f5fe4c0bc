package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/models"
)

func scoredChunks(texts ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = models.ScoredChunk{
			Chunk: models.Chunk{ID: fmt.Sprintf("c%d", i), Text: text, Type: models.ChunkProse},
			Score: 1.0 - float64(i)*0.1,
		}
	}
	return out
}

func rerankServer(t *testing.T, scores []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var req rerankRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp rerankResponse
		for i, s := range scores {
			resp.Results = append(resp.Results, struct {
				Index          int     `json:"index"`
				RelevanceScore float64 `json:"relevance_score"`
			}{Index: i, RelevanceScore: s})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

const longChunkText = "The brake performance test was conducted at gross vehicle weight on a dry " +
	"concrete surface with the engine disconnected and the service brake applied at sixty kilometres per hour."

func TestRerankNilRerankerTruncates(t *testing.T) {
	var r *Reranker
	chunks := scoredChunks("a", "b", "c", "d", "e", "f", "g")

	got := r.Rerank(context.Background(), "q", chunks, 0)
	require.Len(t, got, 5)
	assert.Equal(t, "c0", got[0].Chunk.ID)
}

func TestRerankEmptyInput(t *testing.T) {
	var r *Reranker
	assert.Nil(t, r.Rerank(context.Background(), "q", nil, 3))
}

func TestRerankReordersByRelevance(t *testing.T) {
	srv := rerankServer(t, []float64{0.1, 0.9, 0.5})
	defer srv.Close()

	r := NewReranker(srv.URL, "cross-encoder", 0)
	chunks := scoredChunks(longChunkText+" one", longChunkText+" two", longChunkText+" three")

	got := r.Rerank(context.Background(), "brake distance", chunks, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "c1", got[0].Chunk.ID)
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, "c2", got[1].Chunk.ID)
	assert.Equal(t, "c0", got[2].Chunk.ID)
}

func TestRerankDropsShortProseChunks(t *testing.T) {
	srv := rerankServer(t, []float64{0.9, 0.8})
	defer srv.Close()

	r := NewReranker(srv.URL, "", 0)
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{ID: "short", Text: "Page 4 of 12", Type: models.ChunkProse}},
		{Chunk: models.Chunk{ID: "long", Text: longChunkText, Type: models.ChunkProse}},
	}

	got := r.Rerank(context.Background(), "q", chunks, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "long", got[0].Chunk.ID)
}

func TestRerankKeepsShortTableAndCaptionChunks(t *testing.T) {
	srv := rerankServer(t, []float64{0.9, 0.8})
	defer srv.Close()

	r := NewReranker(srv.URL, "", 0)
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{ID: "tbl", Text: "| GVW | 16200 |", Type: models.ChunkTable}},
		{Chunk: models.Chunk{ID: "cap", Text: "Radiator schematic", Type: models.ChunkImageCaption}},
	}

	got := r.Rerank(context.Background(), "q", chunks, 5)
	assert.Len(t, got, 2)
}

func TestRerankFloorRemovingEverythingKeepsAll(t *testing.T) {
	srv := rerankServer(t, []float64{0.2, 0.7})
	defer srv.Close()

	r := NewReranker(srv.URL, "", 0)
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{ID: "s1", Text: "short one", Type: models.ChunkProse}},
		{Chunk: models.Chunk{ID: "s2", Text: "short two", Type: models.ChunkProse}},
	}

	got := r.Rerank(context.Background(), "q", chunks, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].Chunk.ID)
}

func TestRerankServerErrorFallsBackToFusedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewReranker(srv.URL, "", 0)
	chunks := scoredChunks("a", "b", "c")

	got := r.Rerank(context.Background(), "q", chunks, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c0", got[0].Chunk.ID)
	assert.Equal(t, "c1", got[1].Chunk.ID)
}

func TestRerankScoreCountMismatchFallsBack(t *testing.T) {
	srv := rerankServer(t, []float64{0.5})
	defer srv.Close()

	r := NewReranker(srv.URL, "", 0)
	chunks := scoredChunks("a", "b")

	got := r.Rerank(context.Background(), "q", chunks, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "c0", got[0].Chunk.ID)
}

func TestTabularOrImage(t *testing.T) {
	assert.True(t, tabularOrImage(models.Chunk{Type: models.ChunkTable}))
	assert.True(t, tabularOrImage(models.Chunk{Type: models.ChunkImageCaption}))
	assert.True(t, tabularOrImage(models.Chunk{Type: models.ChunkProse, Text: "a | b"}))
	assert.True(t, tabularOrImage(models.Chunk{Type: models.ChunkProse, Text: "[TABLE 2]"}))
	assert.False(t, tabularOrImage(models.Chunk{Type: models.ChunkProse, Text: "plain prose"}))
}
