package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
)

const (
	defaultRerankTopK = 5
	// Chunks below this word count are dropped as noise (footers, page
	// numbers) unless they carry table or image content.
	rerankWordFloor = 15
)

// Reranker scores (query, chunk-text) pairs against a cross-encoder
// service. A nil Reranker or a scoring failure falls back to the fused
// ordering.
type Reranker struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewReranker(baseURL, model string, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank re-scores retrieved chunks and returns the top k by relevance.
// On any failure the original ordering is returned truncated to k.
func (r *Reranker) Rerank(ctx context.Context, query string, chunks []models.ScoredChunk, topK int) []models.ScoredChunk {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	if len(chunks) == 0 {
		return nil
	}
	if r == nil {
		return truncate(chunks, topK)
	}

	scores, err := r.score(ctx, query, chunks)
	if err != nil {
		logger.Warn("rerank failed, keeping fused ordering", "error", err)
		return truncate(chunks, topK)
	}

	rescored := make([]models.ScoredChunk, len(chunks))
	for i, ch := range chunks {
		rescored[i] = models.ScoredChunk{Chunk: ch.Chunk, Score: scores[i]}
	}

	kept := make([]models.ScoredChunk, 0, len(rescored))
	for _, sc := range rescored {
		if len(strings.Fields(sc.Chunk.Text)) < rerankWordFloor && !tabularOrImage(sc.Chunk) {
			continue
		}
		kept = append(kept, sc)
	}
	// If the floor removed everything, keep the full rescored set.
	if len(kept) == 0 {
		kept = rescored
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return truncate(kept, topK)
}

func (r *Reranker) score(ctx context.Context, query string, chunks []models.ScoredChunk) ([]float64, error) {
	documents := make([]string, len(chunks))
	for i, ch := range chunks {
		documents[i] = ch.Chunk.Text
	}
	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: documents})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}
	if len(parsed.Results) != len(chunks) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(parsed.Results), len(chunks))
	}

	scores := make([]float64, len(chunks))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(scores) {
			return nil, fmt.Errorf("rerank index %d out of range", result.Index)
		}
		scores[result.Index] = result.RelevanceScore
	}
	return scores, nil
}

func tabularOrImage(ch models.Chunk) bool {
	if ch.Type == models.ChunkTable || ch.Type == models.ChunkImageCaption {
		return true
	}
	return strings.Contains(ch.Text, "|") || strings.Contains(ch.Text, "[TABLE")
}

func truncate(chunks []models.ScoredChunk, k int) []models.ScoredChunk {
	if len(chunks) > k {
		return chunks[:k]
	}
	return chunks
}
