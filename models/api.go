package models

import "time"

// QueryRequest is the chat query payload.
type QueryRequest struct {
	Query          string `json:"query" binding:"required"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	// StrictFilters opts in to pushing extracted scalar filters into the
	// vector query instead of relying on the enhanced query text alone.
	StrictFilters bool `json:"strict_filters,omitempty"`
}

// Source is the trimmed citation record returned to the client.
type Source struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Section    string  `json:"section,omitempty"`
	ChunkType  string  `json:"chunk_type"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// QueryResponse is the buffered answer shape.
type QueryResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	SessionID      string   `json:"session_id"`
	ConversationID string   `json:"conversation_id"`
	Intent         string   `json:"intent"`
	TraceID        string   `json:"trace_id"`
	RetrievalMS    int64    `json:"retrieval_ms"`
	GenerationMS   int64    `json:"generation_ms"`
}

// StreamEvent is one SSE frame of a streaming answer. Type is "chunk"
// for deltas and "end" for the terminal frame.
type StreamEvent struct {
	Type           string   `json:"type"`
	Content        string   `json:"content,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	LatencyMS      int64    `json:"latency_ms,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// UploadResponse is returned immediately after an accepted upload;
// extraction never runs on the request path.
type UploadResponse struct {
	DocumentID int64     `json:"document_id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	TaskID     string    `json:"task_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// GeneratorSettings is the runtime-mutable LLM configuration exposed on
// the admin surface.
type GeneratorSettings struct {
	DefaultProvider string `json:"default_provider"`
	LocalModel      string `json:"local_model"`
	LocalBaseURL    string `json:"local_base_url"`
	CloudModel      string `json:"cloud_model"`
	CloudAPIKey     string `json:"cloud_api_key,omitempty"`
}
