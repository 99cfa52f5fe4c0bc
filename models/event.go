package models

import "time"

// Event types persisted to the columnar store.
const (
	EventRequest    = "request"
	EventEmbedding  = "embedding"
	EventRetrieval  = "retrieval"
	EventGeneration = "generation"
	EventResponse   = "response"
	EventUpload     = "upload"
	EventReindex    = "reindex"
	EventSystem     = "system"
	EventError      = "error"
)

// Event levels.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event statuses.
const (
	EventStatusSuccess = "success"
	EventStatusError   = "error"
)

// Event is one append-only observability record. Ordering within a trace
// is by timestamp (UTC, millisecond precision).
type Event struct {
	ID          string    `json:"id" ch:"id"`
	Timestamp   time.Time `json:"timestamp" ch:"timestamp"`
	Type        string    `json:"event_type" ch:"event_type"`
	Level       string    `json:"level" ch:"level"`
	TraceID     string    `json:"trace_id,omitempty" ch:"trace_id"`
	UserID      string    `json:"user_id,omitempty" ch:"user_id"`
	UserEmail   string    `json:"user_email,omitempty" ch:"user_email"`
	Message     string    `json:"message" ch:"message"`
	Query       string    `json:"query,omitempty" ch:"query"`
	Response    string    `json:"response,omitempty" ch:"response"`
	ChunksJSON  string    `json:"chunks_json,omitempty" ch:"chunks_json"`
	LatencyMS   int64     `json:"latency_ms,omitempty" ch:"latency_ms"`
	TokenCount  int64     `json:"token_count,omitempty" ch:"token_count"`
	Status      string    `json:"status" ch:"status"`
	ErrorDetail string    `json:"error_detail,omitempty" ch:"error_detail"`
	Provider    string    `json:"provider,omitempty" ch:"provider"`
	Model       string    `json:"model,omitempty" ch:"model"`
}

// EventProjection is the compact shape delivered to live subscribers.
// The full row stays in the store for later query.
type EventProjection struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"event_type"`
	Level     string    `json:"level"`
	TraceID   string    `json:"trace_id,omitempty"`
	Message   string    `json:"message"`
	UserEmail string    `json:"user_email,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
	Status    string    `json:"status"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
}

// Projection trims an event down to its streaming shape.
func (e Event) Projection() EventProjection {
	return EventProjection{
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Level:     e.Level,
		TraceID:   e.TraceID,
		Message:   e.Message,
		UserEmail: e.UserEmail,
		LatencyMS: e.LatencyMS,
		Status:    e.Status,
		Provider:  e.Provider,
		Model:     e.Model,
	}
}

// EventFilter is the query shape supported by the events endpoint.
type EventFilter struct {
	Type    string
	Level   string
	TraceID string
	UserID  string
	Status  string
	Since   time.Time
	Until   time.Time
	Search  string
	Limit   int
	Offset  int
}

// EventBucket is one histogram cell of the type rollup.
type EventBucket struct {
	Type  string `json:"event_type" ch:"event_type"`
	Count uint64 `json:"count" ch:"count"`
}
