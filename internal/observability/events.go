package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id           String,
	timestamp    DateTime64(3, 'UTC'),
	event_type   LowCardinality(String),
	level        LowCardinality(String),
	trace_id     String,
	user_id      String,
	user_email   String,
	message      String,
	query        String,
	response     String,
	chunks_json  String,
	latency_ms   Int64,
	token_count  Int64,
	status       LowCardinality(String),
	error_detail String,
	provider     LowCardinality(String),
	model        LowCardinality(String)
) ENGINE = MergeTree()
ORDER BY (timestamp, event_type)
TTL toDateTime(timestamp) + INTERVAL 90 DAY
`

const insertEvent = `
INSERT INTO events (
	id, timestamp, event_type, level, trace_id, user_id, user_email,
	message, query, response, chunks_json, latency_ms, token_count,
	status, error_detail, provider, model
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Emitter persists observability events to the columnar store and fans
// them out to live subscribers. Persistence is synchronous so the
// response-type rollup is durable before the request returns; the
// broadcast is asynchronous and best effort.
type Emitter struct {
	conn driver.Conn
	hub  *Hub
}

func NewEmitter(conn driver.Conn, hub *Hub) *Emitter {
	return &Emitter{conn: conn, hub: hub}
}

// EnsureSchema creates the events table if absent. Idempotent.
func (e *Emitter) EnsureSchema(ctx context.Context) error {
	if err := e.conn.Exec(ctx, eventsSchema); err != nil {
		return utils.Transient("creating events table", err)
	}
	return nil
}

// Emit persists one event. Emission failures are logged, never raised:
// observability must not break the paths it observes.
func (e *Emitter) Emit(ctx context.Context, event models.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = models.LevelInfo
	}
	if event.Status == "" {
		event.Status = models.EventStatusSuccess
	}

	err := e.conn.Exec(ctx, insertEvent,
		event.ID, event.Timestamp, event.Type, event.Level, event.TraceID,
		event.UserID, event.UserEmail, event.Message, event.Query,
		event.Response, event.ChunksJSON, event.LatencyMS, event.TokenCount,
		event.Status, event.ErrorDetail, event.Provider, event.Model,
	)
	if err != nil {
		logger.Error("event insert failed", "event_type", event.Type, "error", err)
		return
	}

	if e.hub != nil {
		e.hub.Broadcast(event)
	}
}

// LogRequest records request ingress.
func (e *Emitter) LogRequest(ctx context.Context, traceID, userID, userEmail, query string) {
	e.Emit(ctx, models.Event{
		Type:      models.EventRequest,
		TraceID:   traceID,
		UserID:    userID,
		UserEmail: userEmail,
		Message:   "query received",
		Query:     query,
	})
}

// LogRetrieval records the retrieval stage outcome.
func (e *Emitter) LogRetrieval(ctx context.Context, traceID string, chunkCount int, latencyMS int64) {
	e.Emit(ctx, models.Event{
		Type:      models.EventRetrieval,
		TraceID:   traceID,
		Message:   fmt.Sprintf("retrieved %d chunks", chunkCount),
		LatencyMS: latencyMS,
	})
}

// LogGeneration records the generation stage outcome.
func (e *Emitter) LogGeneration(ctx context.Context, traceID string, latencyMS, tokenCount int64, provider, model string) {
	e.Emit(ctx, models.Event{
		Type:       models.EventGeneration,
		TraceID:    traceID,
		Message:    "response generated",
		LatencyMS:  latencyMS,
		TokenCount: tokenCount,
		Provider:   provider,
		Model:      model,
	})
}

// LogResponse records the full per-request rollup: query, answer,
// retrieved chunks with scores, latency, tokens, provider.
func (e *Emitter) LogResponse(ctx context.Context, traceID, userID, userEmail, query, response string, chunks []models.ScoredChunk, totalLatencyMS, tokenCount int64, provider, model string) {
	chunksJSON := ""
	if len(chunks) > 0 {
		if data, err := json.Marshal(chunks); err == nil {
			chunksJSON = string(data)
		}
	}
	e.Emit(ctx, models.Event{
		Type:       models.EventResponse,
		TraceID:    traceID,
		UserID:     userID,
		UserEmail:  userEmail,
		Message:    "request completed",
		Query:      query,
		Response:   response,
		ChunksJSON: chunksJSON,
		LatencyMS:  totalLatencyMS,
		TokenCount: tokenCount,
		Provider:   provider,
		Model:      model,
	})
}

// LogFailedResponse records the per-request rollup for a failed query,
// so every request closes with exactly one response-type event.
func (e *Emitter) LogFailedResponse(ctx context.Context, traceID, userID, userEmail, query string, totalLatencyMS int64, cause error) {
	e.Emit(ctx, failedResponseEvent(traceID, userID, userEmail, query, totalLatencyMS, cause))
}

func failedResponseEvent(traceID, userID, userEmail, query string, totalLatencyMS int64, cause error) models.Event {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return models.Event{
		Type:        models.EventResponse,
		Level:       models.LevelError,
		TraceID:     traceID,
		UserID:      userID,
		UserEmail:   userEmail,
		Message:     "request failed",
		Query:       query,
		LatencyMS:   totalLatencyMS,
		Status:      models.EventStatusError,
		ErrorDetail: detail,
	}
}

// LogUpload records an upload or ingestion milestone.
func (e *Emitter) LogUpload(ctx context.Context, traceID, userID, message string, status string) {
	e.Emit(ctx, models.Event{
		Type:    models.EventUpload,
		TraceID: traceID,
		UserID:  userID,
		Message: message,
		Status:  status,
	})
}

// LogError records a failure event.
func (e *Emitter) LogError(ctx context.Context, eventType, traceID, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	e.Emit(ctx, models.Event{
		Type:        eventType,
		Level:       models.LevelError,
		TraceID:     traceID,
		Message:     message,
		Status:      models.EventStatusError,
		ErrorDetail: detail,
	})
}

// Query returns stored events matching the filter, newest first.
func (e *Emitter) Query(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var conditions []string
	var args []any

	appendCond := func(cond string, value any) {
		conditions = append(conditions, cond)
		args = append(args, value)
	}
	if filter.Type != "" {
		appendCond("event_type = ?", filter.Type)
	}
	if filter.Level != "" {
		appendCond("level = ?", filter.Level)
	}
	if filter.TraceID != "" {
		appendCond("trace_id = ?", filter.TraceID)
	}
	if filter.UserID != "" {
		appendCond("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		appendCond("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		appendCond("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		appendCond("timestamp <= ?", filter.Until)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(positionCaseInsensitive(message, ?) > 0 OR positionCaseInsensitive(query, ?) > 0)")
		args = append(args, filter.Search, filter.Search)
	}

	query := "SELECT id, timestamp, event_type, level, trace_id, user_id, user_email, message, query, response, chunks_json, latency_ms, token_count, status, error_detail, provider, model FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, filter.Offset)

	var events []models.Event
	if err := e.conn.Select(ctx, &events, query, args...); err != nil {
		return nil, utils.Transient("querying events", err)
	}
	return events, nil
}

// Trace returns every event of one trace in timestamp order.
func (e *Emitter) Trace(ctx context.Context, traceID string) ([]models.Event, error) {
	events, err := e.Query(ctx, models.EventFilter{TraceID: traceID, Limit: 1000})
	if err != nil {
		return nil, err
	}
	// Query returns newest first; traces read in emission order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Histogram rolls up event counts by type over the trailing window.
func (e *Emitter) Histogram(ctx context.Context, hours int) ([]models.EventBucket, error) {
	if hours <= 0 {
		hours = 24
	}
	query := `SELECT event_type, count() AS count FROM events
WHERE timestamp >= now() - INTERVAL ? HOUR
GROUP BY event_type ORDER BY count DESC`

	var buckets []models.EventBucket
	if err := e.conn.Select(ctx, &buckets, query, hours); err != nil {
		return nil, utils.Transient("querying event histogram", err)
	}
	return buckets, nil
}
