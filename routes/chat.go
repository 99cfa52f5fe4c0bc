package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/internal/session"
	"engdocs-qa-platform/internal/store"
	"engdocs-qa-platform/middleware"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/services"
	"engdocs-qa-platform/utils"
)

const historyTurns = 10

// ChatDeps bundles everything the chat surface needs.
type ChatDeps struct {
	Config        *config.Config
	Agent         *services.Agent
	Generator     *ai.Generator
	Sessions      *session.Cache
	Conversations *store.ConversationStore
	Emitter       *observability.Emitter
}

func SetupChatRoutes(router *gin.Engine, deps *ChatDeps, authMiddleware *middleware.AuthMiddleware) {
	chat := router.Group("/chat")
	chat.Use(authMiddleware.RequireAuth())

	// Blocking LLM and retrieval calls on the request path go through a
	// bounded pool so a traffic burst degrades to queueing, not overload.
	pool := make(chan struct{}, deps.Config.WorkerPoolSize)

	runAgent := func(ctx context.Context, state *services.AgentState, out chan<- string) error {
		select {
		case pool <- struct{}{}:
			defer func() { <-pool }()
		case <-ctx.Done():
			return ctx.Err()
		}
		if out != nil {
			return deps.Agent.RunStream(ctx, state, out)
		}
		return deps.Agent.Run(ctx, state)
	}

	// prepare binds the request, resolves the conversation, and builds
	// the agent state with history attached.
	prepare := func(c *gin.Context) (*models.QueryRequest, *services.AgentState, *models.Conversation, bool) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return nil, nil, nil, false
		}
		claims := middleware.GetClaims(c)

		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		var conv *models.Conversation
		var err error
		if req.ConversationID != "" {
			conv, err = deps.Conversations.Get(c.Request.Context(), req.ConversationID, claims.UserID)
		} else {
			groupID := int64(0)
			if len(claims.GroupIDs) == 1 {
				groupID = claims.GroupIDs[0]
			}
			conv, err = deps.Conversations.Create(c.Request.Context(), claims.UserID, groupID, req.Query)
		}
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return nil, nil, nil, false
		}

		history := deps.Sessions.History(c.Request.Context(), req.SessionID, historyTurns)
		if len(history) == 0 && req.ConversationID != "" {
			// Cache miss on an existing conversation: rebuild from the
			// durable store and warm the cache for the next turn.
			history, err = deps.Conversations.RecentHistory(c.Request.Context(), conv.ID, historyTurns)
			if err != nil {
				logger.Warn("history rebuild failed", "conversation_id", conv.ID, "error", err)
				history = nil
			} else {
				deps.Sessions.Warm(c.Request.Context(), req.SessionID, history)
			}
		}

		state := &services.AgentState{
			Query:         req.Query,
			SessionID:     req.SessionID,
			GroupIDs:      claims.GroupIDs,
			Profile:       claims.Profile,
			History:       history,
			StrictFilters: req.StrictFilters,
		}
		return &req, state, conv, true
	}

	// finish persists the exchange and emits the per-request rollup.
	finish := func(c *gin.Context, req *models.QueryRequest, state *services.AgentState, conv *models.Conversation, traceID string, started time.Time) {
		ctx := c.Request.Context()
		claims := middleware.GetClaims(c)

		deps.Sessions.Append(ctx, req.SessionID, models.HistoryTurn{Role: models.RoleUser, Content: req.Query})
		deps.Sessions.Append(ctx, req.SessionID, models.HistoryTurn{Role: models.RoleAssistant, Content: state.Response})

		userMsg := &models.ChatMessage{ConversationID: conv.ID, Role: models.RoleUser, Content: req.Query}
		if err := deps.Conversations.AppendMessage(ctx, userMsg); err != nil {
			logger.Warn("persisting user message failed", "error", err)
		}
		sourcesJSON := ""
		if len(state.Sources) > 0 {
			if data, err := json.Marshal(state.Sources); err == nil {
				sourcesJSON = string(data)
			}
		}
		asstMsg := &models.ChatMessage{
			ConversationID: conv.ID,
			Role:           models.RoleAssistant,
			Content:        state.Response,
			SourcesJSON:    sourcesJSON,
			Intent:         state.Intent,
		}
		if err := deps.Conversations.AppendMessage(ctx, asstMsg); err != nil {
			logger.Warn("persisting assistant message failed", "error", err)
		}

		provider, model := deps.Generator.CurrentProviderModel(state.Override)
		if state.RetrievalRan {
			deps.Emitter.LogRetrieval(ctx, traceID, len(state.Chunks), state.RetrievalMS)
		}
		if state.GenerationRan {
			deps.Emitter.LogGeneration(ctx, traceID, state.GenerationMS, int64(state.Usage.TotalTokens), provider, model)
		}
		deps.Emitter.LogResponse(ctx, traceID, claims.UserID, claims.Email,
			req.Query, state.Response, state.Chunks,
			time.Since(started).Milliseconds(), int64(state.Usage.TotalTokens), provider, model)
	}

	chat.POST("/query", func(c *gin.Context) {
		started := time.Now()
		traceID := middleware.GetTraceID(c)
		claims := middleware.GetClaims(c)

		req, state, conv, ok := prepare(c)
		if !ok {
			return
		}
		deps.Emitter.LogRequest(c.Request.Context(), traceID, claims.UserID, claims.Email, req.Query)

		if err := runAgent(c.Request.Context(), state, nil); err != nil {
			deps.Emitter.LogFailedResponse(c.Request.Context(), traceID, claims.UserID, claims.Email,
				req.Query, time.Since(started).Milliseconds(), err)
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		finish(c, req, state, conv, traceID, started)

		c.JSON(http.StatusOK, models.QueryResponse{
			Answer:         state.Response,
			Sources:        state.Sources,
			SessionID:      req.SessionID,
			ConversationID: conv.ID,
			Intent:         state.Intent,
			TraceID:        traceID,
			RetrievalMS:    state.RetrievalMS,
			GenerationMS:   state.GenerationMS,
		})
	})

	chat.POST("/stream", func(c *gin.Context) {
		started := time.Now()
		traceID := middleware.GetTraceID(c)
		claims := middleware.GetClaims(c)

		req, state, conv, ok := prepare(c)
		if !ok {
			return
		}
		deps.Emitter.LogRequest(c.Request.Context(), traceID, claims.UserID, claims.Email, req.Query)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		deltas := make(chan string, 16)
		errCh := make(chan error, 1)
		go func() {
			defer close(deltas)
			errCh <- runAgent(c.Request.Context(), state, deltas)
		}()

		for delta := range deltas {
			writeSSE(c, models.StreamEvent{Type: "chunk", Content: delta})
		}

		if err := <-errCh; err != nil {
			deps.Emitter.LogFailedResponse(c.Request.Context(), traceID, claims.UserID, claims.Email,
				req.Query, time.Since(started).Milliseconds(), err)
			writeSSE(c, models.StreamEvent{Type: "end", Error: "generation failed"})
			return
		}
		finish(c, req, state, conv, traceID, started)

		writeSSE(c, models.StreamEvent{
			Type:           "end",
			Sources:        state.Sources,
			SessionID:      req.SessionID,
			ConversationID: conv.ID,
			Intent:         state.Intent,
			LatencyMS:      time.Since(started).Milliseconds(),
		})
	})

	chat.GET("/conversations", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		convs, err := deps.Conversations.List(c.Request.Context(), claims.UserID, 50)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	})

	chat.GET("/conversations/:id/messages", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		conv, err := deps.Conversations.Get(c.Request.Context(), c.Param("id"), claims.UserID)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		msgs, err := deps.Conversations.Messages(c.Request.Context(), conv.ID)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
	})

	chat.DELETE("/conversations/:id", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if err := deps.Conversations.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
}

// writeSSE emits one SSE data frame and flushes it immediately.
func writeSSE(c *gin.Context, event models.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
