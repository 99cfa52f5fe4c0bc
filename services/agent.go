package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
)

const sourceSnippetLength = 200

// AgentState is the record carried through every node of one query.
type AgentState struct {
	// Input
	Query     string
	SessionID string
	UserID    int64
	GroupID   int64
	GroupIDs  []int64
	Profile   string
	History   []models.HistoryTurn
	// StrictFilters pushes extracted scalars into the vector query
	// instead of relying on the enhanced query text alone.
	StrictFilters bool
	Override      *ai.Override

	// Processing
	Intent        string
	Confidence    float64
	Filters       models.SearchFilters
	EnhancedQuery string
	Chunks        []models.ScoredChunk

	// Output
	Response string
	Sources  []models.Source
	Usage    ai.Usage

	// Stage markers for event emission. Latency alone cannot signal a
	// stage ran: a sub-millisecond stage still reports zero.
	RetrievalRan  bool
	GenerationRan bool
	RetrievalMS   int64
	GenerationMS  int64
}

// Agent is the deterministic state machine behind every chat query:
//
//	classify -> greeting | refusal | filters -> retrieve -> generate
//
// Greeting and refusal terminate without retrieval.
type Agent struct {
	classifier *IntentClassifier
	embedder   *ai.EmbeddingClient
	sparse     *ai.SparseEncoder
	retriever  *Retriever
	reranker   *Reranker
	generator  *ai.Generator
}

func NewAgent(classifier *IntentClassifier, embedder *ai.EmbeddingClient, sparse *ai.SparseEncoder, retriever *Retriever, reranker *Reranker, generator *ai.Generator) *Agent {
	return &Agent{
		classifier: classifier,
		embedder:   embedder,
		sparse:     sparse,
		retriever:  retriever,
		reranker:   reranker,
		generator:  generator,
	}
}

// Run executes the full graph in buffered mode.
func (a *Agent) Run(ctx context.Context, state *AgentState) error {
	return a.run(ctx, state, nil)
}

// RunStream executes the graph in streaming mode: generator deltas are
// copied to out as they arrive, and the final state carries the
// accumulated response. The caller owns the channel lifecycle.
func (a *Agent) RunStream(ctx context.Context, state *AgentState, out chan<- string) error {
	return a.run(ctx, state, out)
}

func (a *Agent) run(ctx context.Context, state *AgentState, out chan<- string) error {
	tracer := otel.Tracer("agent")
	ctx, span := tracer.Start(ctx, "agent.run")
	defer span.End()

	state.Intent, state.Confidence = a.classifier.Classify(ctx, state.Query, state.History)
	span.SetAttributes(
		attribute.String("agent.intent", state.Intent),
		attribute.Float64("agent.confidence", state.Confidence),
	)
	logger.Info("intent classified", "intent", state.Intent, "confidence", state.Confidence)

	switch state.Intent {
	case IntentGreeting:
		state.Response = greetingResponse(state.Query)
		a.emitCanned(state, out)
		return nil
	case IntentOutOfScope:
		state.Response = outOfScopeResponse()
		a.emitCanned(state, out)
		return nil
	}

	// document_query, follow_up, and clarification all retrieve.
	state.Filters = ExtractQueryFilters(state.Query)
	state.EnhancedQuery = EnhanceQuery(state.Query, state.Filters)

	if err := a.retrieve(ctx, state); err != nil {
		return err
	}
	return a.generate(ctx, state, out)
}

// emitCanned pushes a canned response through the stream channel so
// both modes see identical behavior. Latencies stay zero.
func (a *Agent) emitCanned(state *AgentState, out chan<- string) {
	state.Sources = []models.Source{}
	if out != nil {
		out <- state.Response
	}
}

func (a *Agent) retrieve(ctx context.Context, state *AgentState) error {
	start := time.Now()

	dense, err := a.embedder.EmbedOne(ctx, state.EnhancedQuery)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}
	sparse := a.sparse.Encode(state.EnhancedQuery)

	groupIDs := state.GroupIDs
	if state.GroupID != 0 {
		groupIDs = []int64{state.GroupID}
	}

	filters := models.SearchFilters{}
	if state.StrictFilters {
		filters = state.Filters
	}

	hits, err := a.retriever.SearchHybrid(ctx, dense, sparse, groupIDs, 0, 0, filters)
	if err != nil {
		return fmt.Errorf("hybrid search: %w", err)
	}
	if a.reranker != nil {
		hits = a.reranker.Rerank(ctx, state.EnhancedQuery, hits, 0)
	}

	state.Chunks = hits
	state.Sources = make([]models.Source, 0, len(hits))
	for _, hit := range hits {
		snippet := hit.Chunk.Text
		if len(snippet) > sourceSnippetLength {
			snippet = snippet[:sourceSnippetLength] + "..."
		}
		state.Sources = append(state.Sources, models.Source{
			DocumentID: hit.Chunk.DocumentID,
			Filename:   hit.Chunk.Filename,
			Page:       hit.Chunk.Page,
			Section:    hit.Chunk.Metadata.Section,
			ChunkType:  hit.Chunk.Type,
			Score:      hit.Score,
			Snippet:    snippet,
		})
	}
	state.RetrievalRan = true
	state.RetrievalMS = time.Since(start).Milliseconds()

	logger.Info("retrieval complete", "chunks", len(hits), "latency_ms", state.RetrievalMS)
	return nil
}

func (a *Agent) generate(ctx context.Context, state *AgentState, out chan<- string) error {
	start := time.Now()

	if len(state.Chunks) == 0 {
		state.Response = ai.NoAnswerText
		state.GenerationRan = true
		state.GenerationMS = time.Since(start).Milliseconds()
		if out != nil {
			out <- state.Response
		}
		return nil
	}

	system, user := ai.BuildPrompt(state.Profile, state.Query, formatContext(state.Chunks), formatHistory(state.History))

	if out == nil {
		response, usage, err := a.generator.Generate(ctx, system, user, state.Override)
		if err != nil {
			return fmt.Errorf("generation: %w", err)
		}
		state.Response = response
		state.Usage = usage
	} else {
		var b strings.Builder
		for delta := range a.generator.Stream(ctx, system, user, state.Override) {
			if delta.Err != nil {
				return fmt.Errorf("generation stream: %w", delta.Err)
			}
			b.WriteString(delta.Content)
			out <- delta.Content
		}
		state.Response = b.String()
		state.Usage = ai.Usage{
			PromptTokens:     ai.EstimateTokens(user),
			CompletionTokens: ai.EstimateTokens(state.Response),
		}
		state.Usage.TotalTokens = state.Usage.PromptTokens + state.Usage.CompletionTokens
	}

	state.GenerationRan = true
	state.GenerationMS = time.Since(start).Milliseconds()
	logger.Info("generation complete", "chars", len(state.Response), "latency_ms", state.GenerationMS)
	return nil
}

// formatContext concatenates Source [name, Page n, section] blocks.
func formatContext(chunks []models.ScoredChunk) string {
	var b strings.Builder
	for _, hit := range chunks {
		ch := hit.Chunk
		b.WriteString("Source [")
		b.WriteString(ch.Filename)
		fmt.Fprintf(&b, ", Page %d", ch.Page)
		if ch.Metadata.Section != "" {
			b.WriteString(", " + ch.Metadata.Section)
		}
		b.WriteString("]:\n")
		b.WriteString(ch.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatHistory renders the last five turns as "ROLE: content" lines.
func formatHistory(history []models.HistoryTurn) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	lines := make([]string, 0, len(recent))
	for _, turn := range recent {
		lines = append(lines, strings.ToUpper(turn.Role)+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

// greetingResponse selects canned text by keyword: farewell, thanks,
// then the default introduction.
func greetingResponse(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "bye") || strings.Contains(q, "see you"):
		return "Goodbye! Feel free to come back if you have more questions about vehicle documentation."
	case strings.Contains(q, "thank"):
		return "You're welcome! Let me know if you need anything else."
	}
	return `Hello! I'm your vehicle documentation assistant. I can help you with:

- **Test reports** - Performance, brake, cooling, steering tests
- **Vehicle specifications** - Engine, chassis, component details
- **Compliance information** - Regulatory standards, certifications

What would you like to know about your documents?`
}

func outOfScopeResponse() string {
	return `I'm specialized in vehicle test documentation and can't help with that topic.

I can assist you with:
- Vehicle test reports and performance data
- Technical specifications and component details
- Compliance and regulatory information

Please ask about your uploaded vehicle documents!`
}
