package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/models"
)

// An agent whose classifier uses rules only. Retrieval and generation
// dependencies stay nil; canned paths must never touch them.
func cannedAgent() *Agent {
	return NewAgent(NewIntentClassifier(nil), nil, nil, nil, nil, nil)
}

func TestAgentGreetingSkipsRetrieval(t *testing.T) {
	a := cannedAgent()
	state := &AgentState{Query: "hello", GroupIDs: []int64{1}}

	require.NoError(t, a.Run(context.Background(), state))

	assert.Equal(t, IntentGreeting, state.Intent)
	assert.Contains(t, state.Response, "vehicle documentation assistant")
	assert.NotNil(t, state.Sources)
	assert.Empty(t, state.Sources)
	assert.False(t, state.RetrievalRan)
	assert.False(t, state.GenerationRan)
	assert.Zero(t, state.RetrievalMS)
	assert.Zero(t, state.GenerationMS)
}

func TestAgentGreetingFarewellAndThanks(t *testing.T) {
	a := cannedAgent()

	state := &AgentState{Query: "bye"}
	require.NoError(t, a.Run(context.Background(), state))
	assert.Contains(t, state.Response, "Goodbye")

	state = &AgentState{Query: "thanks"}
	require.NoError(t, a.Run(context.Background(), state))
	assert.Contains(t, state.Response, "You're welcome")
}

func TestAgentOutOfScopeRefuses(t *testing.T) {
	a := cannedAgent()
	state := &AgentState{Query: "tell me a joke about the weather"}

	require.NoError(t, a.Run(context.Background(), state))

	assert.Equal(t, IntentOutOfScope, state.Intent)
	assert.Contains(t, state.Response, "vehicle test documentation")
	assert.Empty(t, state.Sources)
	assert.Zero(t, state.RetrievalMS)
}

func TestAgentStreamDeliversCannedResponse(t *testing.T) {
	a := cannedAgent()
	state := &AgentState{Query: "hi"}
	out := make(chan string, 4)

	require.NoError(t, a.RunStream(context.Background(), state, out))
	close(out)

	var streamed string
	for delta := range out {
		streamed += delta
	}
	assert.Equal(t, state.Response, streamed)
}

func TestGenerateEmptyContextReturnsNoAnswer(t *testing.T) {
	a := cannedAgent()
	state := &AgentState{Query: "what is the unladen weight of Pro 9999?"}

	require.NoError(t, a.generate(context.Background(), state, nil))
	assert.Equal(t, ai.NoAnswerText, state.Response)
	// The stage ran even though it skipped the model and may finish in
	// under a millisecond.
	assert.True(t, state.GenerationRan)
}

func TestGenerateEmptyContextStreamsNoAnswer(t *testing.T) {
	a := cannedAgent()
	state := &AgentState{Query: "anything"}
	out := make(chan string, 1)

	require.NoError(t, a.generate(context.Background(), state, out))
	assert.Equal(t, ai.NoAnswerText, <-out)
}

func TestFormatContext(t *testing.T) {
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{
			Filename: "ETR_02_24_12.pdf",
			Page:     4,
			Text:     "Stopping distance was 25.4 m.",
			Metadata: models.ChunkMetadata{Section: "BRAKE PERFORMANCE"},
		}},
		{Chunk: models.Chunk{
			Filename: "ETR_02_24_12.pdf",
			Page:     7,
			Text:     "| GVW | 16200 kg |",
		}},
	}

	got := formatContext(chunks)
	assert.Contains(t, got, "Source [ETR_02_24_12.pdf, Page 4, BRAKE PERFORMANCE]:\nStopping distance was 25.4 m.")
	assert.Contains(t, got, "Source [ETR_02_24_12.pdf, Page 7]:\n| GVW | 16200 kg |")
}

func TestFormatHistoryLastFiveTurns(t *testing.T) {
	history := make([]models.HistoryTurn, 0, 7)
	for i := 0; i < 7; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, models.HistoryTurn{Role: role, Content: string(rune('a' + i))})
	}

	got := formatHistory(history)
	assert.NotContains(t, got, "a")
	assert.NotContains(t, got, "b")
	assert.Contains(t, got, "USER: c")
	assert.Contains(t, got, "ASSISTANT: f")
	assert.Contains(t, got, "USER: g")
}

func TestFormatHistoryEmpty(t *testing.T) {
	assert.Empty(t, formatHistory(nil))
}
