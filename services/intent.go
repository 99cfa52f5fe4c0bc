package services

import (
	"context"
	"regexp"
	"strings"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
)

// Intent states routed by the agent.
const (
	IntentGreeting      = "greeting"
	IntentDocumentQuery = "document_query"
	IntentFollowUp      = "follow_up"
	IntentClarification = "clarification"
	IntentOutOfScope    = "out_of_scope"
)

// Below this rule-based confidence the LLM fallback is consulted.
const llmFallbackThreshold = 0.75

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|good\s*(morning|afternoon|evening)|greetings)[\s!.,]*$`),
	regexp.MustCompile(`^(how\s+are\s+you|what'?s\s+up|howdy)[\s!?,]*$`),
	regexp.MustCompile(`^(thanks?|thank\s+you|bye|goodbye|see\s+you)[\s!.,]*$`),
}

// Follow-up rules apply only when history is non-empty.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(what|which|how|where|when|why|who)\s+(about|is|are|was|were)\s+(it|this|that|these|those)`),
	regexp.MustCompile(`^(tell\s+me\s+more|more\s+details|explain|elaborate)`),
	regexp.MustCompile(`^(and|also|additionally|furthermore)`),
	regexp.MustCompile(`^(can\s+you|could\s+you)\s+(also|explain|show)`),
}

var outOfScopePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(weather|news|joke|song|music|movie|game|sport)`),
	regexp.MustCompile(`(write\s+code|python|javascript|programming)`),
	regexp.MustCompile(`(recipe|cook|food|restaurant)`),
}

// IntentClassifier routes queries by a regex fast path with an LLM
// fallback for low-confidence cases. A nil generator disables the
// fallback.
type IntentClassifier struct {
	generator *ai.Generator
}

func NewIntentClassifier(generator *ai.Generator) *IntentClassifier {
	return &IntentClassifier{generator: generator}
}

// Classify returns (intent, confidence). It never fails: any fallback
// error leaves the rule-based result standing.
func (c *IntentClassifier) Classify(ctx context.Context, query string, history []models.HistoryTurn) (string, float64) {
	intent, confidence := classifyByRules(query, len(history) > 0)
	if confidence >= llmFallbackThreshold || c.generator == nil {
		return intent, confidence
	}

	llmIntent, llmConfidence, err := c.classifyLLM(ctx, query, history)
	if err != nil {
		logger.Warn("LLM intent fallback failed, keeping rule-based result", "error", err)
		return intent, confidence
	}
	return llmIntent, llmConfidence
}

func classifyByRules(query string, hasHistory bool) (string, float64) {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, p := range greetingPatterns {
		if p.MatchString(q) {
			return IntentGreeting, 0.95
		}
	}

	if hasHistory {
		for _, p := range followUpPatterns {
			if p.MatchString(q) {
				return IntentFollowUp, 0.85
			}
		}
		// Very short queries with history are likely follow-ups.
		if len(strings.Fields(q)) <= 3 {
			return IntentFollowUp, 0.7
		}
	}

	for _, p := range outOfScopePatterns {
		if p.MatchString(q) {
			return IntentOutOfScope, 0.8
		}
	}

	return IntentDocumentQuery, 0.9
}

const intentPromptTemplate = `Classify the user's intent into exactly one of these categories:
- GREETING: Simple greetings, thanks, or farewells
- DOCUMENT_QUERY: Questions about vehicle documents, test reports, specifications
- FOLLOW_UP: Continuation or clarification of previous conversation
- OUT_OF_SCOPE: Questions unrelated to vehicle documentation

Conversation history:
%HISTORY%

User message: %QUERY%

Respond with ONLY the category name (e.g., DOCUMENT_QUERY):`

func (c *IntentClassifier) classifyLLM(ctx context.Context, query string, history []models.HistoryTurn) (string, float64, error) {
	historyBlock := "(No history)"
	if len(history) > 0 {
		recent := history
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		lines := make([]string, 0, len(recent))
		for _, turn := range recent {
			lines = append(lines, turn.Role+": "+turn.Content)
		}
		historyBlock = strings.Join(lines, "\n")
	}

	prompt := strings.NewReplacer("%HISTORY%", historyBlock, "%QUERY%", query).Replace(intentPromptTemplate)
	response, _, err := c.generator.Generate(ctx, "", prompt, nil)
	if err != nil {
		return "", 0, err
	}

	upper := strings.ToUpper(response)
	for _, intent := range []string{IntentGreeting, IntentFollowUp, IntentClarification, IntentOutOfScope, IntentDocumentQuery} {
		if strings.Contains(upper, strings.ToUpper(intent)) {
			return intent, 0.9, nil
		}
	}
	// Unparseable single-word answer; the safe default still retrieves.
	return IntentDocumentQuery, 0.6, nil
}
