package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"engdocs-qa-platform/models"
)

var someHistory = []models.HistoryTurn{
	{Role: "user", Content: "what is the GVW of Pro 3012?"},
	{Role: "assistant", Content: "The GVW is 16200 kg [Page 3, ETR_02_24_12]."},
}

func TestClassifyGreeting(t *testing.T) {
	c := NewIntentClassifier(nil)
	for _, q := range []string{"hi", "Hello!", "good morning", "thanks", "bye"} {
		intent, confidence := c.Classify(context.Background(), q, nil)
		assert.Equal(t, IntentGreeting, intent, q)
		assert.Equal(t, 0.95, confidence, q)
	}
}

func TestClassifyFollowUpWithHistory(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, confidence := c.Classify(context.Background(), "tell me more about that", someHistory)
	assert.Equal(t, IntentFollowUp, intent)
	assert.Equal(t, 0.85, confidence)
}

func TestClassifyShortQueryWithHistoryIsFollowUp(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, confidence := c.Classify(context.Background(), "unladen weight?", someHistory)
	assert.Equal(t, IntentFollowUp, intent)
	assert.Equal(t, 0.7, confidence)
}

func TestClassifyFollowUpPatternNeedsHistory(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, _ := c.Classify(context.Background(), "tell me more about the brake test results of Pro 3012", nil)
	assert.Equal(t, IntentDocumentQuery, intent)
}

func TestClassifyOutOfScope(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, confidence := c.Classify(context.Background(), "can you tell me about the weather in Pune today", nil)
	assert.Equal(t, IntentOutOfScope, intent)
	assert.Equal(t, 0.8, confidence)
}

func TestClassifyDefaultDocumentQuery(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, confidence := c.Classify(context.Background(), "what is the maximum gradeability of Pro 3012", nil)
	assert.Equal(t, IntentDocumentQuery, intent)
	assert.Equal(t, 0.9, confidence)
}

// A nil generator must never be consulted even when the rule confidence
// is below the fallback threshold.
func TestClassifyNilGeneratorKeepsRuleResult(t *testing.T) {
	c := NewIntentClassifier(nil)
	intent, confidence := c.Classify(context.Background(), "why?", someHistory)
	assert.Equal(t, IntentFollowUp, intent)
	assert.Equal(t, 0.7, confidence)
}
