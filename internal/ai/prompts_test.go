package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptTechnicalProfile(t *testing.T) {
	system, user := BuildPrompt(ProfileTechnical, "what is the stopping distance?",
		"Source [r.pdf, Page 4]:\nStopping distance was 25.4 m.", "")

	assert.Contains(t, system, "automotive engineering test documentation")
	assert.Contains(t, system, NoAnswerText)
	assert.Contains(t, system, "Cite [Page N, Document Name]")
	assert.Contains(t, user, "Context from the uploaded documents:")
	assert.Contains(t, user, "Stopping distance was 25.4 m.")
	assert.True(t, strings.HasSuffix(user, "Question: what is the stopping distance?"))
}

func TestBuildPromptUnknownProfileFallsBackToGeneral(t *testing.T) {
	system, _ := BuildPrompt("marketing", "q", "ctx", "")
	general, _ := BuildPrompt(ProfileGeneral, "q", "ctx", "")
	assert.Equal(t, general, system)
}

func TestBuildPromptComplianceProfile(t *testing.T) {
	system, _ := BuildPrompt(ProfileCompliance, "q", "ctx", "")
	assert.Contains(t, system, "regulatory documentation")
	assert.Contains(t, system, "quote its designation exactly")
}

func TestBuildPromptIncludesHistory(t *testing.T) {
	_, user := BuildPrompt(ProfileGeneral, "and the rear axle?", "ctx",
		"USER: what is the front axle load?\nASSISTANT: 6500 kg [Page 2, r.pdf]")

	assert.Contains(t, user, "Recent conversation:\nUSER: what is the front axle load?")
	assert.Contains(t, user, "Question: and the rear axle?")
}

func TestBuildPromptEmptyContext(t *testing.T) {
	_, user := BuildPrompt(ProfileGeneral, "q", "", "")
	assert.Contains(t, user, "(no relevant content was retrieved)")
}
