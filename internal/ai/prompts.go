package ai

import (
	"fmt"
	"strings"
)

// Group profiles select the prompt template family.
const (
	ProfileTechnical  = "technical"
	ProfileCompliance = "compliance"
	ProfileGeneral    = "general"
)

// NoAnswerText is the exact response required when a specific question
// cannot be answered from the provided context.
const NoAnswerText = "This information is not available in the uploaded documents."

// groundingPreamble is shared by every profile.
const groundingPreamble = `Answer ONLY from the provided context. Do not use external knowledge.
If a specific question cannot be answered from the context, respond exactly:
"` + NoAnswerText + `"
For broad queries (a bare document name or topic), summarize what the context contains.
Never fabricate values. Reproduce numbers, units, and table contents verbatim.
Cite [Page N, Document Name] after every claim.
Reproduce relevant tables in pipe-delimited markdown.`

var profileSystemPrompts = map[string]string{
	ProfileTechnical: `You are a technical assistant for automotive engineering test documentation.
You answer questions about test reports, measurements, homologation data, and vehicle specifications.
` + groundingPreamble,
	ProfileCompliance: `You are a compliance assistant for automotive regulatory documentation.
You answer questions about standards conformity, compliance statements, approvals, and test outcomes.
When a standard or regulation is referenced, quote its designation exactly as written in the context.
` + groundingPreamble,
	ProfileGeneral: `You are an assistant for a corpus of uploaded engineering documents.
You answer questions using only those documents.
` + groundingPreamble,
}

// BuildPrompt renders the {system, user} pair for a group profile.
// contextBlock is the formatted retrieved sources; historyBlock is the
// recent conversation rendered as "ROLE: content" lines (may be empty).
func BuildPrompt(profile, query, contextBlock, historyBlock string) (system string, user string) {
	system, ok := profileSystemPrompts[profile]
	if !ok {
		system = profileSystemPrompts[ProfileGeneral]
	}

	var b strings.Builder
	if contextBlock != "" {
		b.WriteString("Context from the uploaded documents:\n\n")
		b.WriteString(contextBlock)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Context from the uploaded documents: (no relevant content was retrieved)\n\n")
	}
	if historyBlock != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(historyBlock)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", query)

	return system, b.String()
}
