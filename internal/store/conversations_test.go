package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitleShortQueryUnchanged(t *testing.T) {
	assert.Equal(t, "what is the GVW of Pro 3012?", deriveTitle("what is the GVW of Pro 3012?"))
}

func TestDeriveTitleCutsAtWordBoundary(t *testing.T) {
	query := "please summarize the brake performance and cooling system results from the latest endurance report"
	title := deriveTitle(query)

	assert.True(t, strings.HasSuffix(title, "..."))
	assert.LessOrEqual(t, len(title), 63)
	// No mid-word cut.
	trimmed := strings.TrimSuffix(title, "...")
	assert.True(t, strings.HasPrefix(query, trimmed))
	assert.Equal(t, ' ', rune(query[len(trimmed)]))
}

func TestDeriveTitleEmptyQuery(t *testing.T) {
	assert.Equal(t, "New conversation", deriveTitle("   "))
}
