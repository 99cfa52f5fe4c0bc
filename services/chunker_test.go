package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/models"
)

func testDoc() *models.Document {
	return &models.Document{ID: 7, Name: "ETR_02_24_12.pdf", GroupID: 3}
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func TestChunkShortProseSingleChunk(t *testing.T) {
	c := NewChunker(300, 50)
	pages := []models.Page{{Number: 1, Content: words(120)}}

	chunks := c.Chunk(pages, testDoc(), false)
	require.Len(t, chunks, 1)
	assert.Equal(t, models.ChunkProse, chunks[0].Type)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, int64(7), chunks[0].DocumentID)
	assert.Equal(t, int64(3), chunks[0].GroupID)
	assert.Equal(t, 1, chunks[0].Metadata.PageNumber)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunkSlidingWindowOverlap(t *testing.T) {
	c := NewChunker(300, 50)
	pages := []models.Page{{Number: 2, Content: words(700)}}

	chunks := c.Chunk(pages, testDoc(), false)
	// Windows start at 0, 250, 500: 700 words step 250.
	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0].Text), 300)
	assert.Len(t, strings.Fields(chunks[1].Text), 300)
	assert.Len(t, strings.Fields(chunks[2].Text), 200)

	// The last 50 words of a window open the next one.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	assert.Equal(t, first[250:], second[:50])
}

func TestChunkExactMultipleDropsEmptyTrailingWindow(t *testing.T) {
	c := NewChunker(300, 50)
	// 550 words: windows at 0 and 250, the second ends exactly at 550.
	pages := []models.Page{{Number: 1, Content: words(550)}}

	chunks := c.Chunk(pages, testDoc(), false)
	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[1].Text), 300)
}

func TestChunkTableBlockNeverSplit(t *testing.T) {
	c := NewChunker(20, 5)
	table := "| Parameter | Value |\n| --- | --- |\n| GVW | 16200 kg |\n| Power | 123 kW |"
	content := words(50) + "\n" + table + "\n" + words(50)
	pages := []models.Page{{Number: 4, Content: content}}

	chunks := c.Chunk(pages, testDoc(), false)

	var tableChunks []models.Chunk
	for _, ch := range chunks {
		if ch.Type == models.ChunkTable {
			tableChunks = append(tableChunks, ch)
		}
	}
	require.Len(t, tableChunks, 1)
	assert.Equal(t, table, tableChunks[0].Text)

	// Prose on both sides of the table is window-chunked separately.
	for _, ch := range chunks {
		if ch.Type == models.ChunkProse {
			assert.NotContains(t, ch.Text, "|")
		}
	}
}

func TestChunkTableMarkerBlock(t *testing.T) {
	c := NewChunker(300, 50)
	block := "[TABLE 3: Brake performance]\n| Speed | Distance |\n| 60 | 25.4 m |"
	pages := []models.Page{{Number: 1, Content: "intro text\n" + block}}

	chunks := c.Chunk(pages, testDoc(), false)

	var found bool
	for _, ch := range chunks {
		if ch.Type == models.ChunkTable {
			found = true
			assert.Contains(t, ch.Text, "[TABLE 3")
			assert.Contains(t, ch.Text, "25.4 m")
		}
	}
	assert.True(t, found, "marker block should become a table chunk")
}

func TestChunkSlideStaysWhole(t *testing.T) {
	c := NewChunker(300, 50)
	pages := []models.Page{{Number: 5, Content: words(400)}}

	chunks := c.Chunk(pages, testDoc(), true)
	require.Len(t, chunks, 1)
	assert.Equal(t, models.ChunkSlide, chunks[0].Type)
	assert.Len(t, strings.Fields(chunks[0].Text), 400)
}

func TestChunkLongSlideFallsBackToProse(t *testing.T) {
	c := NewChunker(300, 50)
	// 451 words exceeds 1.5x the window size.
	pages := []models.Page{{Number: 1, Content: words(451)}}

	chunks := c.Chunk(pages, testDoc(), true)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, models.ChunkProse, ch.Type)
	}
}

func TestChunkCaptionsBecomeImageCaptionChunks(t *testing.T) {
	c := NewChunker(300, 50)
	pages := []models.Page{{
		Number:   3,
		Content:  "Cooling system schematic overview.",
		Captions: []string{"Radiator assembly with twin fans", "Coolant flow diagram"},
	}}

	chunks := c.Chunk(pages, testDoc(), false)
	require.Len(t, chunks, 3)
	assert.Equal(t, models.ChunkProse, chunks[0].Type)
	assert.Equal(t, models.ChunkImageCaption, chunks[1].Type)
	assert.Equal(t, "Radiator assembly with twin fans", chunks[1].Text)
	assert.Equal(t, models.ChunkImageCaption, chunks[2].Type)
	assert.Equal(t, 3, chunks[2].Page)
}

func TestChunkEmptyPageProducesNothing(t *testing.T) {
	c := NewChunker(300, 50)
	pages := []models.Page{{Number: 1, Content: "   \n  "}}
	assert.Empty(t, c.Chunk(pages, testDoc(), false))
}

func TestSplitTableBlocksInvariant(t *testing.T) {
	prose, tables := splitTableBlocks("before\n| a | b |\n| c | d |\nafter\n| e | f |")
	assert.Equal(t, len(tables)+1, len(prose))
	require.Len(t, tables, 2)
	assert.Contains(t, tables[0], "| a | b |")
	assert.Contains(t, tables[1], "| e | f |")
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, 300, c.sizeWords)
	assert.Equal(t, 50, c.overlapWords)

	// Overlap must stay below the window size.
	c = NewChunker(100, 100)
	assert.Equal(t, 50, c.overlapWords)
}

func TestContextLabel(t *testing.T) {
	label := ContextLabel(models.Chunk{Filename: "report.pdf", Page: 12})
	assert.Equal(t, "report.pdf, Page 12", label)
}
