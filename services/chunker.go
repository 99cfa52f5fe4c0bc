package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"engdocs-qa-platform/models"
)

const (
	defaultChunkSizeWords = 300
	defaultOverlapWords   = 50
	// Slides stay whole up to this multiple of the target size.
	slideSizeFactor = 1.5
)

// Chunker splits extracted pages into retrieval units. Prose is cut by
// a sliding word window; tables pass through whole; slides stay whole
// unless exceptionally long.
type Chunker struct {
	sizeWords    int
	overlapWords int
}

func NewChunker(sizeWords, overlapWords int) *Chunker {
	if sizeWords <= 0 {
		sizeWords = defaultChunkSizeWords
	}
	if overlapWords < 0 || overlapWords >= sizeWords {
		overlapWords = defaultOverlapWords
	}
	return &Chunker{sizeWords: sizeWords, overlapWords: overlapWords}
}

var (
	tableMarker  = regexp.MustCompile(`^\s*(\[TABLE|### Table)`)
	pipeRuleLine = regexp.MustCompile(`^\s*\|`)
)

// Chunk converts pages into chunks for one document. slides marks
// presentation-derived pages, whose content is treated as one unit.
func (c *Chunker) Chunk(pages []models.Page, doc *models.Document, slides bool) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.chunkPage(page, doc, slides)...)
		for _, caption := range page.Captions {
			chunks = append(chunks, c.newChunk(caption, models.ChunkImageCaption, page, doc))
		}
	}
	return chunks
}

func (c *Chunker) chunkPage(page models.Page, doc *models.Document, slides bool) []models.Chunk {
	content := strings.TrimSpace(page.Content)
	if content == "" {
		return nil
	}

	if slides {
		if len(strings.Fields(content)) <= int(float64(c.sizeWords)*slideSizeFactor) {
			return []models.Chunk{c.newChunk(content, models.ChunkSlide, page, doc)}
		}
		// Exceptionally long slide: fall through to prose chunking.
	}

	var chunks []models.Chunk
	prose, tables := splitTableBlocks(content)
	for i, segment := range prose {
		for _, window := range c.slidingWindows(segment) {
			chunks = append(chunks, c.newChunk(window, models.ChunkProse, page, doc))
		}
		if i < len(tables) {
			chunks = append(chunks, c.newChunk(tables[i], models.ChunkTable, page, doc))
		}
	}
	return chunks
}

// splitTableBlocks partitions text into alternating prose segments and
// table blocks. A table block is a marker line plus its following
// contiguous block, or a run of pipe-delimited rows. The result always
// has len(prose) == len(tables)+1 with possibly-empty prose segments.
func splitTableBlocks(text string) (prose []string, tables []string) {
	lines := strings.Split(text, "\n")

	var proseBuf, tableBuf []string
	inTable := false

	flushTable := func() {
		if len(tableBuf) > 0 {
			prose = append(prose, strings.Join(proseBuf, "\n"))
			tables = append(tables, strings.TrimSpace(strings.Join(tableBuf, "\n")))
			proseBuf = nil
			tableBuf = nil
		}
		inTable = false
	}

	for _, line := range lines {
		tabular := pipeRuleLine.MatchString(line) || tableMarker.MatchString(line)
		switch {
		case tabular:
			inTable = true
			tableBuf = append(tableBuf, line)
		case inTable && strings.TrimSpace(line) != "":
			// Non-tabular non-blank line ends the block.
			flushTable()
			proseBuf = append(proseBuf, line)
		case inTable:
			flushTable()
		default:
			proseBuf = append(proseBuf, line)
		}
	}
	flushTable()
	prose = append(prose, strings.Join(proseBuf, "\n"))
	return prose, tables
}

// slidingWindows cuts text into windows of sizeWords words stepping by
// sizeWords-overlapWords. An empty trailing window is dropped.
func (c *Chunker) slidingWindows(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.sizeWords {
		return []string{strings.Join(words, " ")}
	}

	step := c.sizeWords - c.overlapWords
	var windows []string
	for start := 0; start < len(words); start += step {
		end := start + c.sizeWords
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return windows
}

func (c *Chunker) newChunk(text, chunkType string, page models.Page, doc *models.Document) models.Chunk {
	return models.Chunk{
		ID:         uuid.NewString(),
		Text:       text,
		Type:       chunkType,
		Page:       page.Number,
		DocumentID: doc.ID,
		Filename:   doc.Name,
		GroupID:    doc.GroupID,
		Method:     page.Method,
		Metadata: models.ChunkMetadata{
			PageNumber: page.Number,
		},
	}
}

// ContextLabel renders the chunk's human-readable origin, used in
// generator context blocks and client sources.
func ContextLabel(ch models.Chunk) string {
	return fmt.Sprintf("%s, Page %d", ch.Filename, ch.Page)
}
