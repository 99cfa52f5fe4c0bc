package models

// Extraction method tags recorded on every page.
const (
	MethodStructural = "structural"
	MethodVisionOCR  = "vision-ocr"
	MethodFallback   = "fallback"
)

// PageTable is a table materialized as markdown during extraction.
type PageTable struct {
	Markdown string `json:"markdown"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
}

// PageImage is an embedded raster image lifted from a page.
type PageImage struct {
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Page is the intermediate record produced by the extractor. Pages are
// ephemeral: they exist only while an ingestion task runs.
type Page struct {
	Number  int         `json:"number"` // 1-based
	Content string      `json:"content"`
	Tables  []PageTable `json:"tables,omitempty"`
	Images  []PageImage `json:"images,omitempty"`
	// Captions are vision descriptions of the page's embedded images,
	// emitted downstream as their own retrieval units.
	Captions []string `json:"captions,omitempty"`
	Method   string   `json:"method"`
}
