package models

// Chunk types. Image-caption chunks are tagged distinctly from prose so
// downstream consumers may weight them.
const (
	ChunkProse        = "prose"
	ChunkTable        = "table"
	ChunkSlide        = "slide"
	ChunkImageCaption = "image-caption"
)

// ChunkMetadata holds the structured fields pulled from text by the
// metadata extractor. All fields are optional; list fields are merged by
// union between chunk-level and document-level records.
type ChunkMetadata struct {
	DocID            string   `json:"doc_id,omitempty"`
	Section          string   `json:"section,omitempty"`
	VehicleModel     string   `json:"vehicle_model,omitempty"`
	ChassisNo        string   `json:"chassis_no,omitempty"`
	TestDate         string   `json:"test_date,omitempty"`
	TestType         string   `json:"test_type,omitempty"`
	RegistrationNo   string   `json:"registration_no,omitempty"`
	EngineNo         string   `json:"engine_no,omitempty"`
	GrossWeight      string   `json:"gross_weight,omitempty"`
	Power            string   `json:"power,omitempty"`
	ComplianceStatus []string `json:"compliance_status,omitempty"`
	Standards        []string `json:"standards,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	PageNumber       int      `json:"page_number,omitempty"`
}

// Chunk is the atomic unit of retrieval. Every chunk carries its group id
// so retrieval-side access filters are authoritative.
type Chunk struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Type       string        `json:"type"`
	Page       int           `json:"page"`
	DocumentID int64         `json:"document_id"`
	Filename   string        `json:"filename"`
	GroupID    int64         `json:"group_id"`
	Method     string        `json:"method"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// SearchFilters is the structured-selector subset detected in a query.
type SearchFilters struct {
	DocID        string `json:"doc_id,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	ChassisNo    string `json:"chassis_no,omitempty"`
	TestType     string `json:"test_type,omitempty"`
}

// Empty reports whether no selector matched.
func (f SearchFilters) Empty() bool {
	return f.DocID == "" && f.VehicleModel == "" && f.ChassisNo == "" && f.TestType == ""
}

// ScoredChunk pairs a retrieved chunk with its relevance score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
