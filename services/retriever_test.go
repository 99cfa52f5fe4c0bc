package services

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/models"
)

func uuidPoint(id string) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id: qdrant.NewID(id),
		Payload: qdrant.NewValueMap(map[string]any{
			"text": "point " + id,
		}),
	}
}

func TestFuseRRFScores(t *testing.T) {
	a := uuidPoint("aaaaaaaa-0000-0000-0000-000000000001")
	b := uuidPoint("aaaaaaaa-0000-0000-0000-000000000002")
	c := uuidPoint("aaaaaaaa-0000-0000-0000-000000000003")

	fused := fuseRRF(
		[]*qdrant.ScoredPoint{a, b, c},
		[]*qdrant.ScoredPoint{b, a},
		60,
	)
	require.Len(t, fused, 3)

	// a and b both score 1/61 + 1/62; a wins the tie on its smaller
	// dense rank. c appears only in the dense list.
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000001", fused[0].Chunk.ID)
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000002", fused[1].Chunk.ID)
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000003", fused[2].Chunk.ID)

	both := 1.0/61 + 1.0/62
	assert.InDelta(t, both, fused[0].Score, 1e-12)
	assert.InDelta(t, both, fused[1].Score, 1e-12)
	assert.InDelta(t, 1.0/63, fused[2].Score, 1e-12)
}

func TestFuseRRFSparseOnlyHit(t *testing.T) {
	a := uuidPoint("aaaaaaaa-0000-0000-0000-000000000001")
	b := uuidPoint("aaaaaaaa-0000-0000-0000-000000000002")

	fused := fuseRRF([]*qdrant.ScoredPoint{a}, []*qdrant.ScoredPoint{b}, 60)
	require.Len(t, fused, 2)
	// Equal scores; the dense hit ranks first.
	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000001", fused[0].Chunk.ID)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-12)
}

func TestFuseRRFEmptyLists(t *testing.T) {
	assert.Empty(t, fuseRRF(nil, nil, 60))
}

func TestBuildFilterAlwaysConfinesGroups(t *testing.T) {
	f := buildFilter([]int64{1, 2}, models.SearchFilters{})
	require.Len(t, f.Must, 1)

	f = buildFilter([]int64{1}, models.SearchFilters{
		DocID:        "ETR_02_24_12",
		VehicleModel: "Pro 3012",
		ChassisNo:    "MC2BHGRC0RB110801",
		TestType:     "brake_test",
	})
	assert.Len(t, f.Must, 5)
}

func TestDecodePointRoundTrip(t *testing.T) {
	ch := models.Chunk{
		ID:         "aaaaaaaa-0000-0000-0000-00000000000a",
		Text:       "Brake distance at 60 km/h was 25.4 m.",
		Type:       models.ChunkProse,
		Page:       4,
		DocumentID: 7,
		Filename:   "ETR_02_24_12.pdf",
		GroupID:    3,
		Method:     models.MethodStructural,
		Metadata: models.ChunkMetadata{
			DocID:      "ETR_02_24_12",
			Section:    "BRAKE PERFORMANCE",
			TestType:   "brake",
			Standards:  []string{"IS 11852:2001"},
			Keywords:   []string{"brake"},
			PageNumber: 4,
		},
	}

	sparse := ai.SparseVector{Indices: []uint32{1, 2}, Values: []float32{0.5, 0.5}}
	point := chunkPoint(ch, []float32{0.1, 0.2}, sparse, "group_3/abc_ETR_02_24_12.pdf")
	decoded := decodePoint(&qdrant.ScoredPoint{Id: point.Id, Score: 0.9, Payload: point.Payload})

	assert.Equal(t, ch.ID, decoded.Chunk.ID)
	assert.Equal(t, ch.Text, decoded.Chunk.Text)
	assert.Equal(t, ch.Type, decoded.Chunk.Type)
	assert.Equal(t, ch.Method, decoded.Chunk.Method)
	assert.Equal(t, ch.DocumentID, decoded.Chunk.DocumentID)
	assert.Equal(t, ch.GroupID, decoded.Chunk.GroupID)
	assert.Equal(t, ch.Filename, decoded.Chunk.Filename)
	assert.Equal(t, ch.Page, decoded.Chunk.Page)
	assert.Equal(t, ch.Metadata.DocID, decoded.Chunk.Metadata.DocID)
	assert.Equal(t, ch.Metadata.Section, decoded.Chunk.Metadata.Section)
	assert.Equal(t, ch.Metadata.TestType, decoded.Chunk.Metadata.TestType)
	assert.Equal(t, ch.Metadata.Standards, decoded.Chunk.Metadata.Standards)
	assert.Equal(t, ch.Metadata.Keywords, decoded.Chunk.Metadata.Keywords)
	assert.Equal(t, ch.Metadata.PageNumber, decoded.Chunk.Metadata.PageNumber)
	assert.InDelta(t, 0.9, decoded.Score, 1e-6)
}
