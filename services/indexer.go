package services

import (
	"context"

	"github.com/qdrant/go-client/qdrant"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

// Indexer composes chunk -> (dense, sparse, payload) triples and writes
// them to the vector index in embedding batches.
type Indexer struct {
	embedder  *ai.EmbeddingClient
	sparse    *ai.SparseEncoder
	retriever *Retriever
	batchSize int
}

const defaultEmbedBatchSize = 32

func NewIndexer(embedder *ai.EmbeddingClient, sparse *ai.SparseEncoder, retriever *Retriever) *Indexer {
	return &Indexer{
		embedder:  embedder,
		sparse:    sparse,
		retriever: retriever,
		batchSize: defaultEmbedBatchSize,
	}
}

// Index embeds and upserts all chunks of one document. The collection
// is ensured first so a fresh deployment needs no manual setup.
func (ix *Indexer) Index(ctx context.Context, chunks []models.Chunk, objectKey string) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ix.retriever.EnsureIndex(ctx); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		dense, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return utils.Transient("embedding chunk batch", err)
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, ch := range batch {
			sparse := ix.sparse.Encode(ch.Text)
			points[i] = chunkPoint(ch, dense[i], sparse, objectKey)
		}
		if err := ix.retriever.Upsert(ctx, points); err != nil {
			return err
		}
	}
	return nil
}

// chunkPoint builds the index point for one chunk. The payload always
// carries metadata.group_id so retrieval-side access filters hold.
func chunkPoint(ch models.Chunk, dense []float32, sparse ai.SparseVector, objectKey string) *qdrant.PointStruct {
	metadata := map[string]any{
		"group_id":    ch.GroupID,
		"filename":    ch.Filename,
		"page_number": ch.Page,
	}
	if ch.Metadata.DocID != "" {
		metadata["doc_id"] = ch.Metadata.DocID
	}
	if ch.Metadata.Section != "" {
		metadata["section"] = ch.Metadata.Section
	}
	if ch.Metadata.VehicleModel != "" {
		metadata["vehicle_model"] = ch.Metadata.VehicleModel
	}
	if ch.Metadata.ChassisNo != "" {
		metadata["chassis_no"] = ch.Metadata.ChassisNo
	}
	if ch.Metadata.TestDate != "" {
		metadata["test_date"] = ch.Metadata.TestDate
	}
	if ch.Metadata.TestType != "" {
		metadata["test_type"] = ch.Metadata.TestType
	}
	if ch.Metadata.RegistrationNo != "" {
		metadata["registration_no"] = ch.Metadata.RegistrationNo
	}
	if ch.Metadata.EngineNo != "" {
		metadata["engine_no"] = ch.Metadata.EngineNo
	}
	if ch.Metadata.GrossWeight != "" {
		metadata["gross_weight"] = ch.Metadata.GrossWeight
	}
	if ch.Metadata.Power != "" {
		metadata["power"] = ch.Metadata.Power
	}
	if len(ch.Metadata.ComplianceStatus) > 0 {
		metadata["compliance_status"] = toAnySlice(ch.Metadata.ComplianceStatus)
	}
	if len(ch.Metadata.Standards) > 0 {
		metadata["standards"] = toAnySlice(ch.Metadata.Standards)
	}
	if len(ch.Metadata.Keywords) > 0 {
		metadata["keywords"] = toAnySlice(ch.Metadata.Keywords)
	}

	payload := qdrant.NewValueMap(map[string]any{
		"text":        ch.Text,
		"chunk_type":  ch.Type,
		"method":      ch.Method,
		"document_id": ch.DocumentID,
		"file_path":   objectKey,
		"metadata":    metadata,
	})

	return &qdrant.PointStruct{
		Id: qdrant.NewID(ch.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			denseVectorName:  qdrant.NewVector(dense...),
			sparseVectorName: qdrant.NewVectorSparse(sparse.Indices, sparse.Values),
		}),
		Payload: payload,
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
