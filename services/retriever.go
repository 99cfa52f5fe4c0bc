package services

import (
	"context"
	"sort"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	defaultPrefetchLimit = 40
	defaultSearchLimit   = 20
	// Reciprocal rank fusion constant.
	rrfK = 60
)

// Retriever owns the vector collection. Access control lives here: the
// group filter is pushed into every query, never left to callers.
type Retriever struct {
	client     *qdrant.Client
	collection string
	vectorDim  uint64
}

func NewRetriever(client *qdrant.Client, collection string, vectorDim int) *Retriever {
	return &Retriever{client: client, collection: collection, vectorDim: uint64(vectorDim)}
}

// EnsureIndex creates the collection if absent: one named dense space
// (cosine) and one named sparse space. Idempotent.
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	exists, err := r.client.CollectionExists(ctx, r.collection)
	if err != nil {
		return utils.Transient("checking collection", err)
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     r.vectorDim,
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {},
		}),
	})
	if err != nil {
		return utils.Transient("creating collection", err)
	}
	return nil
}

// Upsert writes points and waits for them to be applied.
func (r *Retriever) Upsert(ctx context.Context, points []*qdrant.PointStruct) error {
	wait := true
	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return utils.Transient("upserting points", err)
	}
	return nil
}

// SearchDense is the legacy single-mode query, filtered on group ids.
func (r *Retriever) SearchDense(ctx context.Context, dense []float32, groupIDs []int64, limit uint64) ([]models.ScoredChunk, error) {
	if limit == 0 {
		limit = defaultSearchLimit
	}
	points, err := r.query(ctx, qdrant.NewQueryDense(dense), denseVectorName, groupIDs, limit, models.SearchFilters{})
	if err != nil {
		return nil, err
	}
	return decodePoints(points), nil
}

// SearchHybrid prefetches from the dense and sparse spaces and combines
// them by reciprocal rank fusion on the client. Both prefetch queries
// carry the mandatory group filter plus any optional metadata filters.
func (r *Retriever) SearchHybrid(ctx context.Context, dense []float32, sparse ai.SparseVector, groupIDs []int64, limit, prefetchLimit uint64, filters models.SearchFilters) ([]models.ScoredChunk, error) {
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if prefetchLimit == 0 {
		prefetchLimit = defaultPrefetchLimit
	}

	tracer := otel.Tracer("retriever")
	ctx, span := tracer.Start(ctx, "retriever.hybrid_search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("retrieval.limit", int(limit)),
		attribute.Int("retrieval.prefetch_limit", int(prefetchLimit)),
	)

	denseHits, err := r.query(ctx, qdrant.NewQueryDense(dense), denseVectorName, groupIDs, prefetchLimit, filters)
	if err != nil {
		return nil, err
	}
	sparseHits, err := r.query(ctx, qdrant.NewQuerySparse(sparse.Indices, sparse.Values), sparseVectorName, groupIDs, prefetchLimit, filters)
	if err != nil {
		return nil, err
	}

	fused := fuseRRF(denseHits, sparseHits, rrfK)
	if uint64(len(fused)) > limit {
		fused = fused[:limit]
	}
	span.SetAttributes(attribute.Int("retrieval.results", len(fused)))
	return fused, nil
}

// DeleteByFile removes all points whose payload file_path matches.
func (r *Retriever) DeleteByFile(ctx context.Context, filePath string) error {
	_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("file_path", filePath),
			},
		}),
	})
	if err != nil {
		return utils.Transient("deleting points by file", err)
	}
	return nil
}

func (r *Retriever) query(ctx context.Context, q *qdrant.Query, using string, groupIDs []int64, limit uint64, filters models.SearchFilters) ([]*qdrant.ScoredPoint, error) {
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          q,
		Using:          &using,
		Filter:         buildFilter(groupIDs, filters),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, utils.Transient("querying collection", err)
	}
	return points, nil
}

// buildFilter composes the mandatory group confinement condition with
// any optional metadata selectors.
func buildFilter(groupIDs []int64, filters models.SearchFilters) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatchInts("metadata.group_id", groupIDs...),
	}
	if filters.DocID != "" {
		must = append(must, qdrant.NewMatchKeywords("metadata.doc_id", DocIDVariants(filters.DocID)...))
	}
	if filters.VehicleModel != "" {
		must = append(must, qdrant.NewMatchText("metadata.vehicle_model", filters.VehicleModel))
	}
	if filters.ChassisNo != "" {
		must = append(must, qdrant.NewMatch("metadata.chassis_no", filters.ChassisNo))
	}
	if filters.TestType != "" {
		must = append(must, qdrant.NewMatchText("metadata.test_type", filters.TestType))
	}
	return &qdrant.Filter{Must: must}
}

// fuseRRF merges two ranked hit lists: score = sum over lists of
// 1/(k + rank) with 1-based ranks. Ties resolve to the smaller dense
// rank, then lexically by id for determinism.
func fuseRRF(denseHits, sparseHits []*qdrant.ScoredPoint, k int) []models.ScoredChunk {
	type fusion struct {
		point     *qdrant.ScoredPoint
		score     float64
		denseRank int
	}
	byID := make(map[string]*fusion)

	add := func(hits []*qdrant.ScoredPoint, isDense bool) {
		for i, hit := range hits {
			rank := i + 1
			id := pointID(hit)
			f, ok := byID[id]
			if !ok {
				f = &fusion{point: hit, denseRank: int(^uint(0) >> 1)}
				byID[id] = f
			}
			f.score += 1.0 / float64(k+rank)
			if isDense && rank < f.denseRank {
				f.denseRank = rank
			}
		}
	}
	add(denseHits, true)
	add(sparseHits, false)

	fused := make([]*fusion, 0, len(byID))
	for _, f := range byID {
		fused = append(fused, f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].denseRank != fused[j].denseRank {
			return fused[i].denseRank < fused[j].denseRank
		}
		return pointID(fused[i].point) < pointID(fused[j].point)
	})

	out := make([]models.ScoredChunk, 0, len(fused))
	for _, f := range fused {
		sc := decodePoint(f.point)
		sc.Score = f.score
		out = append(out, sc)
	}
	return out
}

func pointID(p *qdrant.ScoredPoint) string {
	if p.Id == nil {
		return ""
	}
	if uuid := p.Id.GetUuid(); uuid != "" {
		return uuid
	}
	return p.Id.String()
}

func decodePoints(points []*qdrant.ScoredPoint) []models.ScoredChunk {
	out := make([]models.ScoredChunk, 0, len(points))
	for _, p := range points {
		out = append(out, decodePoint(p))
	}
	return out
}

// decodePoint rebuilds a chunk from a stored payload. Missing fields
// decode to zero values.
func decodePoint(p *qdrant.ScoredPoint) models.ScoredChunk {
	ch := models.Chunk{ID: pointID(p)}
	payload := p.Payload

	ch.Text = payloadString(payload, "text")
	ch.Type = payloadString(payload, "chunk_type")
	ch.Method = payloadString(payload, "method")
	ch.DocumentID = payloadInt(payload, "document_id")

	if metaVal, ok := payload["metadata"]; ok {
		if meta := metaVal.GetStructValue(); meta != nil {
			fields := meta.GetFields()
			ch.GroupID = payloadInt(fields, "group_id")
			ch.Filename = payloadString(fields, "filename")
			ch.Page = int(payloadInt(fields, "page_number"))
			ch.Metadata = models.ChunkMetadata{
				DocID:            payloadString(fields, "doc_id"),
				Section:          payloadString(fields, "section"),
				VehicleModel:     payloadString(fields, "vehicle_model"),
				ChassisNo:        payloadString(fields, "chassis_no"),
				TestDate:         payloadString(fields, "test_date"),
				TestType:         payloadString(fields, "test_type"),
				RegistrationNo:   payloadString(fields, "registration_no"),
				EngineNo:         payloadString(fields, "engine_no"),
				GrossWeight:      payloadString(fields, "gross_weight"),
				Power:            payloadString(fields, "power"),
				ComplianceStatus: payloadStrings(fields, "compliance_status"),
				Standards:        payloadStrings(fields, "standards"),
				Keywords:         payloadStrings(fields, "keywords"),
				PageNumber:       int(payloadInt(fields, "page_number")),
			}
		}
	}
	return models.ScoredChunk{Chunk: ch, Score: float64(p.Score)}
}

func payloadString(m map[string]*qdrant.Value, key string) string {
	if v, ok := m[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(m map[string]*qdrant.Value, key string) int64 {
	if v, ok := m[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

func payloadStrings(m map[string]*qdrant.Value, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
