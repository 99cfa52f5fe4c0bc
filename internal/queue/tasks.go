package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/internal/storage"
	"engdocs-qa-platform/internal/store"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/services"
	"engdocs-qa-platform/utils"
)

const TaskDocumentProcess = "document:process"

// Retry policy for ingestion tasks: two retries, fixed 30 s delay.
const (
	ingestMaxRetry   = 2
	ingestRetryDelay = 30 * time.Second
)

type DocumentProcessPayload struct {
	DocumentID int64  `json:"document_id"`
	TraceID    string `json:"trace_id"`
}

// NewDocumentProcessTask builds the ingestion task for one document.
func NewDocumentProcessTask(documentID int64, traceID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentProcessPayload{DocumentID: documentID, TraceID: traceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskDocumentProcess,
		payload,
		asynq.MaxRetry(ingestMaxRetry),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// IngestRetryDelay is the asynq server retry delay function: a fixed
// pause regardless of attempt number.
func IngestRetryDelay(n int, err error, t *asynq.Task) time.Duration {
	return ingestRetryDelay
}

// IngestProcessor drives Extractor -> Chunker -> Metadata -> Indexer
// for queued documents, with status updates on the durable record.
type IngestProcessor struct {
	documents *store.DocumentStore
	objects   *storage.ObjectStore
	extractor *services.Extractor
	chunker   *services.Chunker
	indexer   *services.Indexer
	retriever *services.Retriever
	emitter   *observability.Emitter
}

func NewIngestProcessor(
	documents *store.DocumentStore,
	objects *storage.ObjectStore,
	extractor *services.Extractor,
	chunker *services.Chunker,
	indexer *services.Indexer,
	retriever *services.Retriever,
	emitter *observability.Emitter,
) *IngestProcessor {
	return &IngestProcessor{
		documents: documents,
		objects:   objects,
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		retriever: retriever,
		emitter:   emitter,
	}
}

// ProcessDocument is the asynq handler for document:process tasks.
// Returning an error triggers the broker's retry policy; non-retryable
// failures are wrapped with SkipRetry after the record is marked failed.
func (p *IngestProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	logger.Info("processing document", "document_id", payload.DocumentID, "task_id", taskID, "trace_id", payload.TraceID)

	doc, err := p.documents.Get(ctx, payload.DocumentID)
	if err != nil {
		// A vanished record is not worth retrying.
		return fmt.Errorf("loading document %d: %v: %w", payload.DocumentID, err, asynq.SkipRetry)
	}

	if err := p.documents.SetProcessing(ctx, doc.ID, taskID); err != nil {
		return err
	}

	chunkCount, err := p.process(ctx, doc, payload.TraceID)
	if err != nil {
		return p.fail(ctx, doc, payload.TraceID, err)
	}

	if err := p.documents.SetDone(ctx, doc.ID, chunkCount); err != nil {
		return err
	}
	p.emitter.LogUpload(ctx, payload.TraceID, "",
		fmt.Sprintf("document %q processed: %d chunks", doc.Name, chunkCount),
		models.EventStatusSuccess)
	logger.Info("document processed", "document_id", doc.ID, "chunks", chunkCount)
	return nil
}

func (p *IngestProcessor) process(ctx context.Context, doc *models.Document, traceID string) (int, error) {
	tmpDir, err := os.MkdirTemp("", "ingest-")
	if err != nil {
		return 0, utils.Transient("creating work directory", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath, err := p.fetchFile(ctx, doc, tmpDir)
	if err != nil {
		return 0, err
	}

	kind := documentKind(doc.Name)
	pages, err := p.extractor.Extract(ctx, localPath, kind)
	if err != nil {
		return 0, err
	}

	chunks := p.chunker.Chunk(pages, doc, kind == models.KindPPTX || kind == models.KindPPT)
	if len(chunks) == 0 {
		return 0, utils.Permanent("chunking produced zero chunks", nil)
	}

	// Document-level metadata from the leading pages; chunk-level fields
	// override it where present.
	docMeta := services.ExtractMetadata(leadingText(pages, 8000), doc.Name)
	for i := range chunks {
		chunkMeta := services.ExtractMetadata(chunks[i].Text, "")
		chunkMeta.PageNumber = chunks[i].Page
		chunks[i].Metadata = services.MergeMetadata(docMeta, chunkMeta)
	}

	// Reindex safety: drop any points left from a previous attempt so
	// retry never duplicates them.
	if err := p.retriever.DeleteByFile(ctx, doc.ObjectKey); err != nil {
		logger.Warn("pre-index cleanup failed", "document_id", doc.ID, "error", err)
	}

	if err := p.indexer.Index(ctx, chunks, doc.ObjectKey); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// fetchFile materializes the document bytes in the work directory,
// preferring the object store and falling back to a still-present local
// upload path.
func (p *IngestProcessor) fetchFile(ctx context.Context, doc *models.Document, tmpDir string) (string, error) {
	localPath := filepath.Join(tmpDir, utils.SafeFilename(doc.Name))

	if doc.ObjectKey != "" {
		if err := p.objects.GetToFile(ctx, doc.ObjectKey, localPath); err == nil {
			return localPath, nil
		} else if doc.LocalPath == "" {
			return "", err
		}
	}
	if doc.LocalPath != "" {
		data, err := os.ReadFile(doc.LocalPath)
		if err != nil {
			return "", utils.Inconsistent("local upload file missing", err)
		}
		if err := os.WriteFile(localPath, data, 0o600); err != nil {
			return "", err
		}
		return localPath, nil
	}
	return "", utils.Inconsistent("document has no file source", nil)
}

// fail marks the record failed for terminal errors and lets the broker
// retry transient ones.
func (p *IngestProcessor) fail(ctx context.Context, doc *models.Document, traceID string, err error) error {
	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	lastAttempt := retryCount >= maxRetry

	if utils.Retryable(err) && !lastAttempt {
		logger.Warn("document processing failed, will retry",
			"document_id", doc.ID, "attempt", retryCount+1, "error", err)
		return err
	}

	if markErr := p.documents.SetFailed(ctx, doc.ID, err.Error()); markErr != nil {
		logger.Error("marking document failed", "document_id", doc.ID, "error", markErr)
	}
	p.emitter.LogError(ctx, models.EventUpload, traceID,
		fmt.Sprintf("document %q processing failed", doc.Name), err)
	logger.Error("document processing failed", "document_id", doc.ID, "error", err)

	if utils.Retryable(err) {
		// Out of attempts; the error itself would have been retried.
		return err
	}
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

func documentKind(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pptx":
		return models.KindPPTX
	case "ppt":
		return models.KindPPT
	default:
		return models.KindPDF
	}
}

func leadingText(pages []models.Page, max int) string {
	var b strings.Builder
	for _, page := range pages {
		if b.Len() >= max {
			break
		}
		b.WriteString(page.Content)
		b.WriteString("\n")
	}
	text := b.String()
	if len(text) > max {
		text = text[:max]
	}
	return text
}
