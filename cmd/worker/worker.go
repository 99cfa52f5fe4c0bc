package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/internal/queue"
	"engdocs-qa-platform/internal/storage"
	"engdocs-qa-platform/internal/store"
	"engdocs-qa-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Connect to the vector index
	qdrantClient, err := config.NewQdrantClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Qdrant:", err)
	}

	// Connect to the event store
	clickhouseConn, err := config.ConnectClickHouse(cfg)
	if err != nil {
		log.Fatal("Failed to connect to ClickHouse:", err)
	}
	defer clickhouseConn.Close()

	// Connect to the object store
	s3Client, err := config.NewS3Client(cfg)
	if err != nil {
		log.Fatal("Failed to init object store client:", err)
	}

	// The worker emits events but serves no live subscribers.
	emitter := observability.NewEmitter(clickhouseConn, nil)

	documents := store.NewDocumentStore(db)
	objects := storage.NewObjectStore(s3Client, cfg.StorageBucket, time.Duration(cfg.PresignTTL)*time.Second)

	vision := ai.NewVisionClient(cfg.EmbeddingBaseURL, cfg.VisionModel, cfg.CaptionModel,
		time.Duration(cfg.VisionTimeout)*time.Second)
	extractor := services.NewExtractor(vision, cfg.MinOCRTextLength)
	chunker := services.NewChunker(cfg.ChunkSizeWords, cfg.ChunkOverlap)

	embedder := ai.NewEmbeddingClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	sparse := ai.NewSparseEncoder()
	retriever := services.NewRetriever(qdrantClient, cfg.QdrantCollection, cfg.VectorDimensions)
	indexer := services.NewIndexer(embedder, sparse, retriever)

	processor := queue.NewIngestProcessor(documents, objects, extractor, chunker, indexer, retriever, emitter)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"ingest":  8,
				"default": 2,
			},
			RetryDelayFunc: queue.IngestRetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "task_type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskDocumentProcess, processor.ProcessDocument)

	log.Println("Starting ingestion worker...")
	log.Printf("   Redis: %s", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
