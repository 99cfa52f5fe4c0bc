package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/internal/session"
	"engdocs-qa-platform/internal/storage"
	"engdocs-qa-platform/internal/store"
	"engdocs-qa-platform/internal/telemetry"
	"engdocs-qa-platform/middleware"
	"engdocs-qa-platform/routes"
	"engdocs-qa-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("Failed to init tracer:", err)
	}
	defer shutdownTracer()

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

	// Connect to Redis (sessions, rate limits, broker dispatch)
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

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

	// Observability: durable events plus the live websocket feed
	hub := observability.NewHub()
	emitter := observability.NewEmitter(clickhouseConn, hub)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := emitter.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure events schema:", err)
		}
	}

	// Stores and services
	documents := store.NewDocumentStore(db)
	conversations := store.NewConversationStore(db)
	sessions := session.NewCache(redisClient, time.Duration(cfg.SessionTTL)*time.Second)
	objects := storage.NewObjectStore(s3Client, cfg.StorageBucket, time.Duration(cfg.PresignTTL)*time.Second)

	embedder := ai.NewEmbeddingClient(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	sparse := ai.NewSparseEncoder()
	generator := ai.NewGenerator(cfg)
	retriever := services.NewRetriever(qdrantClient, cfg.QdrantCollection, cfg.VectorDimensions)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := retriever.EnsureIndex(ctx); err != nil {
			log.Fatal("Failed to ensure vector collection:", err)
		}
	}

	var reranker *services.Reranker
	if cfg.RerankerEnabled && cfg.RerankerURL != "" {
		reranker = services.NewReranker(cfg.RerankerURL, "", 30*time.Second)
	}
	classifier := services.NewIntentClassifier(generator)
	agent := services.NewAgent(classifier, embedder, sparse, retriever, reranker, generator)

	// Broker client for ingestion dispatch
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.TraceMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Trace-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg)
	router.Use(rateLimiter.Middleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	routes.SetupChatRoutes(router, &routes.ChatDeps{
		Config:        cfg,
		Agent:         agent,
		Generator:     generator,
		Sessions:      sessions,
		Conversations: conversations,
		Emitter:       emitter,
	}, authMiddleware)
	routes.SetupDocumentRoutes(router, &routes.DocumentDeps{
		Config:    cfg,
		Documents: documents,
		Objects:   objects,
		Retriever: retriever,
		Queue:     queueClient,
		Emitter:   emitter,
	}, authMiddleware)
	routes.SetupAdminRoutes(router, &routes.AdminDeps{
		Generator: generator,
		Emitter:   emitter,
	}, authMiddleware)
	routes.SetupStreamRoutes(router, hub, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
