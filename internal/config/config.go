package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	JWTSecret   string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Upload limits
	MaxFileSize       int64
	AllowedExtensions []string

	// Chunking
	ChunkSizeWords   int
	ChunkOverlap     int
	MinOCRTextLength int

	// Redis (session cache + broker backing)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SessionTTL    int // seconds

	// Qdrant vector index
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string
	VectorDimensions int

	// ClickHouse event store
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string

	// Object store (S3-compatible)
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	PresignTTL       int // seconds

	// Embeddings + vision (Ollama-compatible endpoints)
	EmbeddingBaseURL string
	EmbeddingModel   string
	VisionModel      string
	CaptionModel     string
	VisionTimeout    int // seconds

	// Generator defaults (runtime-mutable through the admin surface)
	DefaultProvider string // "local-chat" or "cloud-chat"
	LocalModel      string
	LocalBaseURL    string
	CloudModel      string
	CloudAPIKey     string
	CloudBaseURL    string
	LLMTimeout      int // seconds

	// Reranker
	RerankerURL     string
	RerankerEnabled bool

	// Worker pool for blocking calls on the request path
	WorkerPoolSize int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint string
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/engdocs_qa"),
		DBName:      getEnv("DB_NAME", "engdocs_qa"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedExtensions: strings.Split(getEnv("ALLOWED_FILE_EXTENSIONS", "pdf,pptx,ppt"), ","),

		ChunkSizeWords:   getEnvInt("CHUNK_SIZE_WORDS", 300),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP_WORDS", 50),
		MinOCRTextLength: getEnvInt("MIN_OCR_TEXT_LENGTH", 50),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SessionTTL:    getEnvInt("SESSION_TTL", 3600),

		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "engineering_docs"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DB", "observability"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "http://localhost:9002"),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "engdocs"),
		PresignTTL:       getEnvInt("PRESIGN_TTL", 3600),

		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		VisionModel:      getEnv("VISION_MODEL", "llava:13b"),
		CaptionModel:     getEnv("CAPTION_MODEL", "llava:13b"),
		VisionTimeout:    getEnvInt("VISION_TIMEOUT", 600),

		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "local-chat"),
		LocalModel:      getEnv("LOCAL_LLM_MODEL", "llama3.1:8b"),
		LocalBaseURL:    getEnv("LOCAL_LLM_BASE_URL", "http://localhost:11434"),
		CloudModel:      getEnv("CLOUD_LLM_MODEL", "gpt-4o-mini"),
		CloudAPIKey:     getEnv("CLOUD_LLM_API_KEY", ""),
		CloudBaseURL:    getEnv("CLOUD_LLM_BASE_URL", ""),
		LLMTimeout:      getEnvInt("LLM_TIMEOUT", 180),

		RerankerURL:     getEnv("RERANKER_URL", ""),
		RerankerEnabled: getEnvBool("RERANKER_ENABLED", false),

		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("SERVICE_NAME", "engdocs-qa"),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
