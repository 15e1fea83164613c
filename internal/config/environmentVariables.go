package config

import (
	"log/slog"
	"os"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//auth
	NoAuthBypass = true
	AuthToken    = "local-dev-token"

	//token budget
	//the ceiling sits well below the provider context window so the prompt
	//scaffold and the completion itself always have headroom
	ModelTokenBudget   = 12000
	CharsPerToken      = 4 //estimator rounds up, never down
	MaxTokensPerChunk  = 1200
	ChunkOverlapRatio  = 0.15
	CompletionReserved = 1024

	//mapper / reducer
	MaxParallelMapCalls = 6
	StrictMapMode       = false
	MaxReduceRounds     = 12

	//provider gateway
	ProviderMaxParallelCalls = 8
	ProviderCallTimeout      = 45 * time.Second
	ProviderMaxAttempts      = 4
	ProviderBackoffBase      = 500 * time.Millisecond
	ProviderBackoffCap       = 15 * time.Second

	//llm + embeddings
	DefaultProvider                 = "gemini" //or "openai"
	GeminiModelName                 = "gemini-2.5-flash"
	GeminiEmbeddingModel            = "gemini-embedding-001"
	OpenAIModelName                 = "gpt-4o-mini"
	OpenAIEmbeddingModel            = "text-embedding-3-small"
	EmbeddingDimensionality   int32 = 1536
	ModelTemperature        float32 = 0
	EmbeddingBatchSize              = 100

	//retrieval
	DefaultTopK     = 5
	ScoreThreshold  = 0.5
	ChunkCollection = "doc-chunks"
	QdrantHost      = "127.0.0.1"
	QdrantGrpcPort  = 6334
	QdrantUseTLS    = false
	QdrantPoolSize  = 1

	//result cache
	ResultCacheTTL = 1 * time.Hour

	//worker pool
	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	JobTimeout                      = 120 * time.Second

	//server timeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":3000"
	BufferLimit      = 100

	//http client pooling
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""

	//redis has 16 DBs we can use
	RedisJobStore      = 0
	RedisDocumentStore = 1
	RedisResultCache   = 2

	RedisJobStoreTTL      = 24 * time.Hour
	RedisDocumentStoreTTL = 7 * 24 * time.Hour
)

// GetEnv covers the values that change per deployment (keys, hosts).
// Tunables stay in the const block above.
func GetEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
