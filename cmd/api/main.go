// @title           Document Digest API
// @version         1.0
// @description     This API handles asynchronous document summarization, digests and retrieval-augmented question answering.
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/data/redisStore"
	"github.com/akolanti/DigestAPI/internal/data/store"
	jobmodel "github.com/akolanti/DigestAPI/internal/domain/jobModel"
	"github.com/akolanti/DigestAPI/internal/engine"
	"github.com/akolanti/DigestAPI/internal/engine/cache"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/engine/provider/gemini"
	"github.com/akolanti/DigestAPI/internal/engine/provider/openai"
	"github.com/akolanti/DigestAPI/internal/handlers"
	"github.com/akolanti/DigestAPI/internal/job"
	"github.com/akolanti/DigestAPI/internal/rag"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/DigestAPI/internal/server"
	"github.com/akolanti/DigestAPI/internal/worker"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and stores
	jobStore, documentStore := store.SelectStores(
		store.GetRedisJobStore(serviceContext),
		store.GetRedisDocumentStore(serviceContext),
	)
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
		DocumentStore:     documentStore,
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	//result cache: redis-backed when reachable, process-local otherwise
	var resultKV cache.KV = cache.NewMemoryKV()
	if cacheStore := redisStore.GetRedisStore(serviceContext, config.RedisResultCache); cacheStore != nil {
		resultKV = cache.NewRedisKV(cacheStore)
	} else {
		logger.Error("Redis result cache offline, using in-memory cache")
	}

	//completion + embedding backend behind the shared throttle
	backend := selectProvider(serviceContext, logger)
	if backend == nil {
		logger.Error("Provider backend failed to initialize. Shutting down.")
		return
	}
	gateway := provider.NewThrottle(backend, provider.DefaultThrottleConfig())

	//vector index: qdrant when reachable, in-memory otherwise
	var index vectorDB.Index
	if qs := qdrantDB.GetQdrantStore(serviceContext); qs != nil {
		index = qs
	} else {
		logger.Error("Qdrant is offline, using the in-memory vector index")
		index = memoryDB.NewStore()
	}

	engineService := engine.NewService(gateway, resultKV)
	ragService := rag.NewService(gateway, index, resultKV)

	handlers.InitJobHandler(service)

	//init worker pool
	worker.InitServices(service, engineService, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func selectProvider(ctx context.Context, logger *logger_i.Logger) provider.Gateway {
	name := config.GetEnv("PROVIDER", config.DefaultProvider)
	switch name {
	case "openai":
		logger.Info("Using OpenAI backend", "model", config.OpenAIModelName)
		return openai.GetOpenAIClient(os.Getenv("OPENAI_API_KEY"))
	default:
		logger.Info("Using Gemini backend", "model", config.GeminiModelName)
		return gemini.GetGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"))
	}
}
