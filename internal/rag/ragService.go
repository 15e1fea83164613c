package rag

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/cache"
	"github.com/akolanti/DigestAPI/internal/engine/chunker"
	"github.com/akolanti/DigestAPI/internal/engine/mapreduce"
	"github.com/akolanti/DigestAPI/internal/engine/prompts"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/engine/token"
	"github.com/akolanti/DigestAPI/internal/metrics"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

// Service is the public contract; the worker calls this and never touches
// the index, the retriever or the provider directly. The private struct
// holds the state, the constructor links the two so tests can swap any
// dependency for a mock.
type Service interface {
	Ingest(ctx context.Context, docs []docModel.Document) (int, error)
	Answer(ctx context.Context, question string, topK int, forceRefresh bool) (Answer, error)
}

type service struct {
	gateway      provider.Gateway
	indexer      *Indexer
	orchestrator *Orchestrator
	tokens       *token.Manager
	results      *cache.Cache
	logger       *logger_i.Logger
}

// NewService constructor
func NewService(gateway provider.Gateway, index vectorDB.Index, kv cache.KV) Service {
	tokens := token.DefaultManager()
	splitter := chunker.NewSplitter(tokens, config.ChunkOverlapRatio)
	retriever := NewRetriever(gateway, index)
	mapper := mapreduce.NewMapper(gateway, tokens, config.MaxParallelMapCalls, config.StrictMapMode)
	reducer := mapreduce.NewReducer(gateway, tokens, splitter, config.MaxReduceRounds)
	return &service{
		gateway:      gateway,
		indexer:      NewIndexer(gateway, index),
		orchestrator: NewOrchestrator(retriever, mapper, reducer, tokens),
		tokens:       tokens,
		results:      cache.New(kv, config.ResultCacheTTL),
		logger:       logger_i.NewLogger("RAG Service :"),
	}
}

func (s *service) Ingest(ctx context.Context, docs []docModel.Document) (int, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("rag_ingest", time.Since(start)) }()

	total := 0
	for _, doc := range docs {
		count, err := s.indexer.Ingest(ctx, doc)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

// Answer caches by question + retrieval parameters. Entries live for the
// result TTL, so an answer can lag a re-ingest by at most that window;
// forceRefresh cuts past it.
func (s *service) Answer(ctx context.Context, question string, topK int, forceRefresh bool) (Answer, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("rag_query", time.Since(start)) }()

	if topK <= 0 {
		topK = config.DefaultTopK
	}

	key := cache.Fingerprint(nil, cache.KeyParams{
		Operation: "rag-query",
		PromptKey: prompts.RAGMap.Key() + "+" + prompts.RAGReduce.Key(),
		Provider:  s.gateway.Name(),
		Budget:    s.tokens.Budget(),
		Extra: map[string]string{
			"question": strings.TrimSpace(question),
			"top_k":    strconv.Itoa(topK),
		},
	})

	stored, cached, err := s.results.GetOrCompute(ctx, key, forceRefresh, func(computeCtx context.Context) (string, error) {
		answer, computeErr := s.orchestrator.Answer(computeCtx, question, topK)
		if computeErr != nil {
			return "", computeErr
		}
		encoded, computeErr := json.Marshal(answer)
		return string(encoded), computeErr
	})
	if err != nil {
		return Answer{}, err
	}

	var answer Answer
	if err := json.Unmarshal([]byte(stored), &answer); err != nil {
		return Answer{}, err
	}
	answer.Cached = cached
	return answer, nil
}
