package engine

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/akolanti/DigestAPI/internal/source"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

// ErrEmptyInput is a permanent input error: nothing to aggregate.
var ErrEmptyInput = errors.New("no document content to process")

type SummaryResult struct {
	Text      string `json:"text"`
	Cached    bool   `json:"cached"`
	Degraded  bool   `json:"degraded,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Service is the public contract; the worker never sees the pipeline parts.
type Service interface {
	Summarize(ctx context.Context, docs []docModel.Document, forceRefresh bool) (SummaryResult, error)
	Digest(ctx context.Context, docs []docModel.Document, forceRefresh bool) (SummaryResult, error)
}

type service struct {
	gateway  provider.Gateway
	tokens   *token.Manager
	splitter *chunker.Splitter
	mapper   *mapreduce.Mapper
	reducer  *mapreduce.Reducer
	results  *cache.Cache
	logger   *logger_i.Logger
}

// NewService wires the aggregation pipeline. Tests swap the gateway and the
// cache KV for fakes without touching the pipeline itself.
func NewService(gateway provider.Gateway, kv cache.KV) Service {
	tokens := token.DefaultManager()
	splitter := chunker.NewSplitter(tokens, config.ChunkOverlapRatio)
	return &service{
		gateway:  gateway,
		tokens:   tokens,
		splitter: splitter,
		mapper:   mapreduce.NewMapper(gateway, tokens, config.MaxParallelMapCalls, config.StrictMapMode),
		reducer:  mapreduce.NewReducer(gateway, tokens, splitter, config.MaxReduceRounds),
		results:  cache.New(kv, config.ResultCacheTTL),
		logger:   logger_i.NewLogger("Engine"),
	}
}

func (s *service) Summarize(ctx context.Context, docs []docModel.Document, forceRefresh bool) (SummaryResult, error) {
	return s.run(ctx, docs, "summarize", prompts.MapSummary, prompts.ReduceSummary, forceRefresh)
}

// Digest produces one cross-document summary focused on shared themes and
// action items. Same pipeline, different reduce prompt, separate keyspace.
func (s *service) Digest(ctx context.Context, docs []docModel.Document, forceRefresh bool) (SummaryResult, error) {
	return s.run(ctx, docs, "digest", prompts.MapSummary, prompts.Digest, forceRefresh)
}

func (s *service) run(ctx context.Context, docs []docModel.Document, operation string, mapTmpl prompts.Template, reduceTmpl prompts.Template, forceRefresh bool) (SummaryResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(operation, time.Since(start)) }()

	if !hasContent(docs) {
		return SummaryResult{}, ErrEmptyInput
	}

	key := cache.Fingerprint(docs, cache.KeyParams{
		Operation: operation,
		PromptKey: mapTmpl.Key() + "+" + reduceTmpl.Key(),
		Provider:  s.gateway.Name(),
		Budget:    s.tokens.Budget(),
	})

	stored, cached, err := s.results.GetOrCompute(ctx, key, forceRefresh, func(computeCtx context.Context) (string, error) {
		result, computeErr := s.aggregate(computeCtx, docs, mapTmpl, reduceTmpl)
		if computeErr != nil {
			return "", computeErr
		}
		encoded, computeErr := json.Marshal(result)
		return string(encoded), computeErr
	})
	if err != nil {
		return SummaryResult{}, err
	}

	var result SummaryResult
	if err := json.Unmarshal([]byte(stored), &result); err != nil {
		// corrupt entry: recompute through the bypass path rather than fail
		s.logger.Warn("corrupt cache entry, recomputing", "key", key)
		stored, _, err = s.results.GetOrCompute(ctx, key, true, func(computeCtx context.Context) (string, error) {
			r, computeErr := s.aggregate(computeCtx, docs, mapTmpl, reduceTmpl)
			if computeErr != nil {
				return "", computeErr
			}
			encoded, computeErr := json.Marshal(r)
			return string(encoded), computeErr
		})
		if err != nil {
			return SummaryResult{}, err
		}
		if err := json.Unmarshal([]byte(stored), &result); err != nil {
			return SummaryResult{}, err
		}
		return result, nil
	}
	result.Cached = cached
	return result, nil
}

func (s *service) aggregate(ctx context.Context, docs []docModel.Document, mapTmpl prompts.Template, reduceTmpl prompts.Template) (SummaryResult, error) {
	var chunks []docModel.Chunk
	for _, doc := range docs {
		doc.Text = source.CleanEmailBody(doc.Text)
		split := s.splitter.Split(doc, config.MaxTokensPerChunk)
		for _, c := range split {
			if c.ForcedSplit {
				metrics.CaptureForcedSplit()
			}
		}
		chunks = append(chunks, split...)
	}
	if len(chunks) == 0 {
		return SummaryResult{}, ErrEmptyInput
	}

	partials, degraded, err := s.mapper.Map(ctx, chunks, mapTmpl, nil)
	if err != nil {
		return SummaryResult{}, err
	}

	final, err := s.reducer.Reduce(ctx, partials, s.tokens.Budget(), reduceTmpl, nil)
	if err != nil {
		return SummaryResult{}, err
	}

	return SummaryResult{
		Text:      final.Text,
		Degraded:  degraded,
		Truncated: final.Truncated,
	}, nil
}

func hasContent(docs []docModel.Document) bool {
	for _, doc := range docs {
		if len(doc.Text) > 0 {
			return true
		}
	}
	return false
}
