package rag

import (
	"context"
	"errors"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/mapreduce"
	"github.com/akolanti/DigestAPI/internal/engine/prompts"
	"github.com/akolanti/DigestAPI/internal/engine/token"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

// NoContentAnswer is the explicit reply when retrieval comes back empty.
// Explicit rather than an error: "we found nothing relevant" is a valid
// outcome, not a failure.
const NoContentAnswer = "No relevant content was found to answer this question."

type Answer struct {
	Text          string   `json:"text"`
	CitedChunkIds []string `json:"cited_chunk_ids,omitempty"`
	NoContent     bool     `json:"no_content,omitempty"`
	Cached        bool     `json:"cached"`
	Degraded      bool     `json:"degraded,omitempty"`
	Truncated     bool     `json:"truncated,omitempty"`
}

// Orchestrator answers a question over retrieved chunks: relevance
// extraction per chunk, then one synthesis pass, both under the token
// budget.
type Orchestrator struct {
	retriever *Retriever
	mapper    *mapreduce.Mapper
	reducer   *mapreduce.Reducer
	tokens    *token.Manager
	logger    *logger_i.Logger
}

func NewOrchestrator(retriever *Retriever, mapper *mapreduce.Mapper, reducer *mapreduce.Reducer, tokens *token.Manager) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		mapper:    mapper,
		reducer:   reducer,
		tokens:    tokens,
		logger:    logger_i.NewLogger("Orchestrator"),
	}
}

func (o *Orchestrator) Answer(ctx context.Context, question string, topK int) (Answer, error) {
	hits, err := o.retriever.Query(ctx, question, topK, config.ScoreThreshold)
	if err != nil {
		return Answer{}, err
	}
	if len(hits) == 0 {
		return Answer{Text: NoContentAnswer, NoContent: true}, nil
	}

	chunks := o.pack(hits)
	vars := map[string]string{"question": question}

	partials, degraded, err := o.mapper.Map(ctx, chunks, prompts.RAGMap, vars)
	if err != nil {
		return Answer{}, err
	}

	final, err := o.reducer.Reduce(ctx, partials, o.tokens.Budget(), prompts.RAGReduce, vars)
	if err != nil {
		if errors.Is(err, mapreduce.ErrNothingToReduce) {
			return Answer{Text: NoContentAnswer, NoContent: true, Degraded: degraded}, nil
		}
		return Answer{}, err
	}

	return Answer{
		Text:          final.Text,
		CitedChunkIds: dedupeIds(final.SourceChunkIds),
		Degraded:      degraded,
		Truncated:     final.Truncated,
	}, nil
}

// pack keeps the best-scoring hits that fit the context budget, converted
// back to chunks for the map stage. The top hit is always kept even if it
// alone blows the budget; the mapper's chunk path can cope with one.
func (o *Orchestrator) pack(hits []docModel.RetrievalHit) []docModel.Chunk {
	budget := o.tokens.Budget() - config.CompletionReserved
	chunks := make([]docModel.Chunk, 0, len(hits))
	used := 0
	for i, hit := range hits {
		cost := o.tokens.Estimate(hit.Text)
		if i > 0 && used+cost > budget {
			o.logger.Debug("context budget reached, dropping lower-scored hits", "kept", len(chunks), "dropped", len(hits)-len(chunks))
			break
		}
		chunks = append(chunks, docModel.Chunk{
			DocumentId: hit.DocumentId,
			Index:      hit.ChunkIndex,
			Text:       hit.Text,
			TokenCount: cost,
		})
		used += cost
	}
	return chunks
}

func dedupeIds(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
