package rag

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

var ErrEmptyQuery = errors.New("empty query text")

type Retriever struct {
	gateway provider.Gateway
	index   vectorDB.Index
	logger  *logger_i.Logger
}

func NewRetriever(gateway provider.Gateway, index vectorDB.Index) *Retriever {
	return &Retriever{
		gateway: gateway,
		index:   index,
		logger:  logger_i.NewLogger("Retriever"),
	}
}

// Query embeds the text and returns at most topK hits at or above the score
// threshold, deduplicated by chunk id. Ordering is score descending with a
// deterministic tie-break on document id then chunk index.
func (r *Retriever) Query(ctx context.Context, query string, topK int, threshold float32) ([]docModel.RetrievalHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = config.DefaultTopK
	}

	vector, err := r.gateway.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, errors.New("embedding returned no vector for query")
	}

	// overfetch so dedup and thresholding still leave topK candidates
	scored, err := r.index.Query(ctx, vector, topK*2)
	if err != nil {
		return nil, err
	}

	best := make(map[string]docModel.RetrievalHit, len(scored))
	for _, s := range scored {
		if s.Score < threshold {
			continue
		}
		hit := docModel.RetrievalHit{
			ChunkId:    s.Record.ChunkId,
			DocumentId: s.Record.DocumentId,
			ChunkIndex: s.Record.ChunkIndex,
			Score:      s.Score,
			Text:       s.Record.Text,
			Metadata:   s.Record.Metadata,
		}
		if prev, ok := best[hit.ChunkId]; !ok || hit.Score > prev.Score {
			best[hit.ChunkId] = hit
		}
	}

	hits := make([]docModel.RetrievalHit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DocumentId != hits[j].DocumentId {
			return hits[i].DocumentId < hits[j].DocumentId
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	r.logger.Debug("retrieval done", "hits", len(hits), "topK", topK)
	return hits, nil
}
