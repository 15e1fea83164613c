package memoryDB

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
)

// Store is the in-memory fallback index used when qdrant is unreachable,
// and the index the tests run against. Records are grouped by document so
// Replace swaps a whole document atomically under one lock.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]docModel.EmbeddingRecord
}

func NewStore() *Store {
	return &Store{docs: make(map[string][]docModel.EmbeddingRecord)}
}

func (s *Store) Replace(ctx context.Context, documentId string, records []docModel.EmbeddingRecord) error {
	copied := make([]docModel.EmbeddingRecord, len(records))
	copy(copied, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(copied) == 0 {
		delete(s.docs, documentId)
		return nil
	}
	s.docs[documentId] = copied
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
	s.mu.RLock()
	var scored []vectorDB.ScoredRecord
	for _, records := range s.docs {
		for _, rec := range records {
			scored = append(scored, vectorDB.ScoredRecord{
				Record: rec,
				Score:  cosineSimilarity(vector, rec.Vector),
			})
		}
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) DeleteDocument(ctx context.Context, documentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentId)
	return nil
}

func cosineSimilarity(a []float32, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
