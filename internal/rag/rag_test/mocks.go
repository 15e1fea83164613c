package rag_test

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
)

// MockGateway implements provider.Gateway
type MockGateway struct {
	// Control fields to simulate different behaviors
	OnComplete   func(ctx context.Context, prompt string) (string, error)
	OnEmbed      func(ctx context.Context, texts []string) ([][]float32, error)
	OnEmbedQuery func(ctx context.Context, text string) ([]float32, error)

	CompleteCalls   int32
	EmbedCalls      int32
	EmbedQueryCalls int32
}

func (m *MockGateway) Name() string { return "mock/model" }

func (m *MockGateway) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&m.CompleteCalls, 1)
	if m.OnComplete != nil {
		return m.OnComplete(ctx, prompt)
	}
	return "mocked llm response", nil
}

func (m *MockGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&m.EmbedCalls, 1)
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, texts)
	}
	// Return dummy vectors matching input size
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (m *MockGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&m.EmbedQueryCalls, 1)
	if m.OnEmbedQuery != nil {
		return m.OnEmbedQuery(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// MockIndex implements vectorDB.Index
type MockIndex struct {
	OnReplace        func(ctx context.Context, documentId string, records []docModel.EmbeddingRecord) error
	OnQuery          func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error)
	OnDeleteDocument func(ctx context.Context, documentId string) error

	QueryCalls int32
}

func (m *MockIndex) Replace(ctx context.Context, documentId string, records []docModel.EmbeddingRecord) error {
	if m.OnReplace != nil {
		return m.OnReplace(ctx, documentId, records)
	}
	return nil
}

func (m *MockIndex) Query(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
	atomic.AddInt32(&m.QueryCalls, 1)
	if m.OnQuery != nil {
		return m.OnQuery(ctx, vector, limit)
	}
	return nil, nil
}

func (m *MockIndex) DeleteDocument(ctx context.Context, documentId string) error {
	if m.OnDeleteDocument != nil {
		return m.OnDeleteDocument(ctx, documentId)
	}
	return nil
}

func scoredRecord(chunkId string, documentId string, chunkIndex int, score float32, text string) vectorDB.ScoredRecord {
	return vectorDB.ScoredRecord{
		Record: docModel.EmbeddingRecord{
			ChunkId:    chunkId,
			DocumentId: documentId,
			ChunkIndex: chunkIndex,
			Vector:     []float32{0.1, 0.2, 0.3},
			Text:       text,
		},
		Score: score,
	}
}
