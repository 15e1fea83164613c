package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
)

type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]docModel.Document
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: make(map[string]docModel.Document)}
}

func (s *InMemoryDocumentStore) SaveDocument(_ context.Context, doc docModel.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Id] = doc
	return nil
}

func (s *InMemoryDocumentStore) GetDocument(_ context.Context, id string) (docModel.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

func (s *InMemoryDocumentStore) ListDocuments(_ context.Context, ids []string) ([]docModel.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]docModel.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.docs[id]
		if !ok {
			return nil, fmt.Errorf("document %q not found", id)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
