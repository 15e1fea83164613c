package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/data/redisStore"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

const documentKeyPrefix = "doc:"

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisDocumentStore)
	if inner == nil {
		return nil
	}
	return &RedisDocumentStore{
		store:  inner,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc docModel.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, documentKeyPrefix+doc.Id, data, config.RedisDocumentStoreTTL)
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	var doc docModel.Document
	val, err := s.store.Get(ctx, documentKeyPrefix+id)
	if s.store.IsNil(err) || err != nil {
		return doc, false
	}
	if err = json.Unmarshal([]byte(val), &doc); err != nil {
		s.logger.Error("Corrupt document entry", "id", id, "error", err)
		return doc, false
	}
	return doc, true
}

// ListDocuments resolves ids in request order. A missing id is the caller's
// input error, not an internal failure.
func (s *RedisDocumentStore) ListDocuments(ctx context.Context, ids []string) ([]docModel.Document, error) {
	docs := make([]docModel.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.GetDocument(ctx, id)
		if !ok {
			return nil, fmt.Errorf("document %q not found", id)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func TestDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("test document store"),
	}
}
