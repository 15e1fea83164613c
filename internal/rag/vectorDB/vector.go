package vectorDB

import (
	"context"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
)

type ScoredRecord struct {
	Record docModel.EmbeddingRecord
	Score  float32
}

// Index is the storage contract for chunk embeddings. Replace is the only
// write path: it swaps every record for a document in one step so a query
// never observes a half-ingested document.
type Index interface {
	Replace(ctx context.Context, documentId string, records []docModel.EmbeddingRecord) error
	Query(ctx context.Context, vector []float32, limit int) ([]ScoredRecord, error)
	DeleteDocument(ctx context.Context, documentId string) error
}
