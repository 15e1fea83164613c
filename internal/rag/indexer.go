package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/chunker"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/engine/token"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/internal/source"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

var ErrEmptyDocument = errors.New("document has no indexable content")

// Indexer turns a document into embedded chunks and swaps them into the
// vector index. Chunking uses the same splitter as summarization, so chunk
// ids line up across both paths.
type Indexer struct {
	gateway   provider.Gateway
	splitter  *chunker.Splitter
	index     vectorDB.Index
	batchSize int
	logger    *logger_i.Logger
}

func NewIndexer(gateway provider.Gateway, index vectorDB.Index) *Indexer {
	tokens := token.DefaultManager()
	return &Indexer{
		gateway:   gateway,
		splitter:  chunker.NewSplitter(tokens, config.ChunkOverlapRatio),
		index:     index,
		batchSize: config.EmbeddingBatchSize,
		logger:    logger_i.NewLogger("Indexer"),
	}
}

// Ingest chunks, embeds and replaces the document's records, returning how
// many chunks were indexed. The index swap happens only after every batch
// embedded successfully, so a failed provider call leaves the previously
// indexed version intact.
func (ix *Indexer) Ingest(ctx context.Context, doc docModel.Document) (int, error) {
	doc.Text = source.CleanEmailBody(doc.Text)
	chunks := ix.splitter.Split(doc, config.MaxTokensPerChunk)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.Id)
	}

	records := make([]docModel.EmbeddingRecord, 0, len(chunks))
	meta := metadataOf(doc)

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := ix.gateway.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding batch for %s: %w", doc.Id, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embedding batch for %s: got %d vectors for %d texts", doc.Id, len(vectors), len(texts))
		}

		for i, c := range batch {
			records = append(records, docModel.EmbeddingRecord{
				ChunkId:    c.ChunkId(),
				DocumentId: doc.Id,
				ChunkIndex: c.Index,
				Vector:     vectors[i],
				Text:       c.Text,
				Metadata:   meta,
			})
		}
	}

	if err := ix.index.Replace(ctx, doc.Id, records); err != nil {
		return 0, fmt.Errorf("index replace for %s: %w", doc.Id, err)
	}
	ix.logger.Info("document indexed", "documentId", doc.Id, "chunks", len(records))
	return len(records), nil
}

func metadataOf(doc docModel.Document) map[string]string {
	meta := make(map[string]string)
	if doc.Metadata.Sender != "" {
		meta["sender"] = doc.Metadata.Sender
	}
	if doc.Metadata.Subject != "" {
		meta["subject"] = doc.Metadata.Subject
	}
	if doc.Metadata.SourceId != "" {
		meta["source_id"] = doc.Metadata.SourceId
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
