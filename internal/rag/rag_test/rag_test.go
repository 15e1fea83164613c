package rag_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/engine/cache"
	"github.com/akolanti/DigestAPI/internal/rag"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB/memoryDB"
)

func TestRetriever_OrdersByScoreAndAppliesThreshold(t *testing.T) {
	idx := &MockIndex{
		OnQuery: func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
			// deliberately unordered, one below the 0.5 threshold
			return []vectorDB.ScoredRecord{
				scoredRecord("doc-a#1", "doc-a", 1, 0.76, "second best"),
				scoredRecord("doc-b#0", "doc-b", 0, 0.40, "too weak"),
				scoredRecord("doc-a#0", "doc-a", 0, 0.81, "best match"),
			}, nil
		},
	}
	retriever := rag.NewRetriever(&MockGateway{}, idx)

	hits, err := retriever.Query(context.Background(), "what happened?", 5, 0.5)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 above threshold", len(hits))
	}
	if hits[0].ChunkId != "doc-a#0" || hits[1].ChunkId != "doc-a#1" {
		t.Errorf("wrong order: %s, %s", hits[0].ChunkId, hits[1].ChunkId)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted by descending score")
	}
}

func TestRetriever_DedupesByChunkId(t *testing.T) {
	idx := &MockIndex{
		OnQuery: func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
			return []vectorDB.ScoredRecord{
				scoredRecord("doc-a#0", "doc-a", 0, 0.70, "dup"),
				scoredRecord("doc-a#0", "doc-a", 0, 0.90, "dup"),
			}, nil
		},
	}
	retriever := rag.NewRetriever(&MockGateway{}, idx)

	hits, err := retriever.Query(context.Background(), "q", 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("duplicate chunk ids not collapsed: %d hits", len(hits))
	}
	if hits[0].Score != 0.90 {
		t.Errorf("kept score %v, want the best one", hits[0].Score)
	}
}

func TestRetriever_TieBreakIsDeterministic(t *testing.T) {
	idx := &MockIndex{
		OnQuery: func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
			return []vectorDB.ScoredRecord{
				scoredRecord("doc-b#2", "doc-b", 2, 0.8, "x"),
				scoredRecord("doc-a#5", "doc-a", 5, 0.8, "y"),
				scoredRecord("doc-a#1", "doc-a", 1, 0.8, "z"),
			}, nil
		},
	}
	retriever := rag.NewRetriever(&MockGateway{}, idx)

	hits, err := retriever.Query(context.Background(), "q", 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"doc-a#1", "doc-a#5", "doc-b#2"}
	for i, w := range want {
		if hits[i].ChunkId != w {
			t.Errorf("position %d: got %s, want %s", i, hits[i].ChunkId, w)
		}
	}
}

func TestRetriever_UsesQuerySideEmbedding(t *testing.T) {
	gw := &MockGateway{}
	retriever := rag.NewRetriever(gw, &MockIndex{})

	if _, err := retriever.Query(context.Background(), "q", 5, 0.5); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&gw.EmbedQueryCalls); n != 1 {
		t.Errorf("query embedded %d times via the query path, want 1", n)
	}
	if n := atomic.LoadInt32(&gw.EmbedCalls); n != 0 {
		t.Errorf("query went through the document-side batch embedding %d times", n)
	}
}

func TestRetriever_EmptyQuery(t *testing.T) {
	retriever := rag.NewRetriever(&MockGateway{}, &MockIndex{})
	if _, err := retriever.Query(context.Background(), "   ", 5, 0.5); err == nil {
		t.Error("whitespace-only query must be rejected")
	}
}

func TestIndexer_ReingestReplacesOldChunks(t *testing.T) {
	store := memoryDB.NewStore()
	indexer := rag.NewIndexer(&MockGateway{}, store)
	ctx := context.Background()

	long := docModel.Document{Id: "doc-1", Text: strings.Repeat("An older and much longer revision of the text. ", 200)}
	firstCount, err := indexer.Ingest(ctx, long)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if firstCount < 2 {
		t.Fatalf("long document produced %d chunks, expected several", firstCount)
	}

	short := docModel.Document{Id: "doc-1", Text: "A short new revision."}
	secondCount, err := indexer.Ingest(ctx, short)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if secondCount != 1 {
		t.Fatalf("short revision produced %d chunks, want 1", secondCount)
	}

	// only the new revision's records may remain
	scored, err := store.Query(ctx, []float32{0.1, 0.2, 0.3}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Fatalf("index holds %d records after re-ingest, want 1", len(scored))
	}
	if scored[0].Record.Text != short.Text {
		t.Errorf("stale record survived: %q", scored[0].Record.Text)
	}
}

func TestIndexer_EmptyDocumentRejected(t *testing.T) {
	indexer := rag.NewIndexer(&MockGateway{}, memoryDB.NewStore())
	if _, err := indexer.Ingest(context.Background(), docModel.Document{Id: "empty", Text: "   \n  "}); err == nil {
		t.Error("whitespace-only document must not be indexed")
	}
}

func TestService_AnswerNoRelevantContent(t *testing.T) {
	gw := &MockGateway{}
	svc := rag.NewService(gw, &MockIndex{}, cache.NewMemoryKV())

	answer, err := svc.Answer(context.Background(), "anything indexed?", 5, false)
	if err != nil {
		t.Fatalf("empty retrieval must not error: %v", err)
	}
	if !answer.NoContent {
		t.Error("expected the explicit no-content outcome")
	}
	if answer.Text != rag.NoContentAnswer {
		t.Errorf("unexpected text %q", answer.Text)
	}
	if n := atomic.LoadInt32(&gw.CompleteCalls); n != 0 {
		t.Errorf("no hits but %d completion calls were made", n)
	}
}

func TestService_AnswerCitesSourceChunks(t *testing.T) {
	idx := &MockIndex{
		OnQuery: func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
			return []vectorDB.ScoredRecord{
				scoredRecord("doc-a#0", "doc-a", 0, 0.9, "the budget was approved on Tuesday"),
				scoredRecord("doc-b#3", "doc-b", 3, 0.7, "the rollout is scheduled for Friday"),
			}, nil
		},
	}
	gw := &MockGateway{
		OnComplete: func(ctx context.Context, prompt string) (string, error) {
			return "The budget was approved and the rollout follows on Friday.", nil
		},
	}
	svc := rag.NewService(gw, idx, cache.NewMemoryKV())

	answer, err := svc.Answer(context.Background(), "when is the rollout?", 5, false)
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if answer.NoContent {
		t.Fatal("hits were returned but answer says no content")
	}
	if answer.Text == "" {
		t.Error("empty answer text")
	}
	cited := make(map[string]bool, len(answer.CitedChunkIds))
	for _, id := range answer.CitedChunkIds {
		cited[id] = true
	}
	if !cited["doc-a#0"] || !cited["doc-b#3"] {
		t.Errorf("citations incomplete: %v", answer.CitedChunkIds)
	}
}

func TestService_AnswerCachedSecondCall(t *testing.T) {
	idx := &MockIndex{
		OnQuery: func(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
			return []vectorDB.ScoredRecord{
				scoredRecord("doc-a#0", "doc-a", 0, 0.9, "relevant text"),
			}, nil
		},
	}
	svc := rag.NewService(&MockGateway{}, idx, cache.NewMemoryKV())
	ctx := context.Background()

	first, err := svc.Answer(ctx, "same question", 5, false)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first answer must not be cached")
	}
	queriesAfterFirst := atomic.LoadInt32(&idx.QueryCalls)

	second, err := svc.Answer(ctx, "same question", 5, false)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("identical question must be served from cache")
	}
	if n := atomic.LoadInt32(&idx.QueryCalls); n != queriesAfterFirst {
		t.Error("cached answer still queried the index")
	}
}

func TestService_IngestCountsAcrossDocuments(t *testing.T) {
	svc := rag.NewService(&MockGateway{}, memoryDB.NewStore(), cache.NewMemoryKV())

	count, err := svc.Ingest(context.Background(), []docModel.Document{
		{Id: "doc-1", Text: "First document body."},
		{Id: "doc-2", Text: "Second document body."},
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if count != 2 {
		t.Errorf("ingested chunk count %d, want 2", count)
	}
}
