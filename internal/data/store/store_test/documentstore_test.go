package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/DigestAPI/internal/data/redisStore"
	"github.com/akolanti/DigestAPI/internal/data/store"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newDocumentStore(t *testing.T) *store.RedisDocumentStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.TestDocumentStore(redisStore.NewTestStore(client))
}

func TestRedisDocumentStore_Roundtrip(t *testing.T) {
	docStore := newDocumentStore(t)
	ctx := context.Background()

	doc := docModel.Document{
		Id:   "doc-42",
		Text: "Budget meeting notes",
		Metadata: docModel.Metadata{
			Sender:    "finance@example.com",
			Subject:   "Q3 budget",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
	}

	if err := docStore.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	got, found := docStore.GetDocument(ctx, "doc-42")
	if !found {
		t.Fatal("Document was saved but not found")
	}
	if got.Text != doc.Text || got.Metadata.Sender != doc.Metadata.Sender {
		t.Errorf("Data mismatch! Got %+v", got)
	}
}

func TestRedisDocumentStore_ListPreservesOrder(t *testing.T) {
	docStore := newDocumentStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := docStore.SaveDocument(ctx, docModel.Document{Id: id, Text: "text " + id}); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := docStore.ListDocuments(ctx, []string{"c", "a", "b"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	want := []string{"c", "a", "b"}
	for i, w := range want {
		if docs[i].Id != w {
			t.Errorf("position %d: got %s, want %s", i, docs[i].Id, w)
		}
	}
}

func TestRedisDocumentStore_ListUnknownIdFails(t *testing.T) {
	docStore := newDocumentStore(t)
	ctx := context.Background()

	if err := docStore.SaveDocument(ctx, docModel.Document{Id: "known", Text: "x"}); err != nil {
		t.Fatal(err)
	}

	if _, err := docStore.ListDocuments(ctx, []string{"known", "unknown"}); err == nil {
		t.Error("a request naming an unknown document id must fail")
	}
}
