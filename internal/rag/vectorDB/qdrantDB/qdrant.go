package qdrantDB

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/rag/vectorDB"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingDimensionality)
var collectionName = config.ChunkCollection

const metadataPrefix = "meta_"

// Store implements vectorDB.Index on a qdrant collection.
type Store struct {
	client *qdrant.Client
}

// GetQdrantStore returns the process-wide store, or nil when qdrant is
// unreachable so the caller can fall back to the in-memory index.
func GetQdrantStore(ctx context.Context) *Store {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &Store{client: qdrantInstance}
}

func newClient() *qdrant.Client {
	host := config.GetEnv("QDRANT_HOST", config.QdrantHost)
	port, err := strconv.Atoi(config.GetEnv("QDRANT_PORT", strconv.Itoa(config.QdrantGrpcPort)))
	if err != nil {
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	if err := createCollection(context.Background(), client, collectionName); err != nil {
		logger.Error("could not create collection: ", "collectionName", collectionName, "error:", err)
		return nil
	}
	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

// Replace deletes every point belonging to the document and upserts the new
// records in one synchronous pass. Point ids derive from chunk ids, so a
// re-ingest of an unchanged document lands on the same points either way.
func (db *Store) Replace(ctx context.Context, documentId string, records []docModel.EmbeddingRecord) error {
	if err := db.DeleteDocument(ctx, documentId); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		payload := map[string]any{
			"content":     rec.Text,
			"chunk_id":    rec.ChunkId,
			"document_id": rec.DocumentId,
			"chunk_index": int64(rec.ChunkIndex),
		}
		for k, v := range rec.Metadata {
			payload[metadataPrefix+k] = v
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointId(rec.ChunkId)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (db *Store) Query(ctx context.Context, vector []float32, limit int) ([]vectorDB.ScoredRecord, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	result, err := db.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	scored := make([]vectorDB.ScoredRecord, 0, len(result))
	for _, hit := range result {
		rec := docModel.EmbeddingRecord{
			ChunkId:    hit.Payload["chunk_id"].GetStringValue(),
			DocumentId: hit.Payload["document_id"].GetStringValue(),
			ChunkIndex: int(hit.Payload["chunk_index"].GetIntegerValue()),
			Text:       hit.Payload["content"].GetStringValue(),
		}
		for k, v := range hit.Payload {
			if strings.HasPrefix(k, metadataPrefix) {
				if rec.Metadata == nil {
					rec.Metadata = make(map[string]string)
				}
				rec.Metadata[strings.TrimPrefix(k, metadataPrefix)] = v.GetStringValue()
			}
		}
		scored = append(scored, vectorDB.ScoredRecord{Record: rec, Score: hit.Score})
	}
	return scored, nil
}

func (db *Store) DeleteDocument(ctx context.Context, documentId string) error {
	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentId),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	return err
}

// pointId maps a chunk id onto qdrant's UUID id space deterministically.
func pointId(chunkId string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkId)).String()
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
