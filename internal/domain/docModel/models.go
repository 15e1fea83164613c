package docModel

import (
	"strconv"
	"time"
)

// Document is the unit of ingestion. It is produced by the document source
// and never mutated after creation.
type Document struct {
	Id       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	Sender    string    `json:"sender,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	SourceId  string    `json:"source_id,omitempty"`
}

// Chunk is a budget-sized slice of a document. Index is 0-based and
// contiguous within the source document.
type Chunk struct {
	DocumentId          string `json:"document_id"`
	Index               int    `json:"index"`
	Text                string `json:"text"`
	TokenCount          int    `json:"token_count"`
	OverlapWithPrevious bool   `json:"overlap_with_previous"`
	ForcedSplit         bool   `json:"forced_split"`
}

// ChunkId is globally unique and stable, so re-ingesting the same document
// produces the same ids and the vector upsert replaces rather than duplicates.
func (c Chunk) ChunkId() string {
	return c.DocumentId + "#" + strconv.Itoa(c.Index)
}

// PartialResult is one mapper output or one collapsed reducer output.
// SourceChunkIds keeps document order so reduction stays deterministic.
type PartialResult struct {
	SourceChunkIds []string `json:"source_chunk_ids"`
	Text           string   `json:"text"`
	TokenCount     int      `json:"token_count"`
	Failed         bool     `json:"failed,omitempty"`
	Truncated      bool     `json:"truncated,omitempty"`
}

// EmbeddingRecord lives in the vector index, keyed by chunk.
type EmbeddingRecord struct {
	ChunkId    string            `json:"chunk_id"`
	DocumentId string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Vector     []float32         `json:"vector"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrievalHit is ephemeral, produced per query and never persisted.
type RetrievalHit struct {
	ChunkId    string            `json:"chunk_id"`
	DocumentId string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Score      float32           `json:"score"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
