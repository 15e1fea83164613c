package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/DigestAPI/internal/domain/docModel"
)

type JobStatus string
type InternalStatus string
type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	JobInit          InternalStatus = "Init"
	FetchDocuments   InternalStatus = "FetchDocuments"
	CacheCall        InternalStatus = "CacheCall"
	ChunkingStep     InternalStatus = "Chunking"
	MapStep          InternalStatus = "Map"
	ReduceStep       InternalStatus = "Reduce"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	VectorDBCall     InternalStatus = "VectorDB"
	LLMCall          InternalStatus = "LLM"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"
	Complete         InternalStatus = "Complete"

	JobTypeSummarize JobType = "Summarize"
	JobTypeDigest    JobType = "Digest"
	JobTypeRAGQuery  JobType = "RAGQuery"
	JobTypeRAGIngest JobType = "RAGIngest"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	//inputs
	DocumentIds  []string `json:"document_ids,omitempty"`
	Question     string   `json:"question,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`

	//outputs
	Summary       string   `json:"summary,omitempty"`
	Answer        string   `json:"answer,omitempty"`
	CitedChunkIds []string `json:"cited_chunk_ids,omitempty"`
	IngestedCount int      `json:"ingested_count,omitempty"`
	Cached        bool     `json:"cached"`
	Degraded      bool     `json:"degraded,omitempty"`
	Truncated     bool     `json:"truncated,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

type DocumentStore interface {
	SaveDocument(ctx context.Context, doc docModel.Document) error
	GetDocument(ctx context.Context, id string) (docModel.Document, bool)
	ListDocuments(ctx context.Context, ids []string) ([]docModel.Document, error)
}
