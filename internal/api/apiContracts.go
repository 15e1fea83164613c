package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type SummaryResponse struct {
	Summary   string `json:"summary"`
	Cached    bool   `json:"cached"`
	Degraded  bool   `json:"degraded,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

type RAGResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
	Cached   bool     `json:"cached"`
}

type IngestResponse struct {
	IngestedChunks int `json:"ingested_chunks"`
}

type Result struct {
	Status  string           `json:"status"`
	Summary *SummaryResponse `json:"summary_response,omitempty"`
	RAG     *RAGResponse     `json:"rag_response,omitempty"`
	Ingest  *IngestResponse  `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type DocumentResponse struct {
	Id string `json:"id"`
}

type UploadResponse struct {
	JobId      string `json:"job_id"`
	DocumentId string `json:"document_id"`
	StatusURL  string `json:"status_url"`
}

// requests---------------------

type SummarizeRequest struct {
	DocumentIds  []string `json:"document_ids" validate:"required"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type RAGQueryRequest struct {
	Question     string `json:"question" validate:"required"`
	TopK         int    `json:"top_k,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

type RAGIngestRequest struct {
	DocumentIds []string `json:"document_ids" validate:"required"`
}

type CreateDocumentRequest struct {
	Id      string `json:"id,omitempty"`
	Text    string `json:"text" validate:"required"`
	Sender  string `json:"sender,omitempty"`
	Subject string `json:"subject,omitempty"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}
