package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/DigestAPI/internal/api"
	"github.com/akolanti/DigestAPI/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:  string(job.Status),
		Summary: toSummaryExternal(job),
		RAG:     toRAGExternal(job),
		Ingest:  toIngestExternal(job),
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func toSummaryExternal(job jobModel.Job) *api.SummaryResponse {
	if job.JobPayload.Summary == "" {
		return nil
	}
	return &api.SummaryResponse{
		Summary:   job.JobPayload.Summary,
		Cached:    job.JobPayload.Cached,
		Degraded:  job.JobPayload.Degraded,
		Truncated: job.JobPayload.Truncated,
	}
}

func toRAGExternal(job jobModel.Job) *api.RAGResponse {
	if job.JobPayload.Answer == "" && len(job.JobPayload.CitedChunkIds) == 0 {
		return nil
	}
	return &api.RAGResponse{
		Question: job.JobPayload.Question,
		Answer:   job.JobPayload.Answer,
		Sources:  job.JobPayload.CitedChunkIds,
		Cached:   job.JobPayload.Cached,
	}
}

func toIngestExternal(job jobModel.Job) *api.IngestResponse {
	if job.JobType != jobModel.JobTypeRAGIngest || job.Status != jobModel.JobStatusComplete {
		return nil
	}
	return &api.IngestResponse{IngestedChunks: job.JobPayload.IngestedCount}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
