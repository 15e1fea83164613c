package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	jobmodel "github.com/akolanti/DigestAPI/internal/domain/jobModel"
	"github.com/akolanti/DigestAPI/internal/engine"
	"github.com/akolanti/DigestAPI/internal/engine/provider"
	"github.com/akolanti/DigestAPI/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.JobTimeout)
	defer cancel()
	log := logger.With("traceId", job.TraceId)
	log.Debug("Processing job:", "job Id:", job.Id)

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	switch job.JobType {
	case jobmodel.JobTypeSummarize:
		job = summarizeDocuments(ctx, job, false)
	case jobmodel.JobTypeDigest:
		job = summarizeDocuments(ctx, job, true)
	case jobmodel.JobTypeRAGQuery:
		job = answerQuestion(ctx, job)
	case jobmodel.JobTypeRAGIngest:
		job = ingestDocuments(ctx, job)
	default:
		job = failJob(job, errors.New("unknown job type"), false)
	}

	job.EndTime = time.Now()
	if job.Status != jobmodel.JobStatusError {
		job.CurrentStep = jobmodel.Complete
		saveJobState(ctx, job, jobmodel.JobStatusComplete)
		return
	}
	saveJobState(ctx, job, jobmodel.JobStatusError)
}

func summarizeDocuments(ctx context.Context, job jobmodel.Job, digest bool) jobmodel.Job {
	job.CurrentStep = jobmodel.FetchDocuments
	docs, err := fetchDocuments(ctx, job.JobPayload.DocumentIds)
	if err != nil {
		return failJob(job, err, false)
	}

	job.CurrentStep = jobmodel.MapStep
	var result engine.SummaryResult
	if digest {
		result, err = _engineService.Digest(ctx, docs, job.JobPayload.ForceRefresh)
	} else {
		result, err = _engineService.Summarize(ctx, docs, job.JobPayload.ForceRefresh)
	}
	if err != nil {
		return failJob(job, err, provider.Retryable(err))
	}

	job.JobPayload.Summary = result.Text
	job.JobPayload.Cached = result.Cached
	job.JobPayload.Degraded = result.Degraded
	job.JobPayload.Truncated = result.Truncated
	return job
}

func answerQuestion(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.VectorDBCall
	answer, err := _ragService.Answer(ctx, job.JobPayload.Question, job.JobPayload.TopK, job.JobPayload.ForceRefresh)
	if err != nil {
		return failJob(job, err, provider.Retryable(err))
	}

	job.JobPayload.Answer = answer.Text
	job.JobPayload.CitedChunkIds = answer.CitedChunkIds
	job.JobPayload.Cached = answer.Cached
	job.JobPayload.Degraded = answer.Degraded
	job.JobPayload.Truncated = answer.Truncated
	return job
}

func ingestDocuments(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	job.CurrentStep = jobmodel.FetchDocuments
	docs, err := fetchDocuments(ctx, job.JobPayload.DocumentIds)
	if err != nil {
		return failJob(job, err, false)
	}

	job.CurrentStep = jobmodel.IngestProcessing
	count, err := _ragService.Ingest(ctx, docs)
	if err != nil {
		return failJob(job, err, provider.Retryable(err))
	}
	job.JobPayload.IngestedCount = count
	return job
}

func fetchDocuments(ctx context.Context, ids []string) ([]docModel.Document, error) {
	if len(ids) == 0 {
		return nil, errors.New("no document ids in payload")
	}
	return _jobService.DocumentStore.ListDocuments(ctx, ids)
}

func failJob(job jobmodel.Job, err error, retryable bool) jobmodel.Job {
	logger.Error("Job failed", "jobId", job.Id, "step", job.CurrentStep, "err", err)
	job.Status = jobmodel.JobStatusError
	job.CurrentStep = jobmodel.Error
	job.Error = jobmodel.JobError{
		Code:    500,
		Message: err.Error(),
		Retry:   retryable,
	}
	return job
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()

}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update status in Redis", "err", err)
	}
}
