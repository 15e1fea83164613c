package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/DigestAPI/internal/api"
	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/domain/jobModel"
	"github.com/akolanti/DigestAPI/internal/job"
	"github.com/akolanti/DigestAPI/internal/metrics"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})

}

func CreateNewJob(newJob newJobData) {
	log := logJH.With("traceId", newJob.traceId, "job id", newJob.id)
	log.Info("To create new job", "type", newJob.jobType)
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

// ValidateSummarizeRequest rejects a request whose document ids do not all
// resolve, so the caller gets a 400 now instead of a failed job later.
func ValidateSummarizeRequest(ctx context.Context, req api.SummarizeRequest) bool {
	if handlerInstance == nil || len(req.DocumentIds) == 0 {
		return false
	}
	return documentsExist(ctx, req.DocumentIds)
}

func ValidateIngestRequest(ctx context.Context, req api.RAGIngestRequest) bool {
	if handlerInstance == nil || len(req.DocumentIds) == 0 {
		return false
	}
	return documentsExist(ctx, req.DocumentIds)
}

func ValidateQueryRequest(req api.RAGQueryRequest) bool {
	if handlerInstance == nil {
		return false
	}
	return req.Question != ""
}

func SaveDocument(ctx context.Context, doc docModel.Document) error {
	return handlerInstance.service.DocumentStore.SaveDocument(ctx, doc)
}

func documentsExist(ctx context.Context, ids []string) bool {
	if _, err := handlerInstance.service.DocumentStore.ListDocuments(ctx, ids); err != nil {
		logJH.Warn("Unknown document id in request", "err", err)
		return false
	}
	return true
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {

	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued
	_job.JobType = newJob.jobType
	_job.CurrentStep = jobModel.JobInit
	_job.JobPayload = jobModel.JobPayload{
		DocumentIds:  newJob.documentIds,
		Question:     newJob.question,
		TopK:         newJob.topK,
		ForceRefresh: newJob.forceRefresh,
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new job")

	//we will start a new worker every 10 requests - can also be configured
	// or
	//for performance - a new worker is added for an ingestion type job
	//ingestion involves batch embedding which might take time - external system call
	//worker will be removed if it has idle time - so it should be ok
	//this also allows us to only keep 1 worker running at most times therefore cutting resource spend

	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1) //after sending a request increment counter
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeRAGIngest {
		metrics.StartDispatcherSignalCount() //metrics
		logJH.Debug("Worker count ", accurateCount)
		h.service.DispatcherChannel <- true
	}
}
