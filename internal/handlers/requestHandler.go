package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/DigestAPI/internal/adapter"
	"github.com/akolanti/DigestAPI/internal/adapter/utils"
	"github.com/akolanti/DigestAPI/internal/api"
	"github.com/akolanti/DigestAPI/internal/config"
	"github.com/akolanti/DigestAPI/internal/domain/docModel"
	"github.com/akolanti/DigestAPI/internal/domain/jobModel"
	"github.com/akolanti/DigestAPI/internal/source"
	"github.com/akolanti/DigestAPI/pkg/logger_i"
)

var logRH *logger_i.Logger

// carries everything a queued job needs; handler-local so the job package
// never sees http types
type newJobData struct {
	id           string
	traceId      string
	jobType      jobModel.JobType
	documentIds  []string
	question     string
	topK         int
	forceRefresh bool
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// SummarizeHandler godoc
// @Summary      Start a summarization job
// @Description  Accepts document ids, queues a background map/reduce summarization job, and returns a job ID to track status.
// @Tags         Summarization
// @Accept       json
// @Produce      json
// @Param        request  body      api.SummarizeRequest  true  "Document ids and force_refresh flag"
// @Success      202      {object}  api.InitJobResponse   "Job successfully created"
// @Failure      400      {object}  api.JobResponse       "Invalid request data or unknown document id"
// @Router       /summarize [post]
func SummarizeHandler(w http.ResponseWriter, request *http.Request) {
	handleSummarizeRequest(w, request, jobModel.JobTypeSummarize)
}

// DigestHandler godoc
// @Summary      Start a digest job
// @Description  Accepts document ids and queues a cross-document digest focused on themes and action items.
// @Tags         Summarization
// @Accept       json
// @Produce      json
// @Param        request  body      api.SummarizeRequest  true  "Document ids and force_refresh flag"
// @Success      202      {object}  api.InitJobResponse   "Job successfully created"
// @Failure      400      {object}  api.JobResponse       "Invalid request data or unknown document id"
// @Router       /digest [post]
func DigestHandler(w http.ResponseWriter, request *http.Request) {
	handleSummarizeRequest(w, request, jobModel.JobTypeDigest)
}

func handleSummarizeRequest(w http.ResponseWriter, request *http.Request, jobType jobModel.JobType) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.SummarizeRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateSummarizeRequest(request.Context(), requestData) {
		logRH.Warn("Bad Summarize Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	queueJob(w, request, newJobData{
		jobType:      jobType,
		documentIds:  requestData.DocumentIds,
		forceRefresh: requestData.ForceRefresh,
	})
}

// RAGQueryHandler godoc
// @Summary      Ask a question over the indexed documents
// @Description  Queues a retrieval-augmented answer job for the question and returns a job ID to track status.
// @Tags         RAG
// @Accept       json
// @Produce      json
// @Param        request  body      api.RAGQueryRequest  true  "Question, optional top_k and force_refresh"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data"
// @Router       /rag/query [post]
func RAGQueryHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.RAGQueryRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateQueryRequest(requestData) {
		logRH.Warn("Bad Query Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	queueJob(w, request, newJobData{
		jobType:      jobModel.JobTypeRAGQuery,
		question:     requestData.Question,
		topK:         requestData.TopK,
		forceRefresh: requestData.ForceRefresh,
	})
}

// RAGIngestHandler godoc
// @Summary      Index stored documents for retrieval
// @Description  Queues embedding and indexing of already stored documents into the vector collection.
// @Tags         RAG
// @Accept       json
// @Produce      json
// @Param        request  body      api.RAGIngestRequest  true  "Document ids to index"
// @Success      202      {object}  api.InitJobResponse   "Job successfully created"
// @Failure      400      {object}  api.JobResponse       "Invalid request data or unknown document id"
// @Router       /rag/ingest [post]
func RAGIngestHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.RAGIngestRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateIngestRequest(request.Context(), requestData) {
		logRH.Warn("Bad Ingest Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	queueJob(w, request, newJobData{
		jobType:     jobModel.JobTypeRAGIngest,
		documentIds: requestData.DocumentIds,
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		//use chi get the url id
		idString := utils.GetChiURLParam(r, "id")
		result, isFound := validateId(idString, r.Context().Value(config.TRACE_ID_KEY).(string))

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		if !isFound {
			WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
	}
}

// CreateDocumentHandler godoc
// @Summary      Store a plain-text document
// @Description  Stores a document body with optional sender/subject metadata and returns its id for later summarize or ingest calls.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.CreateDocumentRequest  true  "Document text and metadata"
// @Success      201      {object}  api.DocumentResponse       "Document stored"
// @Failure      400      {object}  api.JobResponse            "Missing text"
// @Router       /documents [post]
func CreateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.CreateDocumentRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.Text == "" {
		logRH.Warn("Bad Document Request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "text is required")
		return
	}

	id := requestData.Id
	if id == "" {
		id = utils.GetNewUUID()
	}
	doc := docModel.Document{
		Id:   id,
		Text: requestData.Text,
		Metadata: docModel.Metadata{
			Sender:    requestData.Sender,
			Subject:   requestData.Subject,
			Timestamp: time.Now(),
		},
	}
	if err := SaveDocument(r.Context(), doc); err != nil {
		logRH.Error("Couldn't save document", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Storage error")
		return
	}
	writeJsonResponse(w, http.StatusCreated, api.DocumentResponse{Id: id})
}

// UploadDocumentHandler handles the uploading of PDF, DOCX, TXT or RTF files.
// @Summary      Upload a document file
// @Description  Receives a file via multipart/form-data, extracts its text, stores it as a document, and queues an indexing job.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX, TXT or RTF file to upload"
// @Success      202  {object}  api.UploadResponse "Accepted - returns document and job ids"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields, bad type or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /documents/upload [post]
func UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory :", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	if !source.SupportedExtension(fileMetadata.Filename) {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported file type")
		return
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		destinationFileWriter.Close()
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}
	destinationFileWriter.Close()
	defer func() {
		if err := os.Remove(tempFilePath); err != nil {
			logRH.Error("Error removing temp file", "error", err)
		}
	}()

	text, err := source.ExtractFile(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not extract document text")
		return
	}

	documentId := utils.GetNewUUID()
	doc := docModel.Document{
		Id:   documentId,
		Text: text,
		Metadata: docModel.Metadata{
			Subject:   docName,
			SourceId:  fileMetadata.Filename,
			Timestamp: time.Now(),
		},
	}
	if err := SaveDocument(r.Context(), doc); err != nil {
		logRH.Error("Couldn't save document", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}

	jobId := utils.GetNewUUID()
	CreateNewJob(newJobData{
		id:          jobId,
		traceId:     r.Context().Value(config.TRACE_ID_KEY).(string),
		jobType:     jobModel.JobTypeRAGIngest,
		documentIds: []string{documentId},
	})
	writeJsonResponse(w, http.StatusAccepted, api.UploadResponse{
		JobId:      jobId,
		DocumentId: documentId,
		StatusURL:  fmt.Sprintf("status/%s", jobId),
	})
}

func queueJob(w http.ResponseWriter, request *http.Request, data newJobData) {
	data.id = utils.GetNewUUID()
	data.traceId = request.Context().Value(config.TRACE_ID_KEY).(string)
	CreateNewJob(data)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(data.id))
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body reader :", err)
	}
}
