package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"docqa/internal/docqa/pipeline"
	"docqa/internal/docqa/service"
	"docqa/internal/models"
	"docqa/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HealthChecker pings one backing dependency.
type HealthChecker func(ctx context.Context) error

// API provides handlers for the document QA service.
type API struct {
	service        *service.Service
	logger         *logger.Logger
	maxUploadBytes int64
	checks         map[string]HealthChecker
}

// NewAPI creates a new API handler. checks may be nil.
func NewAPI(svc *service.Service, log *logger.Logger, maxUploadBytes int64, checks map[string]HealthChecker) *API {
	return &API{
		service:        svc,
		logger:         log,
		maxUploadBytes: maxUploadBytes,
		checks:         checks,
	}
}

// ingestItemView is the JSON form of one entry in an upload response.
type ingestItemView struct {
	*pipeline.IngestResult
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Error    string `json:"error,omitempty"`
}

// UploadDocumentsHandler ingests every "file" part of a multipart form. The i-th
// "file_id" value names the i-th file; missing identities default to
// "<name>-<sha256 prefix>" so different content under one name never collides.
func (a *API) UploadDocumentsHandler(c *gin.Context) {
	if a.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d bytes", a.maxUploadBytes)})
			return
		}
		a.logger.WithError(err).Warn("Invalid multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}
	chunkSize, err := optionalInt(c.PostForm("chunk_size"), 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_size must be a non-negative integer"})
		return
	}
	chunkOverlap, err := optionalInt(c.PostForm("chunk_overlap"), pipeline.DefaultOverlap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_overlap must be a non-negative integer"})
		return
	}

	ids := form.Value["file_id"]
	uploads := make([]pipeline.Upload, 0, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			a.logger.WithError(err).Warn(fmt.Sprintf("Failed to read uploaded file %s", fh.Filename))
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to read file %s", fh.Filename)})
			return
		}
		id := ""
		if i < len(ids) {
			id = strings.TrimSpace(ids[i])
		}
		if id == "" {
			id = defaultFileID(fh.Filename, data)
		}
		uploads = append(uploads, pipeline.Upload{
			FileID:       id,
			FileName:     fh.Filename,
			Data:         data,
			DeclaredType: declaredType(fh),
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
		})
	}

	items := a.service.Ingest(c.Request.Context(), uploads)
	views := make([]ingestItemView, len(items))
	failed := 0
	var firstErr error
	for i, item := range items {
		views[i] = ingestItemView{IngestResult: item.Result, FileID: item.FileID, FileName: item.FileName}
		if item.Err != nil {
			views[i].Error = item.Err.Error()
			failed++
			if firstErr == nil {
				firstErr = item.Err
			}
		}
	}

	status := http.StatusOK
	switch {
	case failed == len(items):
		status = statusFor(firstErr)
	case failed > 0:
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"results": views})
}

// ListDocumentsHandler returns every ingested file record.
func (a *API) ListDocumentsHandler(c *gin.Context) {
	records, err := a.service.ListDocuments(c.Request.Context())
	if err != nil {
		a.fail(c, err, "Failed to list documents")
		return
	}
	if records == nil {
		records = []*models.FileRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": records})
}

// DeleteDocumentsHandler removes files and their chunks by identity.
func (a *API) DeleteDocumentsHandler(c *gin.Context) {
	var payload struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request must list at least one id in \"ids\""})
		return
	}

	res, err := a.service.DeleteDocuments(c.Request.Context(), payload.IDs)
	var partial *pipeline.PartialDeletionError
	if errors.As(err, &partial) {
		status := http.StatusMultiStatus
		if len(partial.Succeeded) == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"deleted":            partial.Succeeded,
			"failed":             partial.Failed,
			"orphaned_chunk_ids": partial.OrphanedChunkIDs,
			"error":              partial.Error(),
		})
		return
	}
	if err != nil {
		a.fail(c, err, "Failed to delete documents")
		return
	}
	c.JSON(http.StatusOK, res)
}

// AskHandler answers a question from the indexed documents.
func (a *API) AskHandler(c *gin.Context) {
	var payload struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(err).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if payload.TopK < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must not be negative"})
		return
	}

	ans, err := a.service.Ask(c.Request.Context(), payload.Question, payload.TopK)
	if err != nil {
		a.fail(c, err, "Failed to answer question")
		return
	}
	c.JSON(http.StatusOK, ans)
}

// ListQuestionsHandler returns the stored question-set records.
func (a *API) ListQuestionsHandler(c *gin.Context) {
	questions, err := a.service.ListQuestions(c.Request.Context())
	if err != nil {
		a.fail(c, err, "Failed to list questions")
		return
	}
	if questions == nil {
		questions = []models.QuestionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// ResetIndexHandler drops every file record and chunk.
func (a *API) ResetIndexHandler(c *gin.Context) {
	res, err := a.service.ResetIndex(c.Request.Context())
	if err != nil {
		a.fail(c, err, "Failed to reset index")
		return
	}
	c.JSON(http.StatusOK, res)
}

// HealthHandler pings every configured backend.
func (a *API) HealthHandler(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(c.Request.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// fail logs err and writes the mapped status with msg and the cause.
func (a *API) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	entry := a.logger.WithErrorInfo(models.ErrorInfo{Message: err.Error(), Type: errorType(err), StatusCode: status})
	if status >= http.StatusInternalServerError {
		entry.Error(msg)
	} else {
		entry.Warn(msg)
	}
	c.JSON(status, gin.H{"error": msg, "detail": err.Error()})
}

func statusFor(err error) int {
	var partial *pipeline.PartialIngestionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pipeline.ErrEmptyQuestion), errors.Is(err, pipeline.ErrRejectedInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.As(err, &partial):
		return http.StatusInternalServerError
	case errors.Is(err, pipeline.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrModelCall), errors.Is(err, pipeline.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return "empty_question"
	case errors.Is(err, pipeline.ErrRejectedInput):
		return "rejected_input"
	case errors.Is(err, pipeline.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, pipeline.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, pipeline.ErrModelCall):
		return "model_call"
	case errors.Is(err, pipeline.ErrEmbedding):
		return "embedding"
	default:
		return "internal"
	}
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func defaultFileID(name string, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s-%s", name, hex.EncodeToString(sum[:])[:12])
}

// declaredType returns the part's Content-Type, treating the generic octet-stream
// default of most clients as undeclared so the content gets sniffed.
func declaredType(fh *multipart.FileHeader) string {
	ct := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if strings.HasPrefix(strings.ToLower(ct), "application/octet-stream") {
		return ""
	}
	return ct
}

// optionalInt parses a non-negative form value, returning def when the field is absent.
func optionalInt(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
