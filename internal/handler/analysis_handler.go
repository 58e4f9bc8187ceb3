package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/response"
	"github.com/claimsight/claimsight/internal/pkg/sse"
	"github.com/claimsight/claimsight/internal/service"
)

const maxEmployeeNameLen = 100

// AnalysisRunner is the slice of the analysis service the handler
// needs; tests substitute a stub.
type AnalysisRunner interface {
	AnalyzeBatch(ctx context.Context, in *service.BatchInput) (*model.InvoiceAnalysisResponse, error)
	AnalyzeBatchStream(ctx context.Context, in *service.BatchInput, emit service.EmitFunc) error
	Status(ctx context.Context) *model.AnalysisStatus
}

type AnalysisHandler struct {
	runner   AnalysisRunner
	maxBytes int64
}

func NewAnalysisHandler(runner AnalysisRunner, maxFileSizeMB int) *AnalysisHandler {
	return &AnalysisHandler{
		runner:   runner,
		maxBytes: int64(maxFileSizeMB) * 1024 * 1024,
	}
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	in, ok := h.parseBatchForm(c)
	if !ok {
		return
	}
	result, err := h.runner.AnalyzeBatch(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *AnalysisHandler) AnalyzeStream(c *gin.Context) {
	in, ok := h.parseBatchForm(c)
	if !ok {
		return
	}
	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}
	emit := chunkEmitter(writer)
	if err := h.runner.AnalyzeBatchStream(c.Request.Context(), in, emit); err != nil {
		// Headers are already out; report the failure in-band.
		_ = emit(model.AnalysisChunkError, gin.H{"error": err.Error()})
	}
}

func (h *AnalysisHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, h.runner.Status(c.Request.Context()))
}

// parseBatchForm validates the multipart upload and loads both files
// into memory. It writes the error response itself and returns ok=false.
func (h *AnalysisHandler) parseBatchForm(c *gin.Context) (*service.BatchInput, bool) {
	employeeName := strings.TrimSpace(c.PostForm("employee_name"))
	if employeeName == "" || len(employeeName) > maxEmployeeNameLen {
		response.Error(c, http.StatusBadRequest, "invalid", "employee_name is required and must be at most 100 characters")
		return nil, false
	}
	policyData, policyName, ok := h.readUpload(c, "policy_file", ".pdf")
	if !ok {
		return nil, false
	}
	zipData, _, ok := h.readUpload(c, "invoices_zip", ".zip")
	if !ok {
		return nil, false
	}
	return &service.BatchInput{
		EmployeeName:   employeeName,
		PolicyFilename: policyName,
		PolicyData:     policyData,
		ZipData:        zipData,
	}, true
}

func (h *AnalysisHandler) readUpload(c *gin.Context, field, wantExt string) ([]byte, string, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_file", field+" is required")
		return nil, "", false
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != wantExt {
		response.Error(c, http.StatusBadRequest, "invalid_file", field+" must be a "+wantExt+" file")
		return nil, "", false
	}
	if file.Size == 0 {
		response.Error(c, http.StatusBadRequest, "invalid_file", field+" is empty")
		return nil, "", false
	}
	if file.Size > h.maxBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", field+" exceeds the size limit")
		return nil, "", false
	}
	data, err := readAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_file", "failed to read "+field)
		return nil, "", false
	}
	return data, file.Filename, true
}

func readAll(file *multipart.FileHeader) ([]byte, error) {
	opened, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer opened.Close()
	return io.ReadAll(opened)
}

// chunkEmitter wraps every payload in the stream envelope.
func chunkEmitter(writer *sse.Writer) func(chunkType string, data interface{}) error {
	return func(chunkType string, data interface{}) error {
		return writer.WriteJSON(model.StreamChunk{
			Type:      chunkType,
			Data:      data,
			Timestamp: time.Now().UTC(),
		})
	}
}
