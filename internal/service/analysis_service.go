package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/filestore"
	"github.com/claimsight/claimsight/internal/model"
	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
	"github.com/claimsight/claimsight/internal/pdf"
	"github.com/claimsight/claimsight/internal/pkg/ziputil"
)

// AnalysisService runs the invoice reimbursement pipeline: policy
// extraction, per-invoice text extraction, LLM analysis and vector
// storage. Batches run concurrently under a bounded worker group;
// the streaming variant processes invoices one by one so the client
// sees per-stage progress.
type AnalysisService struct {
	manager *ai.Manager
	vectors *VectorService
	archive filestore.Store
	cfg     config.UploadConfig

	activeBatches  atomic.Int64
	totalBatches   atomic.Int64
	totalProcessed atomic.Int64
	totalFailed    atomic.Int64
}

func NewAnalysisService(manager *ai.Manager, vectors *VectorService, archive filestore.Store, cfg config.UploadConfig) *AnalysisService {
	return &AnalysisService{
		manager: manager,
		vectors: vectors,
		archive: archive,
		cfg:     cfg,
	}
}

// BatchInput is a validated upload: the policy PDF plus the raw ZIP
// of invoice PDFs.
type BatchInput struct {
	EmployeeName   string
	PolicyFilename string
	PolicyData     []byte
	ZipData        []byte
}

// EmitFunc receives one streaming chunk. Returning an error aborts
// the stream (the client went away).
type EmitFunc func(chunkType string, data interface{}) error

// AnalyzeBatch processes every invoice in the ZIP against the policy
// and returns the aggregate response. Individual invoice failures are
// collected as processing errors, not batch failures.
func (s *AnalysisService) AnalyzeBatch(ctx context.Context, in *BatchInput) (*model.InvoiceAnalysisResponse, error) {
	s.activeBatches.Add(1)
	defer s.activeBatches.Add(-1)
	s.totalBatches.Add(1)

	policyText, entries, err := s.prepareBatch(ctx, in)
	if err != nil {
		return nil, err
	}

	logger := logutil.GetLogger(ctx).With(
		zap.String("employee", in.EmployeeName),
		zap.Int("invoices", len(entries)))
	logger.Info("starting invoice batch")

	results := make([]*model.InvoiceAnalysisResult, len(entries))
	var mu sync.Mutex
	var procErrors []model.ProcessingError

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for i, entry := range entries {
		group.Go(func() error {
			result, err := s.processInvoice(groupCtx, in.EmployeeName, policyText, entry)
			if err != nil {
				logger.Warn("invoice processing failed",
					zap.String("filename", entry.Name), zap.Error(err))
				mu.Lock()
				procErrors = append(procErrors, model.ProcessingError{
					File:  entry.Name,
					Error: err.Error(),
				})
				mu.Unlock()
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	response := s.buildResponse(in.EmployeeName, len(entries), results, procErrors)
	s.totalProcessed.Add(int64(response.ProcessedInvoices))
	s.totalFailed.Add(int64(response.FailedInvoices))
	logger.Info("invoice batch finished",
		zap.Int("processed", response.ProcessedInvoices),
		zap.Int("failed", response.FailedInvoices))
	return response, nil
}

// AnalyzeBatchStream runs the same pipeline sequentially, emitting a
// chunk per stage so SSE clients can render live progress.
func (s *AnalysisService) AnalyzeBatchStream(ctx context.Context, in *BatchInput, emit EmitFunc) error {
	s.activeBatches.Add(1)
	defer s.activeBatches.Add(-1)
	s.totalBatches.Add(1)

	if err := emit(model.AnalysisChunkMetadata, map[string]interface{}{
		"employee_name": in.EmployeeName,
		"policy_file":   in.PolicyFilename,
	}); err != nil {
		return err
	}
	if err := emit(model.AnalysisChunkPolicy, map[string]interface{}{
		"stage": "extracting_policy",
	}); err != nil {
		return err
	}
	policyText, entries, err := s.prepareBatch(ctx, in)
	if err != nil {
		return err
	}
	if err := emit(model.AnalysisChunkPolicy, map[string]interface{}{
		"stage":          "policy_stored",
		"total_invoices": len(entries),
	}); err != nil {
		return err
	}

	logger := logutil.GetLogger(ctx).With(zap.String("employee", in.EmployeeName))
	results := make([]*model.InvoiceAnalysisResult, 0, len(entries))
	var procErrors []model.ProcessingError
	processed, failed := 0, 0
	for i, entry := range entries {
		progress := func(stage string) *model.AnalysisProgress {
			return &model.AnalysisProgress{
				CurrentInvoice:    i + 1,
				TotalInvoices:     len(entries),
				ProcessedInvoices: processed,
				FailedInvoices:    failed,
				CurrentFilename:   entry.Name,
				Stage:             stage,
			}
		}
		if err := emit(model.AnalysisChunkExtraction, progress("extracting_text")); err != nil {
			return err
		}
		result, perr := s.processInvoiceStream(ctx, in.EmployeeName, policyText, entry, emit, progress)
		if perr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("invoice processing failed",
				zap.String("filename", entry.Name), zap.Error(perr))
			failed++
			procErrors = append(procErrors, model.ProcessingError{
				File:  entry.Name,
				Error: perr.Error(),
			})
			if err := emit(model.AnalysisChunkError, map[string]interface{}{
				"file":  entry.Name,
				"error": perr.Error(),
			}); err != nil {
				return err
			}
		} else {
			processed++
			results = append(results, result)
			if err := emit(model.AnalysisChunkResult, result); err != nil {
				return err
			}
		}
		if err := emit(model.AnalysisChunkProgress, progress("invoice_done")); err != nil {
			return err
		}
	}

	s.totalProcessed.Add(int64(processed))
	s.totalFailed.Add(int64(failed))
	summary := s.buildResponse(in.EmployeeName, len(entries), results, procErrors)
	return emit(model.AnalysisChunkDone, summary)
}

// Status reports whether the pipeline is able to take work plus
// rolling counters since startup.
func (s *AnalysisService) Status(ctx context.Context) *model.AnalysisStatus {
	status := &model.AnalysisStatus{
		Ready:          true,
		ActiveBatches:  int(s.activeBatches.Load()),
		TotalBatches:   s.totalBatches.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalFailed:    s.totalFailed.Load(),
		Timestamp:      time.Now().UTC(),
	}
	if err := s.vectors.Ping(ctx); err != nil {
		status.Ready = false
		status.Message = "vector store unavailable"
	}
	return status
}

// prepareBatch validates sizes, extracts the policy text, stores the
// policy document and unpacks the invoice PDFs.
func (s *AnalysisService) prepareBatch(ctx context.Context, in *BatchInput) (string, []ziputil.PDFEntry, error) {
	maxBytes := int64(s.cfg.MaxFileSizeMB) * 1024 * 1024
	if int64(len(in.PolicyData)) > maxBytes || int64(len(in.ZipData)) > maxBytes {
		return "", nil, fmt.Errorf("%w: file exceeds %dMB", apperrors.ErrFileTooLarge, s.cfg.MaxFileSizeMB)
	}
	policyText, err := pdf.ExtractText(in.PolicyData)
	if err != nil {
		return "", nil, fmt.Errorf("policy file: %w", err)
	}
	policyHash := hashBytes(in.PolicyData)
	if _, err := s.vectors.StorePolicy(ctx, in.EmployeeName, policyText, policyHash); err != nil {
		return "", nil, err
	}
	s.archiveFile(ctx, policyHash, in.PolicyFilename, in.PolicyData)

	entries, err := ziputil.ExtractPDFs(in.ZipData)
	if err != nil {
		return "", nil, err
	}
	return policyText, entries, nil
}

func (s *AnalysisService) processInvoice(ctx context.Context, employeeName, policyText string, entry ziputil.PDFEntry) (*model.InvoiceAnalysisResult, error) {
	fileHash := hashBytes(entry.Data)
	if cached, err := s.vectors.FindCachedAnalysis(ctx, fileHash, employeeName); err == nil {
		return cachedResult(entry.Name, cached), nil
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	text, err := pdf.ExtractText(entry.Data)
	if err != nil {
		return nil, err
	}
	analysis, err := s.manager.AnalyzeInvoice(ctx, employeeName, policyText, text)
	if err != nil {
		return nil, err
	}
	if _, err := s.vectors.StoreInvoiceAnalysis(ctx, employeeName, entry.Name, fileHash, text, analysis); err != nil {
		return nil, err
	}
	s.archiveFile(ctx, fileHash, entry.Name, entry.Data)
	return analysisResult(entry.Name, analysis), nil
}

func (s *AnalysisService) processInvoiceStream(ctx context.Context, employeeName, policyText string, entry ziputil.PDFEntry, emit EmitFunc, progress func(stage string) *model.AnalysisProgress) (*model.InvoiceAnalysisResult, error) {
	fileHash := hashBytes(entry.Data)
	if cached, err := s.vectors.FindCachedAnalysis(ctx, fileHash, employeeName); err == nil {
		return cachedResult(entry.Name, cached), nil
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	text, err := pdf.ExtractText(entry.Data)
	if err != nil {
		return nil, err
	}
	if err := emit(model.AnalysisChunkAnalysis, progress("analyzing")); err != nil {
		return nil, err
	}
	analysis, err := s.manager.AnalyzeInvoice(ctx, employeeName, policyText, text)
	if err != nil {
		return nil, err
	}
	if err := emit(model.AnalysisChunkVectorStorage, progress("storing")); err != nil {
		return nil, err
	}
	if _, err := s.vectors.StoreInvoiceAnalysis(ctx, employeeName, entry.Name, fileHash, text, analysis); err != nil {
		return nil, err
	}
	s.archiveFile(ctx, fileHash, entry.Name, entry.Data)
	return analysisResult(entry.Name, analysis), nil
}

// archiveFile keeps the original bytes for audit. Failures are
// logged, never fatal.
func (s *AnalysisService) archiveFile(ctx context.Context, fileHash, filename string, data []byte) {
	if s.archive == nil {
		return
	}
	key := fileHash + "_" + ziputil.SanitizeFilename(filename)
	if err := s.archive.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		logutil.GetLogger(ctx).Warn("archive upload failed",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *AnalysisService) buildResponse(employeeName string, total int, results []*model.InvoiceAnalysisResult, procErrors []model.ProcessingError) *model.InvoiceAnalysisResponse {
	flat := make([]model.InvoiceAnalysisResult, 0, total)
	for _, r := range results {
		if r != nil {
			flat = append(flat, *r)
		}
	}
	response := &model.InvoiceAnalysisResponse{
		Success:           len(procErrors) == 0,
		EmployeeName:      employeeName,
		TotalInvoices:     total,
		ProcessedInvoices: len(flat),
		FailedInvoices:    len(procErrors),
		Results:           flat,
		ProcessingErrors:  procErrors,
		Timestamp:         time.Now().UTC(),
	}
	if response.Success {
		response.Message = fmt.Sprintf("Processed %d invoices", response.ProcessedInvoices)
	} else {
		response.Message = fmt.Sprintf("Processed %d invoices, %d failed", response.ProcessedInvoices, response.FailedInvoices)
	}
	return response
}

func (s *AnalysisService) concurrency() int {
	if s.cfg.Concurrency > 0 {
		return s.cfg.Concurrency
	}
	return 5
}

func cachedResult(filename string, doc *model.Document) *model.InvoiceAnalysisResult {
	return &model.InvoiceAnalysisResult{
		Filename:            filename,
		Status:              doc.Status,
		Reason:              doc.Reason,
		TotalAmount:         doc.TotalAmount,
		ReimbursementAmount: doc.ReimbursementAmount,
		Currency:            doc.Currency,
		Categories:          doc.Categories,
		PolicyViolations:    doc.PolicyViolations,
		FromCache:           true,
	}
}

func analysisResult(filename string, analysis *model.InvoiceAnalysis) *model.InvoiceAnalysisResult {
	return &model.InvoiceAnalysisResult{
		Filename:            filename,
		Status:              analysis.Status,
		Reason:              analysis.Reason,
		TotalAmount:         analysis.TotalAmount,
		ReimbursementAmount: analysis.ReimbursementAmount,
		Currency:            analysis.Currency,
		Categories:          analysis.Categories,
		PolicyViolations:    analysis.PolicyViolations,
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
