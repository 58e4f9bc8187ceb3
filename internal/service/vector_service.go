package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/dbutil"
	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
)

// VectorService owns the document collection: it turns invoices,
// analyses and policies into embedded documents and answers
// similarity queries over them.
type VectorService struct {
	embedder  *EmbeddingService
	documents *repo.DocumentRepo
	cfg       config.VectorConfig
}

func NewVectorService(embedder *EmbeddingService, documents *repo.DocumentRepo, cfg config.VectorConfig) *VectorService {
	return &VectorService{
		embedder:  embedder,
		documents: documents,
		cfg:       cfg,
	}
}

// StoreInvoiceAnalysis embeds the invoice text together with its
// analysis verdict so retrieval can match on either.
func (s *VectorService) StoreInvoiceAnalysis(ctx context.Context, employeeName, filename, fileHash, invoiceText string, analysis *model.InvoiceAnalysis) (string, error) {
	content := buildInvoiceEmbeddingText(invoiceText, analysis)
	embedding, err := s.embedder.Embed(ctx, content, ai.TaskRetrievalDocument)
	if err != nil {
		return "", fmt.Errorf("embed invoice: %w", err)
	}
	doc := &model.Document{
		ID:                  newDocumentID(),
		DocType:             model.DocTypeInvoiceAnalysis,
		Content:             content,
		Embedding:           embedding,
		EmployeeName:        employeeName,
		Filename:            filename,
		FileHash:            fileHash,
		Status:              analysis.Status,
		Reason:              analysis.Reason,
		TotalAmount:         analysis.TotalAmount,
		ReimbursementAmount: analysis.ReimbursementAmount,
		Currency:            analysis.Currency,
		Categories:          analysis.Categories,
		PolicyViolations:    analysis.PolicyViolations,
		Ctime:               timeutil.NowUnix(),
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return "", fmt.Errorf("store invoice analysis: %w", err)
	}
	return doc.ID, nil
}

// StorePolicy stores the policy document once per content hash. A
// re-upload of the same policy for the same employee reuses the
// stored document.
func (s *VectorService) StorePolicy(ctx context.Context, employeeName, policyText, fileHash string) (string, error) {
	existing, err := s.documents.FindByHash(ctx, fileHash, model.DocTypePolicy, employeeName)
	if err == nil {
		return existing.ID, nil
	}
	if !apperrors.IsNotFound(err) {
		return "", err
	}
	embedding, err := s.embedder.Embed(ctx, policyText, ai.TaskRetrievalDocument)
	if err != nil {
		return "", fmt.Errorf("embed policy: %w", err)
	}
	doc := &model.Document{
		ID:           policyDocumentID(employeeName, timeutil.Now()),
		DocType:      model.DocTypePolicy,
		Content:      policyText,
		Embedding:    embedding,
		EmployeeName: employeeName,
		FileHash:     fileHash,
		Ctime:        timeutil.NowUnix(),
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		// Concurrent batches may race on the same policy; fall back
		// to the row that won.
		if dbutil.IsConflict(err) {
			if existing, ferr := s.documents.FindByHash(ctx, fileHash, model.DocTypePolicy, employeeName); ferr == nil {
				return existing.ID, nil
			}
		}
		return "", fmt.Errorf("store policy: %w", err)
	}
	logutil.GetLogger(ctx).Info("stored policy document",
		zap.String("doc_id", doc.ID), zap.String("employee", employeeName))
	return doc.ID, nil
}

// FindCachedAnalysis returns a previously stored analysis for the
// same invoice bytes and employee, or ErrNotFound.
func (s *VectorService) FindCachedAnalysis(ctx context.Context, fileHash, employeeName string) (*model.Document, error) {
	return s.documents.FindByHash(ctx, fileHash, model.DocTypeInvoiceAnalysis, employeeName)
}

// SearchInvoices retrieves stored invoice analyses relevant to the
// query, constrained by the optional metadata filters.
func (s *VectorService) SearchInvoices(ctx context.Context, query string, filters *model.SearchFilters, limit int) ([]model.ScoredDocument, error) {
	embedding, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := model.DocumentFilter{DocType: model.DocTypeInvoiceAnalysis}
	if filters != nil {
		filter.EmployeeName = filters.EmployeeName
		filter.Status = filters.Status
		filter.MinAmount = filters.MinAmount
		filter.MaxAmount = filters.MaxAmount
	}
	return s.documents.Search(ctx, embedding, filter, limit, s.cfg.SearchThreshold)
}

// SearchPolicyContext retrieves the policy passages most relevant to
// the query text.
func (s *VectorService) SearchPolicyContext(ctx context.Context, query string, limit int) ([]model.ScoredDocument, error) {
	embedding, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	filter := model.DocumentFilter{DocType: model.DocTypePolicy}
	return s.documents.Search(ctx, embedding, filter, limit, s.cfg.PolicyThreshold)
}

func (s *VectorService) Stats(ctx context.Context) (*model.CollectionStats, error) {
	return s.documents.Stats(ctx)
}

func (s *VectorService) Ping(ctx context.Context) error {
	return s.documents.Ping(ctx)
}

func buildInvoiceEmbeddingText(invoiceText string, analysis *model.InvoiceAnalysis) string {
	var sb strings.Builder
	sb.WriteString("Invoice: ")
	sb.WriteString(strings.TrimSpace(invoiceText))
	sb.WriteString("\n\nAnalysis:\n")
	fmt.Fprintf(&sb, "Status: %s\n", analysis.Status)
	fmt.Fprintf(&sb, "Reason: %s\n", analysis.Reason)
	fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(analysis.Categories, ", "))
	return sb.String()
}
