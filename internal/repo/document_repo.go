package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/dbutil"
	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

var documentColumns = []string{
	"id", "doc_type", "content", "employee_name", "filename", "file_hash",
	"status", "reason", "total_amount", "reimbursement_amount", "currency",
	"categories", "policy_violations", "ctime",
}

// DocumentRepo is the vector store: analysis and policy documents with
// their embeddings and filterable metadata.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Insert(ctx context.Context, doc *model.Document) error {
	categories, err := json.Marshal(doc.Categories)
	if err != nil {
		return err
	}
	violations, err := json.Marshal(doc.PolicyViolations)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (
			id, doc_type, content, embedding, employee_name, filename, file_hash,
			status, reason, total_amount, reimbursement_amount, currency,
			categories, policy_violations, ctime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.ExecContext(ctx, query,
		doc.ID,
		doc.DocType,
		doc.Content,
		pgvector.NewVector(doc.Embedding),
		doc.EmployeeName,
		doc.Filename,
		doc.FileHash,
		doc.Status,
		doc.Reason,
		doc.TotalAmount,
		doc.ReimbursementAmount,
		doc.Currency,
		categories,
		violations,
		doc.Ctime,
	)
	return err
}

// FindByHash looks up an already stored document by content hash. An
// empty employeeName matches any employee.
func (r *DocumentRepo) FindByHash(ctx context.Context, fileHash, docType, employeeName string) (*model.Document, error) {
	where := map[string]interface{}{
		"file_hash": fileHash,
		"doc_type":  docType,
		"_limit":    []uint{1},
	}
	if employeeName != "" {
		where["employee_name"] = employeeName
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrNotFound
	}
	scanned, err := scanDocument(rows, false)
	if err != nil {
		return nil, err
	}
	return &scanned.doc, nil
}

// Search runs a cosine similarity query with optional metadata filters.
// Scores are 1 - cosine distance; rows below threshold are dropped.
func (r *DocumentRepo) Search(ctx context.Context, embedding []float32, filter model.DocumentFilter, limit int, threshold float64) ([]model.ScoredDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	args := []interface{}{pgvector.NewVector(embedding)}
	var clauses []string
	addClause := func(cond string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}
	if filter.DocType != "" {
		addClause("doc_type = $%d", filter.DocType)
	}
	if filter.EmployeeName != "" {
		addClause("employee_name = $%d", filter.EmployeeName)
	}
	if filter.Status != "" {
		addClause("status = $%d", filter.Status)
	}
	if filter.MinAmount != nil {
		addClause("total_amount >= $%d", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		addClause("total_amount <= $%d", *filter.MaxAmount)
	}
	if threshold > 0 {
		addClause("1 - (embedding <=> $1) >= $%d", threshold)
	}

	query := `
		SELECT id, doc_type, content, employee_name, filename, file_hash,
			status, reason, total_amount, reimbursement_amount, currency,
			categories, policy_violations, ctime,
			1 - (embedding <=> $1) AS score
		FROM documents
	`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ScoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows, true)
		if err != nil {
			return nil, err
		}
		results = append(results, model.ScoredDocument{Document: doc.doc, Score: doc.score})
	}
	return results, rows.Err()
}

func (r *DocumentRepo) Stats(ctx context.Context) (*model.CollectionStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE doc_type = $1),
			COUNT(*) FILTER (WHERE doc_type = $2)
		FROM documents
	`
	var stats model.CollectionStats
	row := r.db.QueryRowContext(ctx, query, model.DocTypeInvoiceAnalysis, model.DocTypePolicy)
	if err := row.Scan(&stats.TotalDocuments, &stats.InvoiceCount, &stats.PolicyCount); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Ping verifies the table is reachable, used by the health endpoint.
func (r *DocumentRepo) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

type scannedDocument struct {
	doc   model.Document
	score float64
}

func scanDocument(rows *sql.Rows, withScore bool) (*scannedDocument, error) {
	var out scannedDocument
	var categories, violations []byte
	fields := []interface{}{
		&out.doc.ID, &out.doc.DocType, &out.doc.Content, &out.doc.EmployeeName,
		&out.doc.Filename, &out.doc.FileHash, &out.doc.Status, &out.doc.Reason,
		&out.doc.TotalAmount, &out.doc.ReimbursementAmount, &out.doc.Currency,
		&categories, &violations, &out.doc.Ctime,
	}
	if withScore {
		fields = append(fields, &out.score)
	}
	if err := rows.Scan(fields...); err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		_ = json.Unmarshal(categories, &out.doc.Categories)
	}
	if len(violations) > 0 {
		_ = json.Unmarshal(violations, &out.doc.PolicyViolations)
	}
	return &out, nil
}
