package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
	"github.com/claimsight/claimsight/test/testutil"
)

func TestDocumentRepoInsertAndFindByHash(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	hash := uuid.NewString()
	doc := &model.Document{
		ID:                  uuid.NewString(),
		DocType:             model.DocTypeInvoiceAnalysis,
		Content:             "Invoice: taxi ride\n\nAnalysis:\nStatus: declined",
		Embedding:           testutil.TestEmbedding(1),
		EmployeeName:        "Priya Sharma",
		Filename:            "taxi.pdf",
		FileHash:            hash,
		Status:              model.StatusDeclined,
		Reason:              "personal travel is not reimbursable",
		TotalAmount:         450,
		ReimbursementAmount: 0,
		Currency:            "INR",
		Categories:          []string{"travel"},
		PolicyViolations:    []string{"personal expenses"},
		Ctime:               timeutil.NowUnix(),
	}
	require.NoError(t, docs.Insert(context.Background(), doc))

	fetched, err := docs.FindByHash(context.Background(), hash, model.DocTypeInvoiceAnalysis, "Priya Sharma")
	require.NoError(t, err)
	require.Equal(t, doc.ID, fetched.ID)
	require.Equal(t, model.StatusDeclined, fetched.Status)
	require.Equal(t, []string{"travel"}, fetched.Categories)
	require.Equal(t, 450.0, fetched.TotalAmount)

	// Same hash, different employee: no match.
	_, err = docs.FindByHash(context.Background(), hash, model.DocTypeInvoiceAnalysis, "Someone Else")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	// Any-employee lookup matches.
	fetched, err = docs.FindByHash(context.Background(), hash, model.DocTypeInvoiceAnalysis, "")
	require.NoError(t, err)
	require.Equal(t, doc.ID, fetched.ID)
}

func TestDocumentRepoSearchWithFilters(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	employee := "search-" + uuid.NewString()
	embedding := testutil.TestEmbedding(7)
	for i, status := range []string{model.StatusDeclined, model.StatusFullyReimbursed} {
		doc := &model.Document{
			ID:           uuid.NewString(),
			DocType:      model.DocTypeInvoiceAnalysis,
			Content:      "invoice content",
			Embedding:    embedding,
			EmployeeName: employee,
			Filename:     "inv.pdf",
			FileHash:     uuid.NewString(),
			Status:       status,
			TotalAmount:  float64(100 * (i + 1)),
			Currency:     "INR",
			Ctime:        timeutil.NowUnix(),
		}
		require.NoError(t, docs.Insert(context.Background(), doc))
	}

	// Identical embedding means cosine score 1 for both rows.
	results, err := docs.Search(context.Background(), embedding, model.DocumentFilter{
		DocType:      model.DocTypeInvoiceAnalysis,
		EmployeeName: employee,
	}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.InDelta(t, 1.0, results[0].Score, 0.001)

	results, err = docs.Search(context.Background(), embedding, model.DocumentFilter{
		DocType:      model.DocTypeInvoiceAnalysis,
		EmployeeName: employee,
		Status:       model.StatusDeclined,
	}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, model.StatusDeclined, results[0].Status)

	minAmount := 150.0
	results, err = docs.Search(context.Background(), embedding, model.DocumentFilter{
		DocType:      model.DocTypeInvoiceAnalysis,
		EmployeeName: employee,
		MinAmount:    &minAmount,
	}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 200.0, results[0].TotalAmount)
}

func TestDocumentRepoStats(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	before, err := docs.Stats(context.Background())
	require.NoError(t, err)

	require.NoError(t, docs.Insert(context.Background(), &model.Document{
		ID:        uuid.NewString(),
		DocType:   model.DocTypePolicy,
		Content:   "policy text",
		Embedding: testutil.TestEmbedding(3),
		FileHash:  uuid.NewString(),
		Ctime:     timeutil.NowUnix(),
	}))

	after, err := docs.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, before.PolicyCount+1, after.PolicyCount)
	require.Equal(t, before.TotalDocuments+1, after.TotalDocuments)
}
