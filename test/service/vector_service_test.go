package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/repo"
	"github.com/claimsight/claimsight/internal/service"
	"github.com/claimsight/claimsight/test/testutil"
)

// fixedEmbedder returns the same vector for every text so stored
// documents and queries always match with score 1.0.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return testutil.TestEmbedding(7), nil
}

func (fixedEmbedder) ModelName() string {
	return "test-embedder"
}

func newVectorService(t *testing.T) (*service.VectorService, func()) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	manager := ai.NewManager(nil, fixedEmbedder{}, ai.ManagerConfig{})
	embedding := service.NewEmbeddingService(manager, nil)
	vectors := service.NewVectorService(embedding, repo.NewDocumentRepo(db), config.VectorConfig{
		Dimension:       768,
		SearchThreshold: 0.3,
		PolicyThreshold: 0.3,
	})
	return vectors, cleanup
}

func TestVectorServiceStoreAndSearchInvoices(t *testing.T) {
	vectors, cleanup := newVectorService(t)
	defer cleanup()
	ctx := context.Background()

	employee := "Search Test " + uuid.NewString()[:8]
	analysis := &model.InvoiceAnalysis{
		Status:              model.StatusDeclined,
		Reason:              "alcohol is not reimbursable",
		TotalAmount:         900,
		ReimbursementAmount: 0,
		Currency:            "INR",
		Categories:          []string{"meals"},
		PolicyViolations:    []string{"alcohol"},
	}
	docID, err := vectors.StoreInvoiceAnalysis(ctx, employee, "dinner.pdf", uuid.NewString(), "dinner with wine", analysis)
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	results, err := vectors.SearchInvoices(ctx, "declined meal expenses",
		&model.SearchFilters{EmployeeName: employee, Status: model.StatusDeclined}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, docID, results[0].Document.ID)
	require.Equal(t, model.StatusDeclined, results[0].Document.Status)
	require.InDelta(t, 1.0, results[0].Score, 0.01)

	// A non-matching status filter excludes the document.
	results, err = vectors.SearchInvoices(ctx, "declined meal expenses",
		&model.SearchFilters{EmployeeName: employee, Status: model.StatusFullyReimbursed}, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestVectorServiceStorePolicyDedupAndSearch(t *testing.T) {
	vectors, cleanup := newVectorService(t)
	defer cleanup()
	ctx := context.Background()

	employee := "Policy Test " + uuid.NewString()[:8]
	hash := uuid.NewString()
	docID, err := vectors.StorePolicy(ctx, employee, "Meals are capped at 500 INR per day.", hash)
	require.NoError(t, err)

	// Re-uploading the same policy reuses the stored document.
	again, err := vectors.StorePolicy(ctx, employee, "Meals are capped at 500 INR per day.", hash)
	require.NoError(t, err)
	require.Equal(t, docID, again)

	results, err := vectors.SearchPolicyContext(ctx, "meal limits", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.Equal(t, model.DocTypePolicy, r.Document.DocType)
	}
}
