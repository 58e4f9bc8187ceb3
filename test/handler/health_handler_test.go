package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
)

func getPath(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth_AllHealthy(t *testing.T) {
	router := setupRouter(t, defaultStubs())

	rec := getPath(t, router, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, model.HealthHealthy, resp.Status)
	require.Equal(t, "test", resp.Version)
	require.Len(t, resp.Services, 2)
}

func TestHealth_VectorStoreDown(t *testing.T) {
	st := defaultStubs()
	st.vector.pingErr = errors.New("connection refused")
	router := setupRouter(t, st)

	rec := getPath(t, router, "/api/v1/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, model.HealthUnhealthy, resp.Status)
}

func TestHealth_LLMDownIsDegraded(t *testing.T) {
	st := defaultStubs()
	st.ai.pingErr = errors.New("quota exceeded")
	router := setupRouter(t, st)

	rec := getPath(t, router, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, model.HealthDegraded, resp.Status)
}

func TestStats(t *testing.T) {
	router := setupRouter(t, defaultStubs())

	rec := getPath(t, router, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.CollectionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(3), stats.TotalDocuments)
	require.Equal(t, int64(2), stats.InvoiceCount)
}
