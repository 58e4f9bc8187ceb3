package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/claimsight/claimsight/internal/handler"
	"github.com/claimsight/claimsight/internal/middleware"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/service"
)

type stubRunner struct {
	batchResp *model.InvoiceAnalysisResponse
	batchErr  error
	gotInput  *service.BatchInput
}

func (s *stubRunner) AnalyzeBatch(ctx context.Context, in *service.BatchInput) (*model.InvoiceAnalysisResponse, error) {
	s.gotInput = in
	return s.batchResp, s.batchErr
}

func (s *stubRunner) AnalyzeBatchStream(ctx context.Context, in *service.BatchInput, emit service.EmitFunc) error {
	s.gotInput = in
	if s.batchErr != nil {
		return s.batchErr
	}
	if err := emit(model.AnalysisChunkMetadata, map[string]interface{}{"employee_name": in.EmployeeName}); err != nil {
		return err
	}
	return emit(model.AnalysisChunkDone, s.batchResp)
}

func (s *stubRunner) Status(ctx context.Context) *model.AnalysisStatus {
	return &model.AnalysisStatus{Ready: true, Timestamp: time.Now().UTC()}
}

type stubChat struct {
	resp       *model.ChatResponse
	err        error
	history    []model.ChatMessage
	historyErr error
	deleteErr  error
	sessions   []model.SessionInfo
}

func (s *stubChat) ProcessQuery(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubChat) ProcessQueryStream(ctx context.Context, req *model.ChatRequest, emit func(chunkType string, data interface{}) error) error {
	if s.err != nil {
		return s.err
	}
	if err := emit(model.ChatChunkMetadata, &model.ChatStreamMetadata{QueryType: model.QueryTypeGeneral}); err != nil {
		return err
	}
	if err := emit(model.ChatChunkContent, "partial answer"); err != nil {
		return err
	}
	return emit(model.ChatChunkDone, map[string]interface{}{"session_id": req.SessionID})
}

func (s *stubChat) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.history, s.historyErr
}

func (s *stubChat) DeleteSession(ctx context.Context, sessionID string) error {
	return s.deleteErr
}

func (s *stubChat) Sessions(ctx context.Context) ([]model.SessionInfo, error) {
	return s.sessions, nil
}

type stubVector struct {
	pingErr error
	stats   *model.CollectionStats
}

func (s *stubVector) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *stubVector) Stats(ctx context.Context) (*model.CollectionStats, error) {
	return s.stats, nil
}

type stubAI struct {
	pingErr error
}

func (s *stubAI) Ping(ctx context.Context) error {
	return s.pingErr
}

type stubs struct {
	runner *stubRunner
	chat   *stubChat
	vector *stubVector
	ai     *stubAI
}

func setupRouter(t *testing.T, st *stubs) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := handler.RouterDeps{
		Analysis: handler.NewAnalysisHandler(st.runner, 1),
		Chat:     handler.NewChatHandler(st.chat),
		Health:   handler.NewHealthHandler(st.vector, st.ai, "test"),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

func defaultStubs() *stubs {
	return &stubs{
		runner: &stubRunner{
			batchResp: &model.InvoiceAnalysisResponse{
				Success:           true,
				Message:           "Processed 1 invoices",
				EmployeeName:      "Priya Sharma",
				TotalInvoices:     1,
				ProcessedInvoices: 1,
				Results: []model.InvoiceAnalysisResult{
					{Filename: "taxi.pdf", Status: model.StatusDeclined, Currency: "INR"},
				},
				Timestamp: time.Now().UTC(),
			},
		},
		chat: &stubChat{
			resp: &model.ChatResponse{
				Response:  "here you go",
				SessionID: "default",
				QueryType: model.QueryTypeGeneral,
				Timestamp: time.Now().UTC(),
			},
		},
		vector: &stubVector{stats: &model.CollectionStats{TotalDocuments: 3, InvoiceCount: 2, PolicyCount: 1}},
		ai:     &stubAI{},
	}
}
