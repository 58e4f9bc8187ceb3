package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/timeutil"
	"github.com/claimsight/claimsight/internal/repo"
)

const (
	defaultSessionID = "default"
	// Messages handed to the LLM as conversation context.
	historyContextSize = 6
	sourceExcerptLen   = 200
	maxSources         = 5
)

// ChatService answers natural-language questions about stored invoice
// analyses: heuristic query analysis, vector retrieval, LLM answer
// generation and per-session history.
type ChatService struct {
	manager *ai.Manager
	vectors *VectorService
	history *repo.ChatRepo
	cfg     config.ChatConfig
}

func NewChatService(manager *ai.Manager, vectors *VectorService, history *repo.ChatRepo, cfg config.ChatConfig) *ChatService {
	return &ChatService{
		manager: manager,
		vectors: vectors,
		history: history,
		cfg:     cfg,
	}
}

func (s *ChatService) ProcessQuery(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	sessionID := sessionOrDefault(req.SessionID)
	queryType, filters, limit := analyzeQuery(req.Query, req.Filters)
	logger := logutil.GetLogger(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("query_type", queryType))

	docs, err := s.retrieve(ctx, req.Query, filters, limit)
	if err != nil {
		return nil, err
	}
	logger.Debug("retrieved documents", zap.Int("count", len(docs)))

	history, err := s.history.ListMessages(ctx, sessionID, historyContextSize)
	if err != nil {
		return nil, err
	}
	answer, err := s.manager.ChatAnswer(ctx, req.Query, docs, history)
	if err != nil {
		return nil, err
	}
	s.persistTurn(ctx, sessionID, req.Query, answer)

	response := &model.ChatResponse{
		Response:           answer,
		SessionID:          sessionID,
		RetrievedDocuments: len(docs),
		QueryType:          queryType,
		Suggestions:        s.suggest(ctx, req.Query, queryType, docs),
		Timestamp:          time.Now().UTC(),
	}
	if req.IncludeSources == nil || *req.IncludeSources {
		response.Sources = prepareSources(docs)
	}
	return response, nil
}

// ProcessQueryStream emits metadata, answer content, suggestions and
// a final done chunk. Persistence happens once the full answer has
// been generated.
func (s *ChatService) ProcessQueryStream(ctx context.Context, req *model.ChatRequest, emit func(chunkType string, data interface{}) error) error {
	start := time.Now()
	sessionID := sessionOrDefault(req.SessionID)
	queryType, filters, limit := analyzeQuery(req.Query, req.Filters)

	docs, err := s.retrieve(ctx, req.Query, filters, limit)
	if err != nil {
		return err
	}
	metadata := &model.ChatStreamMetadata{
		RetrievedDocuments: len(docs),
		QueryType:          queryType,
		FiltersApplied:     filtersApplied(filters),
	}
	if req.IncludeSources == nil || *req.IncludeSources {
		metadata.Sources = prepareSources(docs)
	}
	if err := emit(model.ChatChunkMetadata, metadata); err != nil {
		return err
	}

	history, err := s.history.ListMessages(ctx, sessionID, historyContextSize)
	if err != nil {
		return err
	}
	var answer strings.Builder
	err = s.manager.ChatAnswerStream(ctx, req.Query, docs, history, func(chunk string) error {
		answer.WriteString(chunk)
		return emit(model.ChatChunkContent, chunk)
	})
	if err != nil {
		return err
	}
	s.persistTurn(ctx, sessionID, req.Query, answer.String())

	if err := emit(model.ChatChunkSuggestions, s.suggest(ctx, req.Query, queryType, docs)); err != nil {
		return err
	}
	return emit(model.ChatChunkDone, map[string]interface{}{
		"session_id":      sessionID,
		"processing_time": time.Since(start).Seconds(),
	})
}

func (s *ChatService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.history.ListMessages(ctx, sessionOrDefault(sessionID), 0)
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.history.DeleteSession(ctx, sessionOrDefault(sessionID))
}

func (s *ChatService) Sessions(ctx context.Context) ([]model.SessionInfo, error) {
	return s.history.ListSessions(ctx)
}

// retrieve pulls matching invoice analyses plus a little policy
// context so the model can quote the rules behind a verdict.
func (s *ChatService) retrieve(ctx context.Context, query string, filters *model.SearchFilters, limit int) ([]model.ScoredDocument, error) {
	docs, err := s.vectors.SearchInvoices(ctx, query, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	policies, err := s.vectors.SearchPolicyContext(ctx, query, 3)
	if err != nil {
		logutil.GetLogger(ctx).Warn("policy context retrieval failed", zap.Error(err))
		return docs, nil
	}
	return append(docs, policies...), nil
}

func (s *ChatService) persistTurn(ctx context.Context, sessionID, query, answer string) {
	now := timeutil.NowUnix()
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	if err := s.history.Append(ctx, sessionID, "user", query, now); err != nil {
		logger.Warn("persist user message failed", zap.Error(err))
		return
	}
	if err := s.history.Append(ctx, sessionID, "assistant", answer, now); err != nil {
		logger.Warn("persist assistant message failed", zap.Error(err))
		return
	}
	if err := s.history.Trim(ctx, sessionID, s.cfg.MaxHistory); err != nil {
		logger.Warn("trim session history failed", zap.Error(err))
	}
}

// suggest asks the model for follow-up queries under a short deadline
// and falls back to canned suggestions when it cannot answer in time.
func (s *ChatService) suggest(ctx context.Context, query, queryType string, docs []model.ScoredDocument) []string {
	timeout := time.Duration(s.cfg.SuggestionTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	suggestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	suggestions, err := s.manager.SuggestQueries(suggestCtx, query, queryType, docs)
	if err != nil || len(suggestions) == 0 {
		if err != nil {
			logutil.GetLogger(ctx).Debug("suggestion generation failed", zap.Error(err))
		}
		return ai.FallbackSuggestions(queryType)
	}
	return suggestions
}

// analyzeQuery derives the query type, effective filters and result
// limit. Explicit request filters always win over keyword heuristics.
func analyzeQuery(query string, explicit *model.SearchFilters) (string, *model.SearchFilters, int) {
	filters := &model.SearchFilters{}
	if explicit != nil {
		clone := *explicit
		filters = &clone
	}
	queryType := model.QueryTypeGeneral
	switch {
	case filters.EmployeeName != "":
		queryType = model.QueryTypeEmployeeSpecific
	case filters.Status != "":
		queryType = model.QueryTypeStatusFilter
	case filters.MinAmount != nil || filters.MaxAmount != nil:
		queryType = model.QueryTypeAmountFilter
	}

	lower := strings.ToLower(query)

	if filters.EmployeeName == "" {
		if name := extractEmployeeName(query); name != "" {
			filters.EmployeeName = name
			if queryType == model.QueryTypeGeneral {
				queryType = model.QueryTypeEmployeeSpecific
			}
		}
	}
	if filters.Status == "" {
		if status := extractStatus(lower); status != "" {
			filters.Status = status
			if queryType == model.QueryTypeGeneral {
				queryType = model.QueryTypeStatusFilter
			}
		}
	}
	if queryType == model.QueryTypeGeneral && mentionsDates(lower) {
		queryType = model.QueryTypeDateRange
	}

	limit := 10
	if strings.Contains(lower, "all ") || strings.HasPrefix(lower, "list") {
		limit = 50
	} else if strings.Contains(lower, "few") || strings.Contains(lower, "some") {
		limit = 5
	}
	return queryType, filters, limit
}

// extractEmployeeName looks for "for <Name>" or "by <Name>" and
// title-cases the one or two words that follow.
func extractEmployeeName(query string) string {
	words := strings.Fields(query)
	for i, word := range words {
		key := strings.ToLower(word)
		if key != "for" && key != "by" {
			continue
		}
		name := make([]string, 0, 2)
		for j := i + 1; j < len(words) && j <= i+2; j++ {
			part := strings.Trim(words[j], ".,!?;:'\"")
			if part == "" || !isNameWord(part) || isStopWord(part) {
				break
			}
			name = append(name, titleCase(part))
		}
		candidate := strings.Join(name, " ")
		if len(candidate) > 2 {
			return candidate
		}
	}
	return ""
}

var nameStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {},
	"of": {}, "from": {}, "to": {}, "and": {}, "or": {}, "with": {},
	"this": {}, "that": {}, "last": {}, "me": {}, "us": {}, "them": {},
	"all": {}, "each": {}, "every": {},
}

func isStopWord(word string) bool {
	_, ok := nameStopWords[strings.ToLower(word)]
	return ok
}

func isNameWord(word string) bool {
	for _, r := range word {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(word) > 0
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

func extractStatus(lower string) string {
	switch {
	case strings.Contains(lower, "declined"),
		strings.Contains(lower, "rejected"),
		strings.Contains(lower, "denied"):
		return model.StatusDeclined
	case strings.Contains(lower, "partial"):
		return model.StatusPartiallyReimbursed
	case strings.Contains(lower, "approved"),
		strings.Contains(lower, "reimbursed"),
		strings.Contains(lower, "accepted"):
		return model.StatusFullyReimbursed
	}
	return ""
}

func mentionsDates(lower string) bool {
	keywords := []string{
		"date", "month", "year", "week", "today", "yesterday",
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// prepareSources converts the top matches into client-facing source
// references with short excerpts.
func prepareSources(docs []model.ScoredDocument) []model.DocumentSource {
	sources := make([]model.DocumentSource, 0, maxSources)
	for _, doc := range docs {
		if doc.DocType != model.DocTypeInvoiceAnalysis {
			continue
		}
		if len(sources) == maxSources {
			break
		}
		excerpt := doc.Content
		if len(excerpt) > sourceExcerptLen {
			excerpt = excerpt[:sourceExcerptLen] + "..."
		}
		sources = append(sources, model.DocumentSource{
			DocumentID:      doc.ID,
			Filename:        doc.Filename,
			EmployeeName:    doc.EmployeeName,
			Status:          doc.Status,
			SimilarityScore: doc.Score,
			Excerpt:         excerpt,
		})
	}
	return sources
}

func filtersApplied(filters *model.SearchFilters) map[string]interface{} {
	applied := map[string]interface{}{}
	if filters == nil {
		return applied
	}
	if filters.EmployeeName != "" {
		applied["employee_name"] = filters.EmployeeName
	}
	if filters.Status != "" {
		applied["status"] = filters.Status
	}
	if filters.MinAmount != nil {
		applied["min_amount"] = *filters.MinAmount
	}
	if filters.MaxAmount != nil {
		applied["max_amount"] = *filters.MaxAmount
	}
	if len(filters.Categories) > 0 {
		applied["categories"] = filters.Categories
	}
	return applied
}

func sessionOrDefault(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return defaultSessionID
	}
	return sessionID
}
