package model

import "time"

// Query types the chatbot distinguishes when planning retrieval.
const (
	QueryTypeGeneral          = "general"
	QueryTypeEmployeeSpecific = "employee_specific"
	QueryTypeStatusFilter     = "status_filter"
	QueryTypeDateRange        = "date_range"
	QueryTypeAmountFilter     = "amount_filter"
)

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SearchFilters struct {
	EmployeeName string   `json:"employee_name,omitempty"`
	Status       string   `json:"status,omitempty"`
	MinAmount    *float64 `json:"min_amount,omitempty"`
	MaxAmount    *float64 `json:"max_amount,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}

type ChatRequest struct {
	Query          string         `json:"query"`
	SessionID      string         `json:"session_id"`
	Filters        *SearchFilters `json:"filters,omitempty"`
	IncludeSources *bool          `json:"include_sources,omitempty"`
}

type DocumentSource struct {
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	EmployeeName    string  `json:"employee_name"`
	Status          string  `json:"status"`
	SimilarityScore float64 `json:"similarity_score"`
	Excerpt         string  `json:"excerpt,omitempty"`
}

type ChatResponse struct {
	Response           string           `json:"response"`
	SessionID          string           `json:"session_id"`
	Sources            []DocumentSource `json:"sources,omitempty"`
	RetrievedDocuments int              `json:"retrieved_documents"`
	QueryType          string           `json:"query_type"`
	Suggestions        []string         `json:"suggestions,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
}

type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// Chat streaming chunk types.
const (
	ChatChunkMetadata    = "metadata"
	ChatChunkContent     = "content"
	ChatChunkSuggestions = "suggestions"
	ChatChunkDone        = "done"
	ChatChunkError       = "error"
)

// StreamChunk is the envelope for every SSE payload, chat and analysis
// alike.
type StreamChunk struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ChatStreamMetadata struct {
	Sources            []DocumentSource       `json:"sources,omitempty"`
	RetrievedDocuments int                    `json:"retrieved_documents"`
	QueryType          string                 `json:"query_type"`
	FiltersApplied     map[string]interface{} `json:"filters_applied,omitempty"`
}
