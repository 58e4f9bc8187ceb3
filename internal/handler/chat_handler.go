package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/response"
	"github.com/claimsight/claimsight/internal/pkg/sse"
)

const maxQueryLen = 1000

// ChatProcessor is the slice of the chat service the handler needs.
type ChatProcessor interface {
	ProcessQuery(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)
	ProcessQueryStream(ctx context.Context, req *model.ChatRequest, emit func(chunkType string, data interface{}) error) error
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]model.SessionInfo, error)
}

type ChatHandler struct {
	chat ChatProcessor
}

func NewChatHandler(chat ChatProcessor) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := bindChatRequest(c)
	if !ok {
		return
	}
	result, err := h.chat.ProcessQuery(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *ChatHandler) ChatStream(c *gin.Context) {
	req, ok := bindChatRequest(c)
	if !ok {
		return
	}
	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}
	emit := chunkEmitter(writer)
	if err := h.chat.ProcessQueryStream(c.Request.Context(), req, emit); err != nil {
		_ = emit(model.ChatChunkError, gin.H{"error": err.Error()})
	}
}

func (h *ChatHandler) History(c *gin.Context) {
	sessionID := c.Param("session_id")
	messages, err := h.chat.History(c.Request.Context(), sessionID)
	if err != nil {
		handleError(c, err)
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.chat.DeleteSession(c.Request.Context(), sessionID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
	})
}

func (h *ChatHandler) Sessions(c *gin.Context) {
	sessions, err := h.chat.Sessions(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.SessionInfo{}
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

func bindChatRequest(c *gin.Context) (*model.ChatRequest, bool) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return nil, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "query is required")
		return nil, false
	}
	if len(req.Query) > maxQueryLen {
		response.Error(c, http.StatusUnprocessableEntity, "invalid", "query must be at most 1000 characters")
		return nil, false
	}
	return &req, true
}
