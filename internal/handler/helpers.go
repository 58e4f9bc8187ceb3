package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
	"github.com/claimsight/claimsight/internal/pkg/response"
)

// handleError maps service errors onto HTTP statuses with a stable
// string code in the body.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	case errors.Is(err, apperrors.ErrEmptyDocument):
		response.Error(c, http.StatusUnprocessableEntity, "empty_document", err.Error())
	case errors.Is(err, apperrors.ErrInvalidFile):
		response.Error(c, http.StatusBadRequest, "invalid_file", err.Error())
	case errors.Is(err, apperrors.ErrInvalid):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, apperrors.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, apperrors.ErrAIUnavailable):
		response.Error(c, http.StatusInternalServerError, "ai_unavailable", "ai provider unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
