package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/claimsight/claimsight/internal/model"
	"github.com/claimsight/claimsight/internal/pkg/response"
)

// VectorChecker exposes the vector store surface the health and stats
// endpoints need.
type VectorChecker interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*model.CollectionStats, error)
}

// AIChecker probes the configured LLM provider chain.
type AIChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	vectors VectorChecker
	ai      AIChecker
	version string
	start   time.Time
}

func NewHealthHandler(vectors VectorChecker, ai AIChecker, version string) *HealthHandler {
	return &HealthHandler{
		vectors: vectors,
		ai:      ai,
		version: version,
		start:   time.Now(),
	}
}

// Health reports overall status: unhealthy when the vector store is
// down, degraded when only the LLM is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	vector := runCheck(ctx, "vector_store", h.vectors.Ping)
	llm := runCheck(ctx, "llm", h.ai.Ping)

	status := model.HealthHealthy
	httpStatus := http.StatusOK
	switch {
	case vector.Status != model.HealthHealthy:
		status = model.HealthUnhealthy
		httpStatus = http.StatusServiceUnavailable
	case llm.Status != model.HealthHealthy:
		status = model.HealthDegraded
	}
	response.Success(c, httpStatus, model.HealthResponse{
		Status:        status,
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: time.Since(h.start).Seconds(),
		Services:      []model.ServiceHealth{vector, llm},
	})
}

func (h *HealthHandler) Stats(c *gin.Context) {
	stats, err := h.vectors.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func runCheck(ctx context.Context, name string, check func(ctx context.Context) error) model.ServiceHealth {
	start := time.Now()
	err := check(ctx)
	health := model.ServiceHealth{
		Name:           name,
		Status:         model.HealthHealthy,
		ResponseTimeMS: float64(time.Since(start).Milliseconds()),
	}
	if err != nil {
		health.Status = model.HealthUnhealthy
		health.Message = err.Error()
	}
	return health
}
