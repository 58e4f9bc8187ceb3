package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Analysis *AnalysisHandler
	Chat     *ChatHandler
	Health   *HealthHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/analyze-invoices", deps.Analysis.Analyze)
	api.POST("/analyze-invoices/stream", deps.Analysis.AnalyzeStream)
	api.GET("/analysis-status", deps.Analysis.Status)

	api.POST("/chat", deps.Chat.Chat)
	api.POST("/chat/stream", deps.Chat.ChatStream)
	api.GET("/chat/history/:session_id", deps.Chat.History)
	api.DELETE("/chat/history/:session_id", deps.Chat.DeleteHistory)
	api.GET("/chat/sessions", deps.Chat.Sessions)

	api.GET("/health", deps.Health.Health)
	api.GET("/stats", deps.Health.Stats)
}
