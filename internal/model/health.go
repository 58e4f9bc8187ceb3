package model

import "time"

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type ServiceHealth struct {
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	Message        string  `json:"message,omitempty"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
}

type HealthResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Services      []ServiceHealth `json:"services"`
}
