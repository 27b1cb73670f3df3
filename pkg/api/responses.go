package api

import (
	"time"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WebhookResponse is returned by POST /webhook/{source} (spec §6).
type WebhookResponse struct {
	Status     string `json:"status"`
	AlertID    int64  `json:"alert_id"`
	ExternalID string `json:"external_id"`
}

// IncidentListItem is one row of GET /incidents, carrying the
// alert_count/last_alert_at aggregates spec §6 requires alongside the
// incident fields.
type IncidentListItem struct {
	*domain.Incident
	AlertCount  int        `json:"alert_count"`
	LastAlertAt *time.Time `json:"last_alert_at"`
}

// ListResponse is the shared envelope for every paginated list endpoint.
type ListResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// IncidentDetailResponse is returned by GET /incidents/{id}.
type IncidentDetailResponse struct {
	*domain.Incident
	Alerts  []*domain.Alert          `json:"alerts"`
	Actions []*domain.IncidentAction `json:"actions"`
}

// SimilarIncidentResponse is one row of GET /incidents/{id}/similar.
type SimilarIncidentResponse struct {
	Incident *domain.Incident `json:"incident"`
	Score    float64          `json:"score"`
}

// SummarizeResponse is returned by POST /incidents/{id}/summarize.
type SummarizeResponse struct {
	Summary   string            `json:"summary"`
	Citations []domain.Citation `json:"citations"`
	NextSteps []string          `json:"next_steps"`
	Cached    bool              `json:"cached"`
}

// RunbookSearchResponse is one row of GET /runbooks/search.
type RunbookSearchResponse struct {
	Chunk *domain.RunbookChunk `json:"chunk"`
	Score float64              `json:"score"`
}

// DashboardMetricsResponse is returned by GET /dashboard/metrics.
type DashboardMetricsResponse struct {
	ActiveIncidents   int     `json:"active_incidents"`
	CriticalIncidents int     `json:"critical_incidents"`
	UntriagedAlerts   int     `json:"untriaged_alerts"`
	MTTAMinutes       float64 `json:"mtta_minutes"`
	MTTRMinutes       float64 `json:"mttr_minutes"`
}
