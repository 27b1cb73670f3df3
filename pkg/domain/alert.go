// Package domain holds the plain data types shared by every OpsRelay
// service: Alert, Incident, IncidentAction, RunbookChunk, and Citation.
package domain

import "time"

// Severity levels shared by Alerts and Incidents.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Classification sources recorded on an Alert.
const (
	ClassificationRule         = "rule"
	ClassificationFallbackRule = "fallback_rule"
	ClassificationML           = "ml"
)

// Entity provenance values.
const (
	ProvenanceML    = "ml"
	ProvenanceTags  = "tags"
	ProvenanceTitle = "title"
)

// Alert is an immutable-after-ingest observation from an external source.
type Alert struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`

	Title      string         `json:"title"`
	Message    string         `json:"message"`
	RawPayload map[string]any `json:"raw_payload,omitempty"`

	AlertTimestamp time.Time `json:"alert_timestamp"`
	CreatedAt      time.Time `json:"created_at"`

	Severity             *string  `json:"severity,omitempty"`
	PredictedTeam        *string  `json:"predicted_team,omitempty"`
	ConfidenceScore      *float64 `json:"confidence_score,omitempty"`
	ClassificationSource *string  `json:"classification_source,omitempty"`

	ServiceName   *string           `json:"service_name,omitempty"`
	Environment   *string           `json:"environment,omitempty"`
	Region        *string           `json:"region,omitempty"`
	ErrorCode     *string           `json:"error_code,omitempty"`
	EntitySources map[string]string `json:"entity_sources,omitempty"` // field name -> provenance
	EntitySource  *string           `json:"entity_source,omitempty"`  // summary: "unknown" | single value | "mixed"

	IncidentID *int64 `json:"incident_id,omitempty"`
}

// IsEnriched reports whether the Processor has already classified this alert.
func (a *Alert) IsEnriched() bool {
	return a.ClassificationSource != nil
}
