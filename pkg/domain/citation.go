package domain

// Citation is a lightweight tagged reference used in summaries and chat
// answers. Exactly one of the type-specific field groups is populated,
// selected by Type.
type Citation struct {
	Type string `json:"type"` // "incident" | "alert" | "runbook"

	IncidentID *int64 `json:"id,omitempty"`
	AlertID    *int64 `json:"alert_id,omitempty"`

	SourceDocument *string `json:"source_document,omitempty"`
	ChunkIndex     *int    `json:"chunk_index,omitempty"`

	Title string   `json:"title"`
	Score *float64 `json:"score,omitempty"`
}

// NewIncidentCitation builds a {type:incident} citation.
func NewIncidentCitation(id int64, title string, score float64) Citation {
	s := score
	return Citation{Type: "incident", IncidentID: &id, Title: title, Score: &s}
}

// NewAlertCitation builds a {type:alert} citation (no score, per spec §3).
func NewAlertCitation(id int64, title string) Citation {
	return Citation{Type: "alert", AlertID: &id, Title: title}
}

// NewRunbookCitation builds a {type:runbook} citation.
func NewRunbookCitation(sourceDocument string, chunkIndex int, title string, score float64) Citation {
	s := score
	return Citation{Type: "runbook", SourceDocument: &sourceDocument, ChunkIndex: &chunkIndex, Title: title, Score: &s}
}
