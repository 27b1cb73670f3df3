package domain

import "time"

// Incident lifecycle statuses. Transitions must follow the DAG
// open -> investigating -> resolved -> closed, no skips, no reversals.
const (
	StatusOpen          = "open"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusClosed        = "closed"
)

// ValidTransitions enumerates the only status pairs a transition may cross.
var ValidTransitions = map[string]string{
	StatusOpen:          StatusInvestigating,
	StatusInvestigating: StatusResolved,
	StatusResolved:      StatusClosed,
}

// Incident is an aggregation of related alerts with a lifecycle.
type Incident struct {
	ID int64 `json:"id"`

	Title    string `json:"title"`
	Severity string `json:"severity"`
	Status   string `json:"status"`

	AssignedTeam string  `json:"assigned_team"`
	AssignedUser *string `json:"assigned_user,omitempty"`

	Summary          string     `json:"summary"`
	SummaryCitations []Citation `json:"summary_citations,omitempty"`
	NextSteps        []string   `json:"next_steps,omitempty"`

	AffectedServices []string `json:"affected_services"` // set semantics, persisted ordered, no duplicates

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`

	TimeToAcknowledge *int64 `json:"time_to_acknowledge,omitempty"` // seconds
	TimeToResolve     *int64 `json:"time_to_resolve,omitempty"`     // seconds

	Embedding []float64 `json:"-"` // fixed-dimension unit vector, nil if not computed; internal only
}

// AddAffectedService adds svc to the set if non-empty and not already present.
// Returns true if the set was mutated.
func (i *Incident) AddAffectedService(svc string) bool {
	if svc == "" {
		return false
	}
	for _, s := range i.AffectedServices {
		if s == svc {
			return false
		}
	}
	i.AffectedServices = append(i.AffectedServices, svc)
	return true
}

// IncidentAction is an append-only audit record.
type IncidentAction struct {
	ID         int64 `json:"id"`
	IncidentID int64 `json:"incident_id"`

	ActionType    string         `json:"action_type"`
	Description   string         `json:"description"`
	User          string         `json:"user"`
	ExtraMetadata map[string]any `json:"extra_metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Action types.
const (
	ActionStatusChange = "status_change"
	ActionComment      = "comment"
	ActionAlertAdded   = "alert_added"
	ActionAlertRemoved = "alert_removed"
	ActionAssignment   = "assignment"
	ActionEscalation   = "escalation"
)
