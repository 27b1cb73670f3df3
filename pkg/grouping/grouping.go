// Package grouping implements the Grouping Engine: time-windowed,
// status-filtered attachment of an enriched alert to an open incident,
// or creation of a new one.
package grouping

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// Window is the grouping time window W from spec §4.6.
const Window = 5 * time.Minute

// Pool is the subset of *pgxpool.Pool the Engine needs to start
// transactions; satisfied by *pgxpool.Pool.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Engine runs the Grouping Engine's attach-or-create policy.
type Engine struct {
	pool Pool
}

// NewEngine constructs an Engine over a connection pool.
func NewEngine(pool Pool) *Engine {
	return &Engine{pool: pool}
}

// Result reports the outcome of grouping one alert.
type Result struct {
	Incident *domain.Incident
	Created  bool
}

// Attach runs the Grouping Engine for alert, returning the incident it
// was attached to or newly created under. Everything happens in one
// transaction so the affected_services read-modify-write is race-free
// against concurrent grouping of other alerts onto the same candidate
// (spec §5).
func (e *Engine) Attach(ctx context.Context, alert *domain.Alert) (*Result, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouping: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	incidents := storage.NewIncidentRepo(tx)
	alerts := storage.NewAlertRepo(tx)
	actions := storage.NewActionRepo(tx)

	windowStart := alert.AlertTimestamp.Add(-Window)
	candidate, err := incidents.FindGroupingCandidate(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("grouping: find candidate: %w", err)
	}

	var result *Result
	if candidate != nil {
		result, err = e.attachToCandidate(ctx, incidents, alerts, actions, alert, candidate)
	} else {
		result, err = e.createIncident(ctx, incidents, alerts, actions, alert)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("grouping: commit: %w", err)
	}
	return result, nil
}

func (e *Engine) attachToCandidate(ctx context.Context, incidents *storage.IncidentRepo, alerts *storage.AlertRepo, actions *storage.ActionRepo, alert *domain.Alert, candidate *domain.Incident) (*Result, error) {
	if err := alerts.AttachToIncident(ctx, alert.ID, candidate.ID); err != nil {
		return nil, fmt.Errorf("grouping: attach alert: %w", err)
	}

	svc := ""
	if alert.ServiceName != nil {
		svc = *alert.ServiceName
	}
	if _, err := incidents.AddAffectedService(ctx, candidate.ID, svc); err != nil {
		return nil, fmt.Errorf("grouping: update affected_services: %w", err)
	}

	if err := actions.Create(ctx, &domain.IncidentAction{
		IncidentID:  candidate.ID,
		ActionType:  domain.ActionAlertAdded,
		Description: fmt.Sprintf("Alert #%d attached: %s", alert.ID, alert.Title),
		User:        "system",
	}); err != nil {
		return nil, fmt.Errorf("grouping: write audit action: %w", err)
	}

	alert.IncidentID = &candidate.ID
	return &Result{Incident: candidate, Created: false}, nil
}

func (e *Engine) createIncident(ctx context.Context, incidents *storage.IncidentRepo, alerts *storage.AlertRepo, actions *storage.ActionRepo, alert *domain.Alert) (*Result, error) {
	severity := domain.SeverityWarning
	if alert.Severity != nil {
		severity = *alert.Severity
	}
	team := "unassigned"
	if alert.PredictedTeam != nil {
		team = *alert.PredictedTeam
	}

	inc := &domain.Incident{
		Title:        alert.Title,
		Severity:     severity,
		Status:       domain.StatusOpen,
		AssignedTeam: team,
	}
	if alert.ServiceName != nil && *alert.ServiceName != "" {
		inc.AffectedServices = []string{*alert.ServiceName}
	}

	if err := incidents.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("grouping: create incident: %w", err)
	}
	if err := alerts.AttachToIncident(ctx, alert.ID, inc.ID); err != nil {
		return nil, fmt.Errorf("grouping: attach alert to new incident: %w", err)
	}
	if err := actions.Create(ctx, &domain.IncidentAction{
		IncidentID:  inc.ID,
		ActionType:  domain.ActionStatusChange,
		Description: fmt.Sprintf("Incident created from alert #%d", alert.ID),
		User:        "system",
	}); err != nil {
		return nil, fmt.Errorf("grouping: write audit action: %w", err)
	}

	alert.IncidentID = &inc.ID
	return &Result{Incident: inc, Created: true}, nil
}
