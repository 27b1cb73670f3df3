package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/domain"
)

// AlertRepo persists Alert entities.
type AlertRepo struct {
	db Querier
}

// NewAlertRepo constructs an AlertRepo over db (a pool or an open tx).
func NewAlertRepo(db Querier) *AlertRepo {
	return &AlertRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx, for callers that need
// the alert write and an incident write in the same transaction.
func (r *AlertRepo) WithTx(tx pgx.Tx) *AlertRepo {
	return &AlertRepo{db: tx}
}

const alertColumns = `id, source, external_id, title, message, raw_payload, alert_timestamp, created_at,
	severity, predicted_team, confidence_score, classification_source,
	service_name, environment, region, error_code, entity_sources, entity_source, incident_id`

// Create inserts a new Alert and returns it with its assigned id.
func (r *AlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	payload, err := json.Marshal(a.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw_payload: %w", err)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO alerts (source, external_id, title, message, raw_payload, alert_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		a.Source, a.ExternalID, a.Title, a.Message, payload, a.AlertTimestamp)
	return row.Scan(&a.ID, &a.CreatedAt)
}

// GetBySourceExternalID implements Alert Intake's dedupe lookup.
func (r *AlertRepo) GetBySourceExternalID(ctx context.Context, source, externalID string) (*domain.Alert, error) {
	row := r.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE source = $1 AND external_id = $2`, source, externalID)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	return a, err
}

// GetByID loads a single alert.
func (r *AlertRepo) GetByID(ctx context.Context, id int64) (*domain.Alert, error) {
	row := r.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	return a, err
}

// ListByIncident returns all alerts attached to incidentID, most recent
// alert_timestamp first (per spec §4.5 step 6 / §4.9 step 1).
func (r *AlertRepo) ListByIncident(ctx context.Context, incidentID int64) ([]*domain.Alert, error) {
	rows, err := r.db.Query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE incident_id = $1 ORDER BY alert_timestamp DESC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// UpdateEnrichment persists the Processor's classification + entity
// extraction results (spec §4.5 step 4).
func (r *AlertRepo) UpdateEnrichment(ctx context.Context, a *domain.Alert) error {
	entitySources, err := json.Marshal(a.EntitySources)
	if err != nil {
		return fmt.Errorf("marshal entity_sources: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		UPDATE alerts SET
			severity = $1, predicted_team = $2, confidence_score = $3, classification_source = $4,
			service_name = $5, environment = $6, region = $7, error_code = $8,
			entity_sources = $9, entity_source = $10
		WHERE id = $11`,
		a.Severity, a.PredictedTeam, a.ConfidenceScore, a.ClassificationSource,
		a.ServiceName, a.Environment, a.Region, a.ErrorCode,
		entitySources, a.EntitySource, a.ID)
	return err
}

// AttachToIncident sets alert.incident_id within the caller's transaction.
func (r *AlertRepo) AttachToIncident(ctx context.Context, alertID, incidentID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE alerts SET incident_id = $1 WHERE id = $2`, incidentID, alertID)
	return err
}

// AlertFilter filters the alert list endpoint.
type AlertFilter struct {
	Source      *string
	Severity    *string
	Service     *string
	Environment *string
	IncidentID  *int64
	CreatedFrom *string
	CreatedTo   *string
	Limit       int
	Offset      int
}

// List returns filtered alerts plus the total matching count.
func (r *AlertRepo) List(ctx context.Context, f AlertFilter) ([]*domain.Alert, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	add := func(clause string, val any) {
		args = append(args, val)
		where += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if f.Source != nil {
		add("source =", *f.Source)
	}
	if f.Severity != nil {
		add("severity =", *f.Severity)
	}
	if f.Service != nil {
		add("service_name =", *f.Service)
	}
	if f.Environment != nil {
		add("environment =", *f.Environment)
	}
	if f.IncidentID != nil {
		add("incident_id =", *f.IncidentID)
	}
	if f.CreatedFrom != nil {
		add("created_at >=", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <=", *f.CreatedTo)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM alerts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.Query(ctx, `SELECT `+alertColumns+` FROM alerts `+where+
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := scanAlerts(rows)
	return items, total, err
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	a := &domain.Alert{}
	var payload []byte
	var entitySources []byte
	err := row.Scan(&a.ID, &a.Source, &a.ExternalID, &a.Title, &a.Message, &payload, &a.AlertTimestamp, &a.CreatedAt,
		&a.Severity, &a.PredictedTeam, &a.ConfidenceScore, &a.ClassificationSource,
		&a.ServiceName, &a.Environment, &a.Region, &a.ErrorCode, &entitySources, &a.EntitySource, &a.IncidentID)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.RawPayload); err != nil {
			return nil, fmt.Errorf("unmarshal raw_payload: %w", err)
		}
	}
	if len(entitySources) > 0 {
		if err := json.Unmarshal(entitySources, &a.EntitySources); err != nil {
			return nil, fmt.Errorf("unmarshal entity_sources: %w", err)
		}
	}
	return a, nil
}

func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var out []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
