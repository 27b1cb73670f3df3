package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

// ActionRepo persists the append-only incident audit trail.
type ActionRepo struct {
	db Querier
}

// NewActionRepo constructs an ActionRepo over db (a pool or an open tx).
func NewActionRepo(db Querier) *ActionRepo {
	return &ActionRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx, so an action can be
// recorded atomically alongside the state change it documents.
func (r *ActionRepo) WithTx(tx pgx.Tx) *ActionRepo {
	return &ActionRepo{db: tx}
}

// Create inserts an audit record. IncidentAction has no update path:
// every field is written once.
func (r *ActionRepo) Create(ctx context.Context, a *domain.IncidentAction) error {
	metadata, err := json.Marshal(a.ExtraMetadata)
	if err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO incident_actions (incident_id, action_type, description, "user", extra_metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`,
		a.IncidentID, a.ActionType, a.Description, a.User, metadata)
	return row.Scan(&a.ID, &a.Timestamp)
}

// ListByIncident returns the audit trail for an incident, oldest first.
func (r *ActionRepo) ListByIncident(ctx context.Context, incidentID int64) ([]*domain.IncidentAction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, incident_id, action_type, description, "user", extra_metadata, timestamp
		FROM incident_actions WHERE incident_id = $1 ORDER BY timestamp ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IncidentAction
	for rows.Next() {
		a := &domain.IncidentAction{}
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.ActionType, &a.Description, &a.User, &metadata, &a.Timestamp); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &a.ExtraMetadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
