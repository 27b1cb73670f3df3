package storage

import "context"

// Connector statuses.
const (
	ConnectorNotConnected = "not_connected"
	ConnectorConnected    = "connected"
)

// Connector is an external alert-source integration (Datadog, Sentry,
// PagerDuty) with a trivial connected/not-connected state, per spec §3.
type Connector struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ConnectorRepo persists the connector registry.
type ConnectorRepo struct {
	db Querier
}

// NewConnectorRepo constructs a ConnectorRepo over db.
func NewConnectorRepo(db Querier) *ConnectorRepo {
	return &ConnectorRepo{db: db}
}

// List returns all registered connectors.
func (r *ConnectorRepo) List(ctx context.Context) ([]*Connector, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, status FROM connectors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Connector
	for rows.Next() {
		c := &Connector{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Connect marks a connector connected. Idempotent: connecting an
// already-connected connector is a no-op success, matching the
// teacher's idempotent-connect semantics for external integrations.
func (r *ConnectorRepo) Connect(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE connectors SET status = $1 WHERE id = $2`, ConnectorConnected, id)
	return err
}

// Disconnect marks a connector not connected.
func (r *ConnectorRepo) Disconnect(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE connectors SET status = $1 WHERE id = $2`, ConnectorNotConnected, id)
	return err
}
