package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/domain"
)

// IncidentRepo persists Incident entities.
type IncidentRepo struct {
	db Querier
}

// NewIncidentRepo constructs an IncidentRepo over db.
func NewIncidentRepo(db Querier) *IncidentRepo {
	return &IncidentRepo{db: db}
}

const incidentColumns = `id, title, severity, status, assigned_team, assigned_user,
	summary, summary_citations, next_steps, affected_services,
	created_at, updated_at, resolved_at, closed_at,
	time_to_acknowledge, time_to_resolve, incident_embedding`

// Create inserts a new Incident (Grouping Engine's no-candidate path).
func (r *IncidentRepo) Create(ctx context.Context, inc *domain.Incident) error {
	services, err := json.Marshal(inc.AffectedServices)
	if err != nil {
		return err
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO incidents (title, severity, status, assigned_team, affected_services)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		inc.Title, inc.Severity, inc.Status, inc.AssignedTeam, services)
	return row.Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)
}

// GetByID loads a single incident.
func (r *IncidentRepo) GetByID(ctx context.Context, id int64) (*domain.Incident, error) {
	row := r.db.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	return inc, err
}

// FindGroupingCandidate implements spec §4.6: the most recently created
// incident with status in (open, investigating) and created_at at or
// after windowStart (the alert timestamp minus the grouping window); no
// upper bound is applied to created_at. Must run inside the
// caller's transaction alongside the affected_services update to bound
// the race window (spec §5).
func (r *IncidentRepo) FindGroupingCandidate(ctx context.Context, windowStart time.Time) (*domain.Incident, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE status IN ('open','investigating') AND created_at >= $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, windowStart)
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return inc, err
}

// AddAffectedService appends svc to the incident's affected_services set
// (if non-empty and not already present) and bumps updated_at, within
// the same transaction as the alert attachment. Returns whether the set
// changed.
func (r *IncidentRepo) AddAffectedService(ctx context.Context, incidentID int64, svc string) (bool, error) {
	if svc == "" {
		_, err := r.db.Exec(ctx, `UPDATE incidents SET updated_at = now() WHERE id = $1`, incidentID)
		return false, err
	}
	var services []string
	if err := r.db.QueryRow(ctx, `SELECT affected_services FROM incidents WHERE id = $1 FOR UPDATE`, incidentID).Scan(jsonScanner(&services)); err != nil {
		return false, err
	}
	for _, s := range services {
		if s == svc {
			_, err := r.db.Exec(ctx, `UPDATE incidents SET updated_at = now() WHERE id = $1`, incidentID)
			return false, err
		}
	}
	services = append(services, svc)
	payload, err := json.Marshal(services)
	if err != nil {
		return false, err
	}
	_, err = r.db.Exec(ctx, `UPDATE incidents SET affected_services = $1, updated_at = now() WHERE id = $2`, payload, incidentID)
	return true, err
}

// UpdateEmbedding persists a freshly computed incident embedding.
// dim must equal embed.Dim; a mismatch is a programmer error and panics
// rather than silently padding (spec §8 boundary behavior).
func (r *IncidentRepo) UpdateEmbedding(ctx context.Context, incidentID int64, embedding []float64, expectedDim int) error {
	if len(embedding) != expectedDim {
		panic(fmt.Sprintf("incident embedding dimension mismatch: got %d want %d", len(embedding), expectedDim))
	}
	_, err := r.db.Exec(ctx, `UPDATE incidents SET incident_embedding = $1 WHERE id = $2`, embedding, incidentID)
	return err
}

// UpdateSummary persists the Summarizer's output (spec §4.9 step 6).
func (r *IncidentRepo) UpdateSummary(ctx context.Context, incidentID int64, summary string, citations []domain.Citation, nextSteps []string) error {
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return err
	}
	stepsJSON, err := json.Marshal(nextSteps)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE incidents SET summary = $1, summary_citations = $2, next_steps = $3 WHERE id = $4`,
		summary, citationsJSON, stepsJSON, incidentID)
	return err
}

// UpdateStatus validates and applies a status transition, writing the
// corresponding timestamps (spec §3, §6). Returns apierrors.ErrInvalidTransition
// wrapped in a *apierrors.TransitionError if the move is not allowed.
func (r *IncidentRepo) UpdateStatus(ctx context.Context, incidentID int64, newStatus string) (*domain.Incident, error) {
	inc, err := r.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if domain.ValidTransitions[inc.Status] != newStatus {
		return nil, apierrors.NewTransitionError(inc.Status, newStatus)
	}

	now := time.Now().UTC()
	inc.Status = newStatus
	inc.UpdatedAt = now
	if newStatus == domain.StatusResolved {
		inc.ResolvedAt = &now
	}
	if newStatus == domain.StatusClosed {
		inc.ClosedAt = &now
	}

	_, err = r.db.Exec(ctx, `UPDATE incidents SET status = $1, updated_at = $2, resolved_at = $3, closed_at = $4 WHERE id = $5`,
		inc.Status, inc.UpdatedAt, inc.ResolvedAt, inc.ClosedAt, incidentID)
	return inc, err
}

// ListOtherWithEmbedding returns incidents other than excludeID that
// have a non-null embedding, used as the candidate pool for the
// Similar-Incident Finder's vector path.
func (r *IncidentRepo) ListOtherWithEmbedding(ctx context.Context, excludeID int64) ([]*domain.Incident, error) {
	rows, err := r.db.Query(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id != $1 AND incident_embedding IS NOT NULL`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

// ListOther returns all incidents other than excludeID, for the
// keyword-only fallback pass.
func (r *IncidentRepo) ListOther(ctx context.Context, excludeID int64) ([]*domain.Incident, error) {
	rows, err := r.db.Query(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id != $1`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

// IncidentFilter filters the incident list endpoint.
type IncidentFilter struct {
	Status      *string
	Severity    *string
	Service     *string
	Team        *string
	Source      *string
	CreatedFrom *string
	CreatedTo   *string
	UpdatedFrom *string
	UpdatedTo   *string
	Limit       int
	Offset      int
}

// IncidentSummary is one row of the incident list endpoint: an
// Incident plus the per-item aggregates spec §6 requires.
type IncidentSummary struct {
	*domain.Incident
	AlertCount  int
	LastAlertAt *time.Time
}

// List returns filtered incidents, with their alert_count/last_alert_at
// aggregates, plus the total matching count.
func (r *IncidentRepo) List(ctx context.Context, f IncidentFilter) ([]*IncidentSummary, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	add := func(clause string, val any) {
		args = append(args, val)
		where += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}
	if f.Status != nil {
		add("status =", *f.Status)
	}
	if f.Severity != nil {
		add("severity =", *f.Severity)
	}
	if f.Team != nil {
		add("assigned_team =", *f.Team)
	}
	if f.Service != nil {
		args = append(args, mustJSON([]string{*f.Service}))
		where += fmt.Sprintf(" AND affected_services @> $%d::jsonb", len(args))
	}
	if f.Source != nil {
		args = append(args, *f.Source)
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM alerts a WHERE a.incident_id = incidents.id AND a.source = $%d)", len(args))
	}
	if f.CreatedFrom != nil {
		add("created_at >=", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <=", *f.CreatedTo)
	}
	if f.UpdatedFrom != nil {
		add("updated_at >=", *f.UpdatedFrom)
	}
	if f.UpdatedTo != nil {
		add("updated_at <=", *f.UpdatedTo)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM incidents `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	cols := strings.ReplaceAll(incidentColumns, "id,", "incidents.id,")
	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+cols+`,
			count(a.id) FILTER (WHERE a.id IS NOT NULL),
			max(a.alert_timestamp)
		FROM incidents
		LEFT JOIN alerts a ON a.incident_id = incidents.id
		`+where+`
		GROUP BY incidents.id
		ORDER BY incidents.created_at DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*IncidentSummary
	for rows.Next() {
		inc := &domain.Incident{}
		var citationsJSON, servicesJSON, stepsJSON []byte
		var alertCount int
		var lastAlertAt *time.Time
		err := rows.Scan(&inc.ID, &inc.Title, &inc.Severity, &inc.Status, &inc.AssignedTeam, &inc.AssignedUser,
			&inc.Summary, &citationsJSON, &stepsJSON, &servicesJSON,
			&inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt, &inc.ClosedAt,
			&inc.TimeToAcknowledge, &inc.TimeToResolve, &inc.Embedding,
			&alertCount, &lastAlertAt)
		if err != nil {
			return nil, 0, err
		}
		if len(citationsJSON) > 0 {
			_ = json.Unmarshal(citationsJSON, &inc.SummaryCitations)
		}
		if len(stepsJSON) > 0 {
			_ = json.Unmarshal(stepsJSON, &inc.NextSteps)
		}
		if len(servicesJSON) > 0 {
			_ = json.Unmarshal(servicesJSON, &inc.AffectedServices)
		}
		items = append(items, &IncidentSummary{Incident: inc, AlertCount: alertCount, LastAlertAt: lastAlertAt})
	}
	return items, total, rows.Err()
}

// DashboardMetrics is the result of GET /dashboard/metrics.
type DashboardMetrics struct {
	ActiveIncidents   int
	CriticalIncidents int
	UntriagedAlerts   int
	MTTAMinutes       float64
	MTTRMinutes       float64
}

// Metrics computes the dashboard counters per spec §6: MTTA/MTTR are
// averages over the SLA counters, expressed in whole minutes.
func (r *IncidentRepo) Metrics(ctx context.Context) (DashboardMetrics, error) {
	var m DashboardMetrics
	err := r.db.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status IN ('open','investigating')),
			count(*) FILTER (WHERE status IN ('open','investigating') AND severity = 'critical'),
			round(coalesce(avg(time_to_acknowledge) FILTER (WHERE time_to_acknowledge IS NOT NULL), 0) / 60.0),
			round(coalesce(avg(time_to_resolve) FILTER (WHERE time_to_resolve IS NOT NULL), 0) / 60.0)
		FROM incidents`).Scan(&m.ActiveIncidents, &m.CriticalIncidents, &m.MTTAMinutes, &m.MTTRMinutes)
	if err != nil {
		return m, err
	}
	err = r.db.QueryRow(ctx, `SELECT count(*) FROM alerts WHERE incident_id IS NULL`).Scan(&m.UntriagedAlerts)
	return m, err
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	inc := &domain.Incident{}
	var citationsJSON, servicesJSON, stepsJSON []byte
	err := row.Scan(&inc.ID, &inc.Title, &inc.Severity, &inc.Status, &inc.AssignedTeam, &inc.AssignedUser,
		&inc.Summary, &citationsJSON, &stepsJSON, &servicesJSON,
		&inc.CreatedAt, &inc.UpdatedAt, &inc.ResolvedAt, &inc.ClosedAt,
		&inc.TimeToAcknowledge, &inc.TimeToResolve, &inc.Embedding)
	if err != nil {
		return nil, err
	}
	if len(citationsJSON) > 0 {
		_ = json.Unmarshal(citationsJSON, &inc.SummaryCitations)
	}
	if len(stepsJSON) > 0 {
		_ = json.Unmarshal(stepsJSON, &inc.NextSteps)
	}
	if len(servicesJSON) > 0 {
		_ = json.Unmarshal(servicesJSON, &inc.AffectedServices)
	}
	return inc, nil
}

func scanIncidents(rows pgx.Rows) ([]*domain.Incident, error) {
	var out []*domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// jsonScanner adapts a Go destination to pgx's Scan for a jsonb column
// holding a JSON array, since incidents.affected_services and similar
// columns are stored as jsonb rather than native arrays.
func jsonScanner(dest *[]string) any {
	return &jsonArrayScanner{dest: dest}
}

type jsonArrayScanner struct {
	dest *[]string
}

func (s *jsonArrayScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		if len(v) == 0 {
			*s.dest = nil
			return nil
		}
		return json.Unmarshal(v, s.dest)
	case string:
		if v == "" {
			*s.dest = nil
			return nil
		}
		return json.Unmarshal([]byte(v), s.dest)
	case nil:
		*s.dest = nil
		return nil
	default:
		return fmt.Errorf("unsupported jsonb scan source type %T", src)
	}
}
