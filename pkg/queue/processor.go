package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsrelay/opsrelay/pkg/classifier"
	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/embed"
	"github.com/opsrelay/opsrelay/pkg/entityfallback"
	"github.com/opsrelay/opsrelay/pkg/grouping"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// fallbackSeverity, fallbackTeam, and fallbackConfidence are the values
// the Processor substitutes when the Classifier Gateway's classify call
// fails (spec §4.5 step 2).
const (
	fallbackSeverity   = domain.SeverityWarning
	fallbackTeam       = "backend"
	fallbackConfidence = 0.0
)

// Processor implements the per-alert pipeline: classify, extract
// entities, persist enrichment, group into an incident, and refresh
// that incident's embedding. It is the ItemProcessor the worker pool
// drives; every step after the classifier call runs against the
// database and is never swallowed on failure (spec §5 propagation
// policy).
type Processor struct {
	alerts     *storage.AlertRepo
	incidents  *storage.IncidentRepo
	classifier *classifier.Client
	grouping   *grouping.Engine
	pool       *pgxpool.Pool
}

// NewProcessor constructs a Processor.
func NewProcessor(pool *pgxpool.Pool, alerts *storage.AlertRepo, incidents *storage.IncidentRepo, cl *classifier.Client, eng *grouping.Engine) *Processor {
	return &Processor{
		alerts:     alerts,
		incidents:  incidents,
		classifier: cl,
		grouping:   eng,
		pool:       pool,
	}
}

// Process runs the full pipeline for alertID (spec §4.5). Re-running
// it on an alert already attached to an incident classifies it and
// extracts its entities again, overwriting the enrichment fields, and
// refreshes the incident's embedding; grouping is skipped, so no new
// alert_added audit record is written.
func (p *Processor) Process(ctx context.Context, alertID int64) error {
	alert, err := p.alerts.GetByID(ctx, alertID)
	if err != nil {
		return fmt.Errorf("load alert: %w", err)
	}

	p.classify(ctx, alert)
	p.extractEntities(ctx, alert)

	if err := p.alerts.UpdateEnrichment(ctx, alert); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}

	if alert.IncidentID == nil {
		if _, err := p.grouping.Attach(ctx, alert); err != nil {
			return fmt.Errorf("group alert: %w", err)
		}
	}

	if err := p.refreshIncidentEmbedding(ctx, *alert.IncidentID); err != nil {
		return fmt.Errorf("refresh incident embedding: %w", err)
	}

	return nil
}

// classify invokes the Classifier Gateway's /classify call, substituting
// the fixed fallback triple on any failure.
func (p *Processor) classify(ctx context.Context, alert *domain.Alert) {
	result, err := p.classifier.Classify(ctx, alert.Title+" "+alert.Message)
	if err != nil {
		severity, team, source := fallbackSeverity, fallbackTeam, domain.ClassificationFallbackRule
		confidence := fallbackConfidence
		alert.Severity = &severity
		alert.PredictedTeam = &team
		alert.ConfidenceScore = &confidence
		alert.ClassificationSource = &source
		return
	}
	severity, team, source := result.Severity, result.Team, domain.ClassificationML
	confidence := result.Confidence
	alert.Severity = &severity
	alert.PredictedTeam = &team
	alert.ConfidenceScore = &confidence
	alert.ClassificationSource = &source
}

// extractEntities invokes the Classifier Gateway's /extract-entities
// call, then runs entityfallback.Apply over the raw webhook payload in
// every case, filling the fields the gateway left unset (all of them
// when the call failed). Provenance is tracked for every field the gateway or
// the fallback extractor set, and entity_source summarizes it (spec
// §4.5 step 3).
func (p *Processor) extractEntities(ctx context.Context, alert *domain.Alert) {
	provenance := map[string]string{}

	result, err := p.classifier.ExtractEntities(ctx, alert.Title+" "+alert.Message)
	if err == nil {
		if result.ServiceName != nil {
			alert.ServiceName = result.ServiceName
			provenance["service_name"] = domain.ProvenanceML
		}
		if result.Environment != nil {
			alert.Environment = result.Environment
			provenance["environment"] = domain.ProvenanceML
		}
		if result.Region != nil {
			alert.Region = result.Region
			provenance["region"] = domain.ProvenanceML
		}
		if result.ErrorCode != nil {
			alert.ErrorCode = result.ErrorCode
			provenance["error_code"] = domain.ProvenanceML
		}
	}

	entityfallback.Apply(alert, provenance)

	alert.EntitySources = provenance
	summary := entityfallback.Summarize(provenance)
	alert.EntitySource = &summary
}

// refreshIncidentEmbedding recomputes the embedding for incidentID from
// its full current set of attached alerts, so the next similar-incident
// search and summary reflect the alert just attached (spec §4.5 step 6).
func (p *Processor) refreshIncidentEmbedding(ctx context.Context, incidentID int64) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	incidents := storage.NewIncidentRepo(tx)
	alertsInTx := storage.NewAlertRepo(tx)

	inc, err := incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	attached, err := alertsInTx.ListByIncident(ctx, incidentID)
	if err != nil {
		return err
	}

	text := inc.Title
	for _, a := range attached {
		text += " " + a.Title + " " + a.Message
	}
	vector := embed.Text(text)

	if err := incidents.UpdateEmbedding(ctx, incidentID, vector, embed.Dim); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
