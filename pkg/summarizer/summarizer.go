// Package summarizer assembles a structured incident summary, citation
// list, and next-step list from alerts, similar incidents, and runbook
// chunks, per spec §4.9.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/embed"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// Defaults for the similar-incident and runbook retrieval limits.
const (
	DefaultLimitSimilar = 3
	DefaultLimitRunbook = 3
)

// Summarizer persists the cached (summary, citations, next_steps)
// triple for an incident.
type Summarizer struct {
	incidents *storage.IncidentRepo
	alerts    *storage.AlertRepo
	runbooks  *storage.RunbookRepo
	retriever *retrieval.Retriever

	limitSimilar int
	limitRunbook int
}

// New constructs a Summarizer.
func New(incidents *storage.IncidentRepo, alerts *storage.AlertRepo, runbooks *storage.RunbookRepo, retriever *retrieval.Retriever) *Summarizer {
	return &Summarizer{
		incidents:    incidents,
		alerts:       alerts,
		runbooks:     runbooks,
		retriever:    retriever,
		limitSimilar: DefaultLimitSimilar,
		limitRunbook: DefaultLimitRunbook,
	}
}

// Result is the Summarizer's output.
type Result struct {
	Summary   string
	Citations []domain.Citation
	NextSteps []string
}

// Summarize implements spec §4.9. If force is false and the incident
// already has a non-empty cached summary, it is returned verbatim with
// no recomputation.
func (s *Summarizer) Summarize(ctx context.Context, incidentID int64, force bool) (*Result, error) {
	result, _, err := s.summarize(ctx, incidentID, force, s.limitSimilar, s.limitRunbook)
	return result, err
}

// SummarizeWithLimits is the full form of Summarize, additionally
// honoring per-request limit_similar/limit_runbook overrides (spec
// §6's POST /incidents/{id}/summarize query parameters) and reporting
// whether the result was served from the cached summary without
// recomputation. Limits <= 0 fall back to the Summarizer's defaults.
func (s *Summarizer) SummarizeWithLimits(ctx context.Context, incidentID int64, force bool, limitSimilar, limitRunbook int) (*Result, bool, error) {
	if limitSimilar <= 0 {
		limitSimilar = s.limitSimilar
	}
	if limitRunbook <= 0 {
		limitRunbook = s.limitRunbook
	}
	return s.summarize(ctx, incidentID, force, limitSimilar, limitRunbook)
}

// SummarizeForChat builds (or returns the still-valid cached) summary
// context for the Chat Orchestrator, honoring per-request
// limit_similar/limit_runbook overrides (spec §4.10's query
// parameters); limits <= 0 fall back to the Summarizer's defaults.
// Chat turns never force recomputation.
func (s *Summarizer) SummarizeForChat(ctx context.Context, incidentID int64, limitSimilar, limitRunbook int) (*Result, error) {
	result, _, err := s.SummarizeWithLimits(ctx, incidentID, false, limitSimilar, limitRunbook)
	return result, err
}

func (s *Summarizer) summarize(ctx context.Context, incidentID int64, force bool, limitSimilar, limitRunbook int) (*Result, bool, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, false, fmt.Errorf("summarizer: load incident: %w", err)
	}
	if !force && inc.Summary != "" {
		return &Result{Summary: inc.Summary, Citations: inc.SummaryCitations, NextSteps: inc.NextSteps}, true, nil
	}

	alerts, err := s.alerts.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, false, fmt.Errorf("summarizer: load alerts: %w", err)
	}

	if err := s.refreshRunbookEmbeddings(ctx); err != nil {
		return nil, false, err
	}

	similar, err := s.retriever.SimilarIncidents(ctx, inc, alerts, limitSimilar)
	if err != nil {
		return nil, false, fmt.Errorf("summarizer: similar incidents: %w", err)
	}

	queryText := retrieval.SubjectText(inc, alerts)
	queryEmbedding := inc.Embedding
	if queryEmbedding == nil {
		queryEmbedding = embed.Text(queryText)
	}
	runbookHits, err := s.retriever.SearchRunbooks(ctx, queryText, queryEmbedding, limitRunbook)
	if err != nil {
		return nil, false, fmt.Errorf("summarizer: runbook search: %w", err)
	}

	result := compose(inc, alerts, similar, runbookHits)

	if err := s.incidents.UpdateSummary(ctx, incidentID, result.Summary, result.Citations, result.NextSteps); err != nil {
		return nil, false, fmt.Errorf("summarizer: persist: %w", err)
	}
	return result, false, nil
}

func (s *Summarizer) refreshRunbookEmbeddings(ctx context.Context) error {
	pending, err := s.runbooks.ListWithNullEmbedding(ctx)
	if err != nil {
		return fmt.Errorf("summarizer: list pending embeddings: %w", err)
	}
	for _, c := range pending {
		vec := embed.Text(c.Title + " " + c.Content)
		if err := s.runbooks.UpdateEmbedding(ctx, c.ID, vec); err != nil {
			return fmt.Errorf("summarizer: backfill embedding for chunk %d: %w", c.ID, err)
		}
	}
	return nil
}

// compose implements spec §4.9 steps 4-5 deterministically.
func compose(inc *domain.Incident, alerts []*domain.Alert, similar []retrieval.IncidentResult, runbookHits []retrieval.RunbookResult) *Result {
	var b strings.Builder
	var citations []domain.Citation

	fmt.Fprintf(&b, "Incident #%d %q is %s with severity %s.", inc.ID, inc.Title, inc.Status, inc.Severity)

	if len(alerts) > 0 {
		n := len(alerts)
		if n > 3 {
			n = 3
		}
		b.WriteString("\nKey alerts:")
		for _, a := range alerts[:n] {
			fmt.Fprintf(&b, "\n- %s", a.Title)
			citations = append(citations, domain.NewAlertCitation(a.ID, a.Title))
		}
	}

	if len(similar) > 0 {
		b.WriteString("\nSimilar incidents:")
		for _, sim := range similar {
			fmt.Fprintf(&b, "\n- #%d %q (score %.3f)", sim.Incident.ID, sim.Incident.Title, round3(sim.Score))
			citations = append(citations, domain.NewIncidentCitation(sim.Incident.ID, sim.Incident.Title, round3(sim.Score)))
		}
	}

	if len(runbookHits) > 0 {
		b.WriteString("\nRelevant runbook references:")
		for _, hit := range runbookHits {
			fmt.Fprintf(&b, "\n- %s (chunk %d)", hit.Chunk.SourceDocument, hit.Chunk.ChunkIndex)
			citations = append(citations, domain.NewRunbookCitation(hit.Chunk.SourceDocument, hit.Chunk.ChunkIndex, hit.Chunk.Title, round3(hit.Score)))
		}
	}

	var nextSteps []string
	if inc.Severity == domain.SeverityCritical || inc.Severity == domain.SeverityError {
		nextSteps = append(nextSteps, "Page on-call and open an incident bridge")
	}
	if len(inc.AffectedServices) > 0 {
		nextSteps = append(nextSteps, fmt.Sprintf("Validate service health for: %s", strings.Join(inc.AffectedServices, ", ")))
	}
	if len(similar) > 0 {
		top := similar[0]
		nextSteps = append(nextSteps, fmt.Sprintf("Review similar incident #%d: %s", top.Incident.ID, top.Incident.Title))
	}
	if len(runbookHits) > 0 {
		top := runbookHits[0]
		nextSteps = append(nextSteps, fmt.Sprintf("Check runbook: %s (chunk %d)", top.Chunk.SourceDocument, top.Chunk.ChunkIndex))
	}
	if len(nextSteps) == 0 {
		nextSteps = append(nextSteps, "Gather additional context from logs and metrics")
	}

	return &Result{Summary: b.String(), Citations: citations, NextSteps: nextSteps}
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
