package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
)

func TestCompose_HeaderAndEmptySections(t *testing.T) {
	inc := &domain.Incident{ID: 7, Title: "db down", Status: domain.StatusOpen, Severity: domain.SeverityWarning}
	result := compose(inc, nil, nil, nil)

	assert.Contains(t, result.Summary, `Incident #7 "db down" is open with severity warning.`)
	assert.NotContains(t, result.Summary, "Key alerts:")
	assert.NotContains(t, result.Summary, "Similar incidents:")
	assert.NotContains(t, result.Summary, "Relevant runbook references:")
	assert.Equal(t, []string{"Gather additional context from logs and metrics"}, result.NextSteps)
	assert.Empty(t, result.Citations)
}

func TestCompose_CriticalWithServicesAndSimilarAndRunbooks(t *testing.T) {
	inc := &domain.Incident{
		ID: 1, Title: "payments outage", Status: domain.StatusInvestigating,
		Severity: domain.SeverityCritical, AffectedServices: []string{"payments", "checkout"},
	}
	alerts := []*domain.Alert{
		{ID: 10, Title: "payments 5xx spike"},
		{ID: 11, Title: "checkout latency high"},
	}
	similar := []retrieval.IncidentResult{
		{Incident: &domain.Incident{ID: 2, Title: "prior payments outage"}, Score: 0.873},
	}
	runbooks := []retrieval.RunbookResult{
		{Chunk: &domain.RunbookChunk{SourceDocument: "payments-runbook", ChunkIndex: 2, Title: "Payments failover"}, Score: 0.5},
	}

	result := compose(inc, alerts, similar, runbooks)

	assert.Contains(t, result.Summary, "Key alerts:")
	assert.Contains(t, result.Summary, "payments 5xx spike")
	assert.Contains(t, result.Summary, "Similar incidents:")
	assert.Contains(t, result.Summary, "#2 \"prior payments outage\" (score 0.873)")
	assert.Contains(t, result.Summary, "Relevant runbook references:")
	assert.Contains(t, result.Summary, "payments-runbook (chunk 2)")

	assert.Equal(t, []string{
		"Page on-call and open an incident bridge",
		"Validate service health for: payments, checkout",
		"Review similar incident #2: prior payments outage",
		"Check runbook: payments-runbook (chunk 2)",
	}, result.NextSteps)

	assert.Len(t, result.Citations, 4)
	assert.Equal(t, "alert", result.Citations[0].Type)
	assert.Equal(t, "incident", result.Citations[2].Type)
	assert.Equal(t, "runbook", result.Citations[3].Type)
}

func TestCompose_CapsKeyAlertsAtThree(t *testing.T) {
	inc := &domain.Incident{ID: 1, Title: "t", Status: domain.StatusOpen, Severity: domain.SeverityInfo}
	alerts := []*domain.Alert{
		{ID: 1, Title: "a1"}, {ID: 2, Title: "a2"}, {ID: 3, Title: "a3"}, {ID: 4, Title: "a4"},
	}
	result := compose(inc, alerts, nil, nil)
	assert.Len(t, result.Citations, 3)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.873, round3(0.8734))
	assert.Equal(t, 0.875, round3(0.87451))
	assert.Equal(t, 1.0, round3(1.0))
}
