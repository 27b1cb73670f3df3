package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

func TestSubjectText_IncludesTitleSummaryServicesAndUpToFiveAlerts(t *testing.T) {
	inc := &domain.Incident{
		Title:            "checkout down",
		Summary:          "ongoing outage",
		AffectedServices: []string{"checkout", "payments"},
	}
	alerts := make([]*domain.Alert, 7)
	for i := range alerts {
		alerts[i] = &domain.Alert{Title: "alert-title", Message: "alert-message"}
	}

	text := SubjectText(inc, alerts)
	assert.Contains(t, text, "checkout down")
	assert.Contains(t, text, "ongoing outage")
	assert.Contains(t, text, "checkout,payments")
	assert.Equal(t, 5, countOccurrences(text, "alert-title"))
}

func TestIntersects(t *testing.T) {
	assert.True(t, intersects([]string{"a", "b"}, []string{"b", "c"}))
	assert.False(t, intersects([]string{"a"}, []string{"c"}))
	assert.False(t, intersects(nil, nil))
}

func TestFinalizeRunbookScores_DropsBelowFloorAndCapsAtOne(t *testing.T) {
	r := &Retriever{weights: Weights{MinScore: 0.2, TitleBoost: 0.5, ContentBoost: 0.5}}
	chunks := map[int64]*domain.RunbookChunk{
		1: {ID: 1, Title: "database failover runbook", Content: "steps"},
		2: {ID: 2, Title: "unrelated", Content: "steps"},
	}
	scores := map[int64]float64{1: 0.9, 2: 0.1}

	out := r.finalizeRunbookScores("database failover", scores, chunks, 10)
	assert.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].Chunk.ID)
	assert.Equal(t, 1.0, out[0].Score)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
