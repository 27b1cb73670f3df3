package entityfallback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

func ptr(s string) *string { return &s }

func TestApply_FromTags(t *testing.T) {
	alert := &domain.Alert{
		Title: "High CPU",
		RawPayload: map[string]any{
			"tags": []any{"service:api", "env:production", "region:us-east-1", "error:E500"},
		},
	}
	provenance := map[string]string{}
	Apply(alert, provenance)

	assert.Equal(t, "api", *alert.ServiceName)
	assert.Equal(t, "production", *alert.Environment)
	assert.Equal(t, "us-east-1", *alert.Region)
	assert.Equal(t, "E500", *alert.ErrorCode)
	assert.Equal(t, domain.ProvenanceTags, provenance["service_name"])
	assert.Equal(t, domain.ProvenanceTags, provenance["environment"])
}

func TestApply_DoesNotOverwriteExistingFields(t *testing.T) {
	alert := &domain.Alert{
		ServiceName: ptr("checkout"),
		RawPayload: map[string]any{
			"tags": []any{"service:api"},
		},
	}
	provenance := map[string]string{"service_name": domain.ProvenanceML}
	Apply(alert, provenance)

	assert.Equal(t, "checkout", *alert.ServiceName)
	assert.Equal(t, domain.ProvenanceML, provenance["service_name"])
}

func TestApply_TitleFallbackWhenNoTags(t *testing.T) {
	alert := &domain.Alert{Title: "Worker queue backlog growing"}
	provenance := map[string]string{}
	Apply(alert, provenance)

	assert.Equal(t, "queue", *alert.ServiceName)
	assert.Equal(t, domain.ProvenanceTitle, provenance["service_name"])
}

func TestApply_NoTagsNoMatchingTitle_LeavesNull(t *testing.T) {
	alert := &domain.Alert{Title: "Something odd happened"}
	provenance := map[string]string{}
	Apply(alert, provenance)

	assert.Nil(t, alert.ServiceName)
	assert.Empty(t, provenance)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, "unknown", Summarize(map[string]string{}))
}

func TestSummarize_Uniform(t *testing.T) {
	p := map[string]string{"service_name": "ml", "environment": "ml"}
	assert.Equal(t, "ml", Summarize(p))
}

func TestSummarize_Mixed(t *testing.T) {
	p := map[string]string{"service_name": "tags", "environment": "ml"}
	assert.Equal(t, "mixed", Summarize(p))
}
