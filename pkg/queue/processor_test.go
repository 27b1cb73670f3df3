package queue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/pkg/classifier"
	"github.com/opsrelay/opsrelay/pkg/domain"
)

func TestClassify_GatewaySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"severity": "critical", "team": "payments", "confidence": 0.9})
	}))
	defer srv.Close()

	p := &Processor{classifier: classifier.NewClient(srv.URL)}
	alert := &domain.Alert{Title: "db down"}
	p.classify(t.Context(), alert)

	require.NotNil(t, alert.Severity)
	assert.Equal(t, "critical", *alert.Severity)
	assert.Equal(t, "payments", *alert.PredictedTeam)
	assert.Equal(t, domain.ClassificationML, *alert.ClassificationSource)
}

func TestClassify_GatewayFailure_UsesFixedFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &Processor{classifier: classifier.NewClient(srv.URL)}
	alert := &domain.Alert{Title: "db down"}
	p.classify(t.Context(), alert)

	require.NotNil(t, alert.Severity)
	assert.Equal(t, domain.SeverityWarning, *alert.Severity)
	assert.Equal(t, "backend", *alert.PredictedTeam)
	assert.Equal(t, 0.0, *alert.ConfidenceScore)
	assert.Equal(t, domain.ClassificationFallbackRule, *alert.ClassificationSource)
}

func TestExtractEntities_GatewaySuccess_RecordsMLProvenance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"service_name": "checkout"})
	}))
	defer srv.Close()

	p := &Processor{classifier: classifier.NewClient(srv.URL)}
	alert := &domain.Alert{Title: "checkout errors"}
	p.extractEntities(t.Context(), alert)

	require.NotNil(t, alert.ServiceName)
	assert.Equal(t, "checkout", *alert.ServiceName)
	assert.Equal(t, domain.ProvenanceML, alert.EntitySources["service_name"])
	assert.Equal(t, domain.ProvenanceML, *alert.EntitySource)
}

func TestExtractEntities_GatewayFailure_FallsBackToTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &Processor{classifier: classifier.NewClient(srv.URL)}
	alert := &domain.Alert{
		Title:      "checkout errors",
		RawPayload: map[string]any{"tags": []any{"service:checkout"}},
	}
	p.extractEntities(t.Context(), alert)

	require.NotNil(t, alert.ServiceName)
	assert.Equal(t, "checkout", *alert.ServiceName)
	assert.Equal(t, domain.ProvenanceTags, alert.EntitySources["service_name"])
	assert.Equal(t, domain.ProvenanceTags, *alert.EntitySource)
}

func TestExtractEntities_NoSignalAnywhere_SummaryUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &Processor{classifier: classifier.NewClient(srv.URL)}
	alert := &domain.Alert{Title: "something happened"}
	p.extractEntities(t.Context(), alert)

	assert.Nil(t, alert.ServiceName)
	assert.Equal(t, "unknown", *alert.EntitySource)
}
