package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/intake"
)

// We only test the request-shape edges reachable before the storage
// layer is touched. Happy-path ingestion needs a real DB and is not
// exercised here.
func TestWebhookHandler_UnreadableBody(t *testing.T) {
	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodPost, "/webhook/datadog", &erroringReader{})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("source")
	c.SetParamValues("datadog")

	err := s.webhookHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}

func TestWebhookHandler_MalformedJSON_AfterSignatureBypass(t *testing.T) {
	e := echo.New()
	// skipSignature=true bypasses the signature check without needing a
	// real secret or a live database — the alerts/workItems/cache
	// dependencies are only ever touched past the JSON-parse step.
	s := &Server{intake: intake.New(nil, nil, nil, nil, "", "", "", true)}

	req := httptest.NewRequest(http.MethodPost, "/webhook/datadog", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("source")
	c.SetParamValues("datadog")

	err := s.webhookHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}

func TestWebhookHandler_UnauthorizedSignature(t *testing.T) {
	e := echo.New()
	s := &Server{intake: intake.New(nil, nil, nil, nil, "a-secret", "", "", false)}

	req := httptest.NewRequest(http.MethodPost, "/webhook/datadog", bytes.NewBufferString(`{"foo":"bar"}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("source")
	c.SetParamValues("datadog")

	err := s.webhookHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	}
}

type erroringReader struct{}

func (e *erroringReader) Read([]byte) (int, error) {
	return 0, errSimulatedRead
}

var errSimulatedRead = errors.New("simulated read failure")
