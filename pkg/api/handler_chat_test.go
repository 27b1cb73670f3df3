package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

// We only test the request-shape edges reachable before the Chat
// Orchestrator is touched. The orchestrator's own event-sequence
// invariants are covered by pkg/chatapi's tests.
func TestChatStreamHandler_MissingIncidentID(t *testing.T) {
	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/chat/stream?message=hello", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.chatStreamHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}

func TestChatStreamHandler_MissingMessage(t *testing.T) {
	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodGet, "/chat/stream?incident_id=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.chatStreamHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}
