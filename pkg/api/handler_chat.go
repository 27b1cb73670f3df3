package api

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/chatapi"
)

// chatStreamHandler handles GET /chat/stream?incident_id&message&conversation_id?&limit_similar&limit_runbook
// (spec §4.10/§6): a text/event-stream of tool/assistant_delta/assistant/
// error/done frames.
func (s *Server) chatStreamHandler(c *echo.Context) error {
	incidentID, err := strconv.ParseInt(c.QueryParam("incident_id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "incident_id query parameter is required")
	}
	message := c.QueryParam("message")
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message query parameter is required")
	}
	conversationID := c.QueryParam("conversation_id")
	limitSimilar := queryInt(c, "limit_similar", 0)
	limitRunbook := queryInt(c, "limit_runbook", 0)

	w, err := chatapi.NewSSEWriter(c.Response())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	err = s.chat.Stream(c.Request().Context(), w, incidentID, message, conversationID, limitSimilar, limitRunbook)
	if errors.Is(err, chatapi.ErrChatBusy) {
		return echo.NewHTTPError(http.StatusConflict, "a chat turn is already running for this incident")
	}
	return err
}
