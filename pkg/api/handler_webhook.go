package api

import (
	"encoding/json"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
)

// webhookHandler handles POST /webhook/{source} (spec §6). Must return
// within 2 seconds: parsing, dedup-lookup, persist, and enqueue are all
// synchronous request-path work; enrichment happens later on the
// Processor's worker plane.
func (s *Server) webhookHandler(c *echo.Context) error {
	source := c.Param("source")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	if !s.intake.VerifySignature(source, body, c.Request().Header.Get("X-Signature")) {
		return mapServiceError(apierrors.ErrUnauthorizedSignature)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body")
	}

	alert, err := s.intake.Ingest(c.Request().Context(), source, payload)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &WebhookResponse{
		Status:     "received",
		AlertID:    alert.ID,
		ExternalID: alert.ExternalID,
	})
}
