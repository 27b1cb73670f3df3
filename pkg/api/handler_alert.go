package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/storage"
)

// listAlertsHandler handles GET /alerts (spec §6).
func (s *Server) listAlertsHandler(c *echo.Context) error {
	f := storage.AlertFilter{
		Source:      queryStringPtr(c, "source"),
		Severity:    queryStringPtr(c, "severity"),
		Service:     queryStringPtr(c, "service"),
		Environment: queryStringPtr(c, "environment"),
		IncidentID:  queryIntPtr(c, "incident_id"),
		CreatedFrom: queryStringPtr(c, "created_from"),
		CreatedTo:   queryStringPtr(c, "created_to"),
		Limit:       clampLimit(queryInt(c, "limit", 0)),
		Offset:      queryInt(c, "offset", 0),
	}

	alerts, total, err := s.alerts.List(c.Request().Context(), f)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &ListResponse{
		Items:  alerts,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}
