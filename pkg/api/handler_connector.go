package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listConnectorsHandler handles GET /connectors (spec §6).
func (s *Server) listConnectorsHandler(c *echo.Context) error {
	connectors, err := s.connectors.List(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, connectors)
}

// connectConnectorHandler handles POST /connectors/{id}/connect (spec
// §6): an idempotent not_connected -> connected transition.
func (s *Server) connectConnectorHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "connector id is required")
	}
	if err := s.connectors.Connect(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id, "status": "connected"})
}
