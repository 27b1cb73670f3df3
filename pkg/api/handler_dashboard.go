package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// dashboardMetricsHandler handles GET /dashboard/metrics (spec §6).
func (s *Server) dashboardMetricsHandler(c *echo.Context) error {
	m, err := s.incidents.Metrics(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &DashboardMetricsResponse{
		ActiveIncidents:   m.ActiveIncidents,
		CriticalIncidents: m.CriticalIncidents,
		UntriagedAlerts:   m.UntriagedAlerts,
		MTTAMinutes:       m.MTTAMinutes,
		MTTRMinutes:       m.MTTRMinutes,
	})
}
