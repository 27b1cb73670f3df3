package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/domain"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// listIncidentsHandler handles GET /incidents (spec §6).
func (s *Server) listIncidentsHandler(c *echo.Context) error {
	f := storage.IncidentFilter{
		Status:      queryStringPtr(c, "status"),
		Severity:    queryStringPtr(c, "severity"),
		Service:     queryStringPtr(c, "service"),
		Team:        queryStringPtr(c, "team"),
		Source:      queryStringPtr(c, "source"),
		CreatedFrom: queryStringPtr(c, "created_from"),
		CreatedTo:   queryStringPtr(c, "created_to"),
		UpdatedFrom: queryStringPtr(c, "updated_from"),
		UpdatedTo:   queryStringPtr(c, "updated_to"),
		Limit:       clampLimit(queryInt(c, "limit", 0)),
		Offset:      queryInt(c, "offset", 0),
	}

	summaries, total, err := s.incidents.List(c.Request().Context(), f)
	if err != nil {
		return mapServiceError(err)
	}

	items := make([]*IncidentListItem, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, &IncidentListItem{
			Incident:    sum.Incident,
			AlertCount:  sum.AlertCount,
			LastAlertAt: sum.LastAlertAt,
		})
	}

	return c.JSON(http.StatusOK, &ListResponse{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

// getIncidentHandler handles GET /incidents/{id} (spec §6): incident +
// alerts + actions.
func (s *Server) getIncidentHandler(c *echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid incident id")
	}

	inc, err := s.incidents.GetByID(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	alerts, err := s.alerts.ListByIncident(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	actions, err := s.actions.ListByIncident(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &IncidentDetailResponse{
		Incident: inc,
		Alerts:   alerts,
		Actions:  actions,
	})
}

// updateIncidentStatusHandler handles PATCH /incidents/{id}/status?status=<new>
// (spec §6): validates the transition per the DAG in §3, writing a
// status_change action and the resolved_at/closed_at timestamps.
func (s *Server) updateIncidentStatusHandler(c *echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid incident id")
	}

	newStatus := c.QueryParam("status")
	if newStatus == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query parameter is required")
	}

	ctx := c.Request().Context()
	inc, err := s.incidents.UpdateStatus(ctx, id, newStatus)
	if err != nil {
		return mapServiceError(err)
	}

	action := &domain.IncidentAction{
		IncidentID:  id,
		ActionType:  domain.ActionStatusChange,
		Description: "status changed to " + newStatus,
		User:        "api",
	}
	if err := s.actions.Create(ctx, action); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, inc)
}

// similarIncidentsHandler handles GET /incidents/{id}/similar?limit&min_score
// (spec §6): ranked similar incidents via the Similar-Incident Finder.
func (s *Server) similarIncidentsHandler(c *echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid incident id")
	}

	ctx := c.Request().Context()
	inc, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return mapServiceError(err)
	}
	alerts, err := s.alerts.ListByIncident(ctx, id)
	if err != nil {
		return mapServiceError(err)
	}

	limit := clampLimit(queryInt(c, "limit", 0))
	minScore := queryFloat(c, "min_score", -1)

	var (
		results []retrieval.IncidentResult
		err2    error
	)
	if minScore >= 0 {
		results, err2 = s.retriever.SimilarIncidentsWithMinScore(ctx, inc, alerts, limit, minScore)
	} else {
		results, err2 = s.retriever.SimilarIncidents(ctx, inc, alerts, limit)
	}
	if err2 != nil {
		return mapServiceError(err2)
	}

	out := make([]*SimilarIncidentResponse, 0, len(results))
	for _, r := range results {
		out = append(out, &SimilarIncidentResponse{Incident: r.Incident, Score: r.Score})
	}
	return c.JSON(http.StatusOK, out)
}

// summarizeIncidentHandler handles
// POST /incidents/{id}/summarize?limit_similar&limit_runbook&force
// (spec §6): runs the Summarizer and caches the result.
func (s *Server) summarizeIncidentHandler(c *echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid incident id")
	}

	force := queryBool(c, "force", false)
	limitSimilar := queryInt(c, "limit_similar", 0)
	limitRunbook := queryInt(c, "limit_runbook", 0)

	result, cached, err := s.summarizer.SummarizeWithLimits(c.Request().Context(), id, force, limitSimilar, limitRunbook)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &SummarizeResponse{
		Summary:   result.Summary,
		Citations: result.Citations,
		NextSteps: result.NextSteps,
		Cached:    cached,
	})
}
