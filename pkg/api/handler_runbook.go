package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/embed"
)

// listRunbooksHandler handles GET /runbooks (spec §6): indexes the
// distinct source documents behind the runbook chunk corpus.
func (s *Server) listRunbooksHandler(c *echo.Context) error {
	docs, err := s.runbooks.ListSourceDocuments(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &ListResponse{
		Items:  docs,
		Total:  len(docs),
		Limit:  len(docs),
		Offset: 0,
	})
}

// searchRunbooksHandler handles GET /runbooks/search?q&limit (spec
// §6) through the Hybrid Retriever over the runbook_chunks table. Every
// row of that table is searched; the chunks' source column is not
// filtered on.
func (s *Server) searchRunbooksHandler(c *echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q query parameter is required")
	}
	limit := clampLimit(queryInt(c, "limit", 0))

	hits, err := s.retriever.SearchRunbooks(c.Request().Context(), query, embed.Text(query), limit)
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]*RunbookSearchResponse, 0, len(hits))
	for _, h := range hits {
		out = append(out, &RunbookSearchResponse{Chunk: h.Chunk, Score: h.Score})
	}
	return c.JSON(http.StatusOK, out)
}
