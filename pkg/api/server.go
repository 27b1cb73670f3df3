// Package api provides OpsRelay's thin HTTP façade: webhook intake,
// incident/alert/runbook/connector/dashboard CRUD, and the chat SSE
// stream, wired on top of the domain services in pkg/intake,
// pkg/storage, pkg/retrieval, pkg/summarizer, pkg/chatapi and
// pkg/queue.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/opsrelay/opsrelay/pkg/chatapi"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/intake"
	"github.com/opsrelay/opsrelay/pkg/queue"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/storage"
	"github.com/opsrelay/opsrelay/pkg/summarizer"
	"github.com/opsrelay/opsrelay/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	dbClient *database.Client

	intake     *intake.Service
	incidents  *storage.IncidentRepo
	alerts     *storage.AlertRepo
	actions    *storage.ActionRepo
	runbooks   *storage.RunbookRepo
	connectors *storage.ConnectorRepo
	retriever  *retrieval.Retriever
	summarizer *summarizer.Summarizer
	chat       *chatapi.Orchestrator
	workerPool *queue.WorkerPool
}

// NewServer creates a new API server with Echo v5.
func NewServer(
	dbClient *database.Client,
	intakeSvc *intake.Service,
	incidents *storage.IncidentRepo,
	alerts *storage.AlertRepo,
	actions *storage.ActionRepo,
	runbooks *storage.RunbookRepo,
	connectors *storage.ConnectorRepo,
	retriever *retrieval.Retriever,
	summarizer *summarizer.Summarizer,
	chat *chatapi.Orchestrator,
	workerPool *queue.WorkerPool,
) *Server {
	e := echo.New()

	s := &Server{
		echo:       e,
		dbClient:   dbClient,
		intake:     intakeSvc,
		incidents:  incidents,
		alerts:     alerts,
		actions:    actions,
		runbooks:   runbooks,
		connectors: connectors,
		retriever:  retriever,
		summarizer: summarizer,
		chat:       chat,
		workerPool: workerPool,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes (spec §6).
func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	// 2 MB body limit: comfortably above any single webhook payload
	// while rejecting multi-MB/GB bodies at the HTTP read level.
	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/webhook/:source", s.webhookHandler)

	s.echo.GET("/incidents", s.listIncidentsHandler)
	s.echo.GET("/incidents/:id", s.getIncidentHandler)
	s.echo.PATCH("/incidents/:id/status", s.updateIncidentStatusHandler)
	s.echo.GET("/incidents/:id/similar", s.similarIncidentsHandler)
	s.echo.POST("/incidents/:id/summarize", s.summarizeIncidentHandler)

	s.echo.GET("/alerts", s.listAlertsHandler)

	s.echo.GET("/runbooks", s.listRunbooksHandler)
	s.echo.GET("/runbooks/search", s.searchRunbooksHandler)

	s.echo.GET("/connectors", s.listConnectorsHandler)
	s.echo.POST("/connectors/:id/connect", s.connectConnectorHandler)

	s.echo.GET("/dashboard/metrics", s.dashboardMetricsHandler)

	s.echo.GET("/chat/stream", s.chatStreamHandler)
}

// Start starts the HTTP server on the given address and blocks until
// the server stops (it returns http.ErrServerClosed after Shutdown).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := "healthy"

	if _, err := database.Health(reqCtx, s.dbClient.Pool); err != nil {
		status = "unhealthy"
		checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: "healthy"}
	}

	if s.workerPool != nil {
		poolHealth := s.workerPool.Health(reqCtx)
		if poolHealth != nil && !poolHealth.IsHealthy {
			if status == "healthy" {
				status = "degraded"
			}
			checks["worker_pool"] = HealthCheck{Status: "degraded"}
		} else {
			checks["worker_pool"] = HealthCheck{Status: "healthy"}
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.Full(),
		Checks:  checks,
	})
}
