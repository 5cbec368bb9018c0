// Package api exposes the responder's HTTP surface: the alert webhook, the
// incident and service administration API, health and metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/database"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/queue"
	"github.com/codeready-toolchain/responder/pkg/services"
)

// maxWebhookBodyBytes caps inbound webhook payloads.
const maxWebhookBodyBytes = 1 << 20

// Ingester turns webhook bodies into incidents.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (*services.IngestOutcome, error)
}

// ServiceAdmin manages monitored services.
type ServiceAdmin interface {
	CreateService(ctx context.Context, req models.CreateServiceRequest) (*models.ServiceConfig, error)
	GetService(ctx context.Context, id string) (*models.ServiceConfig, error)
	ListServices(ctx context.Context, includeInactive bool) ([]*models.ServiceConfig, error)
	UpdateService(ctx context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error)
	DeactivateService(ctx context.Context, id string) error
}

// IncidentReader serves incident reads.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, filters models.IncidentFilters) (*models.IncidentListResponse, error)
	Events(ctx context.Context, id string) ([]models.IncidentEvent, error)
}

// Reviewer applies approve/reject decisions.
type Reviewer interface {
	ApproveFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error)
	RejectFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error)
}

// PoolHealthReporter reports worker pool health.
type PoolHealthReporter interface {
	Health(ctx context.Context) *queue.PoolHealth
}

// DatabaseHealthFunc pings the database.
type DatabaseHealthFunc func(ctx context.Context) (*database.HealthStatus, error)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        *config.HTTPConfig

	webhookSecret string
	dbHealth      DatabaseHealthFunc
	ingest        Ingester
	services      ServiceAdmin
	incidents     IncidentReader
	reviews       Reviewer
	workerPool    PoolHealthReporter
}

// NewServer creates the API server and registers its routes.
func NewServer(
	cfg *config.Config,
	dbHealth DatabaseHealthFunc,
	ingest Ingester,
	serviceAdmin ServiceAdmin,
	incidents IncidentReader,
	reviews Reviewer,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders(), requestLogger())

	s := &Server{
		engine:        engine,
		cfg:           cfg.HTTP,
		webhookSecret: cfg.PagerDuty.WebhookSecret(),
		dbHealth:      dbHealth,
		ingest:        ingest,
		services:      serviceAdmin,
		incidents:     incidents,
		reviews:       reviews,
	}
	s.setupRoutes()
	return s
}

// SetWorkerPool attaches the worker pool for health reporting.
func (s *Server) SetWorkerPool(pool PoolHealthReporter) {
	s.workerPool = pool
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/pagerduty", s.pagerDutyWebhookHandler)

	v1 := s.engine.Group("/api/v1")

	v1.GET("/incidents", s.listIncidentsHandler)
	v1.GET("/incidents/:id", s.getIncidentHandler)
	v1.POST("/incidents/:id/approve", s.approveFixHandler)
	v1.POST("/incidents/:id/reject", s.rejectFixHandler)

	v1.GET("/services", s.listServicesHandler)
	v1.POST("/services", s.createServiceHandler)
	v1.GET("/services/:id", s.getServiceHandler)
	v1.PUT("/services/:id", s.updateServiceHandler)
	v1.DELETE("/services/:id", s.deleteServiceHandler)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until Shutdown. It returns http.ErrServerClosed after
// a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}
	slog.Info("HTTP server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
