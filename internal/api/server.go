// Package api implements the repodash HTTP server: the dashboard page, the
// JSON API under /api/v1 and the event stream for connected viewers.
package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/repodash/repodash/internal/events"
	"github.com/repodash/repodash/internal/service/audit"
	"github.com/repodash/repodash/internal/service/auth"
	"github.com/repodash/repodash/internal/service/content"
	"github.com/repodash/repodash/internal/service/deploy"
	"github.com/repodash/repodash/internal/service/lock"
	"github.com/repodash/repodash/internal/service/workflow"
	"github.com/repodash/repodash/pkg/logger"
)

// V1PathPrefix is the URL prefix of the JSON API.
const V1PathPrefix = "/api/v1"

// Server exposes the dashboard and its API over HTTP.
type Server struct {
	router *gin.Engine

	workflowService *workflow.Service
	lockService     *lock.Service
	auditService    *audit.Service
	authService     *auth.Service
	deployService   *deploy.Service
	broadcaster     *events.Broadcaster
	log             logger.Logger

	dashboardTmpl *template.Template
}

// ServerOptions holds the collaborators used to create a Server.
type ServerOptions struct {
	WorkflowService *workflow.Service
	LockService     *lock.Service
	AuditService    *audit.Service
	AuthService     *auth.Service
	DeployService   *deploy.Service
	Broadcaster     *events.Broadcaster
	Logger          logger.Logger
}

// NewServer creates the API server and sets up all routes.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.WorkflowService == nil || opts.LockService == nil || opts.AuditService == nil ||
		opts.AuthService == nil || opts.DeployService == nil || opts.Broadcaster == nil {
		return nil, fmt.Errorf("server options are missing a service")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	tmpl, err := template.New("dashboard").Parse(dashboardHTML)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}

	s := &Server{
		workflowService: opts.WorkflowService,
		lockService:     opts.LockService,
		auditService:    opts.AuditService,
		authService:     opts.AuthService,
		deployService:   opts.DeployService,
		broadcaster:     opts.Broadcaster,
		log:             log,
		dashboardTmpl:   tmpl,
	}

	router, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = router
	return s, nil
}

// Router returns the server's HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.dashboardHandler())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(V1PathPrefix)
	{
		v1.GET("/status", s.statusHandler())
		v1.GET("/lock", s.lockStateHandler())
		v1.GET("/events", s.eventsHandler())

		v1.GET("/targets/:key", s.getTargetHandler())
		v1.PUT("/targets/:key", s.updateTargetHandler())
		v1.GET("/targets/:key/history", s.listHistoryHandler())
		v1.POST("/targets/:key/restore/:version", s.restoreTargetHandler())

		v1.POST("/admin/login", s.adminLoginHandler())

		admin := v1.Group("/admin", s.requireAdmin())
		{
			admin.POST("/lock", s.setLockHandler(true))
			admin.POST("/unlock", s.setLockHandler(false))
			admin.GET("/lock/history", s.lockHistoryHandler())
			admin.GET("/audit", s.auditQueryHandler())
			admin.POST("/deploy", s.deployHandler())
			admin.POST("/targets/:key/clear", s.clearTargetHandler())
		}
	}

	return r, nil
}

// statusCode maps a service error to an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrSystemLocked), errors.Is(err, deploy.ErrSystemLocked):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrNoCredential):
		return http.StatusUnauthorized
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, content.ErrRemoteUnavailable), errors.Is(err, deploy.ErrHookFailed):
		return http.StatusBadGateway
	case errors.Is(err, deploy.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusCode(err), gin.H{"error": err.Error()})
}
