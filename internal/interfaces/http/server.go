// Package http exposes the process and case engines over a JSON API.
// It is a thin adapter that translates requests to application calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discharge-planner/internal/application/service"
	"github.com/garyjia/discharge-planner/internal/application/workflow"
	"github.com/garyjia/discharge-planner/pkg/tracing"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Mode:            gin.ReleaseMode,
	}
}

// HealthFunc reports overall health and a per-component breakdown
type HealthFunc func(ctx context.Context) (bool, interface{})

// Deps holds the application components the server exposes
type Deps struct {
	Cases   workflow.CaseEngine
	Process service.ProcessService
	Audit   service.AuditService
	Health  HealthFunc
	Metrics http.Handler
	Logger  Logger
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Deps
}

// NewServer creates a new HTTP server with the given components
func NewServer(config ServerConfig, deps Deps) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.tracingMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// tracingMiddleware opens one span per request
func (s *Server) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartSpan(c.Request.Context(), "http.request", map[string]string{
			"http.method": c.Request.Method,
			"http.route":  c.FullPath(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttribute("http.status_code", fmt.Sprint(c.Writer.Status()))
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		tracing.EndSpan(span, err)
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.deps.Logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	tenant := s.router.Group("/api/v1/tenants/:tenant", h.requireTenant)
	{
		defs := tenant.Group("/definitions")
		defs.GET("", h.ListDefinitions)
		defs.POST("", h.SaveDefinition)
		defs.GET("/:id", h.GetDefinition)
		defs.PUT("/:id", h.SaveDefinition)
		defs.POST("/:id/validate", h.ValidateDefinition)
		defs.POST("/:id/publish", h.PublishDefinition)
		defs.GET("/:id/graph", h.DefinitionGraph)
		defs.GET("/:id/kanban", h.Kanban)

		defs.POST("/:id/subjects", h.EnterSubject)
		defs.GET("/:id/subjects/:subject", h.GetSubject)
		defs.GET("/:id/subjects/:subject/transitions", h.AvailableTransitions)
		defs.POST("/:id/subjects/:subject/advance", h.AdvanceSubject)
		defs.GET("/:id/subjects/:subject/completion", h.Completion)

		cases := tenant.Group("/cases")
		cases.GET("", h.ListCases)
		cases.POST("", h.OpenCase)
		cases.GET("/:case", h.GetCase)
		cases.POST("/:case/actions", h.ApplyAction)
		cases.GET("/:case/permitted", h.PermittedActions)
		cases.GET("/:case/summary", h.CaseSummary)
		cases.GET("/:case/audit/export", h.ExportAudit)
	}
}

// Start starts the HTTP server and blocks until ctx is done or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.deps.Logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.deps.Logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.deps.Logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.deps.Logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.deps.Logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
