package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discharge-planner/internal/application/service"
	"github.com/garyjia/discharge-planner/internal/application/workflow"
	"github.com/garyjia/discharge-planner/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	cases   workflow.CaseEngine
	process service.ProcessService
	audit   service.AuditService
	health  HealthFunc
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		cases:   deps.Cases,
		process: deps.Process,
		audit:   deps.Audit,
		health:  deps.Health,
		logger:  deps.Logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		healthy, components := h.health(c.Request.Context())
		resp.Components = components
		if !healthy {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// requireTenant rejects malformed tenant ids before any handler runs
func (h *Handlers) requireTenant(c *gin.Context) {
	if err := utils.ValidateIdentifier("tenant", c.Param("tenant")); err != nil {
		badRequest(c, err.Error())
		c.Abort()
		return
	}
	c.Next()
}
