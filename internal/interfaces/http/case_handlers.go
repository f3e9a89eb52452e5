package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discharge-planner/internal/application/workflow"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
	"github.com/garyjia/discharge-planner/pkg/utils"
)

// OpenCaseRequest opens a discharge case
type OpenCaseRequest struct {
	PatientID   string         `json:"patientId" binding:"required"`
	PatientName string         `json:"patientName"`
	Contact     entity.Contact `json:"contact"`
}

// ListCasesRequest represents query parameters for listing cases
type ListCasesRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// ActionRequest applies one action to a case
type ActionRequest struct {
	Action  string          `json:"action" binding:"required"`
	Actor   entity.Actor    `json:"actor"`
	Payload json.RawMessage `json:"payload"`
}

// ActionResponse reports an applied action
type ActionResponse struct {
	Case  *entity.Case       `json:"case"`
	Entry *entity.AuditEntry `json:"entry"`
	From  string             `json:"from"`
	To    string             `json:"to"`
}

// OpenCase handles POST /cases
func (h *Handlers) OpenCase(c *gin.Context) {
	var req OpenCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := utils.ValidateIdentifier("patient", req.PatientID); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Contact.Channel == "email" {
		if err := utils.ValidateEmail(req.Contact.Address); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	opened, err := h.cases.OpenCase(c.Request.Context(), workflow.OpenCaseRequest{
		TenantID:    c.Param("tenant"),
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Contact:     req.Contact,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, opened)
}

// ListCases handles GET /cases
func (h *Handlers) ListCases(c *gin.Context) {
	var req ListCasesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	cases, err := h.cases.ListCases(c.Request.Context(), c.Param("tenant"), req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"cases": cases, "limit": req.Limit, "offset": req.Offset})
}

// GetCase handles GET /cases/:case
func (h *Handlers) GetCase(c *gin.Context) {
	got, err := h.cases.GetCase(c.Request.Context(), c.Param("tenant"), c.Param("case"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, got)
}

// ApplyAction handles POST /cases/:case/actions
func (h *Handlers) ApplyAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.cases.Apply(c.Request.Context(), c.Param("tenant"), c.Param("case"), workflow.Command{
		Action:     domainwf.Action(req.Action),
		Actor:      req.Actor,
		RawPayload: req.Payload,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	ok(c, http.StatusOK, ActionResponse{
		Case:  res.Case,
		Entry: res.Entry,
		From:  res.From.String(),
		To:    res.To.String(),
	})
}

// PermittedActions handles GET /cases/:case/permitted
func (h *Handlers) PermittedActions(c *gin.Context) {
	actions, err := h.cases.PermittedActions(c.Request.Context(), c.Param("tenant"), c.Param("case"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, actions)
}

// CaseSummary handles GET /cases/:case/summary
func (h *Handlers) CaseSummary(c *gin.Context) {
	summary, err := h.cases.Summary(c.Request.Context(), c.Param("tenant"), c.Param("case"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// ExportAudit handles GET /cases/:case/audit/export
func (h *Handlers) ExportAudit(c *gin.Context) {
	caseID := c.Param("case")

	var buf bytes.Buffer
	if err := h.audit.ExportCase(c.Request.Context(), c.Param("tenant"), caseID, &buf); err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="case-%s-audit.xlsx"`, caseID))
	c.Data(http.StatusOK, h.audit.ContentType(), buf.Bytes())
}
