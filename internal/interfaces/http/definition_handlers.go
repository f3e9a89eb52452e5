package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/process"
	"github.com/garyjia/discharge-planner/pkg/utils"
)

const maxDefinitionBytes = 1 << 20

func isYAML(contentType string) bool {
	return strings.Contains(contentType, "yaml")
}

// decodeDefinition reads a JSON or YAML definition body
func decodeDefinition(c *gin.Context) (*entity.ProcessDefinition, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDefinitionBytes))
	if err != nil {
		return nil, err
	}
	if isYAML(c.ContentType()) {
		return process.DecodeYAML(bytes.NewReader(body))
	}

	var def entity.ProcessDefinition
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// SaveDefinition handles POST /definitions and PUT /definitions/:id
func (h *Handlers) SaveDefinition(c *gin.Context) {
	def, err := decodeDefinition(c)
	if err != nil {
		badRequest(c, "invalid definition: "+err.Error())
		return
	}

	def.TenantID = c.Param("tenant")
	if id := c.Param("id"); id != "" {
		def.ID = id
	}
	if def.ID != "" {
		if err := utils.ValidateIdentifier("definition", def.ID); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	saved, err := h.process.SaveDraft(c.Request.Context(), def)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}
	ok(c, status, saved)
}

// ListDefinitions handles GET /definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	defs, err := h.process.ListDefinitions(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, defs)
}

// GetDefinition handles GET /definitions/:id. ?format=yaml returns the
// authoring document instead of JSON.
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.process.GetDefinition(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("format") == "yaml" {
		var buf bytes.Buffer
		if err := process.EncodeYAML(&buf, def); err != nil {
			h.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml", buf.Bytes())
		return
	}
	ok(c, http.StatusOK, def)
}

// ValidateDefinition handles POST /definitions/:id/validate
func (h *Handlers) ValidateDefinition(c *gin.Context) {
	violations, err := h.process.Validate(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if violations == nil {
		violations = []process.Violation{}
	}
	ok(c, http.StatusOK, gin.H{"valid": len(violations) == 0, "violations": violations})
}

// PublishDefinition handles POST /definitions/:id/publish
func (h *Handlers) PublishDefinition(c *gin.Context) {
	def, err := h.process.Publish(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, def)
}

// DefinitionGraph handles GET /definitions/:id/graph?subject=
func (h *Handlers) DefinitionGraph(c *gin.Context) {
	graph, err := h.process.Graph(c.Request.Context(), c.Param("tenant"), c.Param("id"), c.Query("subject"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.String(http.StatusOK, graph)
}

// Kanban handles GET /definitions/:id/kanban
func (h *Handlers) Kanban(c *gin.Context) {
	board, err := h.process.Kanban(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, board)
}

// EnterSubjectRequest places a subject on a definition's start node
type EnterSubjectRequest struct {
	SubjectID string `json:"subjectId" binding:"required"`
}

// EnterSubject handles POST /definitions/:id/subjects
func (h *Handlers) EnterSubject(c *gin.Context) {
	var req EnterSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := utils.ValidateIdentifier("subject", req.SubjectID); err != nil {
		badRequest(c, err.Error())
		return
	}

	state, err := h.process.EnterSubject(c.Request.Context(), c.Param("tenant"), c.Param("id"), req.SubjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, state)
}

// GetSubject handles GET /definitions/:id/subjects/:subject
func (h *Handlers) GetSubject(c *gin.Context) {
	state, err := h.process.GetSubject(c.Request.Context(), c.Param("tenant"), c.Param("id"), c.Param("subject"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, state)
}

// AvailableTransitions handles GET /definitions/:id/subjects/:subject/transitions
func (h *Handlers) AvailableTransitions(c *gin.Context) {
	edges, err := h.process.AvailableTransitions(c.Request.Context(), c.Param("tenant"), c.Param("id"), c.Param("subject"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if edges == nil {
		edges = []entity.Edge{}
	}
	ok(c, http.StatusOK, edges)
}

// AdvanceRequest moves a subject along one edge
type AdvanceRequest struct {
	TargetNodeID string `json:"targetNodeId" binding:"required"`
}

// AdvanceSubject handles POST /definitions/:id/subjects/:subject/advance
func (h *Handlers) AdvanceSubject(c *gin.Context) {
	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	state, err := h.process.Advance(c.Request.Context(), c.Param("tenant"), c.Param("id"), c.Param("subject"), req.TargetNodeID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, state)
}

// Completion handles GET /definitions/:id/subjects/:subject/completion
func (h *Handlers) Completion(c *gin.Context) {
	completion, err := h.process.Completion(c.Request.Context(), c.Param("tenant"), c.Param("id"), c.Param("subject"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if completion.Missing == nil {
		completion.Missing = []string{}
	}
	ok(c, http.StatusOK, completion)
}
