// Package process implements the configurable process-definition engine:
// structural validation, subject movement along edges, completion tracking
// and the derived kanban and graph views.
package process

import (
	"fmt"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// Violation codes
const (
	CodeMissingStartNode  = "missing_start_node"
	CodeUnknownEndNode    = "unknown_end_node"
	CodeUnknownEdgeSource = "unknown_edge_source"
	CodeUnknownEdgeTarget = "unknown_edge_target"
)

// Violation is one structural problem found in a definition
type Violation struct {
	Code    string `json:"code"`
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Message string `json:"message"`
}

// Validate reports every structural violation in def. It never stops at the first
// problem so an editor can surface them all at once. An empty result means the
// definition may be published.
func Validate(def *entity.ProcessDefinition) []Violation {
	nodes := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		nodes[n.ID] = true
	}

	var violations []Violation

	if !nodes[def.StartNodeID] {
		violations = append(violations, Violation{
			Code:    CodeMissingStartNode,
			NodeID:  def.StartNodeID,
			Message: fmt.Sprintf("start node %q does not exist", def.StartNodeID),
		})
	}

	for _, id := range def.EndNodeIDs {
		if !nodes[id] {
			violations = append(violations, Violation{
				Code:    CodeUnknownEndNode,
				NodeID:  id,
				Message: fmt.Sprintf("end node %q does not exist", id),
			})
		}
	}

	for _, e := range def.Edges {
		if !nodes[e.Source] {
			violations = append(violations, Violation{
				Code:    CodeUnknownEdgeSource,
				NodeID:  e.Source,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %q source %q does not exist", e.ID, e.Source),
			})
		}
		if !nodes[e.Target] {
			violations = append(violations, Violation{
				Code:    CodeUnknownEdgeTarget,
				NodeID:  e.Target,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %q target %q does not exist", e.ID, e.Target),
			})
		}
	}

	return violations
}

// ValidationError wraps a non-empty violation list as a StructuralViolation
func ValidationError(def *entity.ProcessDefinition, violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	details := make([]string, len(violations))
	for i, v := range violations {
		details[i] = v.Message
	}
	return apperr.Structural(def.ID, details)
}
