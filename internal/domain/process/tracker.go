package process

import (
	"fmt"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// Completion is the result of a mandatory-node check
type Completion struct {
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
}

// Tracker moves subjects through a definition. It holds no subject state;
// every call takes the current state and returns a new value.
type Tracker struct {
	now func() time.Time
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithClock overrides the time source used for history timestamps
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker using the wall clock unless overridden
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AvailableTransitions returns the edges leaving currentNodeID in definition order
func AvailableTransitions(def *entity.ProcessDefinition, currentNodeID string) []entity.Edge {
	edges := make([]entity.Edge, 0)
	for _, e := range def.Edges {
		if e.Source == currentNodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// Start places a subject on the definition's start node
func (t *Tracker) Start(def *entity.ProcessDefinition, subjectID string) (*entity.SubjectWorkflowState, error) {
	if _, ok := def.Node(def.StartNodeID); !ok {
		return nil, apperr.Structural(def.ID, []string{fmt.Sprintf("start node %q does not exist", def.StartNodeID)})
	}

	now := t.now()
	return &entity.SubjectWorkflowState{
		TenantID:          def.TenantID,
		SubjectID:         subjectID,
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		CurrentNodeID:     def.StartNodeID,
		VisitedNodeIDs:    []string{def.StartNodeID},
		History:           []entity.HistoryEntry{{NodeID: def.StartNodeID, EnteredAt: now}},
		UpdatedAt:         now,
	}, nil
}

// ExecuteTransition moves state to targetNodeID along an existing edge.
// The input state is never modified.
func (t *Tracker) ExecuteTransition(def *entity.ProcessDefinition, state *entity.SubjectWorkflowState, targetNodeID string) (*entity.SubjectWorkflowState, error) {
	permitted := false
	for _, e := range AvailableTransitions(def, state.CurrentNodeID) {
		if e.Target == targetNodeID {
			permitted = true
			break
		}
	}
	if !permitted {
		return nil, apperr.InvalidTransition(state.CurrentNodeID, targetNodeID,
			fmt.Sprintf("no edge from %q to %q", state.CurrentNodeID, targetNodeID))
	}

	now := t.now()
	next := state.Clone()

	for i := range next.History {
		if next.History[i].IsOpen() {
			exited := now
			next.History[i].ExitedAt = &exited
		}
	}
	next.History = append(next.History, entity.HistoryEntry{NodeID: targetNodeID, EnteredAt: now})

	if !next.HasVisited(targetNodeID) {
		next.VisitedNodeIDs = append(next.VisitedNodeIDs, targetNodeID)
	}
	next.CurrentNodeID = targetNodeID
	next.UpdatedAt = now

	return next, nil
}

// CheckMandatoryCompletion lists mandatory node ids not in visited, in definition order
func CheckMandatoryCompletion(def *entity.ProcessDefinition, visited []string) Completion {
	seen := make(map[string]bool, len(visited))
	for _, id := range visited {
		seen[id] = true
	}

	missing := make([]string, 0)
	for _, n := range def.Nodes {
		if n.Mandatory && !seen[n.ID] {
			missing = append(missing, n.ID)
		}
	}

	return Completion{Complete: len(missing) == 0, Missing: missing}
}
