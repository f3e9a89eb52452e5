package process

import "github.com/garyjia/discharge-planner/internal/domain/entity"

// UnknownColumnID collects subjects whose current node is not in the definition
const UnknownColumnID = "unknown"

// KanbanColumn is one node's worth of subjects
type KanbanColumn struct {
	NodeID   string                         `json:"nodeId"`
	Label    string                         `json:"label"`
	Type     entity.NodeType                `json:"type,omitempty"`
	Subjects []*entity.SubjectWorkflowState `json:"subjects"`
}

// Kanban groups subjects by current node
type Kanban struct {
	DefinitionID string         `json:"definitionId"`
	Version      int            `json:"version"`
	Columns      []KanbanColumn `json:"columns"`
	Unknown      KanbanColumn   `json:"unknown"`
}

// BuildKanban returns one column per node in definition order. Subjects are never
// dropped: those on a node the definition does not know land in Unknown.
func BuildKanban(def *entity.ProcessDefinition, subjects []*entity.SubjectWorkflowState) *Kanban {
	board := &Kanban{
		DefinitionID: def.ID,
		Version:      def.Version,
		Columns:      make([]KanbanColumn, len(def.Nodes)),
		Unknown: KanbanColumn{
			NodeID:   UnknownColumnID,
			Label:    "Unknown",
			Subjects: make([]*entity.SubjectWorkflowState, 0),
		},
	}

	index := make(map[string]int, len(def.Nodes))
	for i, n := range def.Nodes {
		index[n.ID] = i
		board.Columns[i] = KanbanColumn{
			NodeID:   n.ID,
			Label:    n.Label,
			Type:     n.Type,
			Subjects: make([]*entity.SubjectWorkflowState, 0),
		}
	}

	for _, s := range subjects {
		if i, ok := index[s.CurrentNodeID]; ok {
			board.Columns[i].Subjects = append(board.Columns[i].Subjects, s)
			continue
		}
		board.Unknown.Subjects = append(board.Unknown.Subjects, s)
	}

	return board
}
