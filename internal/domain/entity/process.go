package entity

import "time"

// NodeType classifies a node in a process definition
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeStage     NodeType = "stage"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeEnd       NodeType = "end"
)

// IsValid returns true if the node type is one of the defined constants
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeStart, NodeTypeStage, NodeTypeCondition, NodeTypeAction, NodeTypeEnd:
		return true
	default:
		return false
	}
}

// Definition status constants
const (
	DefinitionStatusDraft     = "draft"
	DefinitionStatusPublished = "published"
)

// Node is a single step of a process definition
type Node struct {
	ID        string   `json:"id" yaml:"id"`
	Type      NodeType `json:"type" yaml:"type"`
	Label     string   `json:"label" yaml:"label"`
	Mandatory bool     `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	// FormID is stored and forwarded without inspection
	FormID string `json:"formId,omitempty" yaml:"formId,omitempty"`
}

// Edge connects two nodes, optionally carrying a branch condition
type Edge struct {
	ID        string `json:"id" yaml:"id"`
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// ProcessDefinition is a tenant-authored directed graph of discharge-planning stages
type ProcessDefinition struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"tenantId" yaml:"tenantId"`
	Name        string     `json:"name" yaml:"name"`
	Version     int        `json:"version" yaml:"version"`
	Status      string     `json:"status" yaml:"status,omitempty"`
	Nodes       []Node     `json:"nodes" yaml:"nodes"`
	Edges       []Edge     `json:"edges" yaml:"edges"`
	StartNodeID string     `json:"startNodeId" yaml:"startNodeId"`
	EndNodeIDs  []string   `json:"endNodeIds" yaml:"endNodeIds"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" yaml:"-"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"-"`
}

// IsPublished reports whether the definition is frozen for subjects
func (d *ProcessDefinition) IsPublished() bool {
	return d.Status == DefinitionStatusPublished
}

// Node returns the node with the given id
func (d *ProcessDefinition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// SameShape reports whether other has identical nodes, edges, start and end ids
func (d *ProcessDefinition) SameShape(other *ProcessDefinition) bool {
	if d.StartNodeID != other.StartNodeID ||
		len(d.Nodes) != len(other.Nodes) ||
		len(d.Edges) != len(other.Edges) ||
		len(d.EndNodeIDs) != len(other.EndNodeIDs) {
		return false
	}
	for i := range d.Nodes {
		if d.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	for i := range d.Edges {
		if d.Edges[i] != other.Edges[i] {
			return false
		}
	}
	for i := range d.EndNodeIDs {
		if d.EndNodeIDs[i] != other.EndNodeIDs[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the definition
func (d *ProcessDefinition) Clone() *ProcessDefinition {
	out := *d
	out.Nodes = append([]Node(nil), d.Nodes...)
	out.Edges = append([]Edge(nil), d.Edges...)
	out.EndNodeIDs = append([]string(nil), d.EndNodeIDs...)
	if d.PublishedAt != nil {
		t := *d.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

// HistoryEntry records one visit to a node
type HistoryEntry struct {
	NodeID    string     `json:"nodeId"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
}

// IsOpen reports whether the subject is still at this node
func (h HistoryEntry) IsOpen() bool {
	return h.ExitedAt == nil
}

// SubjectWorkflowState tracks one subject progressing through a published definition
type SubjectWorkflowState struct {
	TenantID          string         `json:"tenantId"`
	SubjectID         string         `json:"subjectId"`
	DefinitionID      string         `json:"definitionId"`
	DefinitionVersion int            `json:"definitionVersion"`
	CurrentNodeID     string         `json:"currentNodeId"`
	VisitedNodeIDs    []string       `json:"visitedNodeIds"`
	History           []HistoryEntry `json:"history"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// HasVisited reports whether nodeID is in the visited set
func (s *SubjectWorkflowState) HasVisited(nodeID string) bool {
	for _, id := range s.VisitedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state
func (s *SubjectWorkflowState) Clone() *SubjectWorkflowState {
	out := *s
	out.VisitedNodeIDs = append([]string(nil), s.VisitedNodeIDs...)
	out.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		out.History[i] = h
		if h.ExitedAt != nil {
			t := *h.ExitedAt
			out.History[i].ExitedAt = &t
		}
	}
	return &out
}
