package process

import (
	"fmt"
	"strings"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// GraphOverlay marks a subject's progress on the rendered graph
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid renders def as a Mermaid flowchart. Node shapes follow the node type;
// mandatory nodes are suffixed with an asterisk.
func GenerateMermaid(def *entity.ProcessDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range def.Nodes {
		opener, closer := "[", "]"
		switch node.Type {
		case entity.NodeTypeStart:
			opener, closer = "((", "))"
		case entity.NodeTypeEnd:
			opener, closer = "([", "])"
		case entity.NodeTypeCondition:
			opener, closer = "{", "}"
		case entity.NodeTypeAction:
			opener, closer = "[[", "]]"
		}

		label := node.Label
		if label == "" {
			label = node.ID
		}
		if node.Mandatory {
			label += " *"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, escapeLabel(label), closer)
	}

	for _, e := range def.Edges {
		arrow := "-->"
		if e.Condition != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.Condition))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] || id == overlay.CurrentNode {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
