package process

import (
	"bytes"
	"strings"
	"testing"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

func TestBuildKanban(t *testing.T) {
	def := dischargeDefinition()
	subjects := []*entity.SubjectWorkflowState{
		{SubjectID: "p1", CurrentNodeID: "screen"},
		{SubjectID: "p2", CurrentNodeID: "screen"},
		{SubjectID: "p3", CurrentNodeID: "done"},
		{SubjectID: "p4", CurrentNodeID: "removed-node"},
	}

	board := BuildKanban(def, subjects)

	if len(board.Columns) != len(def.Nodes) {
		t.Fatalf("Columns = %d, want %d", len(board.Columns), len(def.Nodes))
	}
	for i, n := range def.Nodes {
		if board.Columns[i].NodeID != n.ID {
			t.Errorf("column %d = %s, want %s", i, board.Columns[i].NodeID, n.ID)
		}
	}
	if got := len(board.Columns[1].Subjects); got != 2 {
		t.Errorf("screen column has %d subjects, want 2", got)
	}
	if got := len(board.Columns[5].Subjects); got != 1 {
		t.Errorf("done column has %d subjects, want 1", got)
	}
	if len(board.Unknown.Subjects) != 1 || board.Unknown.Subjects[0].SubjectID != "p4" {
		t.Errorf("Unknown = %v, want [p4]", board.Unknown.Subjects)
	}

	total := len(board.Unknown.Subjects)
	for _, c := range board.Columns {
		total += len(c.Subjects)
	}
	if total != len(subjects) {
		t.Errorf("board holds %d subjects, want %d", total, len(subjects))
	}
}

func TestGenerateMermaid(t *testing.T) {
	def := dischargeDefinition()
	out := GenerateMermaid(def, &GraphOverlay{VisitedNodes: []string{"intake", "screen", "intake"}, CurrentNode: "risk"})

	wants := []string{
		"graph TD\n",
		`intake(("Intake"))`,
		`screen["Screening *"]`,
		`risk{"High risk?"}`,
		`consult[["PAC consult *"]]`,
		`done(["Discharged"])`,
		`risk -- "score >= 7" --> consult`,
		"education --> done",
		"class risk current;",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateMermaid() missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "class intake visited;") != 1 {
		t.Error("visited nodes should be deduplicated")
	}
}

func TestGenerateMermaid_NoOverlay(t *testing.T) {
	out := GenerateMermaid(dischargeDefinition(), nil)
	if strings.Contains(out, "classDef") {
		t.Error("overlay styles should be omitted without an overlay")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	doc := `
id: def-yaml
tenantId: tenant-a
name: Short stay
version: 1
nodes:
  - id: start
    type: start
    label: Admit
  - id: review
    type: stage
    label: Review
    mandatory: true
    formId: f-1
  - id: end
    type: end
    label: Home
edges:
  - id: e1
    source: start
    target: review
  - id: e2
    source: review
    target: end
startNodeId: start
endNodeIds: [end]
`
	def, err := DecodeYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	if def.Status != entity.DefinitionStatusDraft {
		t.Errorf("Status = %q, want draft", def.Status)
	}
	if n, _ := def.Node("review"); !n.Mandatory || n.FormID != "f-1" {
		t.Errorf("review node = %+v", n)
	}
	if v := Validate(def); len(v) != 0 {
		t.Errorf("decoded definition has violations: %v", v)
	}

	var buf bytes.Buffer
	if err := EncodeYAML(&buf, def); err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	again, err := DecodeYAML(&buf)
	if err != nil {
		t.Fatalf("DecodeYAML() of encoded output error = %v", err)
	}
	if !def.SameShape(again) {
		t.Error("re-decoded definition changed shape")
	}
}

func TestDecodeYAML_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeYAML(strings.NewReader("id: x\nnodez: []\n"))
	if err == nil {
		t.Error("DecodeYAML() should reject unknown keys")
	}
}
