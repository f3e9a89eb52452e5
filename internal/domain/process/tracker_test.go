package process

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestAvailableTransitions(t *testing.T) {
	def := dischargeDefinition()

	edges := AvailableTransitions(def, "risk")
	if len(edges) != 2 || edges[0].ID != "e3" || edges[1].ID != "e4" {
		t.Errorf("AvailableTransitions(risk) = %v, want [e3 e4]", edges)
	}

	if edges := AvailableTransitions(def, "done"); len(edges) != 0 {
		t.Errorf("AvailableTransitions(done) = %v, want none", edges)
	}
}

func TestTracker_Start(t *testing.T) {
	tracker := NewTracker(WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	state, err := tracker.Start(dischargeDefinition(), "patient-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if state.CurrentNodeID != "intake" {
		t.Errorf("CurrentNodeID = %s, want intake", state.CurrentNodeID)
	}
	if !reflect.DeepEqual(state.VisitedNodeIDs, []string{"intake"}) {
		t.Errorf("VisitedNodeIDs = %v", state.VisitedNodeIDs)
	}
	if len(state.History) != 1 || !state.History[0].IsOpen() {
		t.Errorf("History = %v, want one open entry", state.History)
	}

	def := dischargeDefinition()
	def.StartNodeID = "ghost"
	if _, err := tracker.Start(def, "patient-2"); !errors.Is(err, apperr.ErrStructuralViolation) {
		t.Errorf("Start() on broken definition error = %v, want StructuralViolation", err)
	}
}

func TestTracker_ExecuteTransition(t *testing.T) {
	tracker := NewTracker(WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	def := dischargeDefinition()

	start, _ := tracker.Start(def, "patient-1")
	snapshot := start.Clone()

	next, err := tracker.ExecuteTransition(def, start, "screen")
	if err != nil {
		t.Fatalf("ExecuteTransition() error = %v", err)
	}

	if !reflect.DeepEqual(start, snapshot) {
		t.Error("ExecuteTransition() mutated its input")
	}
	if next.CurrentNodeID != "screen" {
		t.Errorf("CurrentNodeID = %s, want screen", next.CurrentNodeID)
	}
	if len(next.History) != 2 {
		t.Fatalf("History length = %d, want 2", len(next.History))
	}
	if next.History[0].ExitedAt == nil {
		t.Error("previous history entry should be closed")
	}
	if !next.History[0].ExitedAt.Equal(next.History[1].EnteredAt) {
		t.Error("exit and entry timestamps should match")
	}
	if !next.History[1].IsOpen() || next.History[1].NodeID != "screen" {
		t.Errorf("open entry = %+v, want screen", next.History[1])
	}
}

func TestTracker_ExecuteTransitionRejectsMissingEdge(t *testing.T) {
	tracker := NewTracker()
	def := dischargeDefinition()
	state, _ := tracker.Start(def, "patient-1")

	tests := []struct {
		name   string
		target string
	}{
		{"skip ahead to stage", "education"},
		{"skip to end node", "done"},
		{"condition node not adjacent", "risk"},
		{"unknown node", "nowhere"},
		{"self loop", "intake"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracker.ExecuteTransition(def, state, tt.target)
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("ExecuteTransition(%s) error = %v, want InvalidTransition", tt.target, err)
			}
		})
	}
}

func TestTracker_RevisitIsIdempotentInVisitedSet(t *testing.T) {
	def := &entity.ProcessDefinition{
		ID: "loop",
		Nodes: []entity.Node{
			{ID: "s", Type: entity.NodeTypeStart},
			{ID: "review", Type: entity.NodeTypeStage},
			{ID: "fix", Type: entity.NodeTypeStage},
		},
		Edges: []entity.Edge{
			{ID: "1", Source: "s", Target: "review"},
			{ID: "2", Source: "review", Target: "fix"},
			{ID: "3", Source: "fix", Target: "review"},
		},
		StartNodeID: "s",
	}
	tracker := NewTracker()
	state, _ := tracker.Start(def, "p")
	for _, target := range []string{"review", "fix", "review", "fix", "review"} {
		var err error
		state, err = tracker.ExecuteTransition(def, state, target)
		if err != nil {
			t.Fatalf("ExecuteTransition(%s) error = %v", target, err)
		}
	}

	if !reflect.DeepEqual(state.VisitedNodeIDs, []string{"s", "review", "fix"}) {
		t.Errorf("VisitedNodeIDs = %v, want [s review fix]", state.VisitedNodeIDs)
	}
	if len(state.History) != 6 {
		t.Errorf("History length = %d, want 6", len(state.History))
	}
}

// Along any legal walk the visited set only grows and exactly one history entry is open.
func TestTracker_WalkProperties(t *testing.T) {
	def := dischargeDefinition()
	tracker := NewTracker()
	rng := rand.New(rand.NewSource(7))

	for walk := 0; walk < 200; walk++ {
		state, err := tracker.Start(def, "p")
		if err != nil {
			t.Fatal(err)
		}
		for {
			edges := AvailableTransitions(def, state.CurrentNodeID)
			if len(edges) == 0 {
				break
			}
			before := append([]string(nil), state.VisitedNodeIDs...)
			next, err := tracker.ExecuteTransition(def, state, edges[rng.Intn(len(edges))].Target)
			if err != nil {
				t.Fatalf("legal move failed: %v", err)
			}

			if len(next.VisitedNodeIDs) < len(before) {
				t.Fatalf("visited set shrank: %v -> %v", before, next.VisitedNodeIDs)
			}
			for i, id := range before {
				if next.VisitedNodeIDs[i] != id {
					t.Fatalf("visited set lost %s", id)
				}
			}

			open := 0
			for _, h := range next.History {
				if h.IsOpen() {
					open++
					if h.NodeID != next.CurrentNodeID {
						t.Fatalf("open entry %s does not match current %s", h.NodeID, next.CurrentNodeID)
					}
				}
			}
			if open != 1 {
				t.Fatalf("found %d open history entries, want 1", open)
			}
			state = next
		}
	}
}

func TestCheckMandatoryCompletion(t *testing.T) {
	def := dischargeDefinition()

	tests := []struct {
		name     string
		visited  []string
		complete bool
		missing  []string
	}{
		{"nothing visited", nil, false, []string{"screen", "consult", "education"}},
		{"partial", []string{"intake", "education", "screen"}, false, []string{"consult"}},
		{"all mandatory", []string{"intake", "screen", "risk", "consult", "education", "done"}, true, []string{}},
		{"extra unknown ids ignored", []string{"screen", "consult", "education", "ghost"}, true, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckMandatoryCompletion(def, tt.visited)
			if got.Complete != tt.complete {
				t.Errorf("Complete = %v, want %v", got.Complete, tt.complete)
			}
			if !reflect.DeepEqual(got.Missing, tt.missing) {
				t.Errorf("Missing = %v, want %v", got.Missing, tt.missing)
			}
		})
	}
}
