package event

import (
	"testing"
	"time"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{"case opened", TypeCaseOpened, "case.opened"},
		{"case transitioned", TypeCaseTransitioned, "case.transitioned"},
		{"definition published", TypeDefinitionPublished, "definition.published"},
		{"subject entered", TypeSubjectEntered, "subject.entered"},
		{"subject advanced", TypeSubjectAdvanced, "subject.advanced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
			if !tt.eventType.IsValid() {
				t.Errorf("Type.IsValid() = false for %v", tt.eventType)
			}
		})
	}

	if Type("instance.created").IsValid() || Type("").IsValid() {
		t.Error("unknown types should be invalid")
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"to_state": "S1",
		"version":  3,
	}

	evt := NewEvent(TypeCaseTransitioned, "tenant-a", "case-1", payload)

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.Type != TypeCaseTransitioned {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeCaseTransitioned)
	}
	if evt.TenantID != "tenant-a" || evt.SubjectID != "case-1" {
		t.Errorf("Event scope = %s/%s", evt.TenantID, evt.SubjectID)
	}
	if evt.GetPayloadString("to_state") != "S1" {
		t.Errorf("payload to_state = %v", evt.Payload["to_state"])
	}
	if evt.GetPayloadInt("version") != 3 {
		t.Errorf("payload version = %v", evt.Payload["version"])
	}
	if evt.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestEvent_CorrelationChain(t *testing.T) {
	first := NewEvent(TypeCaseOpened, "tenant-a", "case-1", nil)
	second := NewEventWithCorrelation(TypeCaseTransitioned, "tenant-a", "case-1", nil, first.CorrelationID)

	if second.CorrelationID != first.CorrelationID {
		t.Error("second event should share the correlation id")
	}
	if first.ID == second.ID {
		t.Error("events should have unique IDs")
	}
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeSubjectAdvanced, "tenant-a", "p1", map[string]interface{}{"node": "screen"})
	modified := original.WithPayload("node", "risk")

	if original.GetPayloadString("node") != "screen" {
		t.Error("original event should not be modified")
	}
	if modified.GetPayloadString("node") != "risk" {
		t.Error("modified event should carry the new value")
	}
	if modified.ID != original.ID || modified.TenantID != original.TenantID {
		t.Error("identity fields should be copied")
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeCaseOpened, "tenant-a", "c", nil)
		if ids[evt.ID] {
			t.Errorf("Duplicate event ID found: %s", evt.ID)
		}
		ids[evt.ID] = true
	}
}
