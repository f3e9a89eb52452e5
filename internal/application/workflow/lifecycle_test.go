package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestMachine() *CaseMachine {
	seq := 0
	return NewCaseMachine(
		WithMachineClock(func() time.Time { return fixedNow }),
		WithIDSource(func() string {
			seq++
			return fmt.Sprintf("audit-%d", seq)
		}),
	)
}

func score(v float64) *float64 { return &v }

func caseIn(state domainwf.State) *entity.Case {
	return &entity.Case{
		ID:           "case-1",
		TenantID:     "tenant-a",
		PatientID:    "p-1",
		CurrentState: state.String(),
	}
}

// validPayload returns a payload that passes the guard of action on a case prepared by readyCase
func validPayload(action domainwf.Action) any {
	switch action {
	case domainwf.ActionFlag:
		return domainwf.FlagPayload{RiskSource: "LACE", Score: score(88)}
	case domainwf.ActionOrders:
		return domainwf.OrdersPayload{ClinicianID: "DOC1"}
	case domainwf.ActionPacStart:
		return domainwf.PacStartPayload{}
	case domainwf.ActionPacFinish:
		return domainwf.PacFinishPayload{Status: entity.PacStatusRejected}
	case domainwf.ActionReferral:
		return domainwf.ReferralPayload{}
	case domainwf.ActionClose:
		return domainwf.ClosePayload{}
	case domainwf.ActionSuspend:
		return domainwf.SuspendPayload{Reason: "ICU transfer"}
	case domainwf.ActionResume:
		return domainwf.ResumePayload{}
	case domainwf.ActionTerminate:
		return domainwf.TerminatePayload{Type: entity.TerminationOther}
	case domainwf.ActionUpdatePlacement:
		return domainwf.UpdatePlacementPayload{Placement: &entity.Placement{Type: entity.PlacementHome}}
	case domainwf.ActionUpdateAssessment:
		return domainwf.UpdateAssessmentPayload{Assessment: &entity.Assessment{Tool: "Barthel"}}
	case domainwf.ActionUpdateTodos:
		return domainwf.UpdateTodosPayload{Todos: []entity.TodoItem{{ID: "t1", Title: "call family"}}}
	}
	return nil
}

// readyCase has every companion field a guard could ask for
func readyCase(state domainwf.State) *entity.Case {
	c := caseIn(state)
	c.Placement = &entity.Placement{Type: entity.PlacementHome}
	c.Assessment = &entity.Assessment{Tool: "Barthel"}
	return c
}

func TestPermittedFromMonitoring(t *testing.T) {
	m := newTestMachine()

	allowed := map[domainwf.Action]bool{
		domainwf.ActionFlag:             true,
		domainwf.ActionSuspend:          true,
		domainwf.ActionTerminate:        true,
		domainwf.ActionUpdatePlacement:  true,
		domainwf.ActionUpdateAssessment: true,
		domainwf.ActionUpdateTodos:      true,
	}

	for _, action := range domainwf.Actions() {
		_, err := m.Apply(context.Background(), caseIn(domainwf.StateMonitoring), Command{
			Action:  action,
			Payload: validPayload(action),
		})
		if allowed[action] {
			if err != nil {
				t.Errorf("%s from S0: unexpected error %v", action, err)
			}
			continue
		}
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("%s from S0: expected InvalidTransition, got %v", action, err)
		}
	}
}

func TestReferralRequiresPlacementAndAssessment(t *testing.T) {
	m := newTestMachine()

	tests := []struct {
		name       string
		placement  *entity.Placement
		assessment *entity.Assessment
		wantErr    error
	}{
		{"neither", nil, nil, apperr.ErrValidationFailure},
		{"placement only", &entity.Placement{Type: entity.PlacementHome}, nil, apperr.ErrValidationFailure},
		{"assessment only", nil, &entity.Assessment{Tool: "Barthel"}, apperr.ErrValidationFailure},
		{"both", &entity.Placement{Type: entity.PlacementHome}, &entity.Assessment{Tool: "Barthel"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := caseIn(domainwf.StateAssessment)
			c.Placement = tt.placement
			c.Assessment = tt.assessment

			res, err := m.Apply(context.Background(), c, Command{Action: domainwf.ActionReferral, Payload: domainwf.ReferralPayload{}})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.To != domainwf.StateLockedReferral {
				t.Errorf("To = %s, want S3", res.To)
			}
			if res.Case.Referral == nil || res.Case.Referral.Placement.Type != entity.PlacementHome {
				t.Errorf("referral not recorded: %+v", res.Case.Referral)
			}
		})
	}
}

func TestReferralBlockedOutsideAssessment(t *testing.T) {
	m := newTestMachine()

	for _, state := range []domainwf.State{domainwf.StateScreened, domainwf.StatePacConsult} {
		_, err := m.Apply(context.Background(), readyCase(state), Command{Action: domainwf.ActionReferral, Payload: domainwf.ReferralPayload{}})
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Errorf("Referral from %s: expected InvalidTransition, got %v", state, err)
		}
	}
}

func TestPacFinishOutcomes(t *testing.T) {
	m := newTestMachine()

	tests := []struct {
		name     string
		payload  domainwf.PacFinishPayload
		wantErr  error
		wantType string
	}{
		{"accepted without facility", domainwf.PacFinishPayload{Status: entity.PacStatusAccepted}, apperr.ErrValidationFailure, ""},
		{"accepted with facility", domainwf.PacFinishPayload{Status: entity.PacStatusAccepted, FacilityID: "X"}, nil, entity.PlacementTransfer},
		{"rejected with facility", domainwf.PacFinishPayload{Status: entity.PacStatusRejected, FacilityID: "X"}, apperr.ErrValidationFailure, ""},
		{"rejected without facility", domainwf.PacFinishPayload{Status: entity.PacStatusRejected}, nil, entity.PlacementHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := readyCase(domainwf.StatePacConsult)
			res, err := m.Apply(context.Background(), c, Command{Action: domainwf.ActionPacFinish, Payload: tt.payload})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.To != domainwf.StateAssessment {
				t.Errorf("To = %s, want S2", res.To)
			}
			if res.Case.Placement.Type != tt.wantType {
				t.Errorf("placement type = %s, want %s", res.Case.Placement.Type, tt.wantType)
			}
			if tt.wantType == entity.PlacementTransfer && res.Case.Placement.Transfer.Name != "X" {
				t.Errorf("transfer name = %q, want X", res.Case.Placement.Transfer.Name)
			}
		})
	}
}

func TestPacFinishAcceptedWithoutPlacement(t *testing.T) {
	m := newTestMachine()
	c := caseIn(domainwf.StatePacConsult)

	_, err := m.Apply(context.Background(), c, Command{
		Action:  domainwf.ActionPacFinish,
		Payload: domainwf.PacFinishPayload{Status: entity.PacStatusAccepted, FacilityID: "X"},
	})
	if !errors.Is(err, apperr.ErrAutomationFailure) {
		t.Fatalf("expected AutomationFailure, got %v", err)
	}
	if c.CurrentState != domainwf.StatePacConsult.String() || c.Version != 0 {
		t.Error("failed automation must not touch the input case")
	}
}

func TestLockedReferralRejectsAllButClose(t *testing.T) {
	m := newTestMachine()

	for _, action := range domainwf.Actions() {
		res, err := m.Apply(context.Background(), readyCase(domainwf.StateLockedReferral), Command{
			Action:  action,
			Payload: validPayload(action),
		})
		if action == domainwf.ActionClose {
			if err != nil {
				t.Fatalf("Close from S3: %v", err)
			}
			if res.To != domainwf.StateClosed || res.Case.ClosedAt == nil {
				t.Errorf("Close did not close the case: %+v", res.Case)
			}
			continue
		}
		if !errors.Is(err, apperr.ErrLockedState) {
			t.Errorf("%s from S3: expected LockedState, got %v", action, err)
		}
	}
}

func TestSuspendResumeRestoresState(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()

	res, err := m.Apply(ctx, readyCase(domainwf.StateAssessment), Command{Action: domainwf.ActionSuspend, Payload: domainwf.SuspendPayload{}})
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if res.Case.CurrentState != domainwf.StateSuspended.String() || res.Case.PreviousState != domainwf.StateAssessment.String() {
		t.Fatalf("after Suspend: current=%s previous=%s", res.Case.CurrentState, res.Case.PreviousState)
	}

	res, err = m.Apply(ctx, res.Case, Command{Action: domainwf.ActionResume, Payload: domainwf.ResumePayload{}})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Case.CurrentState != domainwf.StateAssessment.String() || res.Case.PreviousState != "" {
		t.Errorf("after Resume: current=%s previous=%q", res.Case.CurrentState, res.Case.PreviousState)
	}
	if res.ResumedWithoutSnapshot {
		t.Error("ResumedWithoutSnapshot should be false when a snapshot existed")
	}
	if res.Case.Version != 2 || len(res.Case.AuditHistory) != 2 {
		t.Errorf("version=%d audit=%d, want 2/2", res.Case.Version, len(res.Case.AuditHistory))
	}
}

func TestResumeWithoutSnapshot(t *testing.T) {
	m := newTestMachine()

	res, err := m.Apply(context.Background(), caseIn(domainwf.StateSuspended), Command{Action: domainwf.ActionResume})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.To != domainwf.InitialState || !res.ResumedWithoutSnapshot {
		t.Errorf("To=%s flag=%v, want S0/true", res.To, res.ResumedWithoutSnapshot)
	}
}

func TestTerminateFromSuspended(t *testing.T) {
	m := newTestMachine()
	c := caseIn(domainwf.StateSuspended)
	c.PreviousState = domainwf.StateScreened.String()

	_, err := m.Apply(context.Background(), c, Command{Action: domainwf.ActionTerminate, Payload: domainwf.TerminatePayload{Type: entity.TerminationTransfer}})
	if !errors.Is(err, apperr.ErrValidationFailure) {
		t.Fatalf("transfer without details: expected ValidationFailure, got %v", err)
	}

	res, err := m.Apply(context.Background(), c, Command{Action: domainwf.ActionTerminate, Payload: domainwf.TerminatePayload{
		Type:            entity.TerminationTransfer,
		TransferDetails: &entity.TransferDetails{Facility: "County Rehab"},
	}})
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if res.To != domainwf.StateTerminated || res.Case.PreviousState != "" || res.Case.ClosedAt == nil {
		t.Errorf("unexpected terminated case: %+v", res.Case)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	m := newTestMachine()

	for _, state := range []domainwf.State{domainwf.StateClosed, domainwf.StateTerminated} {
		if got := m.Permitted(caseIn(state)); len(got) != 0 {
			t.Errorf("Permitted(%s) = %v, want none", state, got)
		}
		for _, action := range domainwf.Actions() {
			_, err := m.Apply(context.Background(), readyCase(state), Command{Action: action, Payload: validPayload(action)})
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("%s from %s: expected InvalidTransition, got %v", action, state, err)
			}
		}
	}
}

func TestUnknownStateAndAction(t *testing.T) {
	m := newTestMachine()

	if _, err := m.Apply(context.Background(), caseIn("S9"), Command{Action: domainwf.ActionFlag}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("unknown state: expected InvalidTransition, got %v", err)
	}
	if _, err := m.Apply(context.Background(), caseIn(domainwf.StateMonitoring), Command{Action: "DANCE"}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("unknown action: expected InvalidTransition, got %v", err)
	}
	_, err := m.Apply(context.Background(), caseIn(domainwf.StateClosed), Command{Action: "DANCE", RawPayload: json.RawMessage(`{"steps":3}`)})
	if got := apperr.StateOf(err); !errors.Is(err, apperr.ErrInvalidTransition) || got != "S4" {
		t.Errorf("unknown action on closed case: got %v (state %q)", err, got)
	}
}

func TestRawPayloadDecodedAfterWhitelist(t *testing.T) {
	m := newTestMachine()
	ctx := context.Background()
	malformed := json.RawMessage(`{"placement":"nursing home"}`)

	_, err := m.Apply(ctx, readyCase(domainwf.StateLockedReferral), Command{Action: domainwf.ActionUpdatePlacement, RawPayload: malformed})
	if !errors.Is(err, apperr.ErrLockedState) {
		t.Errorf("locked case: expected LockedState, got %v", err)
	}

	_, err = m.Apply(ctx, readyCase(domainwf.StateClosed), Command{Action: domainwf.ActionUpdatePlacement, RawPayload: malformed})
	if !errors.Is(err, apperr.ErrInvalidTransition) || apperr.StateOf(err) != "S4" {
		t.Errorf("closed case: expected InvalidTransition at S4, got %v", err)
	}

	_, err = m.Apply(ctx, readyCase(domainwf.StateAssessment), Command{Action: domainwf.ActionUpdatePlacement, RawPayload: malformed})
	if !errors.Is(err, apperr.ErrValidationFailure) || apperr.StateOf(err) != "S2" {
		t.Errorf("open case: expected ValidationFailure at S2, got %v", err)
	}

	res, err := m.Apply(ctx, readyCase(domainwf.StateAssessment), Command{
		Action:     domainwf.ActionUpdatePlacement,
		RawPayload: json.RawMessage(`{"placement":{"type":"Home"}}`),
	})
	if err != nil {
		t.Fatalf("well-formed raw payload: %v", err)
	}
	if res.Case.Placement == nil || res.Case.Placement.Type != entity.PlacementHome {
		t.Errorf("placement = %+v, want Home", res.Case.Placement)
	}
}

func TestPermittedLockedState(t *testing.T) {
	m := newTestMachine()

	got := m.Permitted(caseIn(domainwf.StateLockedReferral))
	if len(got) != 1 || got[0] != domainwf.ActionClose {
		t.Errorf("Permitted(S3) = %v, want [CLOSE]", got)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	m := newTestMachine()
	c := caseIn(domainwf.StateMonitoring)

	res, err := m.Apply(context.Background(), c, Command{Action: domainwf.ActionFlag, Payload: validPayload(domainwf.ActionFlag)})
	if err != nil {
		t.Fatalf("Flag: %v", err)
	}
	if c.CurrentState != domainwf.StateMonitoring.String() || c.Risk != nil || c.Version != 0 || len(c.AuditHistory) != 0 {
		t.Errorf("input case was modified: %+v", c)
	}

	e := res.Entry
	if e.ID != "audit-1" || e.Sequence != 1 || e.FromState != "S0" || e.ToState != "S1" || !e.Timestamp.Equal(fixedNow) {
		t.Errorf("unexpected audit entry: %+v", e)
	}
	if res.Case.Risk == nil || res.Case.Risk.Score != 88 {
		t.Errorf("risk not recorded: %+v", res.Case.Risk)
	}
}

func TestEditsStayInState(t *testing.T) {
	m := newTestMachine()

	for _, state := range []domainwf.State{domainwf.StateMonitoring, domainwf.StateScreened, domainwf.StateAssessment, domainwf.StatePacConsult, domainwf.StateSuspended} {
		for _, action := range []domainwf.Action{domainwf.ActionUpdatePlacement, domainwf.ActionUpdateAssessment, domainwf.ActionUpdateTodos} {
			res, err := m.Apply(context.Background(), caseIn(state), Command{Action: action, Payload: validPayload(action)})
			if err != nil {
				t.Errorf("%s in %s: %v", action, state, err)
				continue
			}
			if res.To != state {
				t.Errorf("%s in %s moved to %s", action, state, res.To)
			}
		}
	}
}
