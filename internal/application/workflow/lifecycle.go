package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
)

// Command is one requested action on a case. RawPayload is decoded into the
// typed payload for Action once the action is known to be permitted; it is
// ignored when Payload is set.
type Command struct {
	Action     domainwf.Action
	Actor      entity.Actor
	Payload    any
	RawPayload json.RawMessage
}

// Result is the outcome of a successful command
type Result struct {
	Case  *entity.Case
	Entry *entity.AuditEntry
	From  domainwf.State
	To    domainwf.State
	// ResumedWithoutSnapshot is set when Resume fell back to the initial state
	ResumedWithoutSnapshot bool
}

// CaseMachine applies commands to cases using the lifecycle table.
// It is pure: the input case is never modified and nothing is persisted.
type CaseMachine struct {
	table *domainwf.Table
	now   func() time.Time
	newID func() string
}

// MachineOption configures a CaseMachine
type MachineOption func(*CaseMachine)

// WithMachineClock overrides the time source stamped on effects and audit entries
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *CaseMachine) {
		m.now = now
	}
}

// WithIDSource overrides audit entry id generation
func WithIDSource(newID func() string) MachineOption {
	return func(m *CaseMachine) {
		m.newID = newID
	}
}

// NewCaseMachine creates a machine over the discharge lifecycle table
func NewCaseMachine(opts ...MachineOption) *CaseMachine {
	m := &CaseMachine{
		table: BuildCaseTable(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewCase returns a case in the initial state
func (m *CaseMachine) NewCase(tenantID, patientID, patientName string, contact entity.Contact) *entity.Case {
	now := m.now()
	return &entity.Case{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		PatientID:    patientID,
		PatientName:  patientName,
		CurrentState: domainwf.InitialState.String(),
		Contact:      contact,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Permitted lists the actions the case may take now. Terminal and locked states
// are reflected: a terminal case has none, a locked case has only its unlock action.
func (m *CaseMachine) Permitted(c *entity.Case) []domainwf.Action {
	state := domainwf.State(c.CurrentState)
	if state.IsTerminal() {
		return []domainwf.Action{}
	}
	actions := make([]domainwf.Action, 0)
	for _, a := range m.table.Permitted(state) {
		if domainwf.CheckLock(state, a) == nil {
			actions = append(actions, a)
		}
	}
	return actions
}

// Apply runs cmd against current. Checks run in a fixed order: terminal state,
// lock, explicit block, whitelist, payload decoding, guard, then effects. On success the returned
// case has its state moved, version bumped and the audit entry appended.
func (m *CaseMachine) Apply(ctx context.Context, current *entity.Case, cmd Command) (*Result, error) {
	from := domainwf.State(current.CurrentState)
	action := cmd.Action

	if !from.IsValid() {
		return nil, apperr.InvalidTransition(current.CurrentState, action.String(), "case is in an unknown state")
	}
	if from.IsTerminal() {
		return nil, apperr.InvalidTransition(from.String(), action.String(),
			fmt.Sprintf("case is %s and accepts no further actions", from.Label()))
	}
	if !action.IsValid() {
		return nil, apperr.InvalidTransition(from.String(), action.String(), "unknown action")
	}
	if err := domainwf.CheckLock(from, action); err != nil {
		return nil, err
	}
	if reason, blocked := m.table.Blocked(from, action); blocked {
		return nil, apperr.InvalidTransition(from.String(), action.String(), reason)
	}
	tr, ok := m.table.Lookup(from, action)
	if !ok {
		return nil, apperr.InvalidTransition(from.String(), action.String(),
			fmt.Sprintf("%s is not permitted from %s", action, from.Label()))
	}

	payload := cmd.Payload
	if payload == nil && len(cmd.RawPayload) > 0 {
		decoded, err := domainwf.DecodePayload(from, action, cmd.RawPayload)
		if err != nil {
			return nil, err
		}
		payload = decoded
	}

	next := current.Clone()
	req := &domainwf.Request{
		Case:    next,
		Action:  action,
		Payload: payload,
		Actor:   cmd.Actor,
		At:      m.now(),
	}

	if tr.Guard != nil {
		if err := tr.Guard(ctx, req); err != nil {
			return nil, err
		}
	}

	to := tr.Destination(next)
	_, hadSnapshot := domainwf.Restore(next)

	for _, effect := range tr.Effects {
		if err := effect(ctx, req); err != nil {
			return nil, err
		}
	}

	next.CurrentState = to.String()
	next.Version = current.Version + 1
	next.UpdatedAt = req.At

	entry, err := domainwf.NewAuditEntry(m.newID(), req, from, to, next.Version)
	if err != nil {
		return nil, err
	}
	next.AuditHistory = append(next.AuditHistory, *entry)

	return &Result{
		Case:                   next,
		Entry:                  entry,
		From:                   from,
		To:                     to,
		ResumedWithoutSnapshot: action == domainwf.ActionResume && !hadSnapshot,
	}, nil
}
