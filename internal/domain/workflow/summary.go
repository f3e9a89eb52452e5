package workflow

import (
	"fmt"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

var nextActionHints = map[Action]string{
	ActionFlag:      "screen the patient and flag discharge risk",
	ActionOrders:    "obtain discharge planning orders",
	ActionPacStart:  "request a post-acute care consult",
	ActionPacFinish: "record the post-acute care consult outcome",
	ActionReferral:  "send the referral",
	ActionClose:     "confirm discharge and close the case",
	ActionResume:    "resume the case",
}

// NextAction recommends the action that moves the case forward, or "" for
// terminal cases. In Assessment a referral is recommended once a placement is set.
func NextAction(c *entity.Case) Action {
	switch State(c.CurrentState) {
	case StateMonitoring:
		return ActionFlag
	case StateScreened:
		return ActionOrders
	case StateAssessment:
		if c.Placement != nil {
			return ActionReferral
		}
		return ActionPacStart
	case StatePacConsult:
		return ActionPacFinish
	case StateLockedReferral:
		return ActionClose
	case StateSuspended:
		return ActionResume
	default:
		return ""
	}
}

// EarliestDue returns the earliest due date among open to-dos
func EarliestDue(todos []entity.TodoItem) *time.Time {
	var earliest *time.Time
	for _, t := range todos {
		if t.Done || t.DueAt == nil {
			continue
		}
		if earliest == nil || t.DueAt.Before(*earliest) {
			d := *t.DueAt
			earliest = &d
		}
	}
	return earliest
}

// BuildSummary derives the read model for outbound channels. Message carries a
// plain template that a SummaryWriter may replace.
func BuildSummary(c *entity.Case) *entity.CaseSummary {
	state := State(c.CurrentState)
	next := NextAction(c)

	s := &entity.CaseSummary{
		CaseID:       c.ID,
		TenantID:     c.TenantID,
		PatientName:  c.PatientName,
		CurrentState: c.CurrentState,
		StateLabel:   state.Label(),
		NextAction:   next.String(),
		DueDate:      EarliestDue(c.Todos),
		Contact:      c.Contact,
	}
	s.Message = TemplateMessage(s)
	return s
}

// TemplateMessage renders a one-line message for a summary
func TemplateMessage(s *entity.CaseSummary) string {
	patient := s.PatientName
	if patient == "" {
		patient = "Case " + s.CaseID
	}

	msg := fmt.Sprintf("%s is now %s.", patient, s.StateLabel)
	if hint, ok := nextActionHints[Action(s.NextAction)]; ok {
		msg += " Next: " + hint + "."
	}
	if s.DueDate != nil {
		msg += " Due " + s.DueDate.Format("2006-01-02") + "."
	}
	return msg
}
