package workflow

// Action is a command that may change a case
type Action string

const (
	ActionFlag             Action = "FLAG"
	ActionOrders           Action = "ORDERS"
	ActionPacStart         Action = "PAC_START"
	ActionPacFinish        Action = "PAC_FINISH"
	ActionReferral         Action = "REFERRAL"
	ActionClose            Action = "CLOSE"
	ActionSuspend          Action = "SUSPEND"
	ActionResume           Action = "RESUME"
	ActionTerminate        Action = "TERMINATE"
	ActionUpdatePlacement  Action = "UPDATE_PLACEMENT"
	ActionUpdateAssessment Action = "UPDATE_ASSESSMENT"
	ActionUpdateTodos      Action = "UPDATE_TODOS"
)

var validActions = map[Action]bool{
	ActionFlag:             true,
	ActionOrders:           true,
	ActionPacStart:         true,
	ActionPacFinish:        true,
	ActionReferral:         true,
	ActionClose:            true,
	ActionSuspend:          true,
	ActionResume:           true,
	ActionTerminate:        true,
	ActionUpdatePlacement:  true,
	ActionUpdateAssessment: true,
	ActionUpdateTodos:      true,
}

// Actions lists every action
func Actions() []Action {
	return []Action{
		ActionFlag, ActionOrders, ActionPacStart, ActionPacFinish, ActionReferral, ActionClose,
		ActionSuspend, ActionResume, ActionTerminate,
		ActionUpdatePlacement, ActionUpdateAssessment, ActionUpdateTodos,
	}
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid returns true if the action is one of the defined constants
func (a Action) IsValid() bool {
	return validActions[a]
}

// IsEdit reports whether the action changes case data without moving state
func (a Action) IsEdit() bool {
	switch a {
	case ActionUpdatePlacement, ActionUpdateAssessment, ActionUpdateTodos:
		return true
	default:
		return false
	}
}
