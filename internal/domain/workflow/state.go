package workflow

// State represents a case lifecycle state
type State string

const (
	StateMonitoring     State = "S0"
	StateScreened       State = "S1"
	StateAssessment     State = "S2"
	StateLockedReferral State = "S3"
	StateClosed         State = "S4"
	StatePacConsult     State = "S5"
	StateSuspended      State = "E1"
	StateTerminated     State = "T1"
)

// InitialState is the state every new case starts in
const InitialState = StateMonitoring

var validStates = map[State]bool{
	StateMonitoring:     true,
	StateScreened:       true,
	StateAssessment:     true,
	StateLockedReferral: true,
	StateClosed:         true,
	StatePacConsult:     true,
	StateSuspended:      true,
	StateTerminated:     true,
}

var terminalStates = map[State]bool{
	StateClosed:     true,
	StateTerminated: true,
}

var stateLabels = map[State]string{
	StateMonitoring:     "Monitoring",
	StateScreened:       "Screened",
	StateAssessment:     "Assessment",
	StateLockedReferral: "Referral sent",
	StateClosed:         "Closed",
	StatePacConsult:     "PAC consult",
	StateSuspended:      "Suspended",
	StateTerminated:     "Terminated",
}

// States lists every state in lifecycle order
func States() []State {
	return []State{
		StateMonitoring, StateScreened, StateAssessment, StatePacConsult,
		StateLockedReferral, StateClosed, StateSuspended, StateTerminated,
	}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}

// Label returns the human-readable name of the state
func (s State) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}
