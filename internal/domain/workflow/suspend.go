package workflow

import "github.com/garyjia/discharge-planner/internal/domain/entity"

// Snapshot records the current state so a later Resume can return to it.
// Only one level is kept.
func Snapshot(c *entity.Case) {
	c.PreviousState = c.CurrentState
}

// Restore returns the state to resume into and whether a snapshot existed.
// Without a snapshot the case goes back to the initial state.
func Restore(c *entity.Case) (State, bool) {
	prev := State(c.PreviousState)
	if prev == "" || !prev.IsValid() || prev == StateSuspended || prev.IsTerminal() {
		return InitialState, false
	}
	return prev, true
}

// ClearSnapshot drops any recorded state
func ClearSnapshot(c *entity.Case) {
	c.PreviousState = ""
}

// ResumeDestination is the dynamic target of Resume
func ResumeDestination(c *entity.Case) State {
	state, _ := Restore(c)
	return state
}
