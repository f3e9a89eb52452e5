package workflow

import "github.com/garyjia/discharge-planner/internal/domain/apperr"

// lockTable maps each locked state to the single action that may leave it
var lockTable = map[State]Action{
	StateLockedReferral: ActionClose,
}

// IsLocked reports whether state rejects all mutation but its unlock action
func IsLocked(state State) bool {
	_, locked := lockTable[state]
	return locked
}

// UnlockAction returns the action permitted while state is locked
func UnlockAction(state State) (Action, bool) {
	a, ok := lockTable[state]
	return a, ok
}

// CheckLock rejects action with LockedState when state is locked and action is not its unlock action
func CheckLock(state State, action Action) error {
	unlock, locked := lockTable[state]
	if !locked || action == unlock {
		return nil
	}
	return apperr.Locked(state.String(), action.String(), unlock.String())
}
