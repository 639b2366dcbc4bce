// Package lifecycle implements the metadata run state machine.
package lifecycle

import (
	"fmt"

	"github.com/ecopipe-systems/ecopipe/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.RunStatus][]types.RunStatus{
	types.RunRunning: {types.RunSuccess, types.RunFailed},
	types.RunSuccess: {},
	types.RunFailed:  {},
}

// CanTransition checks if transitioning from one run status to another is valid.
func CanTransition(from, to types.RunStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates the transition, returning an error if it is invalid.
func Transition(from, to types.RunStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal (final) state.
func IsTerminal(status types.RunStatus) bool {
	return status == types.RunSuccess || status == types.RunFailed
}
