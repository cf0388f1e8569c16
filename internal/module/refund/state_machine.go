package refund

import "fmt"

// SessionState is the state of a refund session.
type SessionState string

const (
	StateIdle                 SessionState = "idle"
	StateAmountEntry          SessionState = "amount_entry"
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
	StateCommitPending        SessionState = "commit_pending"
	StateCommitting           SessionState = "committing"
	StateSettled              SessionState = "settled"
)

// StateMachine validates and executes refund session state transitions.
type StateMachine struct {
	transitions map[SessionState][]SessionState
}

// NewStateMachine creates the session state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[SessionState][]SessionState{
			StateIdle:        {StateAmountEntry},
			StateAmountEntry: {StateAwaitingConfirmation},
			// Back to amount entry when the caller edits the selection;
			// forward to commit pending on confirmation.
			StateAwaitingConfirmation: {StateAmountEntry, StateCommitPending},
			// Undo returns to awaiting confirmation; proceed starts the commit.
			StateCommitPending: {StateAwaitingConfirmation, StateCommitting},
			// Success settles; failure re-enables the form for a retry.
			StateCommitting: {StateSettled, StateAwaitingConfirmation},
			StateSettled:    {}, // Terminal state
		},
	}
}

// CanTransition checks if a transition from `from` to `to` is valid.
func (sm *StateMachine) CanTransition(from, to SessionState) bool {
	allowed, ok := sm.transitions[from]
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

// Transition attempts to move a session to a new state.
func (sm *StateMachine) Transition(current SessionState, to SessionState) (SessionState, error) {
	if !sm.CanTransition(current, to) {
		return current, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, to)
	}
	return to, nil
}

// GetAllowedTransitions returns all allowed transitions from the given state.
func (sm *StateMachine) GetAllowedTransitions(from SessionState) []SessionState {
	allowed, ok := sm.transitions[from]
	if !ok {
		return []SessionState{}
	}
	result := make([]SessionState, len(allowed))
	copy(result, allowed)
	return result
}
