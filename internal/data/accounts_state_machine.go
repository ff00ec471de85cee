package data

import (
	"fmt"
	"strings"
)

type AccountStatus string

const (
	PendingAccountStatus AccountStatus = "PENDING"
	ActiveAccountStatus  AccountStatus = "ACTIVE"
	FrozenAccountStatus  AccountStatus = "FROZEN"
	ClosedAccountStatus  AccountStatus = "CLOSED"
)

// Validate validates the account status
func (status AccountStatus) Validate() error {
	switch AccountStatus(strings.ToUpper(string(status))) {
	case PendingAccountStatus, ActiveAccountStatus, FrozenAccountStatus, ClosedAccountStatus:
		return nil
	default:
		return fmt.Errorf("invalid account status: %s", status)
	}
}

// TransitionTo transitions the account status to the target state
func (status AccountStatus) TransitionTo(targetState AccountStatus) error {
	return AccountStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// AccountStateMachineWithInitialState returns a state machine for accounts initialized with the given state
func AccountStateMachineWithInitialState(initialState AccountStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingAccountStatus.State(), To: ActiveAccountStatus.State()}, // account activated after opening checks
		{From: ActiveAccountStatus.State(), To: FrozenAccountStatus.State()},  // account frozen, no postings accepted
		{From: FrozenAccountStatus.State(), To: ActiveAccountStatus.State()},  // freeze lifted
		{From: ActiveAccountStatus.State(), To: ClosedAccountStatus.State()},  // account closed, balance must be zero
	}

	return NewStateMachine(initialState.State(), transitions)
}

// AccountStatuses returns a list of all possible account statuses
func AccountStatuses() []AccountStatus {
	return []AccountStatus{PendingAccountStatus, ActiveAccountStatus, FrozenAccountStatus, ClosedAccountStatus}
}

// ToAccountStatus converts a string to an AccountStatus
func ToAccountStatus(s string) (AccountStatus, error) {
	err := AccountStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return AccountStatus(strings.ToUpper(s)), nil
}

func (status AccountStatus) State() State {
	return State(status)
}
