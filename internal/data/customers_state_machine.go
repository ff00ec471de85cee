package data

import (
	"fmt"
	"strings"
)

type CustomerStatus string

const (
	PendingVerificationCustomerStatus CustomerStatus = "PENDING_VERIFICATION"
	VerifiedCustomerStatus            CustomerStatus = "VERIFIED"
	ApprovedCustomerStatus            CustomerStatus = "APPROVED"
	SuspendedCustomerStatus           CustomerStatus = "SUSPENDED"
	ClosedCustomerStatus              CustomerStatus = "CLOSED"
)

// Validate validates the customer status
func (status CustomerStatus) Validate() error {
	switch CustomerStatus(strings.ToUpper(string(status))) {
	case PendingVerificationCustomerStatus, VerifiedCustomerStatus, ApprovedCustomerStatus,
		SuspendedCustomerStatus, ClosedCustomerStatus:
		return nil
	default:
		return fmt.Errorf("invalid customer status: %s", status)
	}
}

// TransitionTo transitions the customer status to the target state
func (status CustomerStatus) TransitionTo(targetState CustomerStatus) error {
	return CustomerStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// CustomerStateMachineWithInitialState returns a state machine for customers initialized with the given state
func CustomerStateMachineWithInitialState(initialState CustomerStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingVerificationCustomerStatus.State(), To: VerifiedCustomerStatus.State()}, // KYC documents verified
		{From: VerifiedCustomerStatus.State(), To: ApprovedCustomerStatus.State()},            // due diligence completed
		{From: ApprovedCustomerStatus.State(), To: SuspendedCustomerStatus.State()},
		{From: SuspendedCustomerStatus.State(), To: ApprovedCustomerStatus.State()}, // suspension lifted
		{From: ApprovedCustomerStatus.State(), To: ClosedCustomerStatus.State()},
		{From: SuspendedCustomerStatus.State(), To: ClosedCustomerStatus.State()},
	}

	return NewStateMachine(initialState.State(), transitions)
}

// CustomerStatuses returns a list of all possible customer statuses
func CustomerStatuses() []CustomerStatus {
	return []CustomerStatus{
		PendingVerificationCustomerStatus, VerifiedCustomerStatus, ApprovedCustomerStatus,
		SuspendedCustomerStatus, ClosedCustomerStatus,
	}
}

func (status CustomerStatus) State() State {
	return State(status)
}
