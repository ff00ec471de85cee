package data

import (
	"fmt"
	"strings"
)

type SwiftTransferStatus string

const (
	PendingSwiftTransferStatus         SwiftTransferStatus = "PENDING"
	ValidatingSwiftTransferStatus      SwiftTransferStatus = "VALIDATING"
	ComplianceCheckSwiftTransferStatus SwiftTransferStatus = "COMPLIANCE_CHECK"
	ProcessingSwiftTransferStatus      SwiftTransferStatus = "PROCESSING"
	SubmittedSwiftTransferStatus       SwiftTransferStatus = "SUBMITTED"
	CompletedSwiftTransferStatus       SwiftTransferStatus = "COMPLETED"
	FailedSwiftTransferStatus          SwiftTransferStatus = "FAILED"
)

// Validate validates the swift transfer status
func (status SwiftTransferStatus) Validate() error {
	switch SwiftTransferStatus(strings.ToUpper(string(status))) {
	case PendingSwiftTransferStatus, ValidatingSwiftTransferStatus, ComplianceCheckSwiftTransferStatus,
		ProcessingSwiftTransferStatus, SubmittedSwiftTransferStatus, CompletedSwiftTransferStatus, FailedSwiftTransferStatus:
		return nil
	default:
		return fmt.Errorf("invalid swift transfer status: %s", status)
	}
}

// TransitionTo transitions the swift transfer status to the target state
func (status SwiftTransferStatus) TransitionTo(targetState SwiftTransferStatus) error {
	return SwiftTransferStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// SwiftTransferStateMachineWithInitialState returns a state machine for swift transfers initialized with the given state
func SwiftTransferStateMachineWithInitialState(initialState SwiftTransferStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingSwiftTransferStatus.State(), To: ValidatingSwiftTransferStatus.State()},
		{From: ValidatingSwiftTransferStatus.State(), To: ComplianceCheckSwiftTransferStatus.State()}, // BIC and field validation passed
		{From: ValidatingSwiftTransferStatus.State(), To: FailedSwiftTransferStatus.State()},
		{From: ComplianceCheckSwiftTransferStatus.State(), To: ProcessingSwiftTransferStatus.State()}, // sanction screening cleared
		{From: ComplianceCheckSwiftTransferStatus.State(), To: FailedSwiftTransferStatus.State()},     // screening hit
		{From: ProcessingSwiftTransferStatus.State(), To: SubmittedSwiftTransferStatus.State()},       // MT103 generated and sent
		{From: ProcessingSwiftTransferStatus.State(), To: FailedSwiftTransferStatus.State()},
		{From: SubmittedSwiftTransferStatus.State(), To: CompletedSwiftTransferStatus.State()}, // network acknowledgment
		{From: SubmittedSwiftTransferStatus.State(), To: FailedSwiftTransferStatus.State()},
	}

	return NewStateMachine(initialState.State(), transitions)
}

func (status SwiftTransferStatus) State() State {
	return State(status)
}

// IsTerminal reports whether no further transition is possible.
func (status SwiftTransferStatus) IsTerminal() bool {
	return status == CompletedSwiftTransferStatus || status == FailedSwiftTransferStatus
}
