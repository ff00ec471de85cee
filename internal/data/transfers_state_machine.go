package data

import (
	"fmt"
	"strings"
)

type TransferStatus string

const (
	PendingTransferStatus        TransferStatus = "PENDING"
	ValidatingTransferStatus     TransferStatus = "VALIDATING"
	DebitPendingTransferStatus   TransferStatus = "DEBIT_PENDING"
	DebitCompletedTransferStatus TransferStatus = "DEBIT_COMPLETED"
	CreditPendingTransferStatus  TransferStatus = "CREDIT_PENDING"
	CompletedTransferStatus      TransferStatus = "COMPLETED"
	CompensatingTransferStatus   TransferStatus = "COMPENSATING"
	CompensatedTransferStatus    TransferStatus = "COMPENSATED"
	FailedTransferStatus         TransferStatus = "FAILED"
)

// Validate validates the transfer status
func (status TransferStatus) Validate() error {
	switch TransferStatus(strings.ToUpper(string(status))) {
	case PendingTransferStatus, ValidatingTransferStatus, DebitPendingTransferStatus, DebitCompletedTransferStatus,
		CreditPendingTransferStatus, CompletedTransferStatus, CompensatingTransferStatus, CompensatedTransferStatus,
		FailedTransferStatus:
		return nil
	default:
		return fmt.Errorf("invalid transfer status: %s", status)
	}
}

// TransitionTo transitions the transfer status to the target state
func (status TransferStatus) TransitionTo(targetState TransferStatus) error {
	return TransferStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// TransferStateMachineWithInitialState returns a state machine for transfers initialized with the given state
func TransferStateMachineWithInitialState(initialState TransferStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingTransferStatus.State(), To: ValidatingTransferStatus.State()},           // saga picks the transfer up
		{From: ValidatingTransferStatus.State(), To: DebitPendingTransferStatus.State()},      // validation passed
		{From: ValidatingTransferStatus.State(), To: FailedTransferStatus.State()},            // validation failed, no side effects yet
		{From: DebitPendingTransferStatus.State(), To: DebitCompletedTransferStatus.State()},  // source debited
		{From: DebitPendingTransferStatus.State(), To: CompensatingTransferStatus.State()},    // debit failed after validation
		{From: DebitCompletedTransferStatus.State(), To: CreditPendingTransferStatus.State()}, // credit leg started
		{From: CreditPendingTransferStatus.State(), To: CompletedTransferStatus.State()},      // credit landed, transfer confirmed
		{From: CreditPendingTransferStatus.State(), To: CompensatingTransferStatus.State()},   // credit failed, unwinding the debit
		{From: CompensatingTransferStatus.State(), To: CompensatedTransferStatus.State()},     // all compensations succeeded
		{From: CompensatingTransferStatus.State(), To: FailedTransferStatus.State()},          // compensation failed, manual intervention
	}

	return NewStateMachine(initialState.State(), transitions)
}

// TransferStatuses returns a list of all possible transfer statuses
func TransferStatuses() []TransferStatus {
	return []TransferStatus{
		PendingTransferStatus, ValidatingTransferStatus, DebitPendingTransferStatus, DebitCompletedTransferStatus,
		CreditPendingTransferStatus, CompletedTransferStatus, CompensatingTransferStatus, CompensatedTransferStatus,
		FailedTransferStatus,
	}
}

// IsTerminal reports whether no further saga work is expected for the status.
func (status TransferStatus) IsTerminal() bool {
	switch status {
	case CompletedTransferStatus, CompensatedTransferStatus, FailedTransferStatus:
		return true
	default:
		return false
	}
}

// ToTransferStatus converts a string to a TransferStatus
func ToTransferStatus(s string) (TransferStatus, error) {
	err := TransferStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return TransferStatus(strings.ToUpper(s)), nil
}

func (status TransferStatus) State() State {
	return State(status)
}
