package data

import (
	"fmt"
	"strings"
)

type SepaBatchStatus string

const (
	PendingSepaBatchStatus           SepaBatchStatus = "PENDING"
	ValidatingSepaBatchStatus        SepaBatchStatus = "VALIDATING"
	ValidatedSepaBatchStatus         SepaBatchStatus = "VALIDATED"
	SubmittedSepaBatchStatus         SepaBatchStatus = "SUBMITTED"
	ProcessingSepaBatchStatus        SepaBatchStatus = "PROCESSING"
	PartiallyCompleteSepaBatchStatus SepaBatchStatus = "PARTIALLY_COMPLETE"
	CompletedSepaBatchStatus         SepaBatchStatus = "COMPLETED"
	RejectedSepaBatchStatus          SepaBatchStatus = "REJECTED"
)

// Validate validates the sepa batch status
func (status SepaBatchStatus) Validate() error {
	switch SepaBatchStatus(strings.ToUpper(string(status))) {
	case PendingSepaBatchStatus, ValidatingSepaBatchStatus, ValidatedSepaBatchStatus, SubmittedSepaBatchStatus,
		ProcessingSepaBatchStatus, PartiallyCompleteSepaBatchStatus, CompletedSepaBatchStatus, RejectedSepaBatchStatus:
		return nil
	default:
		return fmt.Errorf("invalid sepa batch status: %s", status)
	}
}

// TransitionTo transitions the sepa batch status to the target state
func (status SepaBatchStatus) TransitionTo(targetState SepaBatchStatus) error {
	return SepaBatchStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// SepaBatchStateMachineWithInitialState returns a state machine for sepa batches initialized with the given state
func SepaBatchStateMachineWithInitialState(initialState SepaBatchStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingSepaBatchStatus.State(), To: ValidatingSepaBatchStatus.State()},            // validation started
		{From: ValidatingSepaBatchStatus.State(), To: ValidatedSepaBatchStatus.State()},          // every transfer passed preconditions
		{From: ValidatingSepaBatchStatus.State(), To: RejectedSepaBatchStatus.State()},           // at least one transfer failed preconditions
		{From: ValidatedSepaBatchStatus.State(), To: SubmittedSepaBatchStatus.State()},           // XML handed to the network
		{From: SubmittedSepaBatchStatus.State(), To: ProcessingSepaBatchStatus.State()},          // network processing results arriving
		{From: ProcessingSepaBatchStatus.State(), To: PartiallyCompleteSepaBatchStatus.State()},  // some transfers settled, some failed
		{From: ProcessingSepaBatchStatus.State(), To: CompletedSepaBatchStatus.State()},          // all transfers settled
		{From: PartiallyCompleteSepaBatchStatus.State(), To: CompletedSepaBatchStatus.State()},   // remaining results arrived
	}

	return NewStateMachine(initialState.State(), transitions)
}

// SepaBatchStatuses returns a list of all possible sepa batch statuses
func SepaBatchStatuses() []SepaBatchStatus {
	return []SepaBatchStatus{
		PendingSepaBatchStatus, ValidatingSepaBatchStatus, ValidatedSepaBatchStatus, SubmittedSepaBatchStatus,
		ProcessingSepaBatchStatus, PartiallyCompleteSepaBatchStatus, CompletedSepaBatchStatus, RejectedSepaBatchStatus,
	}
}

func (status SepaBatchStatus) State() State {
	return State(status)
}
