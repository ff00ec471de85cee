package data

import (
	"fmt"
	"strings"
)

type AmlCaseStatus string

const (
	OpenAmlCaseStatus           AmlCaseStatus = "OPEN"
	InvestigatingAmlCaseStatus  AmlCaseStatus = "INVESTIGATING"
	PendingReviewAmlCaseStatus  AmlCaseStatus = "PENDING_REVIEW"
	EscalatedAmlCaseStatus      AmlCaseStatus = "ESCALATED"
	PendingClosureAmlCaseStatus AmlCaseStatus = "PENDING_CLOSURE"
	ClosedAmlCaseStatus         AmlCaseStatus = "CLOSED"
	ReopenedAmlCaseStatus       AmlCaseStatus = "REOPENED"
)

// Validate validates the aml case status
func (status AmlCaseStatus) Validate() error {
	switch AmlCaseStatus(strings.ToUpper(string(status))) {
	case OpenAmlCaseStatus, InvestigatingAmlCaseStatus, PendingReviewAmlCaseStatus, EscalatedAmlCaseStatus,
		PendingClosureAmlCaseStatus, ClosedAmlCaseStatus, ReopenedAmlCaseStatus:
		return nil
	default:
		return fmt.Errorf("invalid aml case status: %s", status)
	}
}

// TransitionTo transitions the aml case status to the target state
func (status AmlCaseStatus) TransitionTo(targetState AmlCaseStatus) error {
	return AmlCaseStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// AmlCaseStateMachineWithInitialState returns a state machine for aml cases initialized with the given state
func AmlCaseStateMachineWithInitialState(initialState AmlCaseStatus) *StateMachine {
	transitions := []StateTransition{
		{From: OpenAmlCaseStatus.State(), To: InvestigatingAmlCaseStatus.State()},           // analyst picked up the case
		{From: InvestigatingAmlCaseStatus.State(), To: PendingReviewAmlCaseStatus.State()},  // findings submitted for review
		{From: PendingReviewAmlCaseStatus.State(), To: EscalatedAmlCaseStatus.State()},      // escalated to a senior analyst
		{From: PendingReviewAmlCaseStatus.State(), To: PendingClosureAmlCaseStatus.State()}, // review accepted
		{From: EscalatedAmlCaseStatus.State(), To: PendingClosureAmlCaseStatus.State()},
		{From: PendingClosureAmlCaseStatus.State(), To: ClosedAmlCaseStatus.State()}, // resolution recorded
		{From: ClosedAmlCaseStatus.State(), To: ReopenedAmlCaseStatus.State()},       // new evidence after closure
		{From: ReopenedAmlCaseStatus.State(), To: InvestigatingAmlCaseStatus.State()},
	}

	return NewStateMachine(initialState.State(), transitions)
}

// AmlCaseStatuses returns a list of all possible aml case statuses
func AmlCaseStatuses() []AmlCaseStatus {
	return []AmlCaseStatus{
		OpenAmlCaseStatus, InvestigatingAmlCaseStatus, PendingReviewAmlCaseStatus, EscalatedAmlCaseStatus,
		PendingClosureAmlCaseStatus, ClosedAmlCaseStatus, ReopenedAmlCaseStatus,
	}
}

func (status AmlCaseStatus) State() State {
	return State(status)
}
