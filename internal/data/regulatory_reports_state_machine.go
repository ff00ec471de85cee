package data

import (
	"fmt"
	"strings"
)

type RegulatoryReportStatus string

const (
	DraftReportStatus           RegulatoryReportStatus = "DRAFT"
	PendingReviewReportStatus   RegulatoryReportStatus = "PENDING_REVIEW"
	RejectedReportStatus        RegulatoryReportStatus = "REJECTED"
	PendingApprovalReportStatus RegulatoryReportStatus = "PENDING_APPROVAL"
	ApprovedReportStatus        RegulatoryReportStatus = "APPROVED"
	FiledReportStatus           RegulatoryReportStatus = "FILED"
	AcknowledgedReportStatus    RegulatoryReportStatus = "ACKNOWLEDGED"
)

// Validate validates the regulatory report status
func (status RegulatoryReportStatus) Validate() error {
	switch RegulatoryReportStatus(strings.ToUpper(string(status))) {
	case DraftReportStatus, PendingReviewReportStatus, RejectedReportStatus, PendingApprovalReportStatus,
		ApprovedReportStatus, FiledReportStatus, AcknowledgedReportStatus:
		return nil
	default:
		return fmt.Errorf("invalid regulatory report status: %s", status)
	}
}

// TransitionTo transitions the regulatory report status to the target state
func (status RegulatoryReportStatus) TransitionTo(targetState RegulatoryReportStatus) error {
	return RegulatoryReportStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// RegulatoryReportStateMachineWithInitialState returns a state machine for regulatory reports initialized with the given state
func RegulatoryReportStateMachineWithInitialState(initialState RegulatoryReportStatus) *StateMachine {
	transitions := []StateTransition{
		{From: DraftReportStatus.State(), To: PendingReviewReportStatus.State()},            // preparer submitted
		{From: PendingReviewReportStatus.State(), To: PendingApprovalReportStatus.State()},  // reviewer accepted
		{From: PendingReviewReportStatus.State(), To: RejectedReportStatus.State()},         // reviewer sent back
		{From: RejectedReportStatus.State(), To: DraftReportStatus.State()},                 // preparer reworks
		{From: PendingApprovalReportStatus.State(), To: ApprovedReportStatus.State()},       // approver signed off
		{From: PendingApprovalReportStatus.State(), To: RejectedReportStatus.State()},       // approver sent back
		{From: ApprovedReportStatus.State(), To: FiledReportStatus.State()},                 // submitted to the authority
		{From: FiledReportStatus.State(), To: AcknowledgedReportStatus.State()},             // authority receipt
	}

	return NewStateMachine(initialState.State(), transitions)
}

func (status RegulatoryReportStatus) State() State {
	return State(status)
}
