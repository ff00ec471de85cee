package events

import (
	"fmt"
	"strings"
)

// Topic names. Messages on the same topic with the same key are delivered in
// order.
const (
	AccountEventsTopic  = "account.events"
	TransferEventsTopic = "transfer.events"
	SepaEventsTopic     = "sepa.events"
	SwiftEventsTopic    = "swift.events"
	AmlEventsTopic      = "aml.events"
	UserEventsTopic     = "user.events"
)

// Event type names, versioned so consumers can evolve independently.
const (
	AccountCreatedType = "account.created.v1"
	AccountStatusType  = "account.status_changed.v1"
	AccountPostedType  = "account.posted.v1"

	TransferInitiatedType = "transfer.initiated.v1"
	TransferCompletedType = "transfer.completed.v1"
	TransferFailedType    = "transfer.failed.v1"

	SepaBatchSubmittedType = "sepa.batch_submitted.v1"
	SepaTransferSettledType = "sepa.transfer_settled.v1"
	SepaReturnReceivedType  = "sepa.return_received.v1"

	SwiftTransferSubmittedType = "swift.transfer_submitted.v1"
	SwiftTransferCompletedType = "swift.transfer_completed.v1"

	AmlAlertCreatedType   = "aml.alert.created.v1"
	AmlCaseEscalatedType  = "aml.case.escalated.v1"
	SarReportFiledType    = "aml.sar.filed.v1"

	UserLoggedInType  = "user.logged_in.v1"
	UserLockedOutType = "user.locked_out.v1"
)

func AllTopics() []string {
	return []string{
		AccountEventsTopic, TransferEventsTopic, SepaEventsTopic,
		SwiftEventsTopic, AmlEventsTopic, UserEventsTopic,
	}
}

type EventBrokerType string

const (
	KafkaEventBrokerType EventBrokerType = "KAFKA"
	// NoneEventBrokerType disables publishing; the outbox keeps accumulating.
	NoneEventBrokerType EventBrokerType = "NONE"
)

func ParseEventBrokerType(ebType string) (EventBrokerType, error) {
	switch EventBrokerType(strings.ToUpper(ebType)) {
	case KafkaEventBrokerType:
		return KafkaEventBrokerType, nil
	case NoneEventBrokerType:
		return NoneEventBrokerType, nil
	default:
		return "", fmt.Errorf("invalid event broker type %q", ebType)
	}
}

// AccountPostedData is the payload of account.posted.v1, consumed by the AML
// detection engine.
type AccountPostedData struct {
	AccountNumber string `json:"account_number"`
	CustomerID    string `json:"customer_id,omitempty"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ReferenceID   string `json:"reference_id"`
	Direction     string `json:"direction"`
	BalanceAfter  string `json:"balance_after"`
	PostedAt      string `json:"posted_at"`
}

// TransferStatusData is the payload of the transfer.* event types.
type TransferStatusData struct {
	TransferReference string `json:"transfer_reference"`
	FromAccount       string `json:"from_account"`
	ToAccount         string `json:"to_account"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	FailureReason     string `json:"failure_reason,omitempty"`
}
