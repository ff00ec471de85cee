package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
)

type SepaScheme string

const (
	SctScheme     SepaScheme = "SCT"
	SctInstScheme SepaScheme = "SCT_INST"
)

type SepaTransferStatus string

const (
	PendingSepaTransferStatus    SepaTransferStatus = "PENDING"
	ValidatingSepaTransferStatus SepaTransferStatus = "VALIDATING"
	SubmittedSepaTransferStatus  SepaTransferStatus = "SUBMITTED"
	SettledSepaTransferStatus    SepaTransferStatus = "SETTLED"
	ReturnedSepaTransferStatus   SepaTransferStatus = "RETURNED"
	FailedSepaTransferStatus     SepaTransferStatus = "FAILED"
)

func (status SepaTransferStatus) Validate() error {
	switch SepaTransferStatus(strings.ToUpper(string(status))) {
	case PendingSepaTransferStatus, ValidatingSepaTransferStatus, SubmittedSepaTransferStatus,
		SettledSepaTransferStatus, ReturnedSepaTransferStatus, FailedSepaTransferStatus:
		return nil
	default:
		return fmt.Errorf("invalid sepa transfer status: %s", status)
	}
}

// TransitionTo transitions the sepa transfer status to the target state
func (status SepaTransferStatus) TransitionTo(targetState SepaTransferStatus) error {
	return SepaTransferStateMachineWithInitialState(status).TransitionTo(State(targetState))
}

func SepaTransferStateMachineWithInitialState(initialState SepaTransferStatus) *StateMachine {
	transitions := []StateTransition{
		{From: State(PendingSepaTransferStatus), To: State(ValidatingSepaTransferStatus)},
		{From: State(ValidatingSepaTransferStatus), To: State(SubmittedSepaTransferStatus)}, // pain.001 handed to the network
		{From: State(ValidatingSepaTransferStatus), To: State(FailedSepaTransferStatus)},
		{From: State(SubmittedSepaTransferStatus), To: State(SettledSepaTransferStatus)}, // settlement acknowledgment received
		{From: State(SubmittedSepaTransferStatus), To: State(FailedSepaTransferStatus)},
		{From: State(SettledSepaTransferStatus), To: State(ReturnedSepaTransferStatus)}, // R-transaction on the settled transfer
	}

	return NewStateMachine(State(initialState), transitions)
}

type SepaTransfer struct {
	ID             string             `json:"id" db:"id"`
	SepaReference  string             `json:"sepa_reference" db:"sepa_reference"`
	BatchID        *string            `json:"batch_id,omitempty" db:"batch_id"`
	DebtorIBAN     string             `json:"debtor_iban" db:"debtor_iban"`
	CreditorIBAN   string             `json:"creditor_iban" db:"creditor_iban"`
	DebtorName     string             `json:"debtor_name" db:"debtor_name"`
	CreditorName   string             `json:"creditor_name" db:"creditor_name"`
	Amount         decimal.Decimal    `json:"amount" db:"amount"`
	Currency       string             `json:"currency" db:"currency"`
	Scheme         SepaScheme         `json:"scheme" db:"scheme"`
	Status         SepaTransferStatus `json:"status" db:"status"`
	RemittanceInfo *string            `json:"remittance_info,omitempty" db:"remittance_info"`
	FailureReason  *string            `json:"failure_reason,omitempty" db:"failure_reason"`
	SettledAt      *time.Time         `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

type SepaTransferInsert struct {
	SepaReference  string
	BatchID        *string
	DebtorIBAN     string
	CreditorIBAN   string
	DebtorName     string
	CreditorName   string
	Amount         decimal.Decimal
	Currency       string
	Scheme         SepaScheme
	RemittanceInfo *string
}

type SepaTransferModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sepaTransferColumns = `
	id, sepa_reference, batch_id, debtor_iban, creditor_iban, debtor_name, creditor_name,
	amount, currency, scheme, status, remittance_info, failure_reason, settled_at, created_at, updated_at
`

func (m *SepaTransferModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert SepaTransferInsert) (*SepaTransfer, error) {
	query := `
		INSERT INTO sepa_transfers (sepa_reference, batch_id, debtor_iban, creditor_iban, debtor_name, creditor_name, amount, currency, scheme, remittance_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + sepaTransferColumns

	var transfer SepaTransfer
	err := sqlExec.GetContext(ctx, &transfer, query,
		insert.SepaReference, insert.BatchID, insert.DebtorIBAN, insert.CreditorIBAN,
		insert.DebtorName, insert.CreditorName, insert.Amount, insert.Currency, insert.Scheme, insert.RemittanceInfo)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting sepa transfer: %w", err)
	}

	return &transfer, nil
}

func (m *SepaTransferModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, sepaReference string) (*SepaTransfer, error) {
	query := `SELECT ` + sepaTransferColumns + ` FROM sepa_transfers WHERE sepa_reference = $1`

	var transfer SepaTransfer
	err := sqlExec.GetContext(ctx, &transfer, query, sepaReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sepa transfer %s: %w", sepaReference, err)
	}

	return &transfer, nil
}

func (m *SepaTransferModel) GetByBatchID(ctx context.Context, sqlExec db.SQLExecuter, batchID string) ([]SepaTransfer, error) {
	query := `SELECT ` + sepaTransferColumns + ` FROM sepa_transfers WHERE batch_id = $1 ORDER BY created_at`

	transfers := []SepaTransfer{}
	err := sqlExec.SelectContext(ctx, &transfers, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("getting sepa transfers for batch %s: %w", batchID, err)
	}

	return transfers, nil
}

func (m *SepaTransferModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, transfer *SepaTransfer, targetStatus SepaTransferStatus, failureReason *string) (*SepaTransfer, error) {
	if err := transfer.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating sepa transfer status transition: %w", err)
	}

	query := `
		UPDATE sepa_transfers
		SET status = $1,
		    failure_reason = COALESCE($2, failure_reason),
		    settled_at = CASE WHEN $1 = 'SETTLED' THEN now() ELSE settled_at END,
		    updated_at = now()
		WHERE id = $3
		RETURNING ` + sepaTransferColumns

	var updated SepaTransfer
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, failureReason, transfer.ID)
	if err != nil {
		return nil, fmt.Errorf("updating status of sepa transfer %s: %w", transfer.SepaReference, err)
	}

	return &updated, nil
}
