package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
)

type Transfer struct {
	ID                string          `json:"id" db:"id"`
	TransferReference string          `json:"transfer_reference" db:"transfer_reference"`
	FromAccountNumber string          `json:"from_account_number" db:"from_account_number"`
	ToAccountNumber   string          `json:"to_account_number" db:"to_account_number"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Currency          string          `json:"currency" db:"currency"`
	Status            TransferStatus  `json:"status" db:"status"`
	IdempotencyKey    string          `json:"idempotency_key" db:"idempotency_key"`
	DebitPostingID    *string         `json:"debit_posting_id,omitempty" db:"debit_posting_id"`
	CreditPostingID   *string         `json:"credit_posting_id,omitempty" db:"credit_posting_id"`
	FailureReason     *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	Version           int64           `json:"version" db:"version"`
	InitiatedAt       time.Time       `json:"initiated_at" db:"initiated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type TransferInsert struct {
	TransferReference string
	FromAccountNumber string
	ToAccountNumber   string
	Amount            decimal.Decimal
	Currency          string
	IdempotencyKey    string
}

type TransferModel struct {
	dbConnectionPool db.DBConnectionPool
}

const transferColumns = `
	id, transfer_reference, from_account_number, to_account_number, amount, currency, status,
	idempotency_key, debit_posting_id, credit_posting_id, failure_reason, version, initiated_at, completed_at, updated_at
`

func (m *TransferModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert TransferInsert) (*Transfer, error) {
	query := `
		INSERT INTO transfers (transfer_reference, from_account_number, to_account_number, amount, currency, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + transferColumns

	var transfer Transfer
	err := sqlExec.GetContext(ctx, &transfer, query,
		insert.TransferReference, insert.FromAccountNumber, insert.ToAccountNumber,
		insert.Amount, insert.Currency, PendingTransferStatus, insert.IdempotencyKey)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting transfer: %w", err)
	}

	return &transfer, nil
}

func (m *TransferModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, transferReference string) (*Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE transfer_reference = $1`

	var transfer Transfer
	err := sqlExec.GetContext(ctx, &transfer, query, transferReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting transfer %s: %w", transferReference, err)
	}

	return &transfer, nil
}

func (m *TransferModel) GetByIdempotencyKey(ctx context.Context, sqlExec db.SQLExecuter, idempotencyKey string) (*Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE idempotency_key = $1`

	var transfer Transfer
	err := sqlExec.GetContext(ctx, &transfer, query, idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting transfer by idempotency key: %w", err)
	}

	return &transfer, nil
}

// UpdateStatus moves the transfer to targetStatus, enforcing the status
// machine and the optimistic version.
func (m *TransferModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, transfer *Transfer, targetStatus TransferStatus, failureReason *string) (*Transfer, error) {
	if err := transfer.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating transfer status transition: %w", err)
	}

	query := `
		UPDATE transfers
		SET status = $1,
		    failure_reason = COALESCE($2, failure_reason),
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN now() ELSE completed_at END,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING ` + transferColumns

	var updated Transfer
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, failureReason, transfer.ID, transfer.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of transfer %s: %w", transfer.TransferReference, err)
	}

	return &updated, nil
}

// SetPostingIDs records the ledger posting ids on the transfer. A nil id
// leaves the stored value untouched.
func (m *TransferModel) SetPostingIDs(ctx context.Context, sqlExec db.SQLExecuter, transferID string, debitPostingID, creditPostingID *string) error {
	query := `
		UPDATE transfers
		SET debit_posting_id = COALESCE($1, debit_posting_id),
		    credit_posting_id = COALESCE($2, credit_posting_id),
		    updated_at = now()
		WHERE id = $3`

	result, err := sqlExec.ExecContext(ctx, query, debitPostingID, creditPostingID, transferID)
	if err != nil {
		return fmt.Errorf("setting posting ids on transfer %s: %w", transferID, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if numRowsAffected != 1 {
		return ErrMismatchNumRowsAffected
	}

	return nil
}

// GetStuck returns non-terminal transfers that have not been touched since
// the threshold. The saga recovery loop reconciles them.
func (m *TransferModel) GetStuck(ctx context.Context, sqlExec db.SQLExecuter, olderThan time.Time) ([]Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE status IN ('VALIDATING', 'DEBIT_PENDING', 'DEBIT_COMPLETED', 'CREDIT_PENDING', 'COMPENSATING')
		  AND updated_at < $1
		ORDER BY updated_at`

	transfers := []Transfer{}
	err := sqlExec.SelectContext(ctx, &transfers, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("getting stuck transfers: %w", err)
	}

	return transfers, nil
}
