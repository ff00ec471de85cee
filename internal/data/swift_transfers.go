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

type SwiftChargeType string

const (
	OurChargeType SwiftChargeType = "OUR" // sender bears all charges
	ShaChargeType SwiftChargeType = "SHA" // shared
	BenChargeType SwiftChargeType = "BEN" // beneficiary bears all charges
)

func (c SwiftChargeType) Validate() error {
	switch c {
	case OurChargeType, ShaChargeType, BenChargeType:
		return nil
	default:
		return fmt.Errorf("invalid swift charge type: %s", c)
	}
}

type SwiftTransfer struct {
	ID                   string              `json:"id" db:"id"`
	TransactionReference string              `json:"transaction_reference" db:"transaction_reference"`
	SenderBIC            string              `json:"sender_bic" db:"sender_bic"`
	ReceiverBIC          string              `json:"receiver_bic" db:"receiver_bic"`
	OrderingCustomer     string              `json:"ordering_customer" db:"ordering_customer"`
	Beneficiary          string              `json:"beneficiary" db:"beneficiary"`
	BeneficiaryBankBIC   string              `json:"beneficiary_bank_bic" db:"beneficiary_bank_bic"`
	CorrespondentBIC     *string             `json:"correspondent_bic,omitempty" db:"correspondent_bic"`
	Amount               decimal.Decimal     `json:"amount" db:"amount"`
	Currency             string              `json:"currency" db:"currency"`
	ChargeType           SwiftChargeType     `json:"charge_type" db:"charge_type"`
	FeeAmount            decimal.Decimal     `json:"fee_amount" db:"fee_amount"`
	RemittanceInfo       *string             `json:"remittance_info,omitempty" db:"remittance_info"`
	Status               SwiftTransferStatus `json:"status" db:"status"`
	MT103                *string             `json:"mt103,omitempty" db:"mt103"`
	FailureReason        *string             `json:"failure_reason,omitempty" db:"failure_reason"`
	ValueDate            time.Time           `json:"value_date" db:"value_date"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

type SwiftTransferInsert struct {
	TransactionReference string
	SenderBIC            string
	ReceiverBIC          string
	OrderingCustomer     string
	Beneficiary          string
	BeneficiaryBankBIC   string
	CorrespondentBIC     *string
	Amount               decimal.Decimal
	Currency             string
	ChargeType           SwiftChargeType
	FeeAmount            decimal.Decimal
	RemittanceInfo       *string
	ValueDate            time.Time
}

type SwiftTransferModel struct {
	dbConnectionPool db.DBConnectionPool
}

const swiftTransferColumns = `
	id, transaction_reference, sender_bic, receiver_bic, ordering_customer, beneficiary,
	beneficiary_bank_bic, correspondent_bic, amount, currency, charge_type, fee_amount,
	remittance_info, status, mt103, failure_reason, value_date, created_at, updated_at
`

func (m *SwiftTransferModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert SwiftTransferInsert) (*SwiftTransfer, error) {
	if err := insert.ChargeType.Validate(); err != nil {
		return nil, fmt.Errorf("validating swift transfer insert: %w", err)
	}

	query := `
		INSERT INTO swift_transfers (
			transaction_reference, sender_bic, receiver_bic, ordering_customer, beneficiary,
			beneficiary_bank_bic, correspondent_bic, amount, currency, charge_type, fee_amount,
			remittance_info, value_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + swiftTransferColumns

	var transfer SwiftTransfer
	err := sqlExec.GetContext(ctx, &transfer, query,
		insert.TransactionReference, insert.SenderBIC, insert.ReceiverBIC, insert.OrderingCustomer,
		insert.Beneficiary, insert.BeneficiaryBankBIC, insert.CorrespondentBIC, insert.Amount,
		insert.Currency, insert.ChargeType, insert.FeeAmount, insert.RemittanceInfo, insert.ValueDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting swift transfer: %w", err)
	}

	return &transfer, nil
}

func (m *SwiftTransferModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, transactionReference string) (*SwiftTransfer, error) {
	query := `SELECT ` + swiftTransferColumns + ` FROM swift_transfers WHERE transaction_reference = $1`

	var transfer SwiftTransfer
	err := sqlExec.GetContext(ctx, &transfer, query, transactionReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting swift transfer %s: %w", transactionReference, err)
	}

	return &transfer, nil
}

func (m *SwiftTransferModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, transfer *SwiftTransfer, targetStatus SwiftTransferStatus, failureReason *string) (*SwiftTransfer, error) {
	if err := transfer.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating swift transfer status transition: %w", err)
	}

	query := `
		UPDATE swift_transfers
		SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = now()
		WHERE id = $3
		RETURNING ` + swiftTransferColumns

	var updated SwiftTransfer
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, failureReason, transfer.ID)
	if err != nil {
		return nil, fmt.Errorf("updating status of swift transfer %s: %w", transfer.TransactionReference, err)
	}

	return &updated, nil
}

// SetMT103 stores the generated wire message alongside the transfer.
func (m *SwiftTransferModel) SetMT103(ctx context.Context, sqlExec db.SQLExecuter, transferID, mt103 string) error {
	query := `UPDATE swift_transfers SET mt103 = $1, updated_at = now() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, mt103, transferID)
	if err != nil {
		return fmt.Errorf("storing MT103 for swift transfer %s: %w", transferID, err)
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
