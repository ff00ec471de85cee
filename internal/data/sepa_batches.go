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

type SepaBatchType string

const (
	SctBatchType     SepaBatchType = "SCT"
	SctInstBatchType SepaBatchType = "SCT_INST"
	SddCoreBatchType SepaBatchType = "SDD_CORE"
	SddB2BBatchType  SepaBatchType = "SDD_B2B"
)

func (t SepaBatchType) Validate() error {
	switch t {
	case SctBatchType, SctInstBatchType, SddCoreBatchType, SddB2BBatchType:
		return nil
	default:
		return fmt.Errorf("invalid sepa batch type: %s", t)
	}
}

type SepaBatch struct {
	ID                   string          `json:"id" db:"id"`
	MessageID            string          `json:"message_id" db:"message_id"`
	BatchType            SepaBatchType   `json:"batch_type" db:"batch_type"`
	Status               SepaBatchStatus `json:"status" db:"status"`
	NumberOfTransactions int             `json:"number_of_transactions" db:"number_of_transactions"`
	TotalAmount          decimal.Decimal `json:"total_amount" db:"total_amount"`
	SuccessfulCount      int             `json:"successful_count" db:"successful_count"`
	FailedCount          int             `json:"failed_count" db:"failed_count"`
	CanonicalXML         *string         `json:"-" db:"canonical_xml"`
	Version              int64           `json:"version" db:"version"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// PendingCount returns how many batch transfers have no result yet. The
// invariant successful + failed + pending = numberOfTransactions holds by
// construction.
func (b *SepaBatch) PendingCount() int {
	return b.NumberOfTransactions - b.SuccessfulCount - b.FailedCount
}

type SepaBatchModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sepaBatchColumns = `
	id, message_id, batch_type, status, number_of_transactions, total_amount,
	successful_count, failed_count, canonical_xml, version, created_at, updated_at
`

func (m *SepaBatchModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, messageID string, batchType SepaBatchType) (*SepaBatch, error) {
	if err := batchType.Validate(); err != nil {
		return nil, fmt.Errorf("validating sepa batch insert: %w", err)
	}

	query := `
		INSERT INTO sepa_batches (message_id, batch_type)
		VALUES ($1, $2)
		RETURNING ` + sepaBatchColumns

	var batch SepaBatch
	err := sqlExec.GetContext(ctx, &batch, query, messageID, batchType)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting sepa batch: %w", err)
	}

	return &batch, nil
}

func (m *SepaBatchModel) GetByMessageID(ctx context.Context, sqlExec db.SQLExecuter, messageID string) (*SepaBatch, error) {
	query := `SELECT ` + sepaBatchColumns + ` FROM sepa_batches WHERE message_id = $1`

	var batch SepaBatch
	err := sqlExec.GetContext(ctx, &batch, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sepa batch %s: %w", messageID, err)
	}

	return &batch, nil
}

func (m *SepaBatchModel) GetByID(ctx context.Context, sqlExec db.SQLExecuter, id string) (*SepaBatch, error) {
	query := `SELECT ` + sepaBatchColumns + ` FROM sepa_batches WHERE id = $1`

	var batch SepaBatch
	err := sqlExec.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sepa batch %s: %w", id, err)
	}

	return &batch, nil
}

func (m *SepaBatchModel) GetByStatus(ctx context.Context, sqlExec db.SQLExecuter, statuses ...SepaBatchStatus) ([]SepaBatch, error) {
	query := `SELECT ` + sepaBatchColumns + ` FROM sepa_batches WHERE status = ANY($1) ORDER BY created_at`

	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	batches := []SepaBatch{}
	err := sqlExec.SelectContext(ctx, &batches, query, pq.Array(statusStrings))
	if err != nil {
		return nil, fmt.Errorf("getting sepa batches by status: %w", err)
	}

	return batches, nil
}

func (m *SepaBatchModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, batch *SepaBatch, targetStatus SepaBatchStatus) (*SepaBatch, error) {
	if err := batch.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating sepa batch status transition: %w", err)
	}

	query := `
		UPDATE sepa_batches
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + sepaBatchColumns

	var updated SepaBatch
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, batch.ID, batch.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of sepa batch %s: %w", batch.MessageID, err)
	}

	return &updated, nil
}

// AddTransfer bumps the batch totals when a transfer is attached.
func (m *SepaBatchModel) AddTransfer(ctx context.Context, sqlExec db.SQLExecuter, batchID string, amount decimal.Decimal) error {
	query := `
		UPDATE sepa_batches
		SET number_of_transactions = number_of_transactions + 1,
		    total_amount = total_amount + $1,
		    updated_at = now()
		WHERE id = $2`

	result, err := sqlExec.ExecContext(ctx, query, amount, batchID)
	if err != nil {
		return fmt.Errorf("adding transfer to sepa batch %s: %w", batchID, err)
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

// RecordTransferResult updates the per-batch counters for one transfer
// outcome.
func (m *SepaBatchModel) RecordTransferResult(ctx context.Context, sqlExec db.SQLExecuter, batchID string, success bool) error {
	column := "failed_count"
	if success {
		column = "successful_count"
	}

	//nolint:gosec // column name comes from the branch above, not from input
	query := fmt.Sprintf(`UPDATE sepa_batches SET %s = %s + 1, updated_at = now() WHERE id = $1`, column, column)
	result, err := sqlExec.ExecContext(ctx, query, batchID)
	if err != nil {
		return fmt.Errorf("recording transfer result on sepa batch %s: %w", batchID, err)
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

func (m *SepaBatchModel) SetCanonicalXML(ctx context.Context, sqlExec db.SQLExecuter, batchID, xml string) error {
	query := `UPDATE sepa_batches SET canonical_xml = $1, updated_at = now() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, xml, batchID)
	if err != nil {
		return fmt.Errorf("storing canonical xml on sepa batch %s: %w", batchID, err)
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
