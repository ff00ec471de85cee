package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nordbank/banking-platform-backend/db"
)

type SagaState string

const (
	RunningSagaState      SagaState = "RUNNING"
	CompensatingSagaState SagaState = "COMPENSATING"
	CompletedSagaState    SagaState = "COMPLETED"
	CompensatedSagaState  SagaState = "COMPENSATED"
	FailedSagaState       SagaState = "FAILED"
)

// IsTerminal reports whether the saga needs no further driving.
func (s SagaState) IsTerminal() bool {
	switch s {
	case CompletedSagaState, CompensatedSagaState, FailedSagaState:
		return true
	default:
		return false
	}
}

// SagaRecord is the durable progress record of one saga run. The orchestrator
// writes it before and after every step so a crashed run can be resumed.
type SagaRecord struct {
	ID              string         `json:"id" db:"id"`
	SagaName        string         `json:"saga_name" db:"saga_name"`
	AggregateRef    string         `json:"aggregate_ref" db:"aggregate_ref"`
	ExecutedStepIDs pq.StringArray `json:"executed_step_ids" db:"executed_step_ids"`
	State           SagaState      `json:"state" db:"state"`
	LastError       *string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

type SagaRecordModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sagaRecordColumns = `
	id, saga_name, aggregate_ref, executed_step_ids, state, last_error, created_at, updated_at
`

func (m *SagaRecordModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, sagaName, aggregateRef string) (*SagaRecord, error) {
	query := `
		INSERT INTO saga_records (saga_name, aggregate_ref)
		VALUES ($1, $2)
		RETURNING ` + sagaRecordColumns

	var record SagaRecord
	err := sqlExec.GetContext(ctx, &record, query, sagaName, aggregateRef)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting saga record: %w", err)
	}

	return &record, nil
}

func (m *SagaRecordModel) GetByAggregateRef(ctx context.Context, sqlExec db.SQLExecuter, sagaName, aggregateRef string) (*SagaRecord, error) {
	query := `SELECT ` + sagaRecordColumns + ` FROM saga_records WHERE saga_name = $1 AND aggregate_ref = $2`

	var record SagaRecord
	err := sqlExec.GetContext(ctx, &record, query, sagaName, aggregateRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting saga record for %s/%s: %w", sagaName, aggregateRef, err)
	}

	return &record, nil
}

// AppendExecutedStep records that the step ran successfully. The append and
// the timestamp bump are the atomic unit of recovery.
func (m *SagaRecordModel) AppendExecutedStep(ctx context.Context, sqlExec db.SQLExecuter, recordID, stepID string) error {
	query := `
		UPDATE saga_records
		SET executed_step_ids = array_append(executed_step_ids, $1), updated_at = now()
		WHERE id = $2`

	result, err := sqlExec.ExecContext(ctx, query, stepID, recordID)
	if err != nil {
		return fmt.Errorf("appending executed step to saga record %s: %w", recordID, err)
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

// RemoveExecutedStep drops a compensated step from the executed set.
func (m *SagaRecordModel) RemoveExecutedStep(ctx context.Context, sqlExec db.SQLExecuter, recordID, stepID string) error {
	query := `
		UPDATE saga_records
		SET executed_step_ids = array_remove(executed_step_ids, $1), updated_at = now()
		WHERE id = $2`

	_, err := sqlExec.ExecContext(ctx, query, stepID, recordID)
	if err != nil {
		return fmt.Errorf("removing executed step from saga record %s: %w", recordID, err)
	}

	return nil
}

func (m *SagaRecordModel) SetState(ctx context.Context, sqlExec db.SQLExecuter, recordID string, state SagaState, lastError *string) error {
	query := `
		UPDATE saga_records
		SET state = $1, last_error = COALESCE($2, last_error), updated_at = now()
		WHERE id = $3`

	result, err := sqlExec.ExecContext(ctx, query, state, lastError, recordID)
	if err != nil {
		return fmt.Errorf("setting state of saga record %s: %w", recordID, err)
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

// GetNonTerminal returns sagas still in flight whose last write is older than
// the given threshold, oldest first.
func (m *SagaRecordModel) GetNonTerminal(ctx context.Context, sqlExec db.SQLExecuter, olderThan time.Time) ([]SagaRecord, error) {
	query := `
		SELECT ` + sagaRecordColumns + `
		FROM saga_records
		WHERE state IN ('RUNNING', 'COMPENSATING') AND updated_at < $1
		ORDER BY updated_at`

	records := []SagaRecord{}
	err := sqlExec.SelectContext(ctx, &records, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("getting non-terminal saga records: %w", err)
	}

	return records, nil
}
