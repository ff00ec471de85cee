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

// SepaReturnReason is an ISO return reason code. The set is closed: codes
// outside it are rejected at creation time.
type SepaReturnReason string

const (
	AC01ReturnReason SepaReturnReason = "AC01" // incorrect account number
	AC04ReturnReason SepaReturnReason = "AC04" // closed account
	AC06ReturnReason SepaReturnReason = "AC06" // blocked account
	AM04ReturnReason SepaReturnReason = "AM04" // insufficient funds
	AM05ReturnReason SepaReturnReason = "AM05" // duplication
	MD01ReturnReason SepaReturnReason = "MD01" // no mandate
	MD02ReturnReason SepaReturnReason = "MD02" // missing mandatory mandate information
	MD06ReturnReason SepaReturnReason = "MD06" // refund request by debtor
	MD07ReturnReason SepaReturnReason = "MD07" // debtor deceased
	MS02ReturnReason SepaReturnReason = "MS02" // not specified, by debtor
	MS03ReturnReason SepaReturnReason = "MS03" // not specified, by agent
	RR01ReturnReason SepaReturnReason = "RR01" // missing debtor account or identification
	RR02ReturnReason SepaReturnReason = "RR02" // missing debtor name or address
	RR03ReturnReason SepaReturnReason = "RR03" // missing creditor name or address
	RR04ReturnReason SepaReturnReason = "RR04" // regulatory reason
)

func (r SepaReturnReason) Validate() error {
	switch r {
	case AC01ReturnReason, AC04ReturnReason, AC06ReturnReason, AM04ReturnReason,
		AM05ReturnReason, MD01ReturnReason, MD02ReturnReason, MD06ReturnReason,
		MD07ReturnReason, MS02ReturnReason, MS03ReturnReason, RR01ReturnReason,
		RR02ReturnReason, RR03ReturnReason, RR04ReturnReason:
		return nil
	default:
		return fmt.Errorf("invalid sepa return reason code: %s", r)
	}
}

type SepaReturnStatus string

const (
	InitiatedSepaReturnStatus  SepaReturnStatus = "INITIATED"
	ValidatedSepaReturnStatus  SepaReturnStatus = "VALIDATED"
	ProcessingSepaReturnStatus SepaReturnStatus = "PROCESSING"
	CompletedSepaReturnStatus  SepaReturnStatus = "COMPLETED"
	RefundedSepaReturnStatus   SepaReturnStatus = "REFUNDED"
	RejectedSepaReturnStatus   SepaReturnStatus = "REJECTED"
)

func (status SepaReturnStatus) Validate() error {
	switch SepaReturnStatus(strings.ToUpper(string(status))) {
	case InitiatedSepaReturnStatus, ValidatedSepaReturnStatus, ProcessingSepaReturnStatus,
		CompletedSepaReturnStatus, RefundedSepaReturnStatus, RejectedSepaReturnStatus:
		return nil
	default:
		return fmt.Errorf("invalid sepa return status: %s", status)
	}
}

// TransitionTo transitions the sepa return status to the target state
func (status SepaReturnStatus) TransitionTo(targetState SepaReturnStatus) error {
	return SepaReturnStateMachineWithInitialState(status).TransitionTo(State(targetState))
}

func SepaReturnStateMachineWithInitialState(initialState SepaReturnStatus) *StateMachine {
	transitions := []StateTransition{
		{From: State(InitiatedSepaReturnStatus), To: State(ValidatedSepaReturnStatus)},   // original transfer found and settled
		{From: State(InitiatedSepaReturnStatus), To: State(RejectedSepaReturnStatus)},    // unknown original or not returnable
		{From: State(ValidatedSepaReturnStatus), To: State(ProcessingSepaReturnStatus)},  // return handed to the network
		{From: State(ProcessingSepaReturnStatus), To: State(CompletedSepaReturnStatus)},  // network confirmed the return
		{From: State(CompletedSepaReturnStatus), To: State(RefundedSepaReturnStatus)},    // inverse postings booked
	}

	return NewStateMachine(State(initialState), transitions)
}

type SepaReturn struct {
	ID                    string           `json:"id" db:"id"`
	ReturnReference       string           `json:"return_reference" db:"return_reference"`
	OriginalSepaReference string           `json:"original_sepa_reference" db:"original_sepa_reference"`
	ReasonCode            SepaReturnReason `json:"reason_code" db:"reason_code"`
	Amount                decimal.Decimal  `json:"amount" db:"amount"`
	Currency              string           `json:"currency" db:"currency"`
	Status                SepaReturnStatus `json:"status" db:"status"`
	RefundPostingID       *string          `json:"refund_posting_id,omitempty" db:"refund_posting_id"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

type SepaReturnModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sepaReturnColumns = `
	id, return_reference, original_sepa_reference, reason_code, amount, currency, status, refund_posting_id, created_at, updated_at
`

func (m *SepaReturnModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, returnReference, originalSepaReference string, reason SepaReturnReason, amount decimal.Decimal, currency string) (*SepaReturn, error) {
	if err := reason.Validate(); err != nil {
		return nil, fmt.Errorf("validating sepa return insert: %w", err)
	}

	query := `
		INSERT INTO sepa_returns (return_reference, original_sepa_reference, reason_code, amount, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sepaReturnColumns

	var ret SepaReturn
	err := sqlExec.GetContext(ctx, &ret, query, returnReference, originalSepaReference, reason, amount, currency)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting sepa return: %w", err)
	}

	return &ret, nil
}

func (m *SepaReturnModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, returnReference string) (*SepaReturn, error) {
	query := `SELECT ` + sepaReturnColumns + ` FROM sepa_returns WHERE return_reference = $1`

	var ret SepaReturn
	err := sqlExec.GetContext(ctx, &ret, query, returnReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sepa return %s: %w", returnReference, err)
	}

	return &ret, nil
}

func (m *SepaReturnModel) GetByOriginalReference(ctx context.Context, sqlExec db.SQLExecuter, originalSepaReference string) ([]SepaReturn, error) {
	query := `SELECT ` + sepaReturnColumns + ` FROM sepa_returns WHERE original_sepa_reference = $1 ORDER BY created_at`

	returns := []SepaReturn{}
	err := sqlExec.SelectContext(ctx, &returns, query, originalSepaReference)
	if err != nil {
		return nil, fmt.Errorf("getting sepa returns for %s: %w", originalSepaReference, err)
	}

	return returns, nil
}

// SumAmountByReasonCode returns the total returned amount recorded under the
// reason code.
func (m *SepaReturnModel) SumAmountByReasonCode(ctx context.Context, sqlExec db.SQLExecuter, reason SepaReturnReason) (decimal.Decimal, error) {
	if err := reason.Validate(); err != nil {
		return decimal.Zero, err
	}

	query := `SELECT COALESCE(SUM(amount), 0) FROM sepa_returns WHERE reason_code = $1`

	var total decimal.Decimal
	err := sqlExec.GetContext(ctx, &total, query, reason)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing sepa returns with reason %s: %w", reason, err)
	}

	return total, nil
}

func (m *SepaReturnModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, ret *SepaReturn, targetStatus SepaReturnStatus) (*SepaReturn, error) {
	if err := ret.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating sepa return status transition: %w", err)
	}

	query := `
		UPDATE sepa_returns
		SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING ` + sepaReturnColumns

	var updated SepaReturn
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, ret.ID)
	if err != nil {
		return nil, fmt.Errorf("updating status of sepa return %s: %w", ret.ReturnReference, err)
	}

	return &updated, nil
}

// SetRefundPosting links the credit posting that moved the funds back.
func (m *SepaReturnModel) SetRefundPosting(ctx context.Context, sqlExec db.SQLExecuter, returnID, postingID string) error {
	query := `UPDATE sepa_returns SET refund_posting_id = $1, updated_at = now() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, postingID, returnID)
	if err != nil {
		return fmt.Errorf("setting refund posting on sepa return %s: %w", returnID, err)
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
