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

type PostingDirection string

const (
	DebitPostingDirection  PostingDirection = "DEBIT"
	CreditPostingDirection PostingDirection = "CREDIT"
)

func (d PostingDirection) Validate() error {
	switch d {
	case DebitPostingDirection, CreditPostingDirection:
		return nil
	default:
		return fmt.Errorf("invalid posting direction: %s", d)
	}
}

// PostingLine is one immutable debit or credit entry on an account. Rows are
// append-only; the (account, direction, reference) uniqueness carries the
// posting idempotency contract.
type PostingLine struct {
	ID           string           `json:"id" db:"id"`
	AccountID    string           `json:"account_id" db:"account_id"`
	Direction    PostingDirection `json:"direction" db:"direction"`
	Amount       decimal.Decimal  `json:"amount" db:"amount"`
	Currency     string           `json:"currency" db:"currency"`
	ReferenceID  string           `json:"reference_id" db:"reference_id"`
	Description  string           `json:"description" db:"description"`
	BalanceAfter decimal.Decimal  `json:"balance_after" db:"balance_after"`
	PostedAt     time.Time        `json:"posted_at" db:"posted_at"`
}

type PostingLineInsert struct {
	AccountID    string
	Direction    PostingDirection
	Amount       decimal.Decimal
	Currency     string
	ReferenceID  string
	Description  string
	BalanceAfter decimal.Decimal
}

type PostingLineModel struct {
	dbConnectionPool db.DBConnectionPool
}

const postingLineColumns = `
	id, account_id, direction, amount, currency, reference_id, description, balance_after, posted_at
`

func (m *PostingLineModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PostingLineInsert) (*PostingLine, error) {
	if err := insert.Direction.Validate(); err != nil {
		return nil, fmt.Errorf("validating posting line insert: %w", err)
	}

	query := `
		INSERT INTO posting_lines (account_id, direction, amount, currency, reference_id, description, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + postingLineColumns

	var line PostingLine
	err := sqlExec.GetContext(ctx, &line, query,
		insert.AccountID, insert.Direction, insert.Amount, insert.Currency, insert.ReferenceID, insert.Description, insert.BalanceAfter)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting posting line: %w", err)
	}

	return &line, nil
}

func (m *PostingLineModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*PostingLine, error) {
	query := `SELECT ` + postingLineColumns + ` FROM posting_lines WHERE id = $1`

	var line PostingLine
	err := sqlExec.GetContext(ctx, &line, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting posting line %s: %w", id, err)
	}

	return &line, nil
}

// GetByReference returns the posting previously written for the reference, or
// ErrRecordNotFound. Used to resolve idempotent replays.
func (m *PostingLineModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, accountID string, direction PostingDirection, referenceID string) (*PostingLine, error) {
	query := `
		SELECT ` + postingLineColumns + `
		FROM posting_lines
		WHERE account_id = $1 AND direction = $2 AND reference_id = $3`

	var line PostingLine
	err := sqlExec.GetContext(ctx, &line, query, accountID, direction, referenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting posting line by reference %s: %w", referenceID, err)
	}

	return &line, nil
}

// History returns the account's posting lines within [from, to], oldest first.
// Zero time bounds are treated as open.
func (m *PostingLineModel) History(ctx context.Context, sqlExec db.SQLExecuter, accountID string, from, to time.Time) ([]PostingLine, error) {
	query := `
		SELECT ` + postingLineColumns + `
		FROM posting_lines
		WHERE account_id = $1
		  AND ($2::timestamptz IS NULL OR posted_at >= $2)
		  AND ($3::timestamptz IS NULL OR posted_at <= $3)
		ORDER BY posted_at, id`

	var fromArg, toArg interface{}
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}

	lines := []PostingLine{}
	err := sqlExec.SelectContext(ctx, &lines, query, accountID, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("getting posting history for account %s: %w", accountID, err)
	}

	return lines, nil
}

// SumByDirection returns sum(credits) and sum(debits) for the account.
// balance = credits - debits is the ledger invariant checked by reconciliation.
func (m *PostingLineModel) SumByDirection(ctx context.Context, sqlExec db.SQLExecuter, accountID string) (credits, debits decimal.Decimal, err error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'CREDIT'), 0) AS credits,
			COALESCE(SUM(amount) FILTER (WHERE direction = 'DEBIT'), 0) AS debits
		FROM posting_lines
		WHERE account_id = $1`

	var sums struct {
		Credits decimal.Decimal `db:"credits"`
		Debits  decimal.Decimal `db:"debits"`
	}
	err = sqlExec.GetContext(ctx, &sums, query, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("summing postings for account %s: %w", accountID, err)
	}

	return sums.Credits, sums.Debits, nil
}
