package data

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
)

// MonitoredTransaction is the AML-side record of a posted transaction. The
// detection engine evaluates rules against the recent history of the same
// account.
type MonitoredTransaction struct {
	ID              string          `json:"id" db:"id"`
	AccountNumber   string          `json:"account_number" db:"account_number"`
	CustomerID      *string         `json:"customer_id,omitempty" db:"customer_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	ReferenceID     string          `json:"reference_id" db:"reference_id"`
	Flagged         bool            `json:"flagged" db:"flagged"`
	RiskScore       int             `json:"risk_score" db:"risk_score"`
	TransactionDate time.Time       `json:"transaction_date" db:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type MonitoredTransactionInsert struct {
	AccountNumber   string
	CustomerID      *string
	Amount          decimal.Decimal
	Currency        string
	ReferenceID     string
	TransactionDate time.Time
}

type MonitoredTransactionModel struct {
	dbConnectionPool db.DBConnectionPool
}

const monitoredTransactionColumns = `
	id, account_number, customer_id, amount, currency, reference_id, flagged, risk_score, transaction_date, created_at
`

func (m *MonitoredTransactionModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert MonitoredTransactionInsert) (*MonitoredTransaction, error) {
	query := `
		INSERT INTO monitored_transactions (account_number, customer_id, amount, currency, reference_id, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + monitoredTransactionColumns

	var tx MonitoredTransaction
	err := sqlExec.GetContext(ctx, &tx, query,
		insert.AccountNumber, insert.CustomerID, insert.Amount, insert.Currency, insert.ReferenceID, insert.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("inserting monitored transaction: %w", err)
	}

	return &tx, nil
}

// GetRecentForAccount returns transactions for the account observed at or
// after the cutoff, newest first.
func (m *MonitoredTransactionModel) GetRecentForAccount(ctx context.Context, sqlExec db.SQLExecuter, accountNumber string, since time.Time) ([]MonitoredTransaction, error) {
	query := `
		SELECT ` + monitoredTransactionColumns + `
		FROM monitored_transactions
		WHERE account_number = $1 AND transaction_date >= $2
		ORDER BY transaction_date DESC`

	txs := []MonitoredTransaction{}
	err := sqlExec.SelectContext(ctx, &txs, query, accountNumber, since)
	if err != nil {
		return nil, fmt.Errorf("getting recent transactions for account %s: %w", accountNumber, err)
	}

	return txs, nil
}

// SumForAccountSince returns the total transacted amount in the given
// currency for the account at or after the cutoff. Amounts in other
// currencies are not comparable and stay out of the sum.
func (m *MonitoredTransactionModel) SumForAccountSince(ctx context.Context, sqlExec db.SQLExecuter, accountNumber, currency string, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM monitored_transactions
		WHERE account_number = $1 AND currency = $2 AND transaction_date >= $3`

	var total decimal.Decimal
	err := sqlExec.GetContext(ctx, &total, query, accountNumber, currency, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing transactions for account %s: %w", accountNumber, err)
	}

	return total, nil
}

// CountForCustomer returns the total and flagged transaction counts for the
// customer. Used by risk profile scoring.
func (m *MonitoredTransactionModel) CountForCustomer(ctx context.Context, sqlExec db.SQLExecuter, customerID string) (total int, flagged int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE flagged)
		FROM monitored_transactions
		WHERE customer_id = $1`

	row := sqlExec.QueryRowxContext(ctx, query, customerID)
	if err = row.Scan(&total, &flagged); err != nil {
		return 0, 0, fmt.Errorf("counting transactions for customer %s: %w", customerID, err)
	}

	return total, flagged, nil
}

func (m *MonitoredTransactionModel) MarkFlagged(ctx context.Context, sqlExec db.SQLExecuter, id string, riskScore int) error {
	query := `UPDATE monitored_transactions SET flagged = TRUE, risk_score = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, riskScore, id)
	if err != nil {
		return fmt.Errorf("flagging monitored transaction %s: %w", id, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if numRowsAffected != 1 {
		return ErrRecordNotFound
	}

	return nil
}
