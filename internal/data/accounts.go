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

type AccountType string

const (
	CheckingAccountType AccountType = "CHECKING"
	SavingsAccountType  AccountType = "SAVINGS"
)

func (t AccountType) Validate() error {
	switch t {
	case CheckingAccountType, SavingsAccountType:
		return nil
	default:
		return fmt.Errorf("invalid account type: %s", t)
	}
}

type Account struct {
	ID            string          `json:"id" db:"id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	CustomerID    string          `json:"customer_id" db:"customer_id"`
	Currency      string          `json:"currency" db:"currency"`
	AccountType   AccountType     `json:"account_type" db:"account_type"`
	Status        AccountStatus   `json:"status" db:"status"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Version       int64           `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type AccountInsert struct {
	AccountNumber string          `db:"account_number"`
	CustomerID    string          `db:"customer_id"`
	Currency      string          `db:"currency"`
	AccountType   AccountType     `db:"account_type"`
	Status        AccountStatus   `db:"status"`
	Balance       decimal.Decimal `db:"balance"`
}

type AccountModel struct {
	dbConnectionPool db.DBConnectionPool
}

const accountColumns = `
	id, account_number, customer_id, currency, account_type, status, balance, version, created_at, updated_at
`

func (m *AccountModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert AccountInsert) (*Account, error) {
	if err := insert.AccountType.Validate(); err != nil {
		return nil, fmt.Errorf("validating account insert: %w", err)
	}

	query := `
		INSERT INTO accounts (account_number, customer_id, currency, account_type, status, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	var account Account
	err := sqlExec.GetContext(ctx, &account, query,
		insert.AccountNumber, insert.CustomerID, insert.Currency, insert.AccountType, insert.Status, insert.Balance)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting account: %w", err)
	}

	return &account, nil
}

func (m *AccountModel) GetByAccountNumber(ctx context.Context, sqlExec db.SQLExecuter, accountNumber string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	var account Account
	err := sqlExec.GetContext(ctx, &account, query, accountNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}

	return &account, nil
}

// GetByAccountNumberForUpdate loads the account under a row lock, serializing
// concurrent postings on the same account. Must run inside a transaction.
func (m *AccountModel) GetByAccountNumberForUpdate(ctx context.Context, dbTx db.DBTransaction, accountNumber string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`

	var account Account
	err := dbTx.GetContext(ctx, &account, query, accountNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking account %s: %w", accountNumber, err)
	}

	return &account, nil
}

func (m *AccountModel) GetByCustomerID(ctx context.Context, sqlExec db.SQLExecuter, customerID string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE customer_id = $1 ORDER BY created_at`

	accounts := []Account{}
	err := sqlExec.SelectContext(ctx, &accounts, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting accounts for customer %s: %w", customerID, err)
	}

	return accounts, nil
}

// UpdateBalance writes the new balance with a compare-and-swap on version.
// Returns ErrStaleVersion when another writer got there first.
func (m *AccountModel) UpdateBalance(ctx context.Context, sqlExec db.SQLExecuter, account *Account, newBalance decimal.Decimal) (*Account, error) {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + accountColumns

	var updated Account
	err := sqlExec.GetContext(ctx, &updated, query, newBalance, account.ID, account.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating balance of account %s: %w", account.AccountNumber, err)
	}

	return &updated, nil
}

// UpdateStatus transitions the account status, enforcing the status machine
// and the version CAS.
func (m *AccountModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, account *Account, targetStatus AccountStatus) (*Account, error) {
	if err := account.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating account status transition: %w", err)
	}

	query := `
		UPDATE accounts
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + accountColumns

	var updated Account
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, account.ID, account.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of account %s: %w", account.AccountNumber, err)
	}

	return &updated, nil
}
