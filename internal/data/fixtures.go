package data

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// Fixtures used by database-backed tests. They fail the test on error instead
// of returning one.

func CreateCustomerFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) *Customer {
	t.Helper()

	model := &CustomerModel{}
	suffix, err := utils.RandomString(8, utils.NumberBytes)
	require.NoError(t, err)
	customer, err := model.Insert(ctx, sqlExec, CustomerInsert{
		CustomerNumber: "CUS-" + suffix,
		FirstName:      "Ada",
		LastName:       "Bergström",
		Email:          "ada." + suffix + "@example.com",
	})
	require.NoError(t, err)

	return customer
}

func CreateAccountFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, customerID, accountNumber, currency string, balance decimal.Decimal) *Account {
	t.Helper()

	model := &AccountModel{}
	account, err := model.Insert(ctx, sqlExec, AccountInsert{
		AccountNumber: accountNumber,
		CustomerID:    customerID,
		Currency:      currency,
		AccountType:   CheckingAccountType,
		Status:        ActiveAccountStatus,
		Balance:       balance,
	})
	require.NoError(t, err)

	return account
}

func CreateTransferFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, fromAccountNumber, toAccountNumber string, amount decimal.Decimal) *Transfer {
	t.Helper()

	ref, err := utils.RandomString(12, utils.UpperBytes, utils.NumberBytes)
	require.NoError(t, err)
	idempotencyKey, err := utils.RandomString(16)
	require.NoError(t, err)

	model := &TransferModel{}
	transfer, err := model.Insert(ctx, sqlExec, TransferInsert{
		TransferReference: "TRF-" + ref,
		FromAccountNumber: fromAccountNumber,
		ToAccountNumber:   toAccountNumber,
		Amount:            amount,
		Currency:          "EUR",
		IdempotencyKey:    idempotencyKey,
	})
	require.NoError(t, err)

	return transfer
}

func CreateAmlCaseFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, customerID string, priority AmlCasePriority, dueDate time.Time) *AmlCase {
	t.Helper()

	caseNumber, err := utils.RandomString(10, utils.UpperBytes, utils.NumberBytes)
	require.NoError(t, err)

	model := &AmlCaseModel{}
	amlCase, err := model.Insert(ctx, sqlExec, AmlCaseInsert{
		CaseNumber: "CASE-" + caseNumber,
		CustomerID: customerID,
		Priority:   priority,
		DueDate:    dueDate,
	})
	require.NoError(t, err)

	return amlCase
}
