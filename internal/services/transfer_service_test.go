package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/db/dbtest"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/saga"
)

func setupTransferService(t *testing.T) (*TransferService, *data.Models, *saga.Registry) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ledgerService, err := NewLedgerService(LedgerServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	require.NoError(t, err)

	orchestrator, err := saga.NewOrchestrator(saga.OrchestratorOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
	})
	require.NoError(t, err)

	registry := &saga.Registry{}
	transferService, err := NewTransferService(TransferServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		LedgerService:    ledgerService,
		Orchestrator:     orchestrator,
		SagaRegistry:     registry,
	})
	require.NoError(t, err)

	return transferService, models, registry
}

func transferTestAccounts(t *testing.T, models *data.Models, sourceBalance, destinationBalance string) (*data.Account, *data.Account) {
	t.Helper()

	ctx := context.Background()
	customer := data.CreateCustomerFixture(t, ctx, models.DBConnectionPool)
	source := data.CreateAccountFixture(t, ctx, models.DBConnectionPool, customer.ID, "ACCT-SRC-1", "EUR", decimal.RequireFromString(sourceBalance))
	destination := data.CreateAccountFixture(t, ctx, models.DBConnectionPool, customer.ID, "ACCT-DST-1", "EUR", decimal.RequireFromString(destinationBalance))
	return source, destination
}

func Test_TransferService_InitiateTransfer_happyPath(t *testing.T) {
	ctx := context.Background()
	transferService, models, _ := setupTransferService(t)
	source, destination := transferTestAccounts(t, models, "500.00", "100.00")

	transfer, err := transferService.InitiateTransfer(ctx, TransferRequest{
		FromAccountNumber: source.AccountNumber,
		ToAccountNumber:   destination.AccountNumber,
		Amount:            decimal.RequireFromString("200.00"),
		Currency:          "EUR",
		IdempotencyKey:    "idem-happy",
	})
	require.NoError(t, err)

	assert.Equal(t, data.CompletedTransferStatus, transfer.Status)
	assert.NotNil(t, transfer.CompletedAt)
	assert.NotNil(t, transfer.DebitPostingID)
	assert.NotNil(t, transfer.CreditPostingID)

	updatedSource, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, source.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.RequireFromString("300.00")))

	updatedDestination, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, destination.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedDestination.Balance.Equal(decimal.RequireFromString("300.00")))

	record, err := models.SagaRecords.GetByAggregateRef(ctx, models.DBConnectionPool, InternalTransferSagaName, transfer.TransferReference)
	require.NoError(t, err)
	assert.Equal(t, data.CompletedSagaState, record.State)

	t.Run("repeating the idempotency key returns the same transfer", func(t *testing.T) {
		replayed, err := transferService.InitiateTransfer(ctx, TransferRequest{
			FromAccountNumber: source.AccountNumber,
			ToAccountNumber:   destination.AccountNumber,
			Amount:            decimal.RequireFromString("200.00"),
			Currency:          "EUR",
			IdempotencyKey:    "idem-happy",
		})
		require.NoError(t, err)
		assert.Equal(t, transfer.ID, replayed.ID)

		balance, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, source.AccountNumber)
		require.NoError(t, err)
		assert.True(t, balance.Balance.Equal(decimal.RequireFromString("300.00")), "replay must not move money")
	})
}

func Test_TransferService_InitiateTransfer_validationFailures(t *testing.T) {
	ctx := context.Background()
	transferService, models, _ := setupTransferService(t)
	source, destination := transferTestAccounts(t, models, "100.00", "50.00")

	testCases := []struct {
		name    string
		request TransferRequest
		wantErr error
	}{
		{
			name: "insufficient funds",
			request: TransferRequest{
				FromAccountNumber: source.AccountNumber,
				ToAccountNumber:   destination.AccountNumber,
				Amount:            decimal.RequireFromString("100.01"),
				Currency:          "EUR",
			},
			wantErr: ErrInsufficientFunds,
		},
		{
			name: "same account",
			request: TransferRequest{
				FromAccountNumber: source.AccountNumber,
				ToAccountNumber:   source.AccountNumber,
				Amount:            decimal.RequireFromString("10.00"),
				Currency:          "EUR",
			},
			wantErr: ErrSameAccountTransfer,
		},
		{
			name: "currency mismatch",
			request: TransferRequest{
				FromAccountNumber: source.AccountNumber,
				ToAccountNumber:   destination.AccountNumber,
				Amount:            decimal.RequireFromString("10.00"),
				Currency:          "USD",
			},
			wantErr: ErrCurrencyMismatch,
		},
		{
			name: "non-positive amount",
			request: TransferRequest{
				FromAccountNumber: source.AccountNumber,
				ToAccountNumber:   destination.AccountNumber,
				Amount:            decimal.Zero,
				Currency:          "EUR",
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "unknown destination",
			request: TransferRequest{
				FromAccountNumber: source.AccountNumber,
				ToAccountNumber:   "ACCT-MISSING",
				Amount:            decimal.RequireFromString("10.00"),
				Currency:          "EUR",
			},
			wantErr: data.ErrRecordNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			transfer, err := transferService.InitiateTransfer(ctx, tc.request)
			assert.ErrorIs(t, err, tc.wantErr)
			require.NotNil(t, transfer)
			assert.Equal(t, data.FailedTransferStatus, transfer.Status)
			assert.NotNil(t, transfer.FailureReason)
		})
	}

	// no posting was ever written
	updatedSource, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, source.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.RequireFromString("100.00")))
	lines, err := models.PostingLines.History(ctx, models.DBConnectionPool, source.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func Test_TransferService_debitFailureCompensatesWithoutPostings(t *testing.T) {
	ctx := context.Background()
	transferService, models, _ := setupTransferService(t)
	source, destination := transferTestAccounts(t, models, "100.00", "0.00")

	transfer := data.CreateTransferFixture(t, ctx, models.DBConnectionPool, source.AccountNumber, destination.AccountNumber, decimal.RequireFromString("80.00"))

	// validation passes against the original balance
	validate := &validateTransferStep{s: transferService}
	require.NoError(t, validate.Execute(ctx, transfer.TransferReference))

	// a concurrent drain empties the source before the debit leg runs
	_, err := transferService.ledgerService.Debit(ctx, source.AccountNumber, decimal.RequireFromString("90.00"), "REF-DRAIN", "concurrent drain")
	require.NoError(t, err)

	_, sagaErr := transferService.orchestrator.Run(ctx, transferService.definition, transfer.TransferReference)
	require.ErrorIs(t, sagaErr, ErrInsufficientFunds)

	settled, err := transferService.finalize(ctx, transfer.TransferReference, sagaErr)
	require.NoError(t, err)
	assert.Equal(t, data.CompensatedTransferStatus, settled.Status)

	// the drain is the only posting; no transfer legs, no reversals
	updatedSource, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, source.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.RequireFromString("10.00")))

	_, err = models.PostingLines.GetByReference(ctx, models.DBConnectionPool, source.ID, data.DebitPostingDirection, transfer.TransferReference)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func Test_TransferService_creditFailureReversesTheDebit(t *testing.T) {
	ctx := context.Background()
	transferService, models, _ := setupTransferService(t)
	source, destination := transferTestAccounts(t, models, "100.00", "0.00")

	transfer := data.CreateTransferFixture(t, ctx, models.DBConnectionPool, source.AccountNumber, destination.AccountNumber, decimal.RequireFromString("80.00"))

	validate := &validateTransferStep{s: transferService}
	require.NoError(t, validate.Execute(ctx, transfer.TransferReference))

	// destination gets frozen between validation and the credit leg
	destinationAccount, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, destination.AccountNumber)
	require.NoError(t, err)
	_, err = models.Accounts.UpdateStatus(ctx, models.DBConnectionPool, destinationAccount, data.FrozenAccountStatus)
	require.NoError(t, err)

	_, sagaErr := transferService.orchestrator.Run(ctx, transferService.definition, transfer.TransferReference)
	require.ErrorIs(t, sagaErr, ErrAccountInactive)

	settled, err := transferService.finalize(ctx, transfer.TransferReference, sagaErr)
	require.NoError(t, err)
	assert.Equal(t, data.CompensatedTransferStatus, settled.Status)

	// the debit leg was booked and then reversed
	updatedSource, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, source.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedSource.Balance.Equal(decimal.RequireFromString("100.00")))

	debitLeg, err := models.PostingLines.GetByReference(ctx, models.DBConnectionPool, source.ID, data.DebitPostingDirection, transfer.TransferReference)
	require.NoError(t, err)
	assert.True(t, debitLeg.Amount.Equal(decimal.RequireFromString("80.00")))

	reversal, err := models.PostingLines.GetByReference(ctx, models.DBConnectionPool, source.ID, data.CreditPostingDirection, transfer.TransferReference+ReversalReferenceSuffix)
	require.NoError(t, err)
	assert.True(t, reversal.Amount.Equal(decimal.RequireFromString("80.00")))

	// destination never received money
	updatedDestination, err := models.Accounts.GetByAccountNumber(ctx, models.DBConnectionPool, destination.AccountNumber)
	require.NoError(t, err)
	assert.True(t, updatedDestination.Balance.IsZero())
}

func Test_TransferService_registersItsSaga(t *testing.T) {
	_, _, registry := setupTransferService(t)

	definition, err := registry.Get(InternalTransferSagaName)
	require.NoError(t, err)
	assert.Len(t, definition.Steps, 4)
}
