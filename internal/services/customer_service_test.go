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
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var customerServiceNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupCustomerService(t *testing.T) (*CustomerService, *data.Models) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	customerService, err := NewCustomerService(CustomerServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Clock:            utils.FixedClock{Time: customerServiceNow},
	})
	require.NoError(t, err)

	return customerService, models
}

func registerTestCustomer(t *testing.T, customerService *CustomerService, insert data.CustomerInsert) *data.Customer {
	t.Helper()

	if insert.FirstName == "" {
		insert.FirstName = "Nils"
	}
	if insert.LastName == "" {
		insert.LastName = "Holm"
	}
	if insert.Email == "" {
		insert.Email = insert.FirstName + "." + insert.LastName + "@example.com"
	}

	customer, err := customerService.RegisterCustomer(context.Background(), insert)
	require.NoError(t, err)
	return customer
}

func Test_CustomerService_RegisterCustomer(t *testing.T) {
	customerService, _ := setupCustomerService(t)

	t.Run("registers in PENDING_VERIFICATION with a generated number", func(t *testing.T) {
		customer := registerTestCustomer(t, customerService, data.CustomerInsert{})

		assert.Contains(t, customer.CustomerNumber, "CUST-")
		assert.Equal(t, data.PendingVerificationCustomerStatus, customer.Status)
	})

	t.Run("rejects an invalid email", func(t *testing.T) {
		_, err := customerService.RegisterCustomer(context.Background(), data.CustomerInsert{
			FirstName: "Nils",
			LastName:  "Holm",
			Email:     "not-an-email",
		})
		assert.ErrorContains(t, err, "validating customer email")
	})
}

func Test_CustomerService_onboardingWorkflow(t *testing.T) {
	ctx := context.Background()
	customerService, _ := setupCustomerService(t)
	customer := registerTestCustomer(t, customerService, data.CustomerInsert{})

	t.Run("verification requires a verified document", func(t *testing.T) {
		_, err := customerService.VerifyCustomer(ctx, customer.CustomerNumber, "kyc.officer")
		assert.ErrorContains(t, err, "no verified document on file")
	})

	expiry := customerServiceNow.Add(5 * 365 * 24 * time.Hour)
	doc, err := customerService.UploadDocument(ctx, customer.CustomerNumber, "PASSPORT", "P-1234567", &expiry)
	require.NoError(t, err)
	assert.Equal(t, data.UploadedDocumentStatus, doc.Status)

	verifiedDoc, err := customerService.ReviewDocument(ctx, doc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, data.VerifiedDocumentStatus, verifiedDoc.Status)
	assert.NotNil(t, verifiedDoc.ReviewedAt)

	verified, err := customerService.VerifyCustomer(ctx, customer.CustomerNumber, "kyc.officer")
	require.NoError(t, err)
	assert.Equal(t, data.VerifiedCustomerStatus, verified.Status)

	approved, err := customerService.ApproveCustomer(ctx, customer.CustomerNumber, "compliance.officer")
	require.NoError(t, err)
	assert.Equal(t, data.ApprovedCustomerStatus, approved.Status)

	suspended, err := customerService.SuspendCustomer(ctx, customer.CustomerNumber, "compliance.officer", "pending fraud review")
	require.NoError(t, err)
	assert.Equal(t, data.SuspendedCustomerStatus, suspended.Status)

	reinstated, err := customerService.ReinstateCustomer(ctx, customer.CustomerNumber, "compliance.officer")
	require.NoError(t, err)
	assert.Equal(t, data.ApprovedCustomerStatus, reinstated.Status)

	closed, err := customerService.CloseCustomer(ctx, customer.CustomerNumber, "compliance.officer", "customer request")
	require.NoError(t, err)
	assert.Equal(t, data.ClosedCustomerStatus, closed.Status)

	t.Run("every transition lands in the history", func(t *testing.T) {
		history, err := customerService.GetHistory(ctx, customer.CustomerNumber)
		require.NoError(t, err)
		require.Len(t, history, 5)

		last := history[len(history)-1]
		assert.Equal(t, data.ApprovedCustomerStatus, last.FromStatus)
		assert.Equal(t, data.ClosedCustomerStatus, last.ToStatus)
		assert.Equal(t, "compliance.officer", last.Actor)
		require.NotNil(t, last.Reason)
		assert.Equal(t, "customer request", *last.Reason)
	})

	t.Run("a closed customer cannot be reinstated", func(t *testing.T) {
		_, err := customerService.ReinstateCustomer(ctx, customer.CustomerNumber, "compliance.officer")
		assert.ErrorContains(t, err, "cannot transition from CLOSED to APPROVED")
	})
}

func Test_CustomerService_UploadDocument_expired(t *testing.T) {
	ctx := context.Background()
	customerService, _ := setupCustomerService(t)
	customer := registerTestCustomer(t, customerService, data.CustomerInsert{})

	expired := customerServiceNow.Add(-24 * time.Hour)
	doc, err := customerService.UploadDocument(ctx, customer.CustomerNumber, "ID_CARD", "ID-OLD-1", &expired)
	require.NoError(t, err)
	assert.Equal(t, data.RejectedDocumentStatus, doc.Status)

	t.Run("a rejected document cannot be verified", func(t *testing.T) {
		_, err := customerService.ReviewDocument(ctx, doc.ID, true)
		assert.ErrorContains(t, err, "cannot transition from REJECTED to VERIFIED")
	})
}

func Test_CustomerService_ComputeRiskProfile(t *testing.T) {
	ctx := context.Background()
	customerService, models := setupCustomerService(t)

	t.Run("a clean customer scores zero", func(t *testing.T) {
		customer := registerTestCustomer(t, customerService, data.CustomerInsert{CustomerNumber: "CUS-RISK-1"})

		profile, err := customerService.ComputeRiskProfile(ctx, customer.CustomerNumber)
		require.NoError(t, err)

		assert.Zero(t, profile.RiskScore)
		assert.Equal(t, data.LowRiskLevel, profile.RiskLevel)
		assert.Zero(t, profile.TotalTransactions)
		assert.Equal(t, customerServiceNow, profile.ComputedAt)
	})

	t.Run("PEP with a confirmed match and flagged activity", func(t *testing.T) {
		customer := registerTestCustomer(t, customerService, data.CustomerInsert{
			CustomerNumber: "CUS-RISK-2",
			FirstName:      "Viktor",
			LastName:       "Petrov",
			IsPEP:          true,
		})

		// 2 of 4 transactions flagged: 30 x 0.5 = 15 points
		for i, amount := range []string{"100.00", "200.00", "15000.00", "18000.00"} {
			tx, err := models.MonitoredTransactions.Insert(ctx, models.DBConnectionPool, data.MonitoredTransactionInsert{
				AccountNumber:   "ACCT-RISK-2",
				CustomerID:      &customer.ID,
				Amount:          decimal.RequireFromString(amount),
				Currency:        "EUR",
				ReferenceID:     "TX-RISK-" + amount,
				TransactionDate: customerServiceNow.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
			if i >= 2 {
				require.NoError(t, models.MonitoredTransactions.MarkFlagged(ctx, models.DBConnectionPool, tx.ID, 40))
			}
		}

		entry, err := models.Sanctions.InsertEntry(ctx, models.DBConnectionPool, data.SanctionEntry{
			ListName: "EU-CONSOLIDATED",
			FullName: "Viktor Petrov",
		})
		require.NoError(t, err)
		match, err := models.Sanctions.InsertMatch(ctx, models.DBConnectionPool, entry.ID, customer.ID, 100)
		require.NoError(t, err)
		_, err = models.Sanctions.UpdateMatchStatus(ctx, models.DBConnectionPool, match.ID, match.Status, data.ConfirmedSanctionMatchStatus)
		require.NoError(t, err)

		profile, err := customerService.ComputeRiskProfile(ctx, customer.CustomerNumber)
		require.NoError(t, err)

		// 15 (flagged ratio) + 50 (confirmed match) + 15 (PEP) = 80
		assert.Equal(t, 80, profile.RiskScore)
		assert.Equal(t, data.CriticalRiskLevel, profile.RiskLevel)
		assert.Equal(t, 4, profile.TotalTransactions)
		assert.Equal(t, 2, profile.FlaggedTransactions)
		assert.Equal(t, 1, profile.ConfirmedMatches)
		assert.Zero(t, profile.PotentialMatches)
	})

	t.Run("frozen accounts and high risk flags add up", func(t *testing.T) {
		customer := registerTestCustomer(t, customerService, data.CustomerInsert{
			CustomerNumber:       "CUS-RISK-3",
			HighRiskJurisdiction: true,
			HighRiskBusiness:     true,
		})

		data.CreateAccountFixture(t, ctx, models.DBConnectionPool, customer.ID, "ACCT-RISK-3A", "EUR", decimal.NewFromInt(1000))
		frozen := data.CreateAccountFixture(t, ctx, models.DBConnectionPool, customer.ID, "ACCT-RISK-3B", "EUR", decimal.NewFromInt(1000))
		_, err := models.Accounts.UpdateStatus(ctx, models.DBConnectionPool, frozen, data.FrozenAccountStatus)
		require.NoError(t, err)

		profile, err := customerService.ComputeRiskProfile(ctx, customer.CustomerNumber)
		require.NoError(t, err)

		// 10 (jurisdiction) + 10 (business) + 5 (1 of 2 accounts frozen)
		assert.Equal(t, 25, profile.RiskScore)
		assert.Equal(t, data.LowRiskLevel, profile.RiskLevel)
	})
}
