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

func setupMandateService(t *testing.T, clock utils.Clock) (*SepaMandateService, *data.Models) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	mandateService, err := NewSepaMandateService(SepaMandateServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Clock:            clock,
	})
	require.NoError(t, err)

	return mandateService, models
}

func validMandateRequest(umr string) MandateRequest {
	return MandateRequest{
		UMR:           umr,
		DebtorIBAN:    "DE89370400440532013000",
		CreditorIBAN:  "FR1420041010050500013M02606",
		CreditorID:    "DE98ZZZ09999999999",
		MandateType:   data.SddCoreMandateType,
		SignatureDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func Test_SepaMandateService_CreateMandate(t *testing.T) {
	ctx := context.Background()
	mandateService, _ := setupMandateService(t, utils.FixedClock{Time: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)})

	t.Run("creates a pending FRST mandate", func(t *testing.T) {
		mandate, err := mandateService.CreateMandate(ctx, validMandateRequest("UMR-0001"))
		require.NoError(t, err)

		assert.Equal(t, data.PendingMandateStatus, mandate.Status)
		assert.Equal(t, data.FrstSequenceType, mandate.SequenceType)
		assert.Equal(t, 0, mandate.CollectionCount)
	})

	t.Run("duplicate UMR is rejected", func(t *testing.T) {
		_, err := mandateService.CreateMandate(ctx, validMandateRequest("UMR-0001"))
		assert.ErrorIs(t, err, data.ErrRecordAlreadyExists)
	})

	t.Run("invalid debtor IBAN is rejected", func(t *testing.T) {
		request := validMandateRequest("UMR-0002")
		request.DebtorIBAN = "NOT-AN-IBAN"
		_, err := mandateService.CreateMandate(ctx, request)
		assert.ErrorContains(t, err, "debtor IBAN")
	})

	t.Run("missing UMR is rejected", func(t *testing.T) {
		request := validMandateRequest("")
		_, err := mandateService.CreateMandate(ctx, request)
		assert.ErrorIs(t, err, data.ErrMissingInput)
	})
}

func Test_SepaMandateService_ActivateMandate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mandateService, _ := setupMandateService(t, utils.FixedClock{Time: now})

	t.Run("activates and stamps the activation date", func(t *testing.T) {
		_, err := mandateService.CreateMandate(ctx, validMandateRequest("UMR-ACT-1"))
		require.NoError(t, err)

		mandate, err := mandateService.ActivateMandate(ctx, "UMR-ACT-1")
		require.NoError(t, err)
		assert.Equal(t, data.ActiveMandateStatus, mandate.Status)
		require.NotNil(t, mandate.ActivationDate)
		// activation_date is a DATE column
		assert.Equal(t, now.Format(time.DateOnly), mandate.ActivationDate.Format(time.DateOnly))
	})

	t.Run("future signature date blocks activation", func(t *testing.T) {
		request := validMandateRequest("UMR-ACT-2")
		request.SignatureDate = now.Add(48 * time.Hour)
		_, err := mandateService.CreateMandate(ctx, request)
		require.NoError(t, err)

		_, err = mandateService.ActivateMandate(ctx, "UMR-ACT-2")
		assert.ErrorIs(t, err, ErrFutureSignatureDate)
	})

	t.Run("activating a cancelled mandate fails", func(t *testing.T) {
		_, err := mandateService.CreateMandate(ctx, validMandateRequest("UMR-ACT-3"))
		require.NoError(t, err)
		_, err = mandateService.CancelMandate(ctx, "UMR-ACT-3")
		require.NoError(t, err)

		_, err = mandateService.ActivateMandate(ctx, "UMR-ACT-3")
		assert.ErrorContains(t, err, "cannot transition from CANCELLED to ACTIVE")
	})
}

func Test_SepaMandateService_RecordCollection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mandateService, _ := setupMandateService(t, utils.FixedClock{Time: now})

	request := validMandateRequest("UMR-COL-1")
	request.MaxAmount = decimal.NewNullDecimal(decimal.RequireFromString("500.00"))
	_, err := mandateService.CreateMandate(ctx, request)
	require.NoError(t, err)

	t.Run("pending mandates do not authorize collections", func(t *testing.T) {
		_, err := mandateService.RecordCollection(ctx, "UMR-COL-1", decimal.RequireFromString("100.00"), true)
		assert.ErrorIs(t, err, ErrMandateNotCollectable)
	})

	_, err = mandateService.ActivateMandate(ctx, "UMR-COL-1")
	require.NoError(t, err)

	t.Run("amount above the mandate maximum is refused", func(t *testing.T) {
		_, err := mandateService.RecordCollection(ctx, "UMR-COL-1", decimal.RequireFromString("500.01"), true)
		assert.ErrorIs(t, err, ErrMandateNotCollectable)
	})

	t.Run("first successful collection flips FRST to RCUR", func(t *testing.T) {
		mandate, err := mandateService.RecordCollection(ctx, "UMR-COL-1", decimal.RequireFromString("100.00"), true)
		require.NoError(t, err)

		assert.Equal(t, data.RcurSequenceType, mandate.SequenceType)
		assert.Equal(t, 1, mandate.CollectionCount)
		assert.True(t, mandate.TotalAmountCollected.Equal(decimal.RequireFromString("100.00")))
		require.NotNil(t, mandate.LastCollectionDate)
	})

	t.Run("failed collections do not bump the counters", func(t *testing.T) {
		mandate, err := mandateService.RecordCollection(ctx, "UMR-COL-1", decimal.RequireFromString("50.00"), false)
		require.NoError(t, err)

		assert.Equal(t, 1, mandate.CollectionCount)
		assert.True(t, mandate.TotalAmountCollected.Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("collections past the final collection date are refused", func(t *testing.T) {
		cutoff := now.AddDate(0, 0, -1)
		expiringRequest := validMandateRequest("UMR-COL-2")
		expiringRequest.FinalCollectionDate = &cutoff
		_, err := mandateService.CreateMandate(ctx, expiringRequest)
		require.NoError(t, err)
		_, err = mandateService.ActivateMandate(ctx, "UMR-COL-2")
		require.NoError(t, err)

		_, err = mandateService.RecordCollection(ctx, "UMR-COL-2", decimal.RequireFromString("100.00"), true)
		assert.ErrorIs(t, err, ErrMandateNotCollectable)
	})
}

func Test_SepaMandateService_ExpireStaleMandates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	mandateService, models := setupMandateService(t, utils.FixedClock{Time: now})

	_, err := mandateService.CreateMandate(ctx, validMandateRequest("UMR-EXP-1"))
	require.NoError(t, err)
	_, err = mandateService.ActivateMandate(ctx, "UMR-EXP-1")
	require.NoError(t, err)

	// nothing stale yet
	expired, err := mandateService.ExpireStaleMandates(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	// re-run with a clock three years later
	future, _ := setupServiceWithClock(t, mandateService, utils.FixedClock{Time: now.Add(MandateExpiryAge + 24*time.Hour)})
	expired, err = future.ExpireStaleMandates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	mandate, err := models.SepaMandates.GetByUMR(ctx, models.DBConnectionPool, "UMR-EXP-1")
	require.NoError(t, err)
	assert.Equal(t, data.ExpiredMandateStatus, mandate.Status)
}

// setupServiceWithClock rebuilds the mandate service against the same
// database with a different clock.
func setupServiceWithClock(t *testing.T, base *SepaMandateService, clock utils.Clock) (*SepaMandateService, error) {
	t.Helper()

	rebuilt, err := NewSepaMandateService(SepaMandateServiceOptions{
		DBConnectionPool: base.dbConnectionPool,
		Models:           base.models,
		Clock:            clock,
	})
	require.NoError(t, err)
	return rebuilt, nil
}
