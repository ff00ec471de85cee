package data

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/db/dbtest"
)

func Test_SepaReturnModel_SumAmountByReasonCode(t *testing.T) {
	ctx := context.Background()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := NewModels(dbConnectionPool)
	require.NoError(t, err)

	insertReturn := func(i int, reason SepaReturnReason, amount string) {
		_, insertErr := models.SepaReturns.Insert(ctx, dbConnectionPool,
			fmt.Sprintf("RTN-SUM-%d", i), fmt.Sprintf("SEPA-ORIG-%d", i), reason,
			decimal.RequireFromString(amount), "EUR")
		require.NoError(t, insertErr)
	}

	insertReturn(1, AM04ReturnReason, "100.00")
	insertReturn(2, AM04ReturnReason, "250.50")
	insertReturn(3, MD01ReturnReason, "75.25")
	insertReturn(4, AC04ReturnReason, "10.00")

	t.Run("sums only the returns stored with the code", func(t *testing.T) {
		total, sumErr := models.SepaReturns.SumAmountByReasonCode(ctx, dbConnectionPool, AM04ReturnReason)
		require.NoError(t, sumErr)
		assert.True(t, total.Equal(decimal.RequireFromString("350.50")), "got %s", total)

		total, sumErr = models.SepaReturns.SumAmountByReasonCode(ctx, dbConnectionPool, MD01ReturnReason)
		require.NoError(t, sumErr)
		assert.True(t, total.Equal(decimal.RequireFromString("75.25")), "got %s", total)
	})

	t.Run("a code with no returns sums to zero", func(t *testing.T) {
		total, sumErr := models.SepaReturns.SumAmountByReasonCode(ctx, dbConnectionPool, RR04ReturnReason)
		require.NoError(t, sumErr)
		assert.True(t, total.IsZero())
	})

	t.Run("rejects a code outside the closed set", func(t *testing.T) {
		_, sumErr := models.SepaReturns.SumAmountByReasonCode(ctx, dbConnectionPool, SepaReturnReason("XX99"))
		assert.ErrorContains(t, sumErr, "invalid sepa return reason code")
	})
}
