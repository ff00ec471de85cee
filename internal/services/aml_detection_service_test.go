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
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

func setupDetectionService(t *testing.T) (*AmlDetectionService, *data.Models) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	detectionService, err := NewAmlDetectionService(AmlDetectionServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Clock:            utils.FixedClock{Time: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	return detectionService, models
}

func insertRule(t *testing.T, models *data.Models, name string, ruleType data.AmlRuleType, threshold string, count, window *int, points int) *data.AmlRule {
	t.Helper()

	insert := data.AmlRuleInsert{
		RuleName:       name,
		RuleType:       ruleType,
		ThresholdCount: count,
		WindowMinutes:  window,
		RiskPoints:     points,
	}
	if threshold != "" {
		insert.ThresholdAmount = decimal.NewNullDecimal(decimal.RequireFromString(threshold))
	}

	rule, err := models.AmlRules.Insert(context.Background(), models.DBConnectionPool, insert)
	require.NoError(t, err)
	return rule
}

func monitoredTx(account, amount string, at time.Time) data.MonitoredTransactionInsert {
	return data.MonitoredTransactionInsert{
		AccountNumber:   account,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "EUR",
		ReferenceID:     "TX-" + at.Format("150405.000") + "-" + amount,
		TransactionDate: at,
	}
}

func intPtr(i int) *int { return &i }

func Test_AmlDetectionService_amountRule(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "large-single-amount", data.AmountRuleType, "10000.00", nil, nil, 40)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("above the threshold raises an alert", func(t *testing.T) {
		result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-AMT-1", "15000.00", noon))
		require.NoError(t, err)

		assert.Equal(t, 40, result.RiskScore)
		require.Len(t, result.TriggeredRules, 1)
		require.NotNil(t, result.Alert)
		assert.Equal(t, "AMOUNT", result.Alert.AlertType)
		assert.Equal(t, data.MediumRiskLevel, result.Alert.RiskLevel)
		assert.Contains(t, result.Alert.Reasons[0], "large-single-amount")

		flagged, err := models.MonitoredTransactions.GetRecentForAccount(ctx, models.DBConnectionPool, "ACCT-AMT-1", noon.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, flagged, 1)
		assert.True(t, flagged[0].Flagged)
		assert.Equal(t, 40, flagged[0].RiskScore)
	})

	t.Run("at the threshold stays quiet", func(t *testing.T) {
		result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-AMT-2", "10000.00", noon))
		require.NoError(t, err)

		assert.Zero(t, result.RiskScore)
		assert.Nil(t, result.Alert)
	})
}

func Test_AmlDetectionService_structuringBeatsRoundAmount(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "sub-threshold-structuring", data.StructuringRuleType, "10000.00", nil, nil, 35)
	insertRule(t, models, "round-amounts", data.RoundAmountRuleType, "", nil, nil, 10)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// 9000 sits inside [9000, 10000) and is a round thousand
	result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-STR-1", "9000.00", noon))
	require.NoError(t, err)

	assert.Equal(t, 45, result.RiskScore)
	assert.Len(t, result.TriggeredRules, 2)
	require.NotNil(t, result.Alert)
	assert.Equal(t, "STRUCTURING", result.Alert.AlertType)
	assert.Len(t, result.Alert.Reasons, 2)
}

func Test_AmlDetectionService_velocityRule(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "burst-of-activity", data.VelocityRuleType, "", intPtr(3), intPtr(60), 30)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	first, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-VEL-1", "100.00", base))
	require.NoError(t, err)
	assert.Nil(t, first.Alert)

	second, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-VEL-1", "200.00", base.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Nil(t, second.Alert)

	third, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-VEL-1", "300.00", base.Add(20*time.Minute)))
	require.NoError(t, err)
	require.NotNil(t, third.Alert)
	assert.Equal(t, "VELOCITY", third.Alert.AlertType)
}

func Test_AmlDetectionService_dailyLimitRule(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "daily-total", data.DailyLimitRuleType, "10000.00", nil, nil, 30)
	morning := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	first, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-DAY-1", "6000.00", morning))
	require.NoError(t, err)
	assert.Nil(t, first.Alert)

	second, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-DAY-1", "6000.00", morning.Add(2*time.Hour)))
	require.NoError(t, err)
	require.NotNil(t, second.Alert)
	assert.Equal(t, "DAILY_LIMIT", second.Alert.AlertType)

	t.Run("the day total is per currency", func(t *testing.T) {
		eurTx := monitoredTx("ACCT-DAY-2", "6000.00", morning)
		first, err := detectionService.MonitorTransaction(ctx, eurTx)
		require.NoError(t, err)
		assert.Nil(t, first.Alert)

		tryTx := monitoredTx("ACCT-DAY-2", "6000.00", morning.Add(time.Hour))
		tryTx.Currency = "TRY"
		second, err := detectionService.MonitorTransaction(ctx, tryTx)
		require.NoError(t, err)
		assert.Nil(t, second.Alert, "amounts in different currencies must not be summed together")

		eurAgain := monitoredTx("ACCT-DAY-2", "6000.00", morning.Add(2*time.Hour))
		third, err := detectionService.MonitorTransaction(ctx, eurAgain)
		require.NoError(t, err)
		require.NotNil(t, third.Alert, "the EUR total alone crosses the threshold")
		assert.Equal(t, "DAILY_LIMIT", third.Alert.AlertType)
	})
}

func Test_AmlDetectionService_timeBasedRule(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "night-activity", data.TimeBasedRuleType, "1000.00", nil, nil, 30)

	t.Run("large transaction in the night window", func(t *testing.T) {
		night := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
		result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-NGT-1", "2000.00", night))
		require.NoError(t, err)
		require.NotNil(t, result.Alert)
		assert.Equal(t, "TIME_BASED", result.Alert.AlertType)
	})

	t.Run("same amount during business hours", func(t *testing.T) {
		day := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
		result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-NGT-2", "2000.00", day))
		require.NoError(t, err)
		assert.Nil(t, result.Alert)
	})
}

func Test_AmlDetectionService_structuringRule(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "under-reporting-threshold", data.StructuringRuleType, "10000.00", nil, nil, 30)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-STR-1", "9500.00", noon))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.RiskScore, 30)
	require.NotNil(t, result.Alert)
	assert.Equal(t, "STRUCTURING", result.Alert.AlertType)
	require.NotEmpty(t, result.Alert.Reasons)
	assert.Contains(t, result.Alert.Reasons[0], "Potential structuring detected")
	assert.Contains(t, result.Alert.Reasons[0], "under-reporting-threshold")
}

func Test_AmlDetectionService_scoreCap(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "amount-a", data.AmountRuleType, "1000.00", nil, nil, 60)
	insertRule(t, models, "structuring-b", data.StructuringRuleType, "10000.00", nil, nil, 60)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-CAP-1", "9500.00", noon))
	require.NoError(t, err)

	assert.Equal(t, 100, result.RiskScore)
	require.NotNil(t, result.Alert)
	assert.Equal(t, data.CriticalRiskLevel, result.Alert.RiskLevel)
}

func Test_AmlDetectionService_alertLifecycle(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "large-single-amount", data.AmountRuleType, "1000.00", nil, nil, 40)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	result, err := detectionService.MonitorTransaction(ctx, monitoredTx("ACCT-LIF-1", "5000.00", noon))
	require.NoError(t, err)
	require.NotNil(t, result.Alert)

	reviewed, err := detectionService.ReviewAlert(ctx, result.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, data.UnderReviewAmlAlertStatus, reviewed.Status)

	cleared, err := detectionService.ClearAlert(ctx, reviewed.ID)
	require.NoError(t, err)
	assert.Equal(t, data.ClearedAmlAlertStatus, cleared.Status)

	t.Run("a cleared alert cannot be reviewed again", func(t *testing.T) {
		_, err := detectionService.ReviewAlert(ctx, cleared.ID)
		assert.ErrorContains(t, err, "cannot transition from CLEARED to UNDER_REVIEW")
	})
}

func Test_AmlDetectionService_ConsumeAccountPosted(t *testing.T) {
	ctx := context.Background()
	detectionService, models := setupDetectionService(t)
	insertRule(t, models, "large-single-amount", data.AmountRuleType, "1000.00", nil, nil, 40)

	result, err := detectionService.ConsumeAccountPosted(ctx, events.AccountPostedData{
		AccountNumber: "ACCT-EVT-1",
		Amount:        "2500.00",
		Currency:      "EUR",
		ReferenceID:   "TRF-EVT-1",
		Direction:     "DEBIT",
		BalanceAfter:  "7500.00",
		PostedAt:      "2026-03-10T12:00:00Z",
	})
	require.NoError(t, err)

	assert.True(t, result.Transaction.Amount.Equal(decimal.RequireFromString("2500.00")))
	require.NotNil(t, result.Alert)
	assert.Equal(t, "AMOUNT", result.Alert.AlertType)

	t.Run("a malformed amount is rejected", func(t *testing.T) {
		_, err := detectionService.ConsumeAccountPosted(ctx, events.AccountPostedData{Amount: "not-a-number", PostedAt: "2026-03-10T12:00:00Z"})
		assert.ErrorContains(t, err, "parsing posted amount")
	})
}
