package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/db/dbtest"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

type complianceGateFunc func(ctx context.Context, names ...string) error

func (f complianceGateFunc) ScreenParties(ctx context.Context, names ...string) error {
	return f(ctx, names...)
}

func setupSwiftService(t *testing.T, gate ComplianceGate) (*SwiftService, *data.Models, *SettlementNetworkClientMock) {
	t.Helper()

	testDB := dbtest.OpenWithBankingMigrationsOnly(t)
	dbConnectionPool, err := db.OpenDBConnectionPool(testDB.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { dbConnectionPool.Close() })

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	networkMock := &SettlementNetworkClientMock{}
	t.Cleanup(func() { networkMock.AssertExpectations(t) })

	swiftService, err := NewSwiftService(SwiftServiceOptions{
		DBConnectionPool: dbConnectionPool,
		Models:           models,
		Network:          networkMock,
		ComplianceGate:   gate,
		FeeSchedule: SwiftFeeSchedule{
			FixedFee:      decimal.RequireFromString("15.00"),
			PercentageFee: decimal.RequireFromString("0.001"),
		},
		Clock: utils.FixedClock{Time: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	return swiftService, models, networkMock
}

func validWireRequest() SwiftTransferRequest {
	return SwiftTransferRequest{
		SenderBIC:          "DEUTDEFF",
		ReceiverBIC:        "CHASUS33",
		OrderingCustomer:   "Astrid Berg",
		Beneficiary:        "Acme Corp",
		BeneficiaryBankBIC: "CHASUS33XXX",
		Amount:             decimal.RequireFromString("2500.00"),
		Currency:           "USD",
		ChargeType:         data.ShaChargeType,
		RemittanceInfo:     utils.StringPtr("Invoice 42"),
		ValueDate:          time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func Test_SwiftFeeSchedule_FeeFor(t *testing.T) {
	schedule := SwiftFeeSchedule{
		FixedFee:      decimal.RequireFromString("15.00"),
		PercentageFee: decimal.RequireFromString("0.001"),
	}

	testCases := []struct {
		amount  string
		wantFee string
	}{
		{amount: "1000.00", wantFee: "16.00"},
		{amount: "2500.00", wantFee: "17.50"},
		// 15 + 12.345 = 27.345 rounds half to even
		{amount: "12345.00", wantFee: "27.34"},
		{amount: "12355.00", wantFee: "27.36"},
	}

	for _, tc := range testCases {
		t.Run(tc.amount, func(t *testing.T) {
			fee := schedule.FeeFor(decimal.RequireFromString(tc.amount))
			assert.True(t, fee.Equal(decimal.RequireFromString(tc.wantFee)), "got %s", fee)
		})
	}
}

func Test_SwiftService_InitiateWireTransfer(t *testing.T) {
	ctx := context.Background()
	swiftService, _, _ := setupSwiftService(t, nil)

	t.Run("prices the fee and starts in PENDING", func(t *testing.T) {
		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)

		assert.Equal(t, data.PendingSwiftTransferStatus, transfer.Status)
		assert.True(t, transfer.FeeAmount.Equal(decimal.RequireFromString("17.50")))
		assert.True(t, strings.HasPrefix(transfer.TransactionReference, "FT"))
		assert.LessOrEqual(t, len(transfer.TransactionReference), 16)
	})

	t.Run("rejects an invalid BIC", func(t *testing.T) {
		request := validWireRequest()
		request.ReceiverBIC = "TOOSHORT1"
		_, err := swiftService.InitiateWireTransfer(ctx, request)
		assert.ErrorContains(t, err, "receiver BIC")
	})

	t.Run("rejects an unknown charge type", func(t *testing.T) {
		request := validWireRequest()
		request.ChargeType = data.SwiftChargeType("ALL")
		_, err := swiftService.InitiateWireTransfer(ctx, request)
		assert.ErrorContains(t, err, "invalid swift charge type")
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		request := validWireRequest()
		request.Amount = decimal.Zero
		_, err := swiftService.InitiateWireTransfer(ctx, request)
		assert.ErrorContains(t, err, "amount must be positive")
	})
}

func Test_SwiftService_ProcessWireTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("clears compliance and submits the MT103", func(t *testing.T) {
		swiftService, models, networkMock := setupSwiftService(t, nil)

		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)

		networkMock.
			On("SubmitSwiftMessage", mock.Anything, transfer.TransactionReference, mock.MatchedBy(func(mt103 string) bool {
				return strings.HasPrefix(mt103, "{1:F01") && strings.Contains(mt103, ":20:"+transfer.TransactionReference)
			})).
			Return(nil).
			Once()

		submitted, err := swiftService.ProcessWireTransfer(ctx, transfer.TransactionReference)
		require.NoError(t, err)
		assert.Equal(t, data.SubmittedSwiftTransferStatus, submitted.Status)

		stored, err := models.SwiftTransfers.GetByReference(ctx, models.DBConnectionPool, transfer.TransactionReference)
		require.NoError(t, err)
		require.NotNil(t, stored.MT103)
		assert.Contains(t, *stored.MT103, ":71A:SHA")

		t.Run("a submitted transfer cannot be processed again", func(t *testing.T) {
			_, err := swiftService.ProcessWireTransfer(ctx, transfer.TransactionReference)
			assert.ErrorIs(t, err, ErrTransferNotPending)
		})
	})

	t.Run("a screening hit fails the transfer", func(t *testing.T) {
		gate := complianceGateFunc(func(ctx context.Context, names ...string) error {
			for _, name := range names {
				if name == "Acme Corp" {
					return fmt.Errorf("party %q matched a sanctions entry: %w", name, ErrComplianceBlocked)
				}
			}
			return nil
		})
		swiftService, _, _ := setupSwiftService(t, gate)

		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)

		failed, err := swiftService.ProcessWireTransfer(ctx, transfer.TransactionReference)
		require.ErrorIs(t, err, ErrComplianceBlocked)

		assert.Equal(t, data.FailedSwiftTransferStatus, failed.Status)
		require.NotNil(t, failed.FailureReason)
		assert.Contains(t, *failed.FailureReason, "sanctions entry")
	})

	t.Run("a network rejection fails the transfer", func(t *testing.T) {
		swiftService, _, networkMock := setupSwiftService(t, nil)

		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)

		networkMock.
			On("SubmitSwiftMessage", mock.Anything, transfer.TransactionReference, mock.Anything).
			Return(fmt.Errorf("gateway unavailable")).
			Once()

		failed, err := swiftService.ProcessWireTransfer(ctx, transfer.TransactionReference)
		require.ErrorContains(t, err, "gateway unavailable")
		assert.Equal(t, data.FailedSwiftTransferStatus, failed.Status)
	})
}

func Test_SwiftService_ConfirmSettlement(t *testing.T) {
	ctx := context.Background()

	submitWire := func(t *testing.T, swiftService *SwiftService, networkMock *SettlementNetworkClientMock) *data.SwiftTransfer {
		t.Helper()
		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)
		networkMock.On("SubmitSwiftMessage", mock.Anything, transfer.TransactionReference, mock.Anything).Return(nil).Once()
		submitted, err := swiftService.ProcessWireTransfer(ctx, transfer.TransactionReference)
		require.NoError(t, err)
		return submitted
	}

	t.Run("acknowledgment completes the wire", func(t *testing.T) {
		swiftService, _, networkMock := setupSwiftService(t, nil)
		transfer := submitWire(t, swiftService, networkMock)

		completed, err := swiftService.ConfirmSettlement(ctx, transfer.TransactionReference, true, nil)
		require.NoError(t, err)
		assert.Equal(t, data.CompletedSwiftTransferStatus, completed.Status)

		t.Run("a completed wire takes no further results", func(t *testing.T) {
			_, err := swiftService.ConfirmSettlement(ctx, transfer.TransactionReference, true, nil)
			assert.ErrorIs(t, err, ErrTransferNotAwaiting)
		})
	})

	t.Run("a negative result fails the wire with the reason", func(t *testing.T) {
		swiftService, _, networkMock := setupSwiftService(t, nil)
		transfer := submitWire(t, swiftService, networkMock)

		failed, err := swiftService.ConfirmSettlement(ctx, transfer.TransactionReference, false, utils.StringPtr("beneficiary account closed"))
		require.NoError(t, err)
		assert.Equal(t, data.FailedSwiftTransferStatus, failed.Status)
		require.NotNil(t, failed.FailureReason)
		assert.Equal(t, "beneficiary account closed", *failed.FailureReason)
	})

	t.Run("pending wires are not awaiting settlement", func(t *testing.T) {
		swiftService, _, _ := setupSwiftService(t, nil)
		transfer, err := swiftService.InitiateWireTransfer(ctx, validWireRequest())
		require.NoError(t, err)

		_, err = swiftService.ConfirmSettlement(ctx, transfer.TransactionReference, true, nil)
		assert.ErrorIs(t, err, ErrTransferNotAwaiting)
	})
}
