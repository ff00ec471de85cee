package eventhandlers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/services"
)

type mockTransactionMonitor struct {
	mock.Mock
}

func (m *mockTransactionMonitor) MonitorTransaction(ctx context.Context, insert data.MonitoredTransactionInsert) (*services.DetectionResult, error) {
	args := m.Called(ctx, insert)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DetectionResult), args.Error(1)
}

func Test_AmlMonitoringEventHandler_CanHandleMessage(t *testing.T) {
	handler := &AmlMonitoringEventHandler{}
	ctx := context.Background()

	assert.True(t, handler.CanHandleMessage(ctx, &events.Message{Topic: events.AccountEventsTopic, Type: events.AccountPostedType}))
	assert.False(t, handler.CanHandleMessage(ctx, &events.Message{Topic: events.AccountEventsTopic, Type: events.AccountCreatedType}))
	assert.False(t, handler.CanHandleMessage(ctx, &events.Message{Topic: events.TransferEventsTopic, Type: events.AccountPostedType}))
}

func Test_AmlMonitoringEventHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("feeds the posting through transaction monitoring", func(t *testing.T) {
		monitorMock := &mockTransactionMonitor{}
		handler := &AmlMonitoringEventHandler{service: monitorMock}

		monitorMock.
			On("MonitorTransaction", ctx, mock.MatchedBy(func(insert data.MonitoredTransactionInsert) bool {
				return insert.AccountNumber == "DE02100100100006820101" &&
					insert.Amount.Equal(decimal.RequireFromString("1250.00")) &&
					insert.Currency == "EUR" &&
					insert.ReferenceID == "TRF-2026-000042" &&
					insert.CustomerID != nil && *insert.CustomerID == "0c5621eb-5c34-4235-9d1a-7b8ab552b3f4"
			})).
			Return(&services.DetectionResult{RiskScore: 0}, nil).
			Once()

		err := handler.Handle(ctx, &events.Message{
			Topic: events.AccountEventsTopic,
			Type:  events.AccountPostedType,
			Data: events.AccountPostedData{
				AccountNumber: "DE02100100100006820101",
				CustomerID:    "0c5621eb-5c34-4235-9d1a-7b8ab552b3f4",
				Amount:        "1250.00",
				Currency:      "EUR",
				ReferenceID:   "TRF-2026-000042",
				Direction:     "DEBIT",
				PostedAt:      "2026-08-24T10:30:00Z",
			},
		})
		require.NoError(t, err)
		monitorMock.AssertExpectations(t)
	})

	t.Run("returns an error on a malformed amount", func(t *testing.T) {
		handler := &AmlMonitoringEventHandler{service: &mockTransactionMonitor{}}

		err := handler.Handle(ctx, &events.Message{
			Data: events.AccountPostedData{Amount: "not-a-number"},
		})
		require.ErrorContains(t, err, `parsing amount "not-a-number"`)
	})

	t.Run("returns an error when monitoring fails", func(t *testing.T) {
		monitorMock := &mockTransactionMonitor{}
		handler := &AmlMonitoringEventHandler{service: monitorMock}

		monitorMock.
			On("MonitorTransaction", ctx, mock.Anything).
			Return(nil, assert.AnError).
			Once()

		err := handler.Handle(ctx, &events.Message{
			Data: events.AccountPostedData{
				AccountNumber: "DE02100100100006820101",
				Amount:        "10.00",
				Currency:      "EUR",
				ReferenceID:   "TRF-2026-000099",
			},
		})
		require.ErrorContains(t, err, "monitoring posting TRF-2026-000099")
		monitorMock.AssertExpectations(t)
	})
}
