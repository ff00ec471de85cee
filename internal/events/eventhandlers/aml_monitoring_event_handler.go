package eventhandlers

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/services"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

type transactionMonitor interface {
	MonitorTransaction(ctx context.Context, insert data.MonitoredTransactionInsert) (*services.DetectionResult, error)
}

// AmlMonitoringEventHandler feeds every posted ledger entry through the
// transaction monitoring rules, so alerts are raised without the poster
// having to call the AML API.
type AmlMonitoringEventHandler struct {
	service transactionMonitor
}

var _ events.EventHandler = new(AmlMonitoringEventHandler)

func NewAmlMonitoringEventHandler(detectionService *services.AmlDetectionService) *AmlMonitoringEventHandler {
	return &AmlMonitoringEventHandler{service: detectionService}
}

func (h *AmlMonitoringEventHandler) Name() string {
	return "AmlMonitoringEventHandler"
}

func (h *AmlMonitoringEventHandler) CanHandleMessage(ctx context.Context, message *events.Message) bool {
	return message.Topic == events.AccountEventsTopic && message.Type == events.AccountPostedType
}

func (h *AmlMonitoringEventHandler) Handle(ctx context.Context, message *events.Message) error {
	posting, err := utils.ConvertType[any, events.AccountPostedData](message.Data)
	if err != nil {
		return fmt.Errorf("[%s] converting message data to %T: %w", h.Name(), events.AccountPostedData{}, err)
	}

	amount, err := decimal.NewFromString(posting.Amount)
	if err != nil {
		return fmt.Errorf("[%s] parsing amount %q: %w", h.Name(), posting.Amount, err)
	}

	var transactionDate time.Time
	if posting.PostedAt != "" {
		transactionDate, err = time.Parse(time.RFC3339, posting.PostedAt)
		if err != nil {
			return fmt.Errorf("[%s] parsing posted_at %q: %w", h.Name(), posting.PostedAt, err)
		}
	}

	var customerID *string
	if posting.CustomerID != "" {
		customerID = &posting.CustomerID
	}

	_, err = h.service.MonitorTransaction(ctx, data.MonitoredTransactionInsert{
		AccountNumber:   posting.AccountNumber,
		CustomerID:      customerID,
		Amount:          amount,
		Currency:        posting.Currency,
		ReferenceID:     posting.ReferenceID,
		TransactionDate: transactionDate,
	})
	if err != nil {
		return fmt.Errorf("[%s] monitoring posting %s on account %s: %w", h.Name(), posting.ReferenceID, posting.AccountNumber, err)
	}

	return nil
}
