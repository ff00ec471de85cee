package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
)

// DefaultOutboxBatchSize bounds how many rows one pump pass drains.
const DefaultOutboxBatchSize = 100

// OutboxPumpService forwards unpublished outbox rows to the event producer.
// Rows are locked with SKIP LOCKED so several pumps can run concurrently, and
// a row is only marked published after the producer accepted it: delivery is
// at-least-once.
type OutboxPumpService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	producer         events.Producer
	monitorService   monitor.MonitorServiceInterface
	batchSize        int
}

type OutboxPumpServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Producer         events.Producer
	MonitorService   monitor.MonitorServiceInterface
	BatchSize        int
}

func (opts OutboxPumpServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.Producer == nil {
		return fmt.Errorf("event producer is required")
	}
	if opts.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	return nil
}

func NewOutboxPumpService(opts OutboxPumpServiceOptions) (*OutboxPumpService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating outbox pump service options: %w", err)
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = DefaultOutboxBatchSize
	}

	return &OutboxPumpService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		producer:         opts.Producer,
		monitorService:   opts.MonitorService,
		batchSize:        batchSize,
	}, nil
}

// PumpOnce drains one batch and returns how many messages were published.
// Callers loop on it until it returns 0.
func (s *OutboxPumpService) PumpOnce(ctx context.Context) (int, error) {
	published, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (int, error) {
		rows, txErr := s.models.Outbox.GetUnpublished(ctx, dbTx, s.batchSize)
		if txErr != nil {
			return 0, txErr
		}
		if len(rows) == 0 {
			return 0, nil
		}

		messages := make([]events.Message, 0, len(rows))
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			messages = append(messages, events.Message{
				EventID:    row.ID,
				Topic:      row.Topic,
				Key:        row.PartitionKey,
				Type:       row.EventType,
				OccurredAt: row.OccurredAt,
				Data:       json.RawMessage(row.Payload),
			})
			ids = append(ids, row.ID)
		}

		if writeErr := s.producer.WriteMessages(ctx, messages...); writeErr != nil {
			return 0, fmt.Errorf("writing %d messages to producer: %w", len(messages), writeErr)
		}

		if markErr := s.models.Outbox.MarkPublished(ctx, dbTx, ids); markErr != nil {
			return 0, markErr
		}

		return len(ids), nil
	})
	if err != nil {
		return 0, fmt.Errorf("pumping outbox: %w", err)
	}

	if published > 0 && s.monitorService != nil {
		labels := map[string]string{"broker": string(s.producer.BrokerType())}
		if metricErr := s.monitorService.MonitorCounters(monitor.OutboxPublishedCounterTag, labels); metricErr != nil {
			logger.Ctx(ctx).Errorf("recording outbox publish metric: %v", metricErr)
		}
	}

	return published, nil
}

// Pump drains the outbox completely.
func (s *OutboxPumpService) Pump(ctx context.Context) (int, error) {
	total := 0
	for {
		published, err := s.PumpOnce(ctx)
		if err != nil {
			return total, err
		}
		if published == 0 {
			return total, nil
		}
		total += published
	}
}
