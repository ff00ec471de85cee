package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nordbank/banking-platform-backend/db"
)

// OutboxMessage is a domain event written in the same transaction as the
// domain change. A separate pump forwards unpublished rows to the event bus,
// so no event is ever published while a row lock is held.
type OutboxMessage struct {
	ID           string          `json:"id" db:"id"`
	Topic        string          `json:"topic" db:"topic"`
	PartitionKey string          `json:"partition_key" db:"partition_key"`
	EventType    string          `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	OccurredAt   time.Time       `json:"occurred_at" db:"occurred_at"`
	PublishedAt  *time.Time      `json:"published_at,omitempty" db:"published_at"`
}

type OutboxModel struct {
	dbConnectionPool db.DBConnectionPool
}

const outboxColumns = `
	id, topic, partition_key, event_type, payload, occurred_at, published_at
`

func (m *OutboxModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, topic, partitionKey, eventType string, payload any) (*OutboxMessage, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox_messages (topic, partition_key, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + outboxColumns

	var msg OutboxMessage
	err = sqlExec.GetContext(ctx, &msg, query, topic, partitionKey, eventType, payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("inserting outbox message: %w", err)
	}

	return &msg, nil
}

// GetUnpublished returns up to limit unpublished messages in occurrence
// order, locked with SKIP LOCKED so concurrent pumps do not double-deliver.
func (m *OutboxModel) GetUnpublished(ctx context.Context, dbTx db.DBTransaction, limit int) ([]OutboxMessage, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY occurred_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	messages := []OutboxMessage{}
	err := dbTx.SelectContext(ctx, &messages, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting unpublished outbox messages: %w", err)
	}

	return messages, nil
}

func (m *OutboxModel) MarkPublished(ctx context.Context, sqlExec db.SQLExecuter, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox_messages SET published_at = now() WHERE id = ANY($1)`
	result, err := sqlExec.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("marking outbox messages published: %w", err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if numRowsAffected != int64(len(ids)) {
		return ErrMismatchNumRowsAffected
	}

	return nil
}
