package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTopicRequired = errors.New("message topic is required")
	ErrKeyRequired   = errors.New("message key is required")
	ErrTypeRequired  = errors.New("message type is required")
	ErrDataRequired  = errors.New("message data is required")
)

type Message struct {
	EventID              string            `json:"event_id"`
	Topic                string            `json:"topic"`
	Key                  string            `json:"key"`
	Type                 string            `json:"type"`
	OccurredAt           time.Time         `json:"occurred_at"`
	Data                 any               `json:"data"`
	Errors               []*HandlerError   `json:"errors,omitempty"`
	SuccessfulExecutions []*HandlerSuccess `json:"successful_executions,omitempty"`
}

type HandlerError struct {
	// FailedAt timestamp for the time of failure.
	FailedAt time.Time `json:"failed_at"`
	// ErrorMessage detailed error message. Used for displaying.
	ErrorMessage string `json:"error_message"`
	// HandlerName name of the handler where the error occurred.
	HandlerName string `json:"handler_name"`
	// Err full handler error.
	Err error `json:"-"`
}

// HandlerSuccess represents a successful handling of a message
type HandlerSuccess struct {
	// ExecutedAt timestamp for the time of successful handling
	ExecutedAt time.Time `json:"executed_at"`
	// HandlerName name of the handler that succeeded
	HandlerName string `json:"handler_name"`
}

// NewMessage returns a new message with values passed by parameters and a
// server-assigned event id.
func NewMessage(topic, key, messageType string, data any) *Message {
	return &Message{
		EventID:    uuid.NewString(),
		Topic:      topic,
		Key:        key,
		Type:       messageType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func (m Message) String() string {
	return fmt.Sprintf("Message{EventID: %s, Topic: %s, Key: %s, Type: %s, Data: %v}", m.EventID, m.Topic, m.Key, m.Type, m.Data)
}

func (m Message) Validate() error {
	if m.Topic == "" {
		return ErrTopicRequired
	}

	if m.Key == "" {
		return ErrKeyRequired
	}

	if m.Type == "" {
		return ErrTypeRequired
	}

	if m.Data == nil {
		return ErrDataRequired
	}

	return nil
}

func (m *Message) RecordError(handlerName string, hErr error) {
	m.Errors = append(m.Errors, &HandlerError{
		FailedAt:     time.Now(),
		ErrorMessage: hErr.Error(),
		HandlerName:  handlerName,
		Err:          hErr,
	})
}

func (m *Message) RecordSuccess(handlerName string) {
	m.SuccessfulExecutions = append(m.SuccessfulExecutions, &HandlerSuccess{
		ExecutedAt:  time.Now(),
		HandlerName: handlerName,
	})
}
