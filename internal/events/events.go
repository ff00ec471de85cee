package events

import (
	"context"
)

type Producer interface {
	WriteMessages(ctx context.Context, messages ...Message) error
	Ping(ctx context.Context) error
	BrokerType() EventBrokerType
	Close(ctx context.Context)
}

type Consumer interface {
	ReadMessage(ctx context.Context) (*Message, error)
	Topic() string
	Handlers() []EventHandler
	RegisterEventHandler(ctx context.Context, handlers ...EventHandler) error
	BrokerType() EventBrokerType
	Close() error
}

type EventHandler interface {
	Name() string
	CanHandleMessage(ctx context.Context, message *Message) bool
	Handle(ctx context.Context, message *Message) error
}

// NoopProducer logs messages instead of sending them to a broker.
type NoopProducer struct{}

func (p NoopProducer) WriteMessages(ctx context.Context, messages ...Message) error {
	logDiscardedMessages(ctx, messages)
	return nil
}

func (p NoopProducer) Ping(ctx context.Context) error {
	return nil
}

func (p NoopProducer) BrokerType() EventBrokerType {
	return NoneEventBrokerType
}

func (p NoopProducer) Close(ctx context.Context) {}

var _ Producer = NoopProducer{}
