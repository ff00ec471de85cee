package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"golang.org/x/exp/maps"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

func logDiscardedMessages(ctx context.Context, messages []Message) {
	logger.Ctx(ctx).Debugf("NoopProducer: these messages will be discarded: %+v", messages)
}

type KafkaProducer struct {
	writer *kafka.Writer
}

var _ Producer = new(KafkaProducer)

func NewKafkaProducer(brokers []string) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}, nil
}

func (k *KafkaProducer) WriteMessages(ctx context.Context, messages ...Message) error {
	kafkaMessages := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("validating message: %w", err)
		}

		msgJSON, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshalling message: %w", err)
		}

		kafkaMessages = append(kafkaMessages, kafka.Message{
			Topic: msg.Topic,
			Key:   []byte(msg.Key),
			Value: msgJSON,
		})
	}

	if err := k.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		return fmt.Errorf("writing messages on kafka: %w", err)
	}

	return nil
}

func (k *KafkaProducer) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.writer.Addr.String())
	if err != nil {
		return fmt.Errorf("pinging kafka: %w", err)
	}
	defer conn.Close()
	return nil
}

func (k *KafkaProducer) BrokerType() EventBrokerType {
	return KafkaEventBrokerType
}

func (k *KafkaProducer) Close(ctx context.Context) {
	logger.Ctx(ctx).Info("closing kafka producer")
	if err := k.writer.Close(); err != nil {
		logger.Ctx(ctx).Errorf("closing kafka producer: %s", err.Error())
	}
}

type KafkaConsumer struct {
	handlers []EventHandler
	topic    string
	reader   *kafka.Reader
}

var _ Consumer = new(KafkaConsumer)

func NewKafkaConsumer(brokers []string, topic, consumerGroupID string, handlers ...EventHandler) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("handlers cannot be empty")
	}

	k := KafkaConsumer{
		topic: topic,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: consumerGroupID,
			Topic:   topic,
		}),
	}

	if err := k.RegisterEventHandler(context.Background(), handlers...); err != nil {
		return nil, fmt.Errorf("registering event handlers: %w", err)
	}

	return &k, nil
}

func (k *KafkaConsumer) RegisterEventHandler(ctx context.Context, handlers ...EventHandler) error {
	ehMap := make(map[string]EventHandler, len(handlers))
	for _, handler := range handlers {
		logger.Ctx(ctx).Infof("registering event handler %s for topic %s", handler.Name(), k.topic)
		ehMap[handler.Name()] = handler
	}
	k.handlers = maps.Values(ehMap)
	return nil
}

func (k *KafkaConsumer) ReadMessage(ctx context.Context) (*Message, error) {
	kafkaMessage, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching message from kafka: %w", err)
	}

	var msg Message
	if err = json.Unmarshal(kafkaMessage.Value, &msg); err != nil {
		return nil, fmt.Errorf("unmarshalling message: %w", err)
	}

	return &msg, nil
}

func (k *KafkaConsumer) Topic() string {
	return k.topic
}

func (k *KafkaConsumer) Handlers() []EventHandler {
	return k.handlers
}

func (k *KafkaConsumer) BrokerType() EventBrokerType {
	return KafkaEventBrokerType
}

func (k *KafkaConsumer) Close() error {
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("closing kafka consumer: %w", err)
	}
	return nil
}
