package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nordbank/banking-platform-backend/internal/crashtracker"
)

func Test_EventConsumer_Consume_stopsOnContextCancellation(t *testing.T) {
	consumerMock := &MockConsumer{}
	producerMock := &MockProducer{}
	crashTrackerMock := &crashtracker.MockCrashTrackerClient{}

	consumerMock.On("Topic").Return("account.events")

	ec := NewEventConsumer(consumerMock, producerMock, crashTrackerMock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec.Consume(ctx)

	consumerMock.AssertExpectations(t)
	producerMock.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func Test_EventConsumer_handleMessage(t *testing.T) {
	ctx := context.Background()
	msg := &Message{Key: "ACC-001", Topic: "account.events", Type: AccountPostedType}

	t.Run("successful handler is recorded on the message", func(t *testing.T) {
		handlerMock := NewMockEventHandler(t)
		consumerMock := &MockConsumer{}
		consumerMock.On("Handlers").Return([]EventHandler{handlerMock})
		handlerMock.
			On("CanHandleMessage", ctx, msg).Return(true).
			On("Handle", ctx, msg).Return(nil).
			On("Name").Return("TestHandler")

		ec := NewEventConsumer(consumerMock, &MockProducer{}, &crashtracker.MockCrashTrackerClient{})

		handledOk := ec.handleMessage(ctx, msg)
		assert.True(t, handledOk)
		require.Len(t, msg.SuccessfulExecutions, 1)
		assert.Equal(t, "TestHandler", msg.SuccessfulExecutions[0].HandlerName)
	})

	t.Run("failing handler is recorded and reported", func(t *testing.T) {
		failingMsg := &Message{Key: "ACC-002", Topic: "account.events", Type: AccountPostedType}
		handlingErr := errors.New("boom")

		handlerMock := NewMockEventHandler(t)
		consumerMock := &MockConsumer{}
		crashTrackerMock := &crashtracker.MockCrashTrackerClient{}
		consumerMock.On("Topic").Return("account.events")
		consumerMock.On("Handlers").Return([]EventHandler{handlerMock})
		handlerMock.
			On("CanHandleMessage", ctx, failingMsg).Return(true).
			On("Handle", ctx, failingMsg).Return(handlingErr).
			On("Name").Return("TestHandler")
		crashTrackerMock.
			On("LogAndReportErrors", ctx, handlingErr, "handling message for topic account.events").Return()

		ec := NewEventConsumer(consumerMock, &MockProducer{}, crashTrackerMock)

		handledOk := ec.handleMessage(ctx, failingMsg)
		assert.False(t, handledOk)
		require.Len(t, failingMsg.Errors, 1)
		assert.Equal(t, "TestHandler", failingMsg.Errors[0].HandlerName)
		crashTrackerMock.AssertExpectations(t)
	})
}

func Test_ShouldHandleMessage(t *testing.T) {
	ctx := context.Background()
	msg := &Message{Key: "ACC-001", Topic: "account.events", Type: AccountPostedType}

	t.Run("handler that cannot handle the message is skipped", func(t *testing.T) {
		handlerMock := NewMockEventHandler(t)
		handlerMock.On("CanHandleMessage", ctx, msg).Return(false)

		assert.False(t, ShouldHandleMessage(ctx, handlerMock, msg))
	})

	t.Run("handler that already ran is not run again", func(t *testing.T) {
		executedMsg := &Message{Key: "ACC-001", Topic: "account.events", Type: AccountPostedType}
		executedMsg.RecordSuccess("TestHandler")

		handlerMock := NewMockEventHandler(t)
		handlerMock.
			On("CanHandleMessage", ctx, executedMsg).Return(true).
			On("Name").Return("TestHandler")

		assert.False(t, ShouldHandleMessage(ctx, handlerMock, executedMsg))
	})

	t.Run("fresh handler runs", func(t *testing.T) {
		handlerMock := NewMockEventHandler(t)
		handlerMock.On("CanHandleMessage", ctx, msg).Return(true)

		assert.True(t, ShouldHandleMessage(ctx, handlerMock, msg))
	})
}

func Test_EventConsumer_sendMessageToDLQ(t *testing.T) {
	ctx := context.Background()

	producerMock := &MockProducer{}
	producerMock.
		On("WriteMessages", ctx, mock.MatchedBy(func(messages []Message) bool {
			return len(messages) == 1 && messages[0].Topic == "account.events.dlq" && messages[0].Key == "ACC-001"
		})).
		Return(nil).
		Once()

	ec := NewEventConsumer(&MockConsumer{}, producerMock, &crashtracker.MockCrashTrackerClient{})

	err := ec.sendMessageToDLQ(ctx, Message{Key: "ACC-001", Topic: "account.events", Type: AccountPostedType})
	require.NoError(t, err)
	producerMock.AssertExpectations(t)
}
