package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewMessage(t *testing.T) {
	m := NewMessage("transfers.state", "TRF-1", "transfer.completed", map[string]string{"transfer_reference": "TRF-1"})

	assert.NotEmpty(t, m.EventID)
	assert.Equal(t, "transfers.state", m.Topic)
	assert.Equal(t, "TRF-1", m.Key)
	assert.Equal(t, "transfer.completed", m.Type)
	assert.False(t, m.OccurredAt.IsZero())
	require.NoError(t, m.Validate())
}

func Test_Message_Validate(t *testing.T) {
	valid := Message{Topic: "accounts.state", Key: "ACCT-1", Type: "account.frozen", Data: "payload"}

	testCases := []struct {
		name    string
		mutate  func(m *Message)
		wantErr error
	}{
		{name: "valid", mutate: func(m *Message) {}, wantErr: nil},
		{name: "missing topic", mutate: func(m *Message) { m.Topic = "" }, wantErr: ErrTopicRequired},
		{name: "missing key", mutate: func(m *Message) { m.Key = "" }, wantErr: ErrKeyRequired},
		{name: "missing type", mutate: func(m *Message) { m.Type = "" }, wantErr: ErrTypeRequired},
		{name: "missing data", mutate: func(m *Message) { m.Data = nil }, wantErr: ErrDataRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid
			tc.mutate(&m)
			err := m.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func Test_Message_RecordErrorAndSuccess(t *testing.T) {
	m := NewMessage("aml.alerts", "ALERT-1", "alert.raised", "payload")

	m.RecordError("alert-indexer", fmt.Errorf("index unavailable"))
	m.RecordSuccess("alert-notifier")

	require.Len(t, m.Errors, 1)
	assert.Equal(t, "alert-indexer", m.Errors[0].HandlerName)
	assert.Equal(t, "index unavailable", m.Errors[0].ErrorMessage)
	require.Len(t, m.SuccessfulExecutions, 1)
	assert.Equal(t, "alert-notifier", m.SuccessfulExecutions[0].HandlerName)
}
