package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type SettlementNetworkClientMock struct {
	mock.Mock
}

func (m *SettlementNetworkClientMock) SubmitSepaBatch(ctx context.Context, messageID, documentXML string) error {
	args := m.Called(ctx, messageID, documentXML)
	return args.Error(0)
}

func (m *SettlementNetworkClientMock) SubmitSwiftMessage(ctx context.Context, transactionReference, mt103 string) error {
	args := m.Called(ctx, transactionReference, mt103)
	return args.Error(0)
}

var _ SettlementNetworkClient = (*SettlementNetworkClientMock)(nil)
