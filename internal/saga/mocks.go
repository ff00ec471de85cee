package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

type MockStep struct {
	mock.Mock
	id string
}

func (s *MockStep) ID() string {
	return s.id
}

func (s *MockStep) Execute(ctx context.Context, aggregateRef string) error {
	return s.Called(ctx, aggregateRef).Error(0)
}

func (s *MockStep) Compensate(ctx context.Context, aggregateRef string) error {
	return s.Called(ctx, aggregateRef).Error(0)
}

var _ Step = (*MockStep)(nil)

func NewMockStep(t *testing.T, id string) *MockStep {
	t.Helper()

	step := &MockStep{id: id}
	t.Cleanup(func() {
		step.AssertExpectations(t)
	})

	return step
}
