package jobs

import (
	"context"
	"sync"
	"time"
)

// MockJob is a mock job created for testing purposes
type MockJob struct {
	Name       string
	Interval   time.Duration
	Executions int
	mu         sync.Mutex
}

func (m *MockJob) GetName() string {
	return m.Name
}

func (m *MockJob) GetInterval() time.Duration {
	return m.Interval
}

func (m *MockJob) Execute(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Executions++
	return nil
}

func (m *MockJob) GetExecutions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Executions
}

// verify that MockJob implements the Job interface
var _ Job = (*MockJob)(nil)
