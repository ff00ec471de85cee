package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

const outboxPumpJobName = "outbox_pump"

type OutboxPumperInterface interface {
	Pump(ctx context.Context) (int, error)
}

// outboxPumpJob drains committed outbox rows to the event broker. Events only
// leave the database after the transaction that wrote them has committed.
type outboxPumpJob struct {
	pumpService        OutboxPumperInterface
	jobIntervalSeconds int
}

func NewOutboxPumpJob(pumpService OutboxPumperInterface, jobIntervalSeconds int) Job {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		logger.DefaultLogger.Fatalf("job interval is not set for %s. Instantiation failed", outboxPumpJobName)
	}
	return &outboxPumpJob{
		pumpService:        pumpService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j outboxPumpJob) GetName() string {
	return outboxPumpJobName
}

func (j outboxPumpJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j outboxPumpJob) Execute(ctx context.Context) error {
	published, err := j.pumpService.Pump(ctx)
	if err != nil {
		return fmt.Errorf("pumping outbox rows: %w", err)
	}
	if published > 0 {
		logger.Ctx(ctx).WithField("published", published).Info("outbox pump published events")
	}
	return nil
}

var _ Job = (*outboxPumpJob)(nil)
