package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/saga"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const sagaRecoveryJobName = "saga_recovery"

// sagaRecoveryJob resumes sagas that stopped making progress, e.g. after a
// crash mid-transfer. Only records older than stuckThreshold are picked up so
// in-flight sagas are left alone.
type sagaRecoveryJob struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	orchestrator     *saga.Orchestrator
	registry         *saga.Registry
	stuckThreshold   time.Duration
	interval         time.Duration
	clock            utils.Clock
}

type SagaRecoveryJobOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Orchestrator     *saga.Orchestrator
	Registry         *saga.Registry
	StuckThreshold   time.Duration
	Interval         time.Duration
	Clock            utils.Clock
}

func NewSagaRecoveryJob(opts SagaRecoveryJobOptions) Job {
	if opts.Interval < DefaultMinimumJobIntervalSeconds*time.Second {
		logger.DefaultLogger.Fatalf("job interval is not set for %s. Instantiation failed", sagaRecoveryJobName)
	}
	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}
	return &sagaRecoveryJob{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		orchestrator:     opts.Orchestrator,
		registry:         opts.Registry,
		stuckThreshold:   opts.StuckThreshold,
		interval:         opts.Interval,
		clock:            clock,
	}
}

func (j *sagaRecoveryJob) GetName() string {
	return sagaRecoveryJobName
}

func (j *sagaRecoveryJob) GetInterval() time.Duration {
	return j.interval
}

func (j *sagaRecoveryJob) Execute(ctx context.Context) error {
	olderThan := j.clock.Now().Add(-j.stuckThreshold)
	records, err := j.models.SagaRecords.GetNonTerminal(ctx, j.dbConnectionPool, olderThan)
	if err != nil {
		return fmt.Errorf("getting stuck saga records: %w", err)
	}

	for i := range records {
		record := records[i]
		logger.Ctx(ctx).WithFields(map[string]any{
			"saga":          record.SagaName,
			"aggregate_ref": record.AggregateRef,
			"state":         record.State,
		}).Info("resuming stuck saga")

		if _, err := j.orchestrator.Resume(ctx, j.registry, &record); err != nil {
			// Keep going: one broken saga must not block recovery of the rest.
			logger.Ctx(ctx).Errorf("resuming saga %s for %s: %v", record.SagaName, record.AggregateRef, err)
		}
	}
	return nil
}

var _ Job = (*sagaRecoveryJob)(nil)
