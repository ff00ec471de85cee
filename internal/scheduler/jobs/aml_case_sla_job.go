package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

const amlCaseSlaJobName = "aml_case_sla_sweep"

type OverdueCaseSweeperInterface interface {
	SweepOverdueCases(ctx context.Context) (int, error)
}

// amlCaseSlaJob flags open investigations whose SLA due date has passed, so
// the compliance desk sees the breach on the case record.
type amlCaseSlaJob struct {
	caseService        OverdueCaseSweeperInterface
	jobIntervalSeconds int
}

func NewAmlCaseSlaJob(caseService OverdueCaseSweeperInterface, jobIntervalSeconds int) Job {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		logger.DefaultLogger.Fatalf("job interval is not set for %s. Instantiation failed", amlCaseSlaJobName)
	}
	return &amlCaseSlaJob{
		caseService:        caseService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j amlCaseSlaJob) GetName() string {
	return amlCaseSlaJobName
}

func (j amlCaseSlaJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j amlCaseSlaJob) Execute(ctx context.Context) error {
	breached, err := j.caseService.SweepOverdueCases(ctx)
	if err != nil {
		return fmt.Errorf("sweeping overdue aml cases: %w", err)
	}
	if breached > 0 {
		logger.Ctx(ctx).WithField("breached", breached).Warn("aml cases past their sla due date")
	}
	return nil
}

var _ Job = (*amlCaseSlaJob)(nil)
