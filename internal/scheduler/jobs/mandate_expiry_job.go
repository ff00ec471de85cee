package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/internal/logger"
)

const mandateExpiryJobName = "sepa_mandate_expiry"

type MandateExpirerInterface interface {
	ExpireStaleMandates(ctx context.Context) (int, error)
}

// mandateExpiryJob expires active mandates that have gone 36 months without a
// collection, per the SEPA rulebook.
type mandateExpiryJob struct {
	mandateService     MandateExpirerInterface
	jobIntervalSeconds int
}

func NewMandateExpiryJob(mandateService MandateExpirerInterface, jobIntervalSeconds int) Job {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		logger.DefaultLogger.Fatalf("job interval is not set for %s. Instantiation failed", mandateExpiryJobName)
	}
	return &mandateExpiryJob{
		mandateService:     mandateService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j mandateExpiryJob) GetName() string {
	return mandateExpiryJobName
}

func (j mandateExpiryJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j mandateExpiryJob) Execute(ctx context.Context) error {
	expired, err := j.mandateService.ExpireStaleMandates(ctx)
	if err != nil {
		return fmt.Errorf("expiring stale mandates: %w", err)
	}
	if expired > 0 {
		logger.Ctx(ctx).WithField("expired", expired).Info("expired stale sepa mandates")
	}
	return nil
}

var _ Job = (*mandateExpiryJob)(nil)
