package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
)

const sepaBatchProcessorJobName = "sepa_batch_processor"

type SepaBatchSubmitterInterface interface {
	SubmitBatch(ctx context.Context, messageID string) (*data.SepaBatch, error)
}

// sepaBatchProcessorJob picks up batches that passed validation and submits
// them to the clearing network.
type sepaBatchProcessorJob struct {
	dbConnectionPool   db.DBConnectionPool
	models             *data.Models
	batchService       SepaBatchSubmitterInterface
	jobIntervalSeconds int
}

func NewSepaBatchProcessorJob(dbConnectionPool db.DBConnectionPool, models *data.Models, batchService SepaBatchSubmitterInterface, jobIntervalSeconds int) Job {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		logger.DefaultLogger.Fatalf("job interval is not set for %s. Instantiation failed", sepaBatchProcessorJobName)
	}
	return &sepaBatchProcessorJob{
		dbConnectionPool:   dbConnectionPool,
		models:             models,
		batchService:       batchService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j *sepaBatchProcessorJob) GetName() string {
	return sepaBatchProcessorJobName
}

func (j *sepaBatchProcessorJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j *sepaBatchProcessorJob) Execute(ctx context.Context) error {
	batches, err := j.models.SepaBatches.GetByStatus(ctx, j.dbConnectionPool, data.ValidatedSepaBatchStatus)
	if err != nil {
		return fmt.Errorf("getting validated sepa batches: %w", err)
	}

	for _, batch := range batches {
		if _, err := j.batchService.SubmitBatch(ctx, batch.MessageID); err != nil {
			// A rejected or race-lost batch must not block the rest.
			logger.Ctx(ctx).Errorf("submitting sepa batch %s: %v", batch.MessageID, err)
		}
	}
	return nil
}

var _ Job = (*sepaBatchProcessorJob)(nil)
