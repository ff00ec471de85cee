package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/crashtracker"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// defaultStepTimeout bounds a single step execution or compensation. A step
// that blocks past it fails and triggers compensation.
const defaultStepTimeout = 30 * time.Second

// Orchestrator executes saga definitions against durable records. Distinct
// sagas may run in parallel; steps within one saga run sequentially.
type Orchestrator struct {
	dbConnectionPool   db.DBConnectionPool
	sagaRecordModel    *data.SagaRecordModel
	monitorService     monitor.MonitorServiceInterface
	crashTrackerClient crashtracker.CrashTrackerClient
	stepTimeout        time.Duration
}

type OrchestratorOptions struct {
	DBConnectionPool   db.DBConnectionPool
	Models             *data.Models
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	// StepTimeout caps each step execution; zero means the default.
	StepTimeout time.Duration
}

func (opts OrchestratorOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating saga orchestrator options: %w", err)
	}

	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}

	return &Orchestrator{
		dbConnectionPool:   opts.DBConnectionPool,
		sagaRecordModel:    opts.Models.SagaRecords,
		monitorService:     opts.MonitorService,
		crashTrackerClient: opts.CrashTrackerClient,
		stepTimeout:        stepTimeout,
	}, nil
}

// Run starts (or resumes) the saga for the given aggregate. Calling Run twice
// with the same aggregateRef is safe: a terminal record is returned as-is and
// an in-flight one is driven forward from its last executed step.
func (o *Orchestrator) Run(ctx context.Context, definition Definition, aggregateRef string) (*data.SagaRecord, error) {
	record, err := o.sagaRecordModel.Insert(ctx, o.dbConnectionPool, definition.Name, aggregateRef)
	if err != nil {
		if !errors.Is(err, data.ErrRecordAlreadyExists) {
			return nil, fmt.Errorf("inserting saga record for %s/%s: %w", definition.Name, aggregateRef, err)
		}

		record, err = o.sagaRecordModel.GetByAggregateRef(ctx, o.dbConnectionPool, definition.Name, aggregateRef)
		if err != nil {
			return nil, fmt.Errorf("getting existing saga record for %s/%s: %w", definition.Name, aggregateRef, err)
		}

		if record.State.IsTerminal() {
			return record, nil
		}
	}

	return o.drive(ctx, definition, record)
}

// Resume re-drives a persisted non-terminal record, looking its definition up
// in the registry. Used by the recovery loop for sagas interrupted by a crash.
func (o *Orchestrator) Resume(ctx context.Context, registry *Registry, record *data.SagaRecord) (*data.SagaRecord, error) {
	definition, err := registry.Get(record.SagaName)
	if err != nil {
		return nil, fmt.Errorf("resolving definition for saga record %s: %w", record.ID, err)
	}

	switch record.State {
	case data.CompensatingSagaState:
		if err = o.compensate(ctx, definition, record, nil); err != nil {
			return record, err
		}
		return record, nil
	case data.RunningSagaState:
		return o.drive(ctx, definition, record)
	default:
		return record, nil
	}
}

func (o *Orchestrator) drive(ctx context.Context, definition Definition, record *data.SagaRecord) (*data.SagaRecord, error) {
	executed := make(map[string]struct{}, len(record.ExecutedStepIDs))
	for _, stepID := range record.ExecutedStepIDs {
		executed[stepID] = struct{}{}
	}

	for _, step := range definition.Steps {
		if _, alreadyRan := executed[step.ID()]; alreadyRan {
			continue
		}

		// A cancelled saga that has executed work compensates instead of
		// aborting mid-step.
		if ctxErr := ctx.Err(); ctxErr != nil {
			stepErr := fmt.Errorf("saga %s cancelled before step %s: %w", definition.Name, step.ID(), ctxErr)
			return record, o.failAndCompensate(ctx, definition, record, stepErr)
		}

		logger.Ctx(ctx).Infof("saga %s: executing step %s for %s", definition.Name, step.ID(), record.AggregateRef)

		if execErr := o.runStep(ctx, step.Execute, record.AggregateRef); execErr != nil {
			stepErr := fmt.Errorf("saga %s step %s failed for %s: %w", definition.Name, step.ID(), record.AggregateRef, execErr)
			return record, o.failAndCompensate(ctx, definition, record, stepErr)
		}

		if err := o.sagaRecordModel.AppendExecutedStep(ctx, o.dbConnectionPool, record.ID, step.ID()); err != nil {
			return record, fmt.Errorf("recording executed step %s of saga record %s: %w", step.ID(), record.ID, err)
		}
		record.ExecutedStepIDs = append(record.ExecutedStepIDs, step.ID())
	}

	if err := o.sagaRecordModel.SetState(ctx, o.dbConnectionPool, record.ID, data.CompletedSagaState, nil); err != nil {
		return record, fmt.Errorf("completing saga record %s: %w", record.ID, err)
	}
	record.State = data.CompletedSagaState

	return record, nil
}

// failAndCompensate marks the record COMPENSATING and runs compensations in
// reverse order. It always returns a non-nil error: the original step failure
// on success, ErrManualInterventionRequired when compensation itself fails.
func (o *Orchestrator) failAndCompensate(ctx context.Context, definition Definition, record *data.SagaRecord, stepErr error) error {
	if err := o.compensate(ctx, definition, record, stepErr); err != nil {
		return err
	}

	return stepErr
}

func (o *Orchestrator) compensate(ctx context.Context, definition Definition, record *data.SagaRecord, stepErr error) error {
	// Compensation must run even when the inbound context was cancelled.
	ctx = context.WithoutCancel(ctx)

	var lastError *string
	if stepErr != nil {
		lastError = utils.StringPtr(stepErr.Error())
	}
	if err := o.sagaRecordModel.SetState(ctx, o.dbConnectionPool, record.ID, data.CompensatingSagaState, lastError); err != nil {
		return fmt.Errorf("marking saga record %s as compensating: %w", record.ID, err)
	}
	record.State = data.CompensatingSagaState

	for i := len(record.ExecutedStepIDs) - 1; i >= 0; i-- {
		stepID := record.ExecutedStepIDs[i]

		step, ok := definition.stepByID(stepID)
		if !ok {
			return o.parkFailed(ctx, record, fmt.Errorf("executed step %s is not part of saga %s", stepID, definition.Name))
		}

		logger.Ctx(ctx).Infof("saga %s: compensating step %s for %s", definition.Name, stepID, record.AggregateRef)

		if compErr := o.runStep(ctx, step.Compensate, record.AggregateRef); compErr != nil {
			return o.parkFailed(ctx, record, fmt.Errorf("compensating step %s for %s: %w", stepID, record.AggregateRef, compErr))
		}

		if err := o.sagaRecordModel.RemoveExecutedStep(ctx, o.dbConnectionPool, record.ID, stepID); err != nil {
			return fmt.Errorf("removing compensated step %s from saga record %s: %w", stepID, record.ID, err)
		}
	}
	record.ExecutedStepIDs = nil

	if err := o.sagaRecordModel.SetState(ctx, o.dbConnectionPool, record.ID, data.CompensatedSagaState, nil); err != nil {
		return fmt.Errorf("marking saga record %s as compensated: %w", record.ID, err)
	}
	record.State = data.CompensatedSagaState

	if o.monitorService != nil {
		if err := o.monitorService.MonitorCounters(monitor.SagaCompensationsCounterTag, nil); err != nil {
			logger.Ctx(ctx).Errorf("monitoring saga compensation counter: %v", err)
		}
	}

	return nil
}

// runStep invokes one step function under the per-step timeout.
func (o *Orchestrator) runStep(ctx context.Context, fn func(ctx context.Context, aggregateRef string) error, aggregateRef string) error {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	return fn(stepCtx, aggregateRef)
}

// parkFailed records the terminal FAILED state and reports it. Postings may
// be left half-applied at this point, so an operator has to reconcile.
func (o *Orchestrator) parkFailed(ctx context.Context, record *data.SagaRecord, failure error) error {
	if err := o.sagaRecordModel.SetState(ctx, o.dbConnectionPool, record.ID, data.FailedSagaState, utils.StringPtr(failure.Error())); err != nil {
		return fmt.Errorf("marking saga record %s as failed: %w", record.ID, err)
	}
	record.State = data.FailedSagaState

	if o.crashTrackerClient != nil {
		o.crashTrackerClient.LogAndReportErrors(ctx, failure, fmt.Sprintf("saga %s requires manual intervention", record.ID))
	}

	return fmt.Errorf("%w: %s", ErrManualInterventionRequired, failure)
}
