package scheduler

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/crashtracker"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/scheduler/jobs"
)

// Scheduler manages a list of jobs and executes them at their specified intervals.
// It uses a job queue to distribute jobs to workers.
type Scheduler struct {
	jobs               map[string]jobs.Job
	cancel             context.CancelFunc
	crashTrackerClient crashtracker.CrashTrackerClient
	jobQueue           chan jobs.Job
	// enqueuedJobs is used to keep track of enqueued jobs to avoid enqueuing
	// the same job multiple times in case it takes longer to execute than its
	// interval.
	enqueuedJobs sync.Map
}

type SchedulerJobRegisterOption func(*Scheduler)

// SchedulerWorkerCount is the number of workers that will be started to process jobs
const SchedulerWorkerCount = 5

// StartScheduler initializes and starts the scheduler. This method blocks
// until the scheduler is stopped.
func StartScheduler(crashTrackerClient crashtracker.CrashTrackerClient, schedulerJobRegisters ...SchedulerJobRegisterOption) {
	// Call crash tracker FlushEvents to flush buffered events before the scheduler terminates
	defer crashTrackerClient.FlushEvents(2 * time.Second)
	// Call crash tracker Recover for recover from unhandled panics
	defer crashTrackerClient.Recover()

	ctx, cancel := context.WithCancel(context.Background())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	scheduler := newScheduler(cancel)
	scheduler.crashTrackerClient = crashTrackerClient

	for _, schedulerJobRegister := range schedulerJobRegisters {
		schedulerJobRegister(scheduler)
	}

	scheduler.start(ctx)

	<-signalChan

	scheduler.stop()
}

func newScheduler(cancel context.CancelFunc) *Scheduler {
	return &Scheduler{
		jobs:     make(map[string]jobs.Job),
		cancel:   cancel,
		jobQueue: make(chan jobs.Job),
	}
}

// addJob adds a job to the scheduler. This method does not start the job. To start the job, call start().
func (s *Scheduler) addJob(job jobs.Job) {
	logger.DefaultLogger.Infof("registering job to scheduler [name: %s], [interval: %s]", job.GetName(), job.GetInterval())
	s.jobs[job.GetName()] = job
}

// start starts the scheduler and all jobs. This method blocks until the scheduler is stopped.
func (s *Scheduler) start(ctx context.Context) {
	if len(s.jobs) == 0 {
		logger.Ctx(ctx).Info("no jobs to start")
		s.stop()
		return
	}
	logger.Ctx(ctx).Infof("starting scheduler with %d workers...", SchedulerWorkerCount)

	// 1. We start all the workers that will process jobs from the job queue.
	for i := 1; i <= SchedulerWorkerCount; i++ {
		// start a new worker passing a CrashTrackerClient clone to report errors when the job is executed
		go worker(ctx, i, s.crashTrackerClient.Clone(), s)
	}

	// 2. Enqueue jobs to jobQueue. One lightweight goroutine per job waits
	// for the ticker to tick and then enqueues the job.
	for _, job := range s.jobs {
		go func(job jobs.Job) {
			ticker := time.NewTicker(job.GetInterval())
			for {
				select {
				case <-ticker.C:
					jobName := job.GetName()
					if _, alreadyEnqueued := s.enqueuedJobs.LoadOrStore(jobName, true); !alreadyEnqueued {
						logger.Ctx(ctx).Debugf("enqueuing job: %s", jobName)
						s.jobQueue <- job
					} else {
						logger.Ctx(ctx).Debugf("skipping job %s, already in queue", jobName)
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}(job)
	}
}

// stop uses the context to stop the scheduler and all jobs.
func (s *Scheduler) stop() {
	logger.DefaultLogger.Info("stopping scheduler...")
	s.cancel()
}

// worker is a goroutine that processes jobs from the job queue.
func worker(ctx context.Context, workerID int, crashTrackerClient crashtracker.CrashTrackerClient, scheduler *Scheduler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Errorf("worker %d encountered a panic while processing a job: %v", workerID, r)
		}
	}()
	for {
		select {
		case job := <-scheduler.jobQueue:
			executeJob(ctx, job, workerID, crashTrackerClient)
			scheduler.enqueuedJobs.Delete(job.GetName()) // Remove job from tracking after execution
		case <-ctx.Done():
			logger.Ctx(ctx).Infof("worker %d stopping...", workerID)
			return
		}
	}
}

// executeJob executes a job and reports any errors to the crash tracker.
func executeJob(ctx context.Context, job jobs.Job, workerID int, crashTrackerClient crashtracker.CrashTrackerClient) {
	logger.Ctx(ctx).Debugf("processing job %s on worker %d", job.GetName(), workerID)
	if err := job.Execute(ctx); err != nil {
		crashTrackerClient.LogAndReportErrors(ctx, err, "error processing job "+job.GetName())
	}
}

// WithOutboxPumpJobOption registers the job that drains the transactional
// outbox to the event broker.
func WithOutboxPumpJobOption(pumpService jobs.OutboxPumperInterface, jobIntervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewOutboxPumpJob(pumpService, jobIntervalSeconds))
	}
}

// WithSagaRecoveryJobOption registers the recovery loop for stuck sagas.
func WithSagaRecoveryJobOption(opts jobs.SagaRecoveryJobOptions) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewSagaRecoveryJob(opts))
	}
}

// WithMandateExpiryJobOption registers the stale mandate sweep.
func WithMandateExpiryJobOption(mandateService jobs.MandateExpirerInterface, jobIntervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewMandateExpiryJob(mandateService, jobIntervalSeconds))
	}
}

// WithAmlCaseSlaJobOption registers the AML case SLA breach sweep.
func WithAmlCaseSlaJobOption(caseService jobs.OverdueCaseSweeperInterface, jobIntervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewAmlCaseSlaJob(caseService, jobIntervalSeconds))
	}
}

// WithSepaBatchProcessorJobOption registers the submitter for validated SEPA
// batches.
func WithSepaBatchProcessorJobOption(dbConnectionPool db.DBConnectionPool, models *data.Models, batchService jobs.SepaBatchSubmitterInterface, jobIntervalSeconds int) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		s.addJob(jobs.NewSepaBatchProcessorJob(dbConnectionPool, models, batchService, jobIntervalSeconds))
	}
}
