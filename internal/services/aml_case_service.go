package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrSarFilingRequired = errors.New("case requires a SAR filing before closure")
	ErrAlertHasNoSubject = errors.New("alert carries no customer to open a case for")
)

// caseSLA is the investigation deadline per priority.
var caseSLA = map[data.AmlCasePriority]time.Duration{
	data.CriticalAmlCasePriority: 24 * time.Hour,
	data.HighAmlCasePriority:     3 * 24 * time.Hour,
	data.MediumAmlCasePriority:   7 * 24 * time.Hour,
	data.LowAmlCasePriority:      14 * 24 * time.Hour,
}

// AmlCaseService runs the investigation workflow that alerts escalate into.
type AmlCaseService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	clock            utils.Clock
}

type AmlCaseServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Clock            utils.Clock
}

func (opts AmlCaseServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewAmlCaseService(opts AmlCaseServiceOptions) (*AmlCaseService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating aml case service options: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &AmlCaseService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		clock:            clock,
	}, nil
}

// OpenCaseFromAlert opens an investigation for the alert's customer and
// attaches the alert. The due date follows the priority's SLA.
func (s *AmlCaseService) OpenCaseFromAlert(ctx context.Context, alertID string, priority data.AmlCasePriority, requiresSarFiling bool) (*data.AmlCase, error) {
	alert, err := s.models.AmlAlerts.Get(ctx, s.dbConnectionPool, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting aml alert %s: %w", alertID, err)
	}
	if alert.CustomerID == nil {
		return nil, ErrAlertHasNoSubject
	}

	sla, ok := caseSLA[priority]
	if !ok {
		return nil, fmt.Errorf("invalid aml case priority: %s", priority)
	}

	suffix, err := utils.RandomString(10, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating case number: %w", err)
	}

	amlCase, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.AmlCase, error) {
		opened, insertErr := s.models.AmlCases.Insert(ctx, dbTx, data.AmlCaseInsert{
			CaseNumber:        "CASE-" + suffix,
			CustomerID:        *alert.CustomerID,
			Priority:          priority,
			RequiresSarFiling: requiresSarFiling,
			DueDate:           s.clock.Now().Add(sla),
		})
		if insertErr != nil {
			return nil, fmt.Errorf("inserting aml case: %w", insertErr)
		}

		if _, attachErr := s.models.AmlAlerts.AttachToCase(ctx, dbTx, alert, opened.ID); attachErr != nil {
			return nil, fmt.Errorf("attaching alert %s: %w", alertID, attachErr)
		}

		return opened, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Infof("opened aml case %s (%s) from alert %s", amlCase.CaseNumber, priority, alertID)
	return amlCase, nil
}

// AttachAlert adds a further alert to an existing case.
func (s *AmlCaseService) AttachAlert(ctx context.Context, caseNumber, alertID string) (*data.AmlAlert, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}
	alert, err := s.models.AmlAlerts.Get(ctx, s.dbConnectionPool, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting aml alert %s: %w", alertID, err)
	}

	return s.models.AmlAlerts.AttachToCase(ctx, s.dbConnectionPool, alert, amlCase.ID)
}

// StartInvestigation assigns the case and moves it to INVESTIGATING.
func (s *AmlCaseService) StartInvestigation(ctx context.Context, caseNumber, analyst string) (*data.AmlCase, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}

	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.AmlCase, error) {
		updated, updateErr := s.models.AmlCases.UpdateStatus(ctx, dbTx, amlCase, data.InvestigatingAmlCaseStatus)
		if updateErr != nil {
			return nil, updateErr
		}
		return s.models.AmlCases.Assign(ctx, dbTx, updated, analyst)
	})
}

// SubmitForReview hands the analyst's findings to a reviewer.
func (s *AmlCaseService) SubmitForReview(ctx context.Context, caseNumber string) (*data.AmlCase, error) {
	return s.transition(ctx, caseNumber, data.PendingReviewAmlCaseStatus)
}

// Escalate raises the case to a senior analyst and publishes the escalation.
func (s *AmlCaseService) Escalate(ctx context.Context, caseNumber, escalatedBy string) (*data.AmlCase, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}

	escalated, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.AmlCase, error) {
		updated, escalateErr := s.models.AmlCases.Escalate(ctx, dbTx, amlCase, escalatedBy)
		if escalateErr != nil {
			return nil, escalateErr
		}

		if _, outboxErr := s.models.Outbox.Insert(ctx, dbTx, events.AmlEventsTopic, updated.CustomerID, events.AmlCaseEscalatedType, updated); outboxErr != nil {
			return nil, fmt.Errorf("writing case escalated event: %w", outboxErr)
		}

		return updated, nil
	})
	if err != nil {
		return nil, fmt.Errorf("escalating aml case %s: %w", caseNumber, err)
	}

	logger.Ctx(ctx).Warnf("aml case %s escalated by %s", caseNumber, escalatedBy)
	return escalated, nil
}

// ApproveClosure accepts the review outcome and queues the case for closure.
func (s *AmlCaseService) ApproveClosure(ctx context.Context, caseNumber string) (*data.AmlCase, error) {
	return s.transition(ctx, caseNumber, data.PendingClosureAmlCaseStatus)
}

// CloseCase records the resolution and closes the case. A case that requires
// a SAR cannot close until the report has been filed.
func (s *AmlCaseService) CloseCase(ctx context.Context, caseNumber, resolution string) (*data.AmlCase, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}
	if amlCase.RequiresSarFiling && !amlCase.SarFiled {
		return nil, fmt.Errorf("closing aml case %s: %w", caseNumber, ErrSarFilingRequired)
	}

	closed, err := s.models.AmlCases.Close(ctx, s.dbConnectionPool, amlCase, resolution)
	if err != nil {
		return nil, fmt.Errorf("closing aml case %s: %w", caseNumber, err)
	}

	logger.Ctx(ctx).Infof("closed aml case %s: %s", caseNumber, resolution)
	return closed, nil
}

// ReopenCase reopens a closed case on new evidence; closedAt is reset.
func (s *AmlCaseService) ReopenCase(ctx context.Context, caseNumber, reason string) (*data.AmlCase, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}

	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.AmlCase, error) {
		reopened, updateErr := s.models.AmlCases.UpdateStatus(ctx, dbTx, amlCase, data.ReopenedAmlCaseStatus)
		if updateErr != nil {
			return nil, updateErr
		}

		if _, noteErr := s.models.AmlCases.AddNote(ctx, dbTx, reopened.ID, "system", "reopened: "+reason); noteErr != nil {
			return nil, noteErr
		}

		return reopened, nil
	})
}

func (s *AmlCaseService) AddNote(ctx context.Context, caseNumber, author, note string) (*data.AmlCaseNote, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}
	return s.models.AmlCases.AddNote(ctx, s.dbConnectionPool, amlCase.ID, author, note)
}

func (s *AmlCaseService) GetCase(ctx context.Context, caseNumber string) (*data.AmlCase, error) {
	return s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
}

// SweepOverdueCases flags SLA breaches: each overdue case gets a system note
// once per sweep. Returns the number of overdue cases.
func (s *AmlCaseService) SweepOverdueCases(ctx context.Context) (int, error) {
	overdue, err := s.models.AmlCases.GetOverdue(ctx, s.dbConnectionPool, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("getting overdue aml cases: %w", err)
	}

	for _, amlCase := range overdue {
		note := fmt.Sprintf("SLA breached: due %s, still %s", amlCase.DueDate.Format(time.RFC3339), amlCase.Status)
		if _, noteErr := s.models.AmlCases.AddNote(ctx, s.dbConnectionPool, amlCase.ID, "system", note); noteErr != nil {
			logger.Ctx(ctx).Errorf("noting SLA breach on case %s: %v", amlCase.CaseNumber, noteErr)
			continue
		}
		logger.Ctx(ctx).Warnf("aml case %s is overdue (due %s)", amlCase.CaseNumber, amlCase.DueDate.Format(time.RFC3339))
	}

	return len(overdue), nil
}

func (s *AmlCaseService) transition(ctx context.Context, caseNumber string, target data.AmlCaseStatus) (*data.AmlCase, error) {
	amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, caseNumber)
	if err != nil {
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}

	updated, err := s.models.AmlCases.UpdateStatus(ctx, s.dbConnectionPool, amlCase, target)
	if err != nil {
		return nil, fmt.Errorf("moving aml case %s to %s: %w", caseNumber, target, err)
	}

	return updated, nil
}
