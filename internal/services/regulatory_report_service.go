package services

import (
	"context"
	"fmt"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// RegulatoryReportService runs the four-eyes report workflow: the preparer,
// the reviewer and the approver must be three different people.
type RegulatoryReportService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	clock            utils.Clock
}

type RegulatoryReportServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Clock            utils.Clock
}

func (opts RegulatoryReportServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewRegulatoryReportService(opts RegulatoryReportServiceOptions) (*RegulatoryReportService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating regulatory report service options: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &RegulatoryReportService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		clock:            clock,
	}, nil
}

// CreateReport drafts a report, optionally bound to an AML case.
func (s *RegulatoryReportService) CreateReport(ctx context.Context, reportType data.RegulatoryReportType, caseNumber *string, narrative, preparedBy string) (*data.RegulatoryReport, error) {
	var caseID *string
	if caseNumber != nil {
		amlCase, err := s.models.AmlCases.GetByCaseNumber(ctx, s.dbConnectionPool, *caseNumber)
		if err != nil {
			return nil, fmt.Errorf("getting aml case %s: %w", *caseNumber, err)
		}
		caseID = &amlCase.ID
	}

	suffix, err := utils.RandomString(10, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating report number: %w", err)
	}

	reportNumber := fmt.Sprintf("%s-%s", reportType, suffix)
	report, err := s.models.RegulatoryReports.Insert(ctx, s.dbConnectionPool, reportNumber, reportType, caseID, narrative, preparedBy)
	if err != nil {
		return nil, fmt.Errorf("creating %s report: %w", reportType, err)
	}

	logger.Ctx(ctx).Infof("drafted %s report %s (prepared by %s)", reportType, reportNumber, preparedBy)
	return report, nil
}

func (s *RegulatoryReportService) SubmitForReview(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.SubmitForReview(ctx, s.dbConnectionPool, report)
}

// Review accepts or rejects the report on behalf of a reviewer distinct from
// the preparer.
func (s *RegulatoryReportService) Review(ctx context.Context, reportNumber, reviewedBy string, accept bool, rejectionReason *string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.Review(ctx, s.dbConnectionPool, report, reviewedBy, accept, rejectionReason)
}

// Approve signs off a reviewed report; the approver must differ from both the
// preparer and the reviewer.
func (s *RegulatoryReportService) Approve(ctx context.Context, reportNumber, approvedBy string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.Approve(ctx, s.dbConnectionPool, report, approvedBy)
}

// RejectApproval sends an approval-stage report back with a reason.
func (s *RegulatoryReportService) RejectApproval(ctx context.Context, reportNumber, rejectionReason string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.Reject(ctx, s.dbConnectionPool, report, rejectionReason)
}

// ReturnToDraft lets the preparer rework a rejected report.
func (s *RegulatoryReportService) ReturnToDraft(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.ReturnToDraft(ctx, s.dbConnectionPool, report)
}

// UpdateNarrative edits a draft's narrative.
func (s *RegulatoryReportService) UpdateNarrative(ctx context.Context, reportNumber, narrative string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.UpdateNarrative(ctx, s.dbConnectionPool, report, narrative)
}

// FileReport submits an approved report to the authority. Filing a SAR marks
// the originating case as filed and publishes the filing.
func (s *RegulatoryReportService) FileReport(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}

	filed, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.RegulatoryReport, error) {
		updated, fileErr := s.models.RegulatoryReports.File(ctx, dbTx, report)
		if fileErr != nil {
			return nil, fileErr
		}

		if updated.ReportType == data.SarReportType && updated.CaseID != nil {
			filedAt := s.clock.Now()
			if updated.FiledAt != nil {
				filedAt = *updated.FiledAt
			}
			if sarErr := s.models.AmlCases.RecordSarFiling(ctx, dbTx, *updated.CaseID, updated.ID, filedAt); sarErr != nil {
				return nil, fmt.Errorf("recording sar filing: %w", sarErr)
			}
		}

		if _, outboxErr := s.models.Outbox.Insert(ctx, dbTx, events.AmlEventsTopic, updated.ReportNumber, events.SarReportFiledType, updated); outboxErr != nil {
			return nil, fmt.Errorf("writing report filed event: %w", outboxErr)
		}

		return updated, nil
	})
	if err != nil {
		return nil, fmt.Errorf("filing report %s: %w", reportNumber, err)
	}

	logger.Ctx(ctx).Infof("filed %s report %s", filed.ReportType, reportNumber)
	return filed, nil
}

// Acknowledge records the authority's receipt of a filed report.
func (s *RegulatoryReportService) Acknowledge(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	report, err := s.get(ctx, reportNumber)
	if err != nil {
		return nil, err
	}
	return s.models.RegulatoryReports.Acknowledge(ctx, s.dbConnectionPool, report)
}

func (s *RegulatoryReportService) GetReport(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	return s.get(ctx, reportNumber)
}

func (s *RegulatoryReportService) get(ctx context.Context, reportNumber string) (*data.RegulatoryReport, error) {
	report, err := s.models.RegulatoryReports.GetByReportNumber(ctx, s.dbConnectionPool, reportNumber)
	if err != nil {
		return nil, fmt.Errorf("getting regulatory report %s: %w", reportNumber, err)
	}
	return report, nil
}
