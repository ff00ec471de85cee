package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nordbank/banking-platform-backend/db"
)

type RegulatoryReportType string

const (
	SarReportType RegulatoryReportType = "SAR" // suspicious activity report
	StrReportType RegulatoryReportType = "STR" // suspicious transaction report
	CtrReportType RegulatoryReportType = "CTR" // currency transaction report
)

func (t RegulatoryReportType) Validate() error {
	switch t {
	case SarReportType, StrReportType, CtrReportType:
		return nil
	default:
		return fmt.Errorf("invalid regulatory report type: %s", t)
	}
}

type RegulatoryReport struct {
	ID              string                 `json:"id" db:"id"`
	ReportNumber    string                 `json:"report_number" db:"report_number"`
	ReportType      RegulatoryReportType   `json:"report_type" db:"report_type"`
	CaseID          *string                `json:"case_id,omitempty" db:"case_id"`
	Status          RegulatoryReportStatus `json:"status" db:"status"`
	Narrative       string                 `json:"narrative" db:"narrative"`
	PreparedBy      string                 `json:"prepared_by" db:"prepared_by"`
	ReviewedBy      *string                `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ApprovedBy      *string                `json:"approved_by,omitempty" db:"approved_by"`
	RejectionReason *string                `json:"rejection_reason,omitempty" db:"rejection_reason"`
	FiledAt         *time.Time             `json:"filed_at,omitempty" db:"filed_at"`
	AcknowledgedAt  *time.Time             `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
}

type RegulatoryReportModel struct {
	dbConnectionPool db.DBConnectionPool
}

const regulatoryReportColumns = `
	id, report_number, report_type, case_id, status, narrative, prepared_by, reviewed_by,
	approved_by, rejection_reason, filed_at, acknowledged_at, created_at, updated_at
`

func (m *RegulatoryReportModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, reportNumber string, reportType RegulatoryReportType, caseID *string, narrative, preparedBy string) (*RegulatoryReport, error) {
	if err := reportType.Validate(); err != nil {
		return nil, fmt.Errorf("validating regulatory report insert: %w", err)
	}
	if preparedBy == "" {
		return nil, fmt.Errorf("inserting regulatory report: %w: preparedBy", ErrMissingInput)
	}

	query := `
		INSERT INTO regulatory_reports (report_number, report_type, case_id, narrative, prepared_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + regulatoryReportColumns

	var report RegulatoryReport
	err := sqlExec.GetContext(ctx, &report, query, reportNumber, reportType, caseID, narrative, preparedBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting regulatory report: %w", err)
	}

	return &report, nil
}

func (m *RegulatoryReportModel) GetByReportNumber(ctx context.Context, sqlExec db.SQLExecuter, reportNumber string) (*RegulatoryReport, error) {
	query := `SELECT ` + regulatoryReportColumns + ` FROM regulatory_reports WHERE report_number = $1`

	var report RegulatoryReport
	err := sqlExec.GetContext(ctx, &report, query, reportNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting regulatory report %s: %w", reportNumber, err)
	}

	return &report, nil
}

type regulatoryReportUpdate struct {
	targetStatus    RegulatoryReportStatus
	reviewedBy      *string
	approvedBy      *string
	rejectionReason *string
}

func (m *RegulatoryReportModel) updateStatus(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport, update regulatoryReportUpdate) (*RegulatoryReport, error) {
	if err := report.Status.TransitionTo(update.targetStatus); err != nil {
		return nil, fmt.Errorf("validating regulatory report status transition: %w", err)
	}

	query := `
		UPDATE regulatory_reports
		SET status = $1,
		    reviewed_by = COALESCE($2, reviewed_by),
		    approved_by = COALESCE($3, approved_by),
		    rejection_reason = COALESCE($4, rejection_reason),
		    filed_at = CASE WHEN $1 = 'FILED' THEN now() ELSE filed_at END,
		    acknowledged_at = CASE WHEN $1 = 'ACKNOWLEDGED' THEN now() ELSE acknowledged_at END,
		    updated_at = now()
		WHERE id = $5
		RETURNING ` + regulatoryReportColumns

	var updated RegulatoryReport
	err := sqlExec.GetContext(ctx, &updated, query,
		update.targetStatus, update.reviewedBy, update.approvedBy, update.rejectionReason, report.ID)
	if err != nil {
		return nil, fmt.Errorf("updating status of regulatory report %s: %w", report.ReportNumber, err)
	}

	return &updated, nil
}

// SubmitForReview moves the draft into the review queue.
func (m *RegulatoryReportModel) SubmitForReview(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport) (*RegulatoryReport, error) {
	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{targetStatus: PendingReviewReportStatus})
}

// Review accepts or rejects the report. The reviewer must differ from the
// preparer.
func (m *RegulatoryReportModel) Review(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport, reviewedBy string, accept bool, rejectionReason *string) (*RegulatoryReport, error) {
	if reviewedBy == report.PreparedBy {
		return nil, fmt.Errorf("reviewer %s cannot review their own report", reviewedBy)
	}

	targetStatus := RejectedReportStatus
	if accept {
		targetStatus = PendingApprovalReportStatus
	}

	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{
		targetStatus:    targetStatus,
		reviewedBy:      &reviewedBy,
		rejectionReason: rejectionReason,
	})
}

// Approve signs off the report. The approver must differ from both the
// preparer and the reviewer.
func (m *RegulatoryReportModel) Approve(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport, approvedBy string) (*RegulatoryReport, error) {
	if approvedBy == report.PreparedBy {
		return nil, fmt.Errorf("approver %s cannot approve their own report", approvedBy)
	}
	if report.ReviewedBy != nil && approvedBy == *report.ReviewedBy {
		return nil, fmt.Errorf("approver %s cannot approve a report they reviewed", approvedBy)
	}

	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{
		targetStatus: ApprovedReportStatus,
		approvedBy:   &approvedBy,
	})
}

// Reject sends an approval-stage report back with a reason.
func (m *RegulatoryReportModel) Reject(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport, rejectionReason string) (*RegulatoryReport, error) {
	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{
		targetStatus:    RejectedReportStatus,
		rejectionReason: &rejectionReason,
	})
}

// ReturnToDraft lets the preparer rework a rejected report.
func (m *RegulatoryReportModel) ReturnToDraft(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport) (*RegulatoryReport, error) {
	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{targetStatus: DraftReportStatus})
}

// File marks the approved report as submitted to the authority.
func (m *RegulatoryReportModel) File(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport) (*RegulatoryReport, error) {
	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{targetStatus: FiledReportStatus})
}

// Acknowledge records the authority's receipt.
func (m *RegulatoryReportModel) Acknowledge(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport) (*RegulatoryReport, error) {
	return m.updateStatus(ctx, sqlExec, report, regulatoryReportUpdate{targetStatus: AcknowledgedReportStatus})
}

func (m *RegulatoryReportModel) UpdateNarrative(ctx context.Context, sqlExec db.SQLExecuter, report *RegulatoryReport, narrative string) (*RegulatoryReport, error) {
	if report.Status != DraftReportStatus {
		return nil, fmt.Errorf("narrative of report %s can only change while in draft", report.ReportNumber)
	}

	query := `
		UPDATE regulatory_reports
		SET narrative = $1, updated_at = now()
		WHERE id = $2
		RETURNING ` + regulatoryReportColumns

	var updated RegulatoryReport
	err := sqlExec.GetContext(ctx, &updated, query, narrative, report.ID)
	if err != nil {
		return nil, fmt.Errorf("updating narrative of regulatory report %s: %w", report.ReportNumber, err)
	}

	return &updated, nil
}
