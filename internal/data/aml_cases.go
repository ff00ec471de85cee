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

type AmlCasePriority string

const (
	LowAmlCasePriority      AmlCasePriority = "LOW"
	MediumAmlCasePriority   AmlCasePriority = "MEDIUM"
	HighAmlCasePriority     AmlCasePriority = "HIGH"
	CriticalAmlCasePriority AmlCasePriority = "CRITICAL"
)

func (p AmlCasePriority) Validate() error {
	switch p {
	case LowAmlCasePriority, MediumAmlCasePriority, HighAmlCasePriority, CriticalAmlCasePriority:
		return nil
	default:
		return fmt.Errorf("invalid aml case priority: %s", p)
	}
}

type AmlCase struct {
	ID                string          `json:"id" db:"id"`
	CaseNumber        string          `json:"case_number" db:"case_number"`
	CustomerID        string          `json:"customer_id" db:"customer_id"`
	Priority          AmlCasePriority `json:"priority" db:"priority"`
	Status            AmlCaseStatus   `json:"status" db:"status"`
	AssignedTo        *string         `json:"assigned_to,omitempty" db:"assigned_to"`
	Escalated         bool            `json:"escalated" db:"escalated"`
	EscalatedBy       *string         `json:"escalated_by,omitempty" db:"escalated_by"`
	Resolution        *string         `json:"resolution,omitempty" db:"resolution"`
	RequiresSarFiling bool            `json:"requires_sar_filing" db:"requires_sar_filing"`
	SarFiled          bool            `json:"sar_filed" db:"sar_filed"`
	SarReportID       *string         `json:"sar_report_id,omitempty" db:"sar_report_id"`
	SarFiledAt        *time.Time      `json:"sar_filed_at,omitempty" db:"sar_filed_at"`
	DueDate           time.Time       `json:"due_date" db:"due_date"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
	Version           int64           `json:"version" db:"version"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether the case has breached its SLA.
func (c *AmlCase) IsOverdue(now time.Time) bool {
	return now.After(c.DueDate) && c.Status != ClosedAmlCaseStatus
}

type AmlCaseNote struct {
	ID        string    `json:"id" db:"id"`
	CaseID    string    `json:"case_id" db:"case_id"`
	Author    string    `json:"author" db:"author"`
	Note      string    `json:"note" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AmlCaseInsert struct {
	CaseNumber        string
	CustomerID        string
	Priority          AmlCasePriority
	RequiresSarFiling bool
	DueDate           time.Time
}

type AmlCaseModel struct {
	dbConnectionPool db.DBConnectionPool
}

const amlCaseColumns = `
	id, case_number, customer_id, priority, status, assigned_to, escalated, escalated_by, resolution,
	requires_sar_filing, sar_filed, sar_report_id, sar_filed_at, due_date, closed_at, version, created_at, updated_at
`

func (m *AmlCaseModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert AmlCaseInsert) (*AmlCase, error) {
	if err := insert.Priority.Validate(); err != nil {
		return nil, fmt.Errorf("validating aml case insert: %w", err)
	}

	query := `
		INSERT INTO aml_cases (case_number, customer_id, priority, requires_sar_filing, due_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + amlCaseColumns

	var amlCase AmlCase
	err := sqlExec.GetContext(ctx, &amlCase, query,
		insert.CaseNumber, insert.CustomerID, insert.Priority, insert.RequiresSarFiling, insert.DueDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting aml case: %w", err)
	}

	return &amlCase, nil
}

func (m *AmlCaseModel) GetByCaseNumber(ctx context.Context, sqlExec db.SQLExecuter, caseNumber string) (*AmlCase, error) {
	query := `SELECT ` + amlCaseColumns + ` FROM aml_cases WHERE case_number = $1`

	var amlCase AmlCase
	err := sqlExec.GetContext(ctx, &amlCase, query, caseNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting aml case %s: %w", caseNumber, err)
	}

	return &amlCase, nil
}

// GetOverdue returns non-closed cases whose due date has passed.
func (m *AmlCaseModel) GetOverdue(ctx context.Context, sqlExec db.SQLExecuter, now time.Time) ([]AmlCase, error) {
	query := `
		SELECT ` + amlCaseColumns + `
		FROM aml_cases
		WHERE due_date < $1 AND status != $2
		ORDER BY due_date`

	cases := []AmlCase{}
	err := sqlExec.SelectContext(ctx, &cases, query, now, ClosedAmlCaseStatus)
	if err != nil {
		return nil, fmt.Errorf("getting overdue aml cases: %w", err)
	}

	return cases, nil
}

func (m *AmlCaseModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, amlCase *AmlCase, targetStatus AmlCaseStatus) (*AmlCase, error) {
	if err := amlCase.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating aml case status transition: %w", err)
	}

	query := `
		UPDATE aml_cases
		SET status = $1,
		    closed_at = CASE WHEN $1 = 'REOPENED' THEN NULL ELSE closed_at END,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + amlCaseColumns

	var updated AmlCase
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, amlCase.ID, amlCase.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of aml case %s: %w", amlCase.CaseNumber, err)
	}

	return &updated, nil
}

// Close records the resolution and closes the case. Closing without a
// resolution is rejected.
func (m *AmlCaseModel) Close(ctx context.Context, sqlExec db.SQLExecuter, amlCase *AmlCase, resolution string) (*AmlCase, error) {
	if resolution == "" {
		return nil, fmt.Errorf("closing case %s: %w: resolution", amlCase.CaseNumber, ErrMissingInput)
	}
	if err := amlCase.Status.TransitionTo(ClosedAmlCaseStatus); err != nil {
		return nil, fmt.Errorf("validating aml case closure: %w", err)
	}

	query := `
		UPDATE aml_cases
		SET status = $1, resolution = $2, closed_at = now(), version = version + 1, updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING ` + amlCaseColumns

	var updated AmlCase
	err := sqlExec.GetContext(ctx, &updated, query, ClosedAmlCaseStatus, resolution, amlCase.ID, amlCase.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("closing aml case %s: %w", amlCase.CaseNumber, err)
	}

	return &updated, nil
}

// Escalate marks the case escalated and records the actor.
func (m *AmlCaseModel) Escalate(ctx context.Context, sqlExec db.SQLExecuter, amlCase *AmlCase, escalatedBy string) (*AmlCase, error) {
	if err := amlCase.Status.TransitionTo(EscalatedAmlCaseStatus); err != nil {
		return nil, fmt.Errorf("validating aml case escalation: %w", err)
	}

	query := `
		UPDATE aml_cases
		SET status = $1, escalated = TRUE, escalated_by = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING ` + amlCaseColumns

	var updated AmlCase
	err := sqlExec.GetContext(ctx, &updated, query, EscalatedAmlCaseStatus, escalatedBy, amlCase.ID, amlCase.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("escalating aml case %s: %w", amlCase.CaseNumber, err)
	}

	return &updated, nil
}

func (m *AmlCaseModel) Assign(ctx context.Context, sqlExec db.SQLExecuter, amlCase *AmlCase, assignee string) (*AmlCase, error) {
	query := `
		UPDATE aml_cases
		SET assigned_to = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + amlCaseColumns

	var updated AmlCase
	err := sqlExec.GetContext(ctx, &updated, query, assignee, amlCase.ID, amlCase.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("assigning aml case %s: %w", amlCase.CaseNumber, err)
	}

	return &updated, nil
}

// RecordSarFiling links the filed report to the case.
func (m *AmlCaseModel) RecordSarFiling(ctx context.Context, sqlExec db.SQLExecuter, caseID, sarReportID string, filedAt time.Time) error {
	query := `
		UPDATE aml_cases
		SET sar_filed = TRUE, sar_report_id = $1, sar_filed_at = $2, version = version + 1, updated_at = now()
		WHERE id = $3`

	result, err := sqlExec.ExecContext(ctx, query, sarReportID, filedAt, caseID)
	if err != nil {
		return fmt.Errorf("recording sar filing on aml case %s: %w", caseID, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if numRowsAffected != 1 {
		return ErrRecordNotFound
	}

	return nil
}

// CountSarFiledByCustomer returns how many of the customer's cases have had a
// SAR filed. Used by risk profile scoring.
func (m *AmlCaseModel) CountSarFiledByCustomer(ctx context.Context, sqlExec db.SQLExecuter, customerID string) (int, error) {
	query := `SELECT COUNT(*) FROM aml_cases WHERE customer_id = $1 AND sar_filed`

	var count int
	err := sqlExec.GetContext(ctx, &count, query, customerID)
	if err != nil {
		return 0, fmt.Errorf("counting sar filings for customer %s: %w", customerID, err)
	}

	return count, nil
}

func (m *AmlCaseModel) AddNote(ctx context.Context, sqlExec db.SQLExecuter, caseID, author, note string) (*AmlCaseNote, error) {
	if note == "" {
		return nil, fmt.Errorf("adding case note: %w: note", ErrMissingInput)
	}

	query := `
		INSERT INTO aml_case_notes (case_id, author, note)
		VALUES ($1, $2, $3)
		RETURNING id, case_id, author, note, created_at`

	var caseNote AmlCaseNote
	err := sqlExec.GetContext(ctx, &caseNote, query, caseID, author, note)
	if err != nil {
		return nil, fmt.Errorf("adding note to aml case %s: %w", caseID, err)
	}

	return &caseNote, nil
}

func (m *AmlCaseModel) GetNotes(ctx context.Context, sqlExec db.SQLExecuter, caseID string) ([]AmlCaseNote, error) {
	query := `SELECT id, case_id, author, note, created_at FROM aml_case_notes WHERE case_id = $1 ORDER BY created_at`

	notes := []AmlCaseNote{}
	err := sqlExec.SelectContext(ctx, &notes, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("getting notes for aml case %s: %w", caseID, err)
	}

	return notes, nil
}
