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

type RiskLevel string

const (
	LowRiskLevel      RiskLevel = "LOW"
	MediumRiskLevel   RiskLevel = "MEDIUM"
	HighRiskLevel     RiskLevel = "HIGH"
	CriticalRiskLevel RiskLevel = "CRITICAL"
)

// RiskLevelFromScore maps a 0..100 risk score onto a level.
func RiskLevelFromScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return CriticalRiskLevel
	case score >= 60:
		return HighRiskLevel
	case score >= 30:
		return MediumRiskLevel
	default:
		return LowRiskLevel
	}
}

type AmlAlertStatus string

const (
	OpenAmlAlertStatus        AmlAlertStatus = "OPEN"
	UnderReviewAmlAlertStatus AmlAlertStatus = "UNDER_REVIEW"
	ClearedAmlAlertStatus     AmlAlertStatus = "CLEARED"
	EscalatedAmlAlertStatus   AmlAlertStatus = "ESCALATED"
)

func (status AmlAlertStatus) TransitionTo(targetState AmlAlertStatus) error {
	transitions := []StateTransition{
		{From: State(OpenAmlAlertStatus), To: State(UnderReviewAmlAlertStatus)},
		{From: State(UnderReviewAmlAlertStatus), To: State(ClearedAmlAlertStatus)},   // reviewed, no further action
		{From: State(UnderReviewAmlAlertStatus), To: State(EscalatedAmlAlertStatus)}, // attached to a case
		{From: State(OpenAmlAlertStatus), To: State(EscalatedAmlAlertStatus)},        // auto-escalation on critical risk
	}
	return NewStateMachine(State(status), transitions).TransitionTo(State(targetState))
}

type AmlAlert struct {
	ID            string         `json:"id" db:"id"`
	AccountNumber string         `json:"account_number" db:"account_number"`
	CustomerID    *string        `json:"customer_id,omitempty" db:"customer_id"`
	AlertType     string         `json:"alert_type" db:"alert_type"`
	RiskScore     int            `json:"risk_score" db:"risk_score"`
	RiskLevel     RiskLevel      `json:"risk_level" db:"risk_level"`
	Reasons       pq.StringArray `json:"reasons" db:"reasons"`
	Status        AmlAlertStatus `json:"status" db:"status"`
	CaseID        *string        `json:"case_id,omitempty" db:"case_id"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

type AmlAlertInsert struct {
	AccountNumber string
	CustomerID    *string
	AlertType     string
	RiskScore     int
	Reasons       []string
}

type AmlAlertModel struct {
	dbConnectionPool db.DBConnectionPool
}

const amlAlertColumns = `
	id, account_number, customer_id, alert_type, risk_score, risk_level, reasons, status, case_id, created_at, updated_at
`

func (m *AmlAlertModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert AmlAlertInsert) (*AmlAlert, error) {
	if insert.RiskScore < 0 || insert.RiskScore > 100 {
		return nil, fmt.Errorf("risk score %d out of range", insert.RiskScore)
	}

	query := `
		INSERT INTO aml_alerts (account_number, customer_id, alert_type, risk_score, risk_level, reasons)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + amlAlertColumns

	var alert AmlAlert
	err := sqlExec.GetContext(ctx, &alert, query,
		insert.AccountNumber, insert.CustomerID, insert.AlertType, insert.RiskScore,
		RiskLevelFromScore(insert.RiskScore), pq.Array(insert.Reasons))
	if err != nil {
		return nil, fmt.Errorf("inserting aml alert: %w", err)
	}

	return &alert, nil
}

func (m *AmlAlertModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*AmlAlert, error) {
	query := `SELECT ` + amlAlertColumns + ` FROM aml_alerts WHERE id = $1`

	var alert AmlAlert
	err := sqlExec.GetContext(ctx, &alert, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting aml alert %s: %w", id, err)
	}

	return &alert, nil
}

// List returns one page of alerts plus the total row count for the filter.
// Either filter may be empty; an empty status means all statuses.
func (m *AmlAlertModel) List(ctx context.Context, sqlExec db.SQLExecuter, status AmlAlertStatus, accountNumber string, page, pageLimit int) ([]AmlAlert, int, error) {
	const filter = `
		WHERE
			($1 = '' OR status = $1::text)
			AND ($2 = '' OR account_number = $2)
	`

	var totalAlerts int
	err := sqlExec.GetContext(ctx, &totalAlerts, `SELECT count(*) FROM aml_alerts`+filter, status, accountNumber)
	if err != nil {
		return nil, 0, fmt.Errorf("counting aml alerts: %w", err)
	}

	query := `SELECT ` + amlAlertColumns + ` FROM aml_alerts` + filter + ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	alerts := []AmlAlert{}
	err = sqlExec.SelectContext(ctx, &alerts, query, status, accountNumber, pageLimit, (page-1)*pageLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing aml alerts: %w", err)
	}

	return alerts, totalAlerts, nil
}

func (m *AmlAlertModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, alert *AmlAlert, targetStatus AmlAlertStatus) (*AmlAlert, error) {
	if err := alert.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating aml alert status transition: %w", err)
	}

	query := `
		UPDATE aml_alerts
		SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING ` + amlAlertColumns

	var updated AmlAlert
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, alert.ID)
	if err != nil {
		return nil, fmt.Errorf("updating status of aml alert %s: %w", alert.ID, err)
	}

	return &updated, nil
}

// AttachToCase links the alert to a case and marks it escalated.
func (m *AmlAlertModel) AttachToCase(ctx context.Context, sqlExec db.SQLExecuter, alert *AmlAlert, caseID string) (*AmlAlert, error) {
	if err := alert.Status.TransitionTo(EscalatedAmlAlertStatus); err != nil {
		return nil, fmt.Errorf("validating aml alert escalation: %w", err)
	}

	query := `
		UPDATE aml_alerts
		SET status = $1, case_id = $2, updated_at = now()
		WHERE id = $3
		RETURNING ` + amlAlertColumns

	var updated AmlAlert
	err := sqlExec.GetContext(ctx, &updated, query, EscalatedAmlAlertStatus, caseID, alert.ID)
	if err != nil {
		return nil, fmt.Errorf("attaching aml alert %s to case %s: %w", alert.ID, caseID, err)
	}

	return &updated, nil
}
