package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
)

type AmlRuleType string

const (
	VelocityRuleType    AmlRuleType = "VELOCITY"     // too many transactions inside a window
	AmountRuleType      AmlRuleType = "AMOUNT"       // single transaction above threshold
	DailyLimitRuleType  AmlRuleType = "DAILY_LIMIT"  // per-day total above threshold
	TimeBasedRuleType   AmlRuleType = "TIME_BASED"   // activity outside business hours
	StructuringRuleType AmlRuleType = "STRUCTURING"  // repeated amounts just under the reporting threshold
	RoundAmountRuleType AmlRuleType = "ROUND_AMOUNT" // suspiciously round amounts
)

func (t AmlRuleType) Validate() error {
	switch t {
	case VelocityRuleType, AmountRuleType, DailyLimitRuleType, TimeBasedRuleType, StructuringRuleType, RoundAmountRuleType:
		return nil
	default:
		return fmt.Errorf("invalid aml rule type: %s", t)
	}
}

type AmlRule struct {
	ID              string              `json:"id" db:"id"`
	RuleName        string              `json:"rule_name" db:"rule_name"`
	RuleType        AmlRuleType         `json:"rule_type" db:"rule_type"`
	ThresholdAmount decimal.NullDecimal `json:"threshold_amount,omitempty" db:"threshold_amount"`
	ThresholdCount  *int                `json:"threshold_count,omitempty" db:"threshold_count"`
	WindowMinutes   *int                `json:"window_minutes,omitempty" db:"window_minutes"`
	RiskPoints      int                 `json:"risk_points" db:"risk_points"`
	Enabled         bool                `json:"enabled" db:"enabled"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

type AmlRuleInsert struct {
	RuleName        string
	RuleType        AmlRuleType
	ThresholdAmount decimal.NullDecimal
	ThresholdCount  *int
	WindowMinutes   *int
	RiskPoints      int
}

type AmlRuleModel struct {
	dbConnectionPool db.DBConnectionPool
}

const amlRuleColumns = `
	id, rule_name, rule_type, threshold_amount, threshold_count, window_minutes, risk_points, enabled, created_at, updated_at
`

func (m *AmlRuleModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert AmlRuleInsert) (*AmlRule, error) {
	if err := insert.RuleType.Validate(); err != nil {
		return nil, fmt.Errorf("validating aml rule insert: %w", err)
	}

	query := `
		INSERT INTO aml_rules (rule_name, rule_type, threshold_amount, threshold_count, window_minutes, risk_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + amlRuleColumns

	var rule AmlRule
	err := sqlExec.GetContext(ctx, &rule, query,
		insert.RuleName, insert.RuleType, insert.ThresholdAmount, insert.ThresholdCount, insert.WindowMinutes, insert.RiskPoints)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting aml rule: %w", err)
	}

	return &rule, nil
}

func (m *AmlRuleModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*AmlRule, error) {
	query := `SELECT ` + amlRuleColumns + ` FROM aml_rules WHERE id = $1`

	var rule AmlRule
	err := sqlExec.GetContext(ctx, &rule, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting aml rule %s: %w", id, err)
	}

	return &rule, nil
}

func (m *AmlRuleModel) GetEnabled(ctx context.Context, sqlExec db.SQLExecuter) ([]AmlRule, error) {
	query := `SELECT ` + amlRuleColumns + ` FROM aml_rules WHERE enabled ORDER BY rule_name`

	rules := []AmlRule{}
	err := sqlExec.SelectContext(ctx, &rules, query)
	if err != nil {
		return nil, fmt.Errorf("getting enabled aml rules: %w", err)
	}

	return rules, nil
}

func (m *AmlRuleModel) SetEnabled(ctx context.Context, sqlExec db.SQLExecuter, id string, enabled bool) error {
	query := `UPDATE aml_rules SET enabled = $1, updated_at = now() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, enabled, id)
	if err != nil {
		return fmt.Errorf("toggling aml rule %s: %w", id, err)
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
