package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// DefaultFlagThreshold is the minimum risk score at which a monitored
// transaction is flagged and an alert raised.
const DefaultFlagThreshold = 30

// amlNightWindowEndHour closes the out-of-hours window checked by TIME_BASED
// rules.
const amlNightWindowEndHour = 6

// rulePriority breaks ties when several rules trigger on the same
// transaction: the alert type comes from the highest-priority rule.
var rulePriority = map[data.AmlRuleType]int{
	data.StructuringRuleType: 6,
	data.VelocityRuleType:    5,
	data.DailyLimitRuleType:  4,
	data.AmountRuleType:      3,
	data.TimeBasedRuleType:   2,
	data.RoundAmountRuleType: 1,
}

// ruleDescription is the analyst-facing phrasing of each rule type, recorded
// as the alert reason alongside the rule that fired.
var ruleDescription = map[data.AmlRuleType]string{
	data.StructuringRuleType: "Potential structuring detected",
	data.VelocityRuleType:    "High transaction velocity",
	data.DailyLimitRuleType:  "Daily amount limit exceeded",
	data.AmountRuleType:      "Large single amount",
	data.TimeBasedRuleType:   "Large amount outside business hours",
	data.RoundAmountRuleType: "Round amount pattern",
}

// DetectionResult is the outcome of evaluating the rule set against one
// transaction.
type DetectionResult struct {
	Transaction    *data.MonitoredTransaction
	RiskScore      int
	TriggeredRules []data.AmlRule
	Alert          *data.AmlAlert
}

type AmlDetectionService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	monitorService   monitor.MonitorServiceInterface
	flagThreshold    int
	clock            utils.Clock
}

type AmlDetectionServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	MonitorService   monitor.MonitorServiceInterface
	FlagThreshold    int
	Clock            utils.Clock
}

func (opts AmlDetectionServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.FlagThreshold < 0 || opts.FlagThreshold > 100 {
		return fmt.Errorf("flag threshold %d out of range", opts.FlagThreshold)
	}
	return nil
}

func NewAmlDetectionService(opts AmlDetectionServiceOptions) (*AmlDetectionService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating aml detection service options: %w", err)
	}

	flagThreshold := opts.FlagThreshold
	if flagThreshold == 0 {
		flagThreshold = DefaultFlagThreshold
	}
	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &AmlDetectionService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		monitorService:   opts.MonitorService,
		flagThreshold:    flagThreshold,
		clock:            clock,
	}, nil
}

// MonitorTransaction records the transaction and evaluates every enabled rule
// against it. A cumulative risk score at or above the flag threshold flags the
// transaction and raises an alert typed after the highest-priority triggered
// rule.
func (s *AmlDetectionService) MonitorTransaction(ctx context.Context, insert data.MonitoredTransactionInsert) (*DetectionResult, error) {
	if insert.TransactionDate.IsZero() {
		insert.TransactionDate = s.clock.Now()
	}

	transaction, err := s.models.MonitoredTransactions.Insert(ctx, s.dbConnectionPool, insert)
	if err != nil {
		return nil, fmt.Errorf("recording monitored transaction: %w", err)
	}

	rules, err := s.models.AmlRules.GetEnabled(ctx, s.dbConnectionPool)
	if err != nil {
		return nil, fmt.Errorf("loading enabled aml rules: %w", err)
	}

	result := &DetectionResult{Transaction: transaction}
	for _, rule := range rules {
		started := time.Now()
		triggered, evalErr := s.evaluateRule(ctx, rule, transaction)
		s.recordRuleDuration(ctx, rule, time.Since(started))
		if evalErr != nil {
			return nil, fmt.Errorf("evaluating rule %s: %w", rule.RuleName, evalErr)
		}
		if triggered {
			result.TriggeredRules = append(result.TriggeredRules, rule)
			result.RiskScore += rule.RiskPoints
		}
	}
	if result.RiskScore > 100 {
		result.RiskScore = 100
	}

	if result.RiskScore < s.flagThreshold {
		return result, nil
	}

	result.Alert, err = s.raiseAlert(ctx, transaction, result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *AmlDetectionService) evaluateRule(ctx context.Context, rule data.AmlRule, transaction *data.MonitoredTransaction) (bool, error) {
	switch rule.RuleType {
	case data.VelocityRuleType:
		if rule.ThresholdCount == nil || rule.WindowMinutes == nil {
			return false, nil
		}
		since := transaction.TransactionDate.Add(-time.Duration(*rule.WindowMinutes) * time.Minute)
		recent, err := s.models.MonitoredTransactions.GetRecentForAccount(ctx, s.dbConnectionPool, transaction.AccountNumber, since)
		if err != nil {
			return false, err
		}
		return len(recent) >= *rule.ThresholdCount, nil

	case data.AmountRuleType:
		return rule.ThresholdAmount.Valid && transaction.Amount.GreaterThan(rule.ThresholdAmount.Decimal), nil

	case data.DailyLimitRuleType:
		if !rule.ThresholdAmount.Valid {
			return false, nil
		}
		// the day total includes the transaction under evaluation and only
		// counts amounts in the same currency
		midnight := transaction.TransactionDate.Truncate(24 * time.Hour)
		total, err := s.models.MonitoredTransactions.SumForAccountSince(ctx, s.dbConnectionPool, transaction.AccountNumber, transaction.Currency, midnight)
		if err != nil {
			return false, err
		}
		return total.GreaterThan(rule.ThresholdAmount.Decimal), nil

	case data.TimeBasedRuleType:
		if !rule.ThresholdAmount.Valid {
			return false, nil
		}
		outsideHours := transaction.TransactionDate.Hour() < amlNightWindowEndHour
		return outsideHours && transaction.Amount.GreaterThan(rule.ThresholdAmount.Decimal), nil

	case data.StructuringRuleType:
		if !rule.ThresholdAmount.Valid {
			return false, nil
		}
		floor := rule.ThresholdAmount.Decimal.Mul(decimal.RequireFromString("0.90"))
		return transaction.Amount.GreaterThanOrEqual(floor) && transaction.Amount.LessThan(rule.ThresholdAmount.Decimal), nil

	case data.RoundAmountRuleType:
		thousand := decimal.NewFromInt(1000)
		return transaction.Amount.Mod(thousand).IsZero() && transaction.Amount.GreaterThanOrEqual(thousand), nil

	default:
		return false, fmt.Errorf("unknown rule type %s", rule.RuleType)
	}
}

func (s *AmlDetectionService) raiseAlert(ctx context.Context, transaction *data.MonitoredTransaction, result *DetectionResult) (*data.AmlAlert, error) {
	top := result.TriggeredRules[0]
	reasons := make([]string, 0, len(result.TriggeredRules))
	for _, rule := range result.TriggeredRules {
		if rulePriority[rule.RuleType] > rulePriority[top.RuleType] {
			top = rule
		}
		description, ok := ruleDescription[rule.RuleType]
		if !ok {
			description = string(rule.RuleType)
		}
		reasons = append(reasons, fmt.Sprintf("%s (%s, +%d)", description, rule.RuleName, rule.RiskPoints))
	}

	alert, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.AmlAlert, error) {
		if err := s.models.MonitoredTransactions.MarkFlagged(ctx, dbTx, transaction.ID, result.RiskScore); err != nil {
			return nil, fmt.Errorf("flagging transaction %s: %w", transaction.ID, err)
		}

		alert, err := s.models.AmlAlerts.Insert(ctx, dbTx, data.AmlAlertInsert{
			AccountNumber: transaction.AccountNumber,
			CustomerID:    transaction.CustomerID,
			AlertType:     string(top.RuleType),
			RiskScore:     result.RiskScore,
			Reasons:       reasons,
		})
		if err != nil {
			return nil, fmt.Errorf("raising aml alert: %w", err)
		}

		if _, err = s.models.Outbox.Insert(ctx, dbTx, events.AmlEventsTopic, transaction.AccountNumber, events.AmlAlertCreatedType, alert); err != nil {
			return nil, fmt.Errorf("writing alert created event: %w", err)
		}

		return alert, nil
	})
	if err != nil {
		return nil, err
	}

	if s.monitorService != nil {
		labels := monitor.AmlAlertLabels{AlertType: alert.AlertType, RiskLevel: string(alert.RiskLevel)}
		if metricErr := s.monitorService.MonitorCounters(monitor.AmlAlertsCounterTag, labels.ToMap()); metricErr != nil {
			logger.Ctx(ctx).Errorf("recording aml alert metric: %v", metricErr)
		}
	}

	logger.Ctx(ctx).Warnf("flagged transaction %s on account %s with score %d (%s)",
		transaction.ReferenceID, transaction.AccountNumber, result.RiskScore, alert.RiskLevel)
	return alert, nil
}

func (s *AmlDetectionService) recordRuleDuration(ctx context.Context, rule data.AmlRule, elapsed time.Duration) {
	if s.monitorService == nil {
		return
	}
	labels := map[string]string{"rule_type": string(rule.RuleType)}
	if err := s.monitorService.MonitorDuration(elapsed, monitor.RuleEvaluationDurationTag, labels); err != nil {
		logger.Ctx(ctx).Errorf("recording rule evaluation duration: %v", err)
	}
}

// ConsumeAccountPosted adapts a ledger posting event into the monitoring
// pipeline.
func (s *AmlDetectionService) ConsumeAccountPosted(ctx context.Context, posted events.AccountPostedData) (*DetectionResult, error) {
	amount, err := decimal.NewFromString(posted.Amount)
	if err != nil {
		return nil, fmt.Errorf("parsing posted amount %q: %w", posted.Amount, err)
	}
	postedAt, err := time.Parse(time.RFC3339, posted.PostedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing posted timestamp %q: %w", posted.PostedAt, err)
	}

	var customerID *string
	if posted.CustomerID != "" {
		customerID = &posted.CustomerID
	}

	return s.MonitorTransaction(ctx, data.MonitoredTransactionInsert{
		AccountNumber:   posted.AccountNumber,
		CustomerID:      customerID,
		Amount:          amount,
		Currency:        posted.Currency,
		ReferenceID:     posted.ReferenceID,
		TransactionDate: postedAt,
	})
}

// ReviewAlert moves an open alert under review.
func (s *AmlDetectionService) ReviewAlert(ctx context.Context, alertID string) (*data.AmlAlert, error) {
	alert, err := s.models.AmlAlerts.Get(ctx, s.dbConnectionPool, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting aml alert %s: %w", alertID, err)
	}
	return s.models.AmlAlerts.UpdateStatus(ctx, s.dbConnectionPool, alert, data.UnderReviewAmlAlertStatus)
}

// ClearAlert closes a reviewed alert with no further action.
func (s *AmlDetectionService) ClearAlert(ctx context.Context, alertID string) (*data.AmlAlert, error) {
	alert, err := s.models.AmlAlerts.Get(ctx, s.dbConnectionPool, alertID)
	if err != nil {
		return nil, fmt.Errorf("getting aml alert %s: %w", alertID, err)
	}
	return s.models.AmlAlerts.UpdateStatus(ctx, s.dbConnectionPool, alert, data.ClearedAmlAlertStatus)
}
