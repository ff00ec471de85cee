package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

// CustomerRiskProfile is the derived risk aggregate for a customer. The score
// is a weighted sum capped at 100.
type CustomerRiskProfile struct {
	CustomerID          string         `json:"customer_id"`
	RiskScore           int            `json:"risk_score"`
	RiskLevel           data.RiskLevel `json:"risk_level"`
	TotalTransactions   int            `json:"total_transactions"`
	FlaggedTransactions int            `json:"flagged_transactions"`
	PotentialMatches    int            `json:"potential_matches"`
	ConfirmedMatches    int            `json:"confirmed_matches"`
	SarFiledCount       int            `json:"sar_filed_count"`
	ComputedAt          time.Time      `json:"computed_at"`
}

type CustomerService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	clock            utils.Clock
}

type CustomerServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Clock            utils.Clock
}

func (opts CustomerServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewCustomerService(opts CustomerServiceOptions) (*CustomerService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating customer service options: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &CustomerService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		clock:            clock,
	}, nil
}

// RegisterCustomer creates a customer in PENDING_VERIFICATION.
func (s *CustomerService) RegisterCustomer(ctx context.Context, insert data.CustomerInsert) (*data.Customer, error) {
	if err := utils.ValidateEmail(insert.Email); err != nil {
		return nil, fmt.Errorf("validating customer email: %w", err)
	}
	if insert.CustomerNumber == "" {
		suffix, err := utils.RandomString(10, utils.NumberBytes)
		if err != nil {
			return nil, fmt.Errorf("generating customer number: %w", err)
		}
		insert.CustomerNumber = "CUST-" + suffix
	}

	customer, err := s.models.Customers.Insert(ctx, s.dbConnectionPool, insert)
	if err != nil {
		return nil, fmt.Errorf("registering customer: %w", err)
	}

	logger.Ctx(ctx).Infof("registered customer %s", customer.CustomerNumber)
	return customer, nil
}

// VerifyCustomer confirms the KYC documents. Verification requires at least
// one verified document on file.
func (s *CustomerService) VerifyCustomer(ctx context.Context, customerNumber, actor string) (*data.Customer, error) {
	customer, err := s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}

	documents, err := s.models.Customers.GetDocuments(ctx, s.dbConnectionPool, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("getting documents of customer %s: %w", customerNumber, err)
	}
	hasVerified := false
	for _, doc := range documents {
		if doc.Status == data.VerifiedDocumentStatus {
			hasVerified = true
			break
		}
	}
	if !hasVerified {
		return nil, fmt.Errorf("customer %s has no verified document on file", customerNumber)
	}

	return s.models.Customers.UpdateStatus(ctx, s.dbConnectionPool, customer, data.VerifiedCustomerStatus, actor, nil)
}

// ApproveCustomer completes due diligence.
func (s *CustomerService) ApproveCustomer(ctx context.Context, customerNumber, actor string) (*data.Customer, error) {
	return s.transition(ctx, customerNumber, data.ApprovedCustomerStatus, actor, nil)
}

func (s *CustomerService) SuspendCustomer(ctx context.Context, customerNumber, actor, reason string) (*data.Customer, error) {
	return s.transition(ctx, customerNumber, data.SuspendedCustomerStatus, actor, &reason)
}

func (s *CustomerService) ReinstateCustomer(ctx context.Context, customerNumber, actor string) (*data.Customer, error) {
	return s.transition(ctx, customerNumber, data.ApprovedCustomerStatus, actor, nil)
}

func (s *CustomerService) CloseCustomer(ctx context.Context, customerNumber, actor, reason string) (*data.Customer, error) {
	return s.transition(ctx, customerNumber, data.ClosedCustomerStatus, actor, &reason)
}

// UploadDocument records a KYC document; documents already past their expiry
// date come back REJECTED.
func (s *CustomerService) UploadDocument(ctx context.Context, customerNumber, documentType, documentNumber string, expiryDate *time.Time) (*data.CustomerDocument, error) {
	customer, err := s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}

	return s.models.Customers.AddDocument(ctx, s.dbConnectionPool, customer.ID, documentType, documentNumber, expiryDate, s.clock.Now())
}

func (s *CustomerService) ReviewDocument(ctx context.Context, documentID string, verified bool) (*data.CustomerDocument, error) {
	target := data.RejectedDocumentStatus
	if verified {
		target = data.VerifiedDocumentStatus
	}

	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return s.models.Customers.ReviewDocument(ctx, s.dbConnectionPool, doc, target)
}

func (s *CustomerService) findDocument(ctx context.Context, documentID string) (*data.CustomerDocument, error) {
	var doc data.CustomerDocument
	query := `
		SELECT id, customer_id, document_type, document_number, expiry_date, status, uploaded_at, reviewed_at
		FROM customer_documents WHERE id = $1`
	if err := s.dbConnectionPool.GetContext(ctx, &doc, query, documentID); err != nil {
		return nil, fmt.Errorf("getting document %s: %w", documentID, err)
	}
	return &doc, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, customerNumber string) (*data.Customer, error) {
	return s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
}

func (s *CustomerService) GetHistory(ctx context.Context, customerNumber string) ([]data.CustomerHistoryEntry, error) {
	customer, err := s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}
	return s.models.Customers.GetHistory(ctx, s.dbConnectionPool, customer.ID)
}

// ComputeRiskProfile derives the customer's risk score:
//
//	flagged/total ratio x 30
//	sanction matches: 20 (potential) or 50 (confirmed)
//	PEP x 15, high-risk jurisdiction x 10, high-risk business x 10
//	min(sarFiledCount x 5, 15)
//	blocked-account ratio x 10
//
// capped at 100.
func (s *CustomerService) ComputeRiskProfile(ctx context.Context, customerNumber string) (*CustomerRiskProfile, error) {
	customer, err := s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}

	total, flagged, err := s.models.MonitoredTransactions.CountForCustomer(ctx, s.dbConnectionPool, customer.ID)
	if err != nil {
		return nil, err
	}

	matches, err := s.models.Sanctions.GetMatchesByCustomer(ctx, s.dbConnectionPool, customer.ID)
	if err != nil {
		return nil, err
	}
	potentialMatches, confirmedMatches := 0, 0
	for _, match := range matches {
		switch match.Status {
		case data.ConfirmedSanctionMatchStatus:
			confirmedMatches++
		case data.PotentialSanctionMatchStatus:
			potentialMatches++
		}
	}

	sarFiledCount, err := s.models.AmlCases.CountSarFiledByCustomer(ctx, s.dbConnectionPool, customer.ID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.models.Accounts.GetByCustomerID(ctx, s.dbConnectionPool, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("getting accounts of customer %s: %w", customerNumber, err)
	}
	blockedAccounts := 0
	for _, account := range accounts {
		if account.Status == data.FrozenAccountStatus {
			blockedAccounts++
		}
	}

	score := 0.0
	if total > 0 {
		score += float64(flagged) / float64(total) * 30
	}
	switch {
	case confirmedMatches > 0:
		score += 50
	case potentialMatches > 0:
		score += 20
	}
	if customer.IsPEP {
		score += 15
	}
	if customer.HighRiskJurisdiction {
		score += 10
	}
	if customer.HighRiskBusiness {
		score += 10
	}
	sarPoints := sarFiledCount * 5
	if sarPoints > 15 {
		sarPoints = 15
	}
	score += float64(sarPoints)
	if len(accounts) > 0 {
		score += float64(blockedAccounts) / float64(len(accounts)) * 10
	}

	riskScore := int(score)
	if riskScore > 100 {
		riskScore = 100
	}

	return &CustomerRiskProfile{
		CustomerID:          customer.ID,
		RiskScore:           riskScore,
		RiskLevel:           data.RiskLevelFromScore(riskScore),
		TotalTransactions:   total,
		FlaggedTransactions: flagged,
		PotentialMatches:    potentialMatches,
		ConfirmedMatches:    confirmedMatches,
		SarFiledCount:       sarFiledCount,
		ComputedAt:          s.clock.Now(),
	}, nil
}

func (s *CustomerService) transition(ctx context.Context, customerNumber string, target data.CustomerStatus, actor string, reason *string) (*data.Customer, error) {
	customer, err := s.models.Customers.GetByCustomerNumber(ctx, s.dbConnectionPool, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}

	updated, err := s.models.Customers.UpdateStatus(ctx, s.dbConnectionPool, customer, target, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("moving customer %s to %s: %w", customerNumber, target, err)
	}

	return updated, nil
}
