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

type Customer struct {
	ID                   string         `json:"id" db:"id"`
	CustomerNumber       string         `json:"customer_number" db:"customer_number"`
	FirstName            string         `json:"first_name" db:"first_name"`
	LastName             string         `json:"last_name" db:"last_name"`
	Email                string         `json:"email" db:"email"`
	NationalID           *string        `json:"national_id,omitempty" db:"national_id"`
	Country              *string        `json:"country,omitempty" db:"country"`
	IsPEP                bool           `json:"is_pep" db:"is_pep"`
	HighRiskJurisdiction bool           `json:"high_risk_jurisdiction" db:"high_risk_jurisdiction"`
	HighRiskBusiness     bool           `json:"high_risk_business" db:"high_risk_business"`
	Status               CustomerStatus `json:"status" db:"status"`
	Version              int64          `json:"version" db:"version"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type CustomerDocumentStatus string

const (
	UploadedDocumentStatus CustomerDocumentStatus = "UPLOADED"
	VerifiedDocumentStatus CustomerDocumentStatus = "VERIFIED"
	RejectedDocumentStatus CustomerDocumentStatus = "REJECTED"
)

func (status CustomerDocumentStatus) TransitionTo(targetState CustomerDocumentStatus) error {
	transitions := []StateTransition{
		{From: State(UploadedDocumentStatus), To: State(VerifiedDocumentStatus)},
		{From: State(UploadedDocumentStatus), To: State(RejectedDocumentStatus)},
	}
	return NewStateMachine(State(status), transitions).TransitionTo(State(targetState))
}

type CustomerDocument struct {
	ID             string                 `json:"id" db:"id"`
	CustomerID     string                 `json:"customer_id" db:"customer_id"`
	DocumentType   string                 `json:"document_type" db:"document_type"`
	DocumentNumber string                 `json:"document_number" db:"document_number"`
	ExpiryDate     *time.Time             `json:"expiry_date,omitempty" db:"expiry_date"`
	Status         CustomerDocumentStatus `json:"status" db:"status"`
	UploadedAt     time.Time              `json:"uploaded_at" db:"uploaded_at"`
	ReviewedAt     *time.Time             `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// CustomerHistoryEntry is an append-only record of a status transition.
type CustomerHistoryEntry struct {
	ID         string         `json:"id" db:"id"`
	CustomerID string         `json:"customer_id" db:"customer_id"`
	FromStatus CustomerStatus `json:"from_status" db:"from_status"`
	ToStatus   CustomerStatus `json:"to_status" db:"to_status"`
	Actor      string         `json:"actor" db:"actor"`
	Reason     *string        `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

type CustomerInsert struct {
	CustomerNumber       string
	FirstName            string
	LastName             string
	Email                string
	NationalID           *string
	Country              *string
	IsPEP                bool
	HighRiskJurisdiction bool
	HighRiskBusiness     bool
}

type CustomerModel struct {
	dbConnectionPool db.DBConnectionPool
}

const customerColumns = `
	id, customer_number, first_name, last_name, email, national_id, country, is_pep,
	high_risk_jurisdiction, high_risk_business, status, version, created_at, updated_at
`

func (m *CustomerModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert CustomerInsert) (*Customer, error) {
	if insert.CustomerNumber == "" || insert.FirstName == "" || insert.LastName == "" || insert.Email == "" {
		return nil, fmt.Errorf("inserting customer: %w: customerNumber, firstName, lastName, email", ErrMissingInput)
	}

	query := `
		INSERT INTO customers (customer_number, first_name, last_name, email, national_id, country, is_pep, high_risk_jurisdiction, high_risk_business)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + customerColumns

	var customer Customer
	err := sqlExec.GetContext(ctx, &customer, query,
		insert.CustomerNumber, insert.FirstName, insert.LastName, insert.Email, insert.NationalID,
		insert.Country, insert.IsPEP, insert.HighRiskJurisdiction, insert.HighRiskBusiness)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting customer: %w", err)
	}

	return &customer, nil
}

func (m *CustomerModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var customer Customer
	err := sqlExec.GetContext(ctx, &customer, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting customer %s: %w", id, err)
	}

	return &customer, nil
}

func (m *CustomerModel) GetByCustomerNumber(ctx context.Context, sqlExec db.SQLExecuter, customerNumber string) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE customer_number = $1`

	var customer Customer
	err := sqlExec.GetContext(ctx, &customer, query, customerNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting customer %s: %w", customerNumber, err)
	}

	return &customer, nil
}

// UpdateStatus transitions the customer and appends the transition to the
// immutable history, in the caller's transaction.
func (m *CustomerModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, customer *Customer, targetStatus CustomerStatus, actor string, reason *string) (*Customer, error) {
	if err := customer.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating customer status transition: %w", err)
	}

	query := `
		UPDATE customers
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + customerColumns

	var updated Customer
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, customer.ID, customer.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of customer %s: %w", customer.CustomerNumber, err)
	}

	historyQuery := `
		INSERT INTO customer_history (customer_id, from_status, to_status, actor, reason)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = sqlExec.ExecContext(ctx, historyQuery, customer.ID, customer.Status, targetStatus, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("appending history for customer %s: %w", customer.CustomerNumber, err)
	}

	return &updated, nil
}

func (m *CustomerModel) GetHistory(ctx context.Context, sqlExec db.SQLExecuter, customerID string) ([]CustomerHistoryEntry, error) {
	query := `
		SELECT id, customer_id, from_status, to_status, actor, reason, created_at
		FROM customer_history
		WHERE customer_id = $1
		ORDER BY created_at`

	history := []CustomerHistoryEntry{}
	err := sqlExec.SelectContext(ctx, &history, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting history for customer %s: %w", customerID, err)
	}

	return history, nil
}

const customerDocumentColumns = `
	id, customer_id, document_type, document_number, expiry_date, status, uploaded_at, reviewed_at
`

// AddDocument records an uploaded KYC document. Expired documents are
// rejected immediately.
func (m *CustomerModel) AddDocument(ctx context.Context, sqlExec db.SQLExecuter, customerID, documentType, documentNumber string, expiryDate *time.Time, now time.Time) (*CustomerDocument, error) {
	status := UploadedDocumentStatus
	if expiryDate != nil && expiryDate.Before(now) {
		status = RejectedDocumentStatus
	}

	query := `
		INSERT INTO customer_documents (customer_id, document_type, document_number, expiry_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + customerDocumentColumns

	var doc CustomerDocument
	err := sqlExec.GetContext(ctx, &doc, query, customerID, documentType, documentNumber, expiryDate, status)
	if err != nil {
		return nil, fmt.Errorf("adding document for customer %s: %w", customerID, err)
	}

	return &doc, nil
}

func (m *CustomerModel) GetDocuments(ctx context.Context, sqlExec db.SQLExecuter, customerID string) ([]CustomerDocument, error) {
	query := `SELECT ` + customerDocumentColumns + ` FROM customer_documents WHERE customer_id = $1 ORDER BY uploaded_at`

	docs := []CustomerDocument{}
	err := sqlExec.SelectContext(ctx, &docs, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting documents for customer %s: %w", customerID, err)
	}

	return docs, nil
}

// ReviewDocument verifies or rejects an uploaded document.
func (m *CustomerModel) ReviewDocument(ctx context.Context, sqlExec db.SQLExecuter, doc *CustomerDocument, targetStatus CustomerDocumentStatus) (*CustomerDocument, error) {
	if err := doc.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating document status transition: %w", err)
	}

	query := `
		UPDATE customer_documents
		SET status = $1, reviewed_at = now()
		WHERE id = $2
		RETURNING ` + customerDocumentColumns

	var updated CustomerDocument
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("reviewing document %s: %w", doc.ID, err)
	}

	return &updated, nil
}
