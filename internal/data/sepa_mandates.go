package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
)

type SepaMandateType string

const (
	SddCoreMandateType SepaMandateType = "SDD_CORE"
	SddB2BMandateType  SepaMandateType = "SDD_B2B"
)

type SepaSequenceType string

const (
	FrstSequenceType SepaSequenceType = "FRST"
	RcurSequenceType SepaSequenceType = "RCUR"
	FnalSequenceType SepaSequenceType = "FNAL"
	OoffSequenceType SepaSequenceType = "OOFF"
)

type SepaMandateStatus string

const (
	PendingMandateStatus   SepaMandateStatus = "PENDING"
	ActiveMandateStatus    SepaMandateStatus = "ACTIVE"
	SuspendedMandateStatus SepaMandateStatus = "SUSPENDED"
	CancelledMandateStatus SepaMandateStatus = "CANCELLED"
	ExpiredMandateStatus   SepaMandateStatus = "EXPIRED"
)

func (status SepaMandateStatus) Validate() error {
	switch SepaMandateStatus(strings.ToUpper(string(status))) {
	case PendingMandateStatus, ActiveMandateStatus, SuspendedMandateStatus, CancelledMandateStatus, ExpiredMandateStatus:
		return nil
	default:
		return fmt.Errorf("invalid mandate status: %s", status)
	}
}

// TransitionTo transitions the mandate status to the target state
func (status SepaMandateStatus) TransitionTo(targetState SepaMandateStatus) error {
	return SepaMandateStateMachineWithInitialState(status).TransitionTo(State(targetState))
}

func SepaMandateStateMachineWithInitialState(initialState SepaMandateStatus) *StateMachine {
	transitions := []StateTransition{
		{From: State(PendingMandateStatus), To: State(ActiveMandateStatus)},    // debtor signature verified
		{From: State(PendingMandateStatus), To: State(CancelledMandateStatus)}, // abandoned before activation
		{From: State(ActiveMandateStatus), To: State(SuspendedMandateStatus)},  // temporarily blocked
		{From: State(SuspendedMandateStatus), To: State(ActiveMandateStatus)},  // suspension lifted
		{From: State(ActiveMandateStatus), To: State(CancelledMandateStatus)},  // debtor revoked
		{From: State(ActiveMandateStatus), To: State(ExpiredMandateStatus)},    // 36 months without collection
		{From: State(SuspendedMandateStatus), To: State(CancelledMandateStatus)},
	}

	return NewStateMachine(State(initialState), transitions)
}

type SepaMandate struct {
	ID                   string              `json:"id" db:"id"`
	UMR                  string              `json:"umr" db:"umr"`
	DebtorIBAN           string              `json:"debtor_iban" db:"debtor_iban"`
	CreditorIBAN         string              `json:"creditor_iban" db:"creditor_iban"`
	CreditorID           string              `json:"creditor_id" db:"creditor_id"`
	MandateType          SepaMandateType     `json:"mandate_type" db:"mandate_type"`
	SequenceType         SepaSequenceType    `json:"sequence_type" db:"sequence_type"`
	Status               SepaMandateStatus   `json:"status" db:"status"`
	SignatureDate        time.Time           `json:"signature_date" db:"signature_date"`
	ActivationDate       *time.Time          `json:"activation_date,omitempty" db:"activation_date"`
	LastCollectionDate   *time.Time          `json:"last_collection_date,omitempty" db:"last_collection_date"`
	FinalCollectionDate  *time.Time          `json:"final_collection_date,omitempty" db:"final_collection_date"`
	MaxAmount            decimal.NullDecimal `json:"max_amount,omitempty" db:"max_amount"`
	CollectionCount      int                 `json:"collection_count" db:"collection_count"`
	TotalAmountCollected decimal.Decimal     `json:"total_amount_collected" db:"total_amount_collected"`
	Version              int64               `json:"version" db:"version"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

// CanCollect reports whether a collection of amount on the given day is
// authorized by the mandate. Only ACTIVE mandates authorize collections,
// maxAmount is never exceeded, and the day must fall inside the collection
// window bounded by the activation and final collection dates.
func (sm *SepaMandate) CanCollect(amount decimal.Decimal, day time.Time) error {
	if sm.Status != ActiveMandateStatus {
		return fmt.Errorf("mandate %s is not active", sm.UMR)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("collection amount must be positive")
	}
	if sm.MaxAmount.Valid && amount.GreaterThan(sm.MaxAmount.Decimal) {
		return fmt.Errorf("collection amount %s exceeds mandate maximum %s", amount, sm.MaxAmount.Decimal)
	}
	if sm.ActivationDate != nil && day.Before(*sm.ActivationDate) {
		return fmt.Errorf("collection date precedes mandate activation")
	}
	if sm.FinalCollectionDate != nil && day.After(*sm.FinalCollectionDate) {
		return fmt.Errorf("collection date is past the mandate's final collection date")
	}
	return nil
}

type SepaMandateInsert struct {
	UMR                 string
	DebtorIBAN          string
	CreditorIBAN        string
	CreditorID          string
	MandateType         SepaMandateType
	SignatureDate       time.Time
	FinalCollectionDate *time.Time
	MaxAmount           decimal.NullDecimal
}

type SepaMandateModel struct {
	dbConnectionPool db.DBConnectionPool
}

const sepaMandateColumns = `
	id, umr, debtor_iban, creditor_iban, creditor_id, mandate_type, sequence_type, status,
	signature_date, activation_date, last_collection_date, final_collection_date, max_amount,
	collection_count, total_amount_collected, version, created_at, updated_at
`

func (m *SepaMandateModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert SepaMandateInsert) (*SepaMandate, error) {
	query := `
		INSERT INTO sepa_mandates (umr, debtor_iban, creditor_iban, creditor_id, mandate_type, signature_date, final_collection_date, max_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + sepaMandateColumns

	var mandate SepaMandate
	err := sqlExec.GetContext(ctx, &mandate, query,
		insert.UMR, insert.DebtorIBAN, insert.CreditorIBAN, insert.CreditorID,
		insert.MandateType, insert.SignatureDate, insert.FinalCollectionDate, insert.MaxAmount)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting sepa mandate: %w", err)
	}

	return &mandate, nil
}

func (m *SepaMandateModel) GetByUMR(ctx context.Context, sqlExec db.SQLExecuter, umr string) (*SepaMandate, error) {
	query := `SELECT ` + sepaMandateColumns + ` FROM sepa_mandates WHERE umr = $1`

	var mandate SepaMandate
	err := sqlExec.GetContext(ctx, &mandate, query, umr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting sepa mandate %s: %w", umr, err)
	}

	return &mandate, nil
}

func (m *SepaMandateModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, mandate *SepaMandate, targetStatus SepaMandateStatus, activationDate *time.Time) (*SepaMandate, error) {
	if err := mandate.Status.TransitionTo(targetStatus); err != nil {
		return nil, fmt.Errorf("validating mandate status transition: %w", err)
	}

	query := `
		UPDATE sepa_mandates
		SET status = $1, activation_date = COALESCE($2, activation_date), version = version + 1, updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING ` + sepaMandateColumns

	var updated SepaMandate
	err := sqlExec.GetContext(ctx, &updated, query, targetStatus, activationDate, mandate.ID, mandate.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("updating status of mandate %s: %w", mandate.UMR, err)
	}

	return &updated, nil
}

// GetStaleActive returns active mandates with no collection activity since
// the cutoff. The expiry sweep moves them to EXPIRED.
func (m *SepaMandateModel) GetStaleActive(ctx context.Context, sqlExec db.SQLExecuter, cutoff time.Time) ([]SepaMandate, error) {
	query := `
		SELECT ` + sepaMandateColumns + `
		FROM sepa_mandates
		WHERE status = $1
		  AND COALESCE(last_collection_date, activation_date, signature_date) < $2
		ORDER BY created_at`

	mandates := []SepaMandate{}
	err := sqlExec.SelectContext(ctx, &mandates, query, ActiveMandateStatus, cutoff)
	if err != nil {
		return nil, fmt.Errorf("getting stale active mandates: %w", err)
	}

	return mandates, nil
}

// RecordCollection bumps the collection counters and, on the first successful
// collection, moves the sequence from FRST to RCUR.
func (m *SepaMandateModel) RecordCollection(ctx context.Context, sqlExec db.SQLExecuter, mandate *SepaMandate, amount decimal.Decimal, success bool, collectedAt time.Time) (*SepaMandate, error) {
	nextSequence := mandate.SequenceType
	if success && mandate.SequenceType == FrstSequenceType {
		nextSequence = RcurSequenceType
	}

	var amountDelta decimal.Decimal
	countDelta := 0
	if success {
		amountDelta = amount
		countDelta = 1
	}

	query := `
		UPDATE sepa_mandates
		SET sequence_type = $1,
		    collection_count = collection_count + $2,
		    total_amount_collected = total_amount_collected + $3,
		    last_collection_date = CASE WHEN $2 > 0 THEN $4 ELSE last_collection_date END,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING ` + sepaMandateColumns

	var updated SepaMandate
	err := sqlExec.GetContext(ctx, &updated, query, nextSequence, countDelta, amountDelta, collectedAt, mandate.ID, mandate.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("recording collection on mandate %s: %w", mandate.UMR, err)
	}

	return &updated, nil
}
