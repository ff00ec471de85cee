package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrMandateNotCollectable = errors.New("mandate does not authorize this collection")
	ErrFutureSignatureDate   = errors.New("mandate signature date cannot be in the future")
)

// MandateExpiryAge is how long an active mandate survives without a
// collection before the expiry sweep cancels it: 36 months under the SEPA
// rulebook.
const MandateExpiryAge = 36 * 30 * 24 * time.Hour

// SepaMandateService manages direct debit mandates: creation, activation,
// suspension and the per-collection bookkeeping.
type SepaMandateService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	clock            utils.Clock
}

type SepaMandateServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Clock            utils.Clock
}

func (opts SepaMandateServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewSepaMandateService(opts SepaMandateServiceOptions) (*SepaMandateService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating sepa mandate service options: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &SepaMandateService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		clock:            clock,
	}, nil
}

type MandateRequest struct {
	UMR                 string               `json:"umr"`
	DebtorIBAN          string               `json:"debtor_iban"`
	CreditorIBAN        string               `json:"creditor_iban"`
	CreditorID          string               `json:"creditor_id"`
	MandateType         data.SepaMandateType `json:"mandate_type"`
	SignatureDate       time.Time            `json:"signature_date"`
	FinalCollectionDate *time.Time           `json:"final_collection_date,omitempty"`
	MaxAmount           decimal.NullDecimal  `json:"max_amount"`
}

// CreateMandate registers a new mandate in PENDING. Activation is a separate,
// explicit step.
func (s *SepaMandateService) CreateMandate(ctx context.Context, request MandateRequest) (*data.SepaMandate, error) {
	if err := utils.ValidateIBAN(request.DebtorIBAN); err != nil {
		return nil, fmt.Errorf("debtor IBAN: %w", err)
	}
	if err := utils.ValidateIBAN(request.CreditorIBAN); err != nil {
		return nil, fmt.Errorf("creditor IBAN: %w", err)
	}
	if request.UMR == "" {
		return nil, fmt.Errorf("%w: unique mandate reference is required", data.ErrMissingInput)
	}

	mandate, err := s.models.SepaMandates.Insert(ctx, s.dbConnectionPool, data.SepaMandateInsert{
		UMR:                 request.UMR,
		DebtorIBAN:          request.DebtorIBAN,
		CreditorIBAN:        request.CreditorIBAN,
		CreditorID:          request.CreditorID,
		MandateType:         request.MandateType,
		SignatureDate:       request.SignatureDate,
		FinalCollectionDate: request.FinalCollectionDate,
		MaxAmount:           request.MaxAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mandate %s: %w", request.UMR, err)
	}

	logger.Ctx(ctx).Infof("created %s mandate %s", mandate.MandateType, mandate.UMR)
	return mandate, nil
}

// ActivateMandate moves a PENDING mandate to ACTIVE. The signature date must
// not lie in the future.
func (s *SepaMandateService) ActivateMandate(ctx context.Context, umr string) (*data.SepaMandate, error) {
	mandate, err := s.models.SepaMandates.GetByUMR(ctx, s.dbConnectionPool, umr)
	if err != nil {
		return nil, fmt.Errorf("getting mandate %s: %w", umr, err)
	}

	now := s.clock.Now()
	if mandate.SignatureDate.After(now) {
		return nil, fmt.Errorf("mandate %s signed at %s: %w", umr, mandate.SignatureDate.Format(time.DateOnly), ErrFutureSignatureDate)
	}

	updated, err := s.models.SepaMandates.UpdateStatus(ctx, s.dbConnectionPool, mandate, data.ActiveMandateStatus, utils.TimePtr(now))
	if err != nil {
		return nil, fmt.Errorf("activating mandate %s: %w", umr, err)
	}
	return updated, nil
}

// SuspendMandate temporarily blocks collections.
func (s *SepaMandateService) SuspendMandate(ctx context.Context, umr string) (*data.SepaMandate, error) {
	return s.transition(ctx, umr, data.SuspendedMandateStatus)
}

// ResumeMandate lifts a suspension.
func (s *SepaMandateService) ResumeMandate(ctx context.Context, umr string) (*data.SepaMandate, error) {
	return s.transition(ctx, umr, data.ActiveMandateStatus)
}

// CancelMandate revokes the mandate permanently.
func (s *SepaMandateService) CancelMandate(ctx context.Context, umr string) (*data.SepaMandate, error) {
	return s.transition(ctx, umr, data.CancelledMandateStatus)
}

func (s *SepaMandateService) transition(ctx context.Context, umr string, target data.SepaMandateStatus) (*data.SepaMandate, error) {
	mandate, err := s.models.SepaMandates.GetByUMR(ctx, s.dbConnectionPool, umr)
	if err != nil {
		return nil, fmt.Errorf("getting mandate %s: %w", umr, err)
	}

	updated, err := s.models.SepaMandates.UpdateStatus(ctx, s.dbConnectionPool, mandate, target, nil)
	if err != nil {
		return nil, fmt.Errorf("moving mandate %s to %s: %w", umr, target, err)
	}
	return updated, nil
}

// RecordCollection books a collection attempt against the mandate. Only
// active mandates within their amount limit authorize collections; the first
// successful one flips the sequence from FRST to RCUR.
func (s *SepaMandateService) RecordCollection(ctx context.Context, umr string, amount decimal.Decimal, success bool) (*data.SepaMandate, error) {
	mandate, err := s.models.SepaMandates.GetByUMR(ctx, s.dbConnectionPool, umr)
	if err != nil {
		return nil, fmt.Errorf("getting mandate %s: %w", umr, err)
	}

	now := s.clock.Now()
	if err = mandate.CanCollect(amount, now); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMandateNotCollectable, err)
	}

	updated, err := s.models.SepaMandates.RecordCollection(ctx, s.dbConnectionPool, mandate, amount, success, now)
	if err != nil {
		return nil, fmt.Errorf("recording collection on mandate %s: %w", umr, err)
	}
	return updated, nil
}

func (s *SepaMandateService) GetMandate(ctx context.Context, umr string) (*data.SepaMandate, error) {
	return s.models.SepaMandates.GetByUMR(ctx, s.dbConnectionPool, umr)
}

// ExpireStaleMandates moves active mandates without a collection in the last
// 36 months to EXPIRED. Returns how many were expired. Run by the scheduler.
func (s *SepaMandateService) ExpireStaleMandates(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-MandateExpiryAge)
	stale, err := s.models.SepaMandates.GetStaleActive(ctx, s.dbConnectionPool, cutoff)
	if err != nil {
		return 0, fmt.Errorf("getting stale mandates: %w", err)
	}

	expired := 0
	for i := range stale {
		mandate := stale[i]
		if _, err = s.models.SepaMandates.UpdateStatus(ctx, s.dbConnectionPool, &mandate, data.ExpiredMandateStatus, nil); err != nil {
			logger.Ctx(ctx).Errorf("expiring mandate %s: %v", mandate.UMR, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		logger.Ctx(ctx).Infof("expired %d stale mandates", expired)
	}
	return expired, nil
}
