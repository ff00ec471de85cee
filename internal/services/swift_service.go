package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/swift"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrComplianceBlocked   = errors.New("transfer blocked by compliance screening")
	ErrTransferNotPending  = errors.New("transfer has already been processed")
	ErrTransferNotAwaiting = errors.New("transfer is not awaiting a settlement result")
)

// ComplianceGate screens the named parties of an outbound wire. A nil error
// clears the transfer; ErrComplianceBlocked (possibly wrapped) blocks it.
type ComplianceGate interface {
	ScreenParties(ctx context.Context, names ...string) error
}

// ClearAllComplianceGate clears every party. Used where screening is handled
// out of band.
type ClearAllComplianceGate struct{}

func (ClearAllComplianceGate) ScreenParties(ctx context.Context, names ...string) error {
	return nil
}

// SwiftFeeSchedule prices an outbound wire: fee = fixed + amount * percentage,
// banker's-rounded to 2 decimal places.
type SwiftFeeSchedule struct {
	FixedFee      decimal.Decimal
	PercentageFee decimal.Decimal
}

func (s SwiftFeeSchedule) FeeFor(amount decimal.Decimal) decimal.Decimal {
	return s.FixedFee.Add(amount.Mul(s.PercentageFee)).RoundBank(2)
}

type SwiftService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	network          SettlementNetworkClient
	complianceGate   ComplianceGate
	feeSchedule      SwiftFeeSchedule
	monitorService   monitor.MonitorServiceInterface
	clock            utils.Clock
}

type SwiftServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Network          SettlementNetworkClient
	ComplianceGate   ComplianceGate
	FeeSchedule      SwiftFeeSchedule
	MonitorService   monitor.MonitorServiceInterface
	Clock            utils.Clock
}

func (opts SwiftServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.Network == nil {
		return fmt.Errorf("settlement network client is required")
	}
	if opts.FeeSchedule.FixedFee.IsNegative() || opts.FeeSchedule.PercentageFee.IsNegative() {
		return fmt.Errorf("fee schedule cannot be negative")
	}
	return nil
}

func NewSwiftService(opts SwiftServiceOptions) (*SwiftService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating swift service options: %w", err)
	}

	complianceGate := opts.ComplianceGate
	if complianceGate == nil {
		complianceGate = ClearAllComplianceGate{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &SwiftService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		network:          opts.Network,
		complianceGate:   complianceGate,
		feeSchedule:      opts.FeeSchedule,
		monitorService:   opts.MonitorService,
		clock:            clock,
	}, nil
}

type SwiftTransferRequest struct {
	SenderBIC          string
	ReceiverBIC        string
	OrderingCustomer   string
	Beneficiary        string
	BeneficiaryBankBIC string
	CorrespondentBIC   *string
	Amount             decimal.Decimal
	Currency           string
	ChargeType         data.SwiftChargeType
	RemittanceInfo     *string
	ValueDate          time.Time
}

func (r SwiftTransferRequest) validate() error {
	if _, err := swift.NormalizeBIC(r.SenderBIC); err != nil {
		return fmt.Errorf("sender BIC: %w", err)
	}
	if _, err := swift.NormalizeBIC(r.ReceiverBIC); err != nil {
		return fmt.Errorf("receiver BIC: %w", err)
	}
	if _, err := swift.NormalizeBIC(r.BeneficiaryBankBIC); err != nil {
		return fmt.Errorf("beneficiary bank BIC: %w", err)
	}
	if r.CorrespondentBIC != nil {
		if _, err := swift.NormalizeBIC(*r.CorrespondentBIC); err != nil {
			return fmt.Errorf("correspondent BIC: %w", err)
		}
	}
	if r.OrderingCustomer == "" || r.Beneficiary == "" {
		return fmt.Errorf("ordering customer and beneficiary are required: %w", data.ErrMissingInput)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	if err := r.ChargeType.Validate(); err != nil {
		return err
	}
	return nil
}

// InitiateWireTransfer records a new outbound wire in PENDING with its fee
// already priced. Reference fits the 16-character limit of MT103 field :20:.
func (s *SwiftService) InitiateWireTransfer(ctx context.Context, request SwiftTransferRequest) (*data.SwiftTransfer, error) {
	if err := request.validate(); err != nil {
		return nil, fmt.Errorf("validating wire transfer request: %w", err)
	}

	valueDate := request.ValueDate
	if valueDate.IsZero() {
		valueDate = s.clock.Now()
	}

	suffix, err := utils.RandomString(14, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating transaction reference: %w", err)
	}

	transfer, err := s.models.SwiftTransfers.Insert(ctx, s.dbConnectionPool, data.SwiftTransferInsert{
		TransactionReference: "FT" + suffix,
		SenderBIC:            request.SenderBIC,
		ReceiverBIC:          request.ReceiverBIC,
		OrderingCustomer:     request.OrderingCustomer,
		Beneficiary:          request.Beneficiary,
		BeneficiaryBankBIC:   request.BeneficiaryBankBIC,
		CorrespondentBIC:     request.CorrespondentBIC,
		Amount:               request.Amount,
		Currency:             request.Currency,
		ChargeType:           request.ChargeType,
		FeeAmount:            s.feeSchedule.FeeFor(request.Amount),
		RemittanceInfo:       request.RemittanceInfo,
		ValueDate:            valueDate,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting wire transfer: %w", err)
	}

	logger.Ctx(ctx).Infof("initiated wire transfer %s for %s %s (fee %s)",
		transfer.TransactionReference, transfer.Amount, transfer.Currency, transfer.FeeAmount)
	return transfer, nil
}

// ProcessWireTransfer drives a pending wire through validation, the compliance
// gate and MT103 submission. Any rejection parks the transfer in FAILED with
// the reason recorded.
func (s *SwiftService) ProcessWireTransfer(ctx context.Context, transactionReference string) (*data.SwiftTransfer, error) {
	transfer, err := s.models.SwiftTransfers.GetByReference(ctx, s.dbConnectionPool, transactionReference)
	if err != nil {
		return nil, fmt.Errorf("getting wire transfer %s: %w", transactionReference, err)
	}
	if transfer.Status != data.PendingSwiftTransferStatus {
		return transfer, fmt.Errorf("wire transfer %s is %s: %w", transactionReference, transfer.Status, ErrTransferNotPending)
	}

	if transfer, err = s.models.SwiftTransfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, data.ValidatingSwiftTransferStatus, nil); err != nil {
		return nil, fmt.Errorf("moving wire transfer %s to VALIDATING: %w", transactionReference, err)
	}

	if transfer, err = s.models.SwiftTransfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, data.ComplianceCheckSwiftTransferStatus, nil); err != nil {
		return nil, fmt.Errorf("moving wire transfer %s to COMPLIANCE_CHECK: %w", transactionReference, err)
	}

	if screenErr := s.complianceGate.ScreenParties(ctx, transfer.OrderingCustomer, transfer.Beneficiary); screenErr != nil {
		return s.fail(ctx, transfer, fmt.Errorf("compliance screening: %w", screenErr))
	}

	if transfer, err = s.models.SwiftTransfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, data.ProcessingSwiftTransferStatus, nil); err != nil {
		return nil, fmt.Errorf("moving wire transfer %s to PROCESSING: %w", transactionReference, err)
	}

	mt103, err := swift.BuildMT103(transfer)
	if err != nil {
		return s.fail(ctx, transfer, fmt.Errorf("building MT103: %w", err))
	}
	if err = s.models.SwiftTransfers.SetMT103(ctx, s.dbConnectionPool, transfer.ID, mt103); err != nil {
		return nil, fmt.Errorf("storing MT103 for %s: %w", transactionReference, err)
	}

	if submitErr := s.network.SubmitSwiftMessage(ctx, transfer.TransactionReference, mt103); submitErr != nil {
		return s.fail(ctx, transfer, fmt.Errorf("submitting MT103: %w", submitErr))
	}

	transfer, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SwiftTransfer, error) {
		submitted, updateErr := s.models.SwiftTransfers.UpdateStatus(ctx, dbTx, transfer, data.SubmittedSwiftTransferStatus, nil)
		if updateErr != nil {
			return nil, fmt.Errorf("moving wire transfer %s to SUBMITTED: %w", transactionReference, updateErr)
		}

		_, outboxErr := s.models.Outbox.Insert(ctx, dbTx, events.SwiftEventsTopic, transactionReference, events.SwiftTransferSubmittedType, submitted)
		if outboxErr != nil {
			return nil, fmt.Errorf("writing wire submitted event: %w", outboxErr)
		}

		return submitted, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMetric(ctx, transfer)
	logger.Ctx(ctx).Infof("submitted wire transfer %s to the network", transactionReference)
	return transfer, nil
}

// ConfirmSettlement applies the network's settlement result to a submitted
// wire.
func (s *SwiftService) ConfirmSettlement(ctx context.Context, transactionReference string, settled bool, failureReason *string) (*data.SwiftTransfer, error) {
	transfer, err := s.models.SwiftTransfers.GetByReference(ctx, s.dbConnectionPool, transactionReference)
	if err != nil {
		return nil, fmt.Errorf("getting wire transfer %s: %w", transactionReference, err)
	}
	if transfer.Status != data.SubmittedSwiftTransferStatus {
		return transfer, fmt.Errorf("wire transfer %s is %s: %w", transactionReference, transfer.Status, ErrTransferNotAwaiting)
	}

	target := data.CompletedSwiftTransferStatus
	if !settled {
		target = data.FailedSwiftTransferStatus
	}

	transfer, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SwiftTransfer, error) {
		updated, updateErr := s.models.SwiftTransfers.UpdateStatus(ctx, dbTx, transfer, target, failureReason)
		if updateErr != nil {
			return nil, fmt.Errorf("moving wire transfer %s to %s: %w", transactionReference, target, updateErr)
		}

		if settled {
			if _, outboxErr := s.models.Outbox.Insert(ctx, dbTx, events.SwiftEventsTopic, transactionReference, events.SwiftTransferCompletedType, updated); outboxErr != nil {
				return nil, fmt.Errorf("writing wire completed event: %w", outboxErr)
			}
		}

		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMetric(ctx, transfer)
	return transfer, nil
}

func (s *SwiftService) GetTransfer(ctx context.Context, transactionReference string) (*data.SwiftTransfer, error) {
	return s.models.SwiftTransfers.GetByReference(ctx, s.dbConnectionPool, transactionReference)
}

// fail parks the transfer in FAILED with the cause and returns the cause.
func (s *SwiftService) fail(ctx context.Context, transfer *data.SwiftTransfer, cause error) (*data.SwiftTransfer, error) {
	failed, err := s.models.SwiftTransfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, data.FailedSwiftTransferStatus, utils.StringPtr(cause.Error()))
	if err != nil {
		logger.Ctx(ctx).Errorf("failing wire transfer %s: %v", transfer.TransactionReference, err)
		return transfer, cause
	}

	s.recordMetric(ctx, failed)
	logger.Ctx(ctx).Warnf("wire transfer %s failed: %v", transfer.TransactionReference, cause)
	return failed, cause
}

func (s *SwiftService) recordMetric(ctx context.Context, transfer *data.SwiftTransfer) {
	if s.monitorService == nil {
		return
	}

	labels := map[string]string{
		"status":   string(transfer.Status),
		"currency": transfer.Currency,
	}
	if err := s.monitorService.MonitorCounters(monitor.SwiftTransfersCounterTag, labels); err != nil {
		logger.Ctx(ctx).Errorf("recording swift transfer metric: %v", err)
	}
}
