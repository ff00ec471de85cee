package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/sepa"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrBatchNotAmendable = errors.New("batch no longer accepts transfers")
	ErrBatchRejected     = errors.New("batch failed validation")
)

// SepaBatchService drives credit transfer batches from creation through
// validation, network submission and per-transfer settlement results.
type SepaBatchService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	network          SettlementNetworkClient
	monitorService   monitor.MonitorServiceInterface
	clock            utils.Clock
}

type SepaBatchServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	Network          SettlementNetworkClient
	MonitorService   monitor.MonitorServiceInterface
	Clock            utils.Clock
}

func (opts SepaBatchServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.Network == nil {
		return fmt.Errorf("settlement network client is required")
	}
	return nil
}

func NewSepaBatchService(opts SepaBatchServiceOptions) (*SepaBatchService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating sepa batch service options: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}

	return &SepaBatchService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		network:          opts.Network,
		monitorService:   opts.MonitorService,
		clock:            clock,
	}, nil
}

// CreateBatch opens a new batch in PENDING.
func (s *SepaBatchService) CreateBatch(ctx context.Context, batchType data.SepaBatchType) (*data.SepaBatch, error) {
	suffix, err := utils.RandomString(12, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating batch message id: %w", err)
	}
	messageID := "MSG-" + suffix

	batch, err := s.models.SepaBatches.Insert(ctx, s.dbConnectionPool, messageID, batchType)
	if err != nil {
		return nil, fmt.Errorf("creating sepa batch: %w", err)
	}
	return batch, nil
}

type SepaTransferRequest struct {
	DebtorIBAN     string          `json:"debtor_iban"`
	CreditorIBAN   string          `json:"creditor_iban"`
	DebtorName     string          `json:"debtor_name"`
	CreditorName   string          `json:"creditor_name"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	RemittanceInfo *string         `json:"remittance_info,omitempty"`
}

// AddTransfer attaches a credit transfer to a PENDING batch, keeping the
// batch totals in step.
func (s *SepaBatchService) AddTransfer(ctx context.Context, messageID string, request SepaTransferRequest) (*data.SepaTransfer, error) {
	batch, err := s.models.SepaBatches.GetByMessageID(ctx, s.dbConnectionPool, messageID)
	if err != nil {
		return nil, fmt.Errorf("getting batch %s: %w", messageID, err)
	}
	if batch.Status != data.PendingSepaBatchStatus {
		return nil, fmt.Errorf("batch %s is %s: %w", messageID, batch.Status, ErrBatchNotAmendable)
	}

	var scheme data.SepaScheme
	switch batch.BatchType {
	case data.SctBatchType:
		scheme = data.SctScheme
	case data.SctInstBatchType:
		scheme = data.SctInstScheme
	default:
		return nil, fmt.Errorf("batch %s is a %s batch; direct debits are collected through mandates", messageID, batch.BatchType)
	}

	suffix, err := utils.RandomString(12, utils.UpperBytes, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating sepa reference: %w", err)
	}

	transfer, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SepaTransfer, error) {
		transfer, err := s.models.SepaTransfers.Insert(ctx, dbTx, data.SepaTransferInsert{
			SepaReference:  "SEPA-" + suffix,
			BatchID:        &batch.ID,
			DebtorIBAN:     request.DebtorIBAN,
			CreditorIBAN:   request.CreditorIBAN,
			DebtorName:     request.DebtorName,
			CreditorName:   request.CreditorName,
			Amount:         request.Amount,
			Currency:       request.Currency,
			Scheme:         scheme,
			RemittanceInfo: request.RemittanceInfo,
		})
		if err != nil {
			return nil, fmt.Errorf("inserting sepa transfer: %w", err)
		}

		if err = s.models.SepaBatches.AddTransfer(ctx, dbTx, batch.ID, request.Amount); err != nil {
			return nil, fmt.Errorf("updating batch totals: %w", err)
		}

		return transfer, nil
	})
	if err != nil {
		return nil, fmt.Errorf("adding transfer to batch %s: %w", messageID, err)
	}

	return transfer, nil
}

// ValidateBatch checks every attached transfer against the scheme
// preconditions. One bad transfer rejects the whole batch.
func (s *SepaBatchService) ValidateBatch(ctx context.Context, messageID string) (*data.SepaBatch, error) {
	batch, err := s.models.SepaBatches.GetByMessageID(ctx, s.dbConnectionPool, messageID)
	if err != nil {
		return nil, fmt.Errorf("getting batch %s: %w", messageID, err)
	}

	batch, err = s.models.SepaBatches.UpdateStatus(ctx, s.dbConnectionPool, batch, data.ValidatingSepaBatchStatus)
	if err != nil {
		return nil, fmt.Errorf("starting validation of batch %s: %w", messageID, err)
	}

	transfers, err := s.models.SepaTransfers.GetByBatchID(ctx, s.dbConnectionPool, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("getting transfers of batch %s: %w", messageID, err)
	}

	var firstFailure error
	for i := range transfers {
		transfer := transfers[i]

		marked, err := s.models.SepaTransfers.UpdateStatus(ctx, s.dbConnectionPool, &transfer, data.ValidatingSepaTransferStatus, nil)
		if err != nil {
			return nil, fmt.Errorf("marking transfer %s validating: %w", transfer.SepaReference, err)
		}

		if checkErr := validateSepaTransfer(marked); checkErr != nil {
			if _, err = s.models.SepaTransfers.UpdateStatus(ctx, s.dbConnectionPool, marked, data.FailedSepaTransferStatus, utils.StringPtr(checkErr.Error())); err != nil {
				return nil, fmt.Errorf("marking transfer %s failed: %w", transfer.SepaReference, err)
			}
			if firstFailure == nil {
				firstFailure = fmt.Errorf("transfer %s: %w", transfer.SepaReference, checkErr)
			}
		}
	}

	if len(transfers) == 0 {
		firstFailure = fmt.Errorf("batch has no transfers")
	}

	if firstFailure != nil {
		if batch, err = s.models.SepaBatches.UpdateStatus(ctx, s.dbConnectionPool, batch, data.RejectedSepaBatchStatus); err != nil {
			return nil, fmt.Errorf("rejecting batch %s: %w", messageID, err)
		}
		return batch, fmt.Errorf("%w: %s", ErrBatchRejected, firstFailure)
	}

	batch, err = s.models.SepaBatches.UpdateStatus(ctx, s.dbConnectionPool, batch, data.ValidatedSepaBatchStatus)
	if err != nil {
		return nil, fmt.Errorf("marking batch %s validated: %w", messageID, err)
	}
	return batch, nil
}

func validateSepaTransfer(transfer *data.SepaTransfer) error {
	if err := utils.ValidateIBAN(transfer.DebtorIBAN); err != nil {
		return fmt.Errorf("debtor IBAN: %w", err)
	}
	if err := utils.ValidateIBAN(transfer.CreditorIBAN); err != nil {
		return fmt.Errorf("creditor IBAN: %w", err)
	}
	if !transfer.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if transfer.Currency != "EUR" {
		return fmt.Errorf("sepa transfers settle in EUR, got %s", transfer.Currency)
	}
	return nil
}

// SubmitBatch renders the ISO 20022 document for a VALIDATED batch, stores
// the canonical XML, hands it to the network and moves the batch into
// PROCESSING to await per-transfer results.
func (s *SepaBatchService) SubmitBatch(ctx context.Context, messageID string) (*data.SepaBatch, error) {
	batch, err := s.models.SepaBatches.GetByMessageID(ctx, s.dbConnectionPool, messageID)
	if err != nil {
		return nil, fmt.Errorf("getting batch %s: %w", messageID, err)
	}

	transfers, err := s.models.SepaTransfers.GetByBatchID(ctx, s.dbConnectionPool, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("getting transfers of batch %s: %w", messageID, err)
	}

	documentXML, err := sepa.BuildBatchDocument(batch, transfers, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("building document for batch %s: %w", messageID, err)
	}

	if err = s.models.SepaBatches.SetCanonicalXML(ctx, s.dbConnectionPool, batch.ID, documentXML); err != nil {
		return nil, fmt.Errorf("storing canonical xml of batch %s: %w", messageID, err)
	}

	if err = s.network.SubmitSepaBatch(ctx, messageID, documentXML); err != nil {
		return nil, fmt.Errorf("submitting batch %s: %w", messageID, err)
	}

	batch, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SepaBatch, error) {
		submitted, err := s.models.SepaBatches.UpdateStatus(ctx, dbTx, batch, data.SubmittedSepaBatchStatus)
		if err != nil {
			return nil, err
		}

		for i := range transfers {
			transfer := transfers[i]
			if _, err = s.models.SepaTransfers.UpdateStatus(ctx, dbTx, &transfer, data.SubmittedSepaTransferStatus, nil); err != nil {
				return nil, fmt.Errorf("marking transfer %s submitted: %w", transfer.SepaReference, err)
			}
		}

		_, err = s.models.Outbox.Insert(ctx, dbTx, events.SepaEventsTopic, messageID, events.SepaBatchSubmittedType, submitted)
		if err != nil {
			return nil, fmt.Errorf("writing batch submitted event: %w", err)
		}

		return s.models.SepaBatches.UpdateStatus(ctx, dbTx, submitted, data.ProcessingSepaBatchStatus)
	})
	if err != nil {
		return nil, fmt.Errorf("recording submission of batch %s: %w", messageID, err)
	}

	if s.monitorService != nil {
		labels := map[string]string{"batch_type": string(batch.BatchType)}
		if monitorErr := s.monitorService.MonitorCounters(monitor.SepaBatchesCounterTag, labels); monitorErr != nil {
			logger.Ctx(ctx).Errorf("monitoring sepa batches counter: %v", monitorErr)
		}
	}

	logger.Ctx(ctx).Infof("submitted sepa batch %s with %d transfers", messageID, batch.NumberOfTransactions)
	return batch, nil
}

// RecordTransferResult applies one settlement result from the network. The
// per-transfer status, the batch counters and the batch status move in a
// single transaction.
func (s *SepaBatchService) RecordTransferResult(ctx context.Context, sepaReference string, success bool, failureReason *string) (*data.SepaBatch, error) {
	batch, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SepaBatch, error) {
		transfer, err := s.models.SepaTransfers.GetByReference(ctx, dbTx, sepaReference)
		if err != nil {
			return nil, fmt.Errorf("getting sepa transfer %s: %w", sepaReference, err)
		}
		if transfer.BatchID == nil {
			return nil, fmt.Errorf("sepa transfer %s does not belong to a batch", sepaReference)
		}

		target := data.SettledSepaTransferStatus
		if !success {
			target = data.FailedSepaTransferStatus
		}
		updated, err := s.models.SepaTransfers.UpdateStatus(ctx, dbTx, transfer, target, failureReason)
		if err != nil {
			return nil, fmt.Errorf("updating sepa transfer %s: %w", sepaReference, err)
		}

		if err = s.models.SepaBatches.RecordTransferResult(ctx, dbTx, *transfer.BatchID, success); err != nil {
			return nil, fmt.Errorf("recording result on batch: %w", err)
		}

		if success {
			_, err = s.models.Outbox.Insert(ctx, dbTx, events.SepaEventsTopic, sepaReference, events.SepaTransferSettledType, updated)
			if err != nil {
				return nil, fmt.Errorf("writing transfer settled event: %w", err)
			}
		}

		batch, err := s.models.SepaBatches.GetByID(ctx, dbTx, *transfer.BatchID)
		if err != nil {
			return nil, fmt.Errorf("reloading batch: %w", err)
		}

		switch {
		case batch.PendingCount() == 0:
			return s.models.SepaBatches.UpdateStatus(ctx, dbTx, batch, data.CompletedSepaBatchStatus)
		case !success && batch.Status == data.ProcessingSepaBatchStatus:
			return s.models.SepaBatches.UpdateStatus(ctx, dbTx, batch, data.PartiallyCompleteSepaBatchStatus)
		default:
			return batch, nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("recording result for sepa transfer %s: %w", sepaReference, err)
	}

	return batch, nil
}

func (s *SepaBatchService) GetBatch(ctx context.Context, messageID string) (*data.SepaBatch, error) {
	return s.models.SepaBatches.GetByMessageID(ctx, s.dbConnectionPool, messageID)
}

func (s *SepaBatchService) GetTransfer(ctx context.Context, sepaReference string) (*data.SepaTransfer, error) {
	return s.models.SepaTransfers.GetByReference(ctx, s.dbConnectionPool, sepaReference)
}
