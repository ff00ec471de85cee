package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/saga"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const (
	// InternalTransferSagaName identifies the internal transfer saga in
	// durable saga records.
	InternalTransferSagaName = "internal-transfer"

	// ReversalReferenceSuffix marks compensation postings, keeping them
	// idempotent and distinguishable from the forward leg.
	ReversalReferenceSuffix = ":REVERSAL"
)

var ErrSameAccountTransfer = errors.New("source and destination accounts must differ")

// TransferService moves money between internal accounts through the saga:
// validate, debit source, credit destination, confirm.
type TransferService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	ledgerService    *LedgerService
	orchestrator     *saga.Orchestrator
	monitorService   monitor.MonitorServiceInterface
	definition       saga.Definition
}

type TransferServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	LedgerService    *LedgerService
	Orchestrator     *saga.Orchestrator
	MonitorService   monitor.MonitorServiceInterface
	// SagaRegistry receives the internal transfer definition so the
	// recovery loop can resume interrupted transfers.
	SagaRegistry *saga.Registry
}

func (opts TransferServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.LedgerService == nil {
		return fmt.Errorf("ledger service is required")
	}
	if opts.Orchestrator == nil {
		return fmt.Errorf("saga orchestrator is required")
	}
	return nil
}

func NewTransferService(opts TransferServiceOptions) (*TransferService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating transfer service options: %w", err)
	}

	s := &TransferService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		ledgerService:    opts.LedgerService,
		orchestrator:     opts.Orchestrator,
		monitorService:   opts.MonitorService,
	}
	s.definition = saga.Definition{
		Name: InternalTransferSagaName,
		Steps: []saga.Step{
			&validateTransferStep{s: s},
			&debitSourceStep{s: s},
			&creditDestinationStep{s: s},
			&confirmTransferStep{s: s},
		},
	}

	if opts.SagaRegistry != nil {
		opts.SagaRegistry.Register(s.definition)
	}

	return s, nil
}

type TransferRequest struct {
	FromAccountNumber string          `json:"from_account_number"`
	ToAccountNumber   string          `json:"to_account_number"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	IdempotencyKey    string          `json:"idempotency_key"`
}

// InitiateTransfer creates the transfer and drives its saga to a terminal
// state. A repeated idempotency key returns the existing aggregate untouched.
// The returned error carries the step failure for non-completed transfers; the
// aggregate itself is always returned when it exists.
func (s *TransferService) InitiateTransfer(ctx context.Context, request TransferRequest) (*data.Transfer, error) {
	if request.IdempotencyKey != "" {
		existing, err := s.models.Transfers.GetByIdempotencyKey(ctx, s.dbConnectionPool, request.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
	}

	idempotencyKey := request.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	suffix, err := utils.RandomString(12, utils.UpperBytes, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating transfer reference: %w", err)
	}
	transferReference := "TRF-" + suffix

	_, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Transfer, error) {
		transfer, err := s.models.Transfers.Insert(ctx, dbTx, data.TransferInsert{
			TransferReference: transferReference,
			FromAccountNumber: request.FromAccountNumber,
			ToAccountNumber:   request.ToAccountNumber,
			Amount:            request.Amount,
			Currency:          request.Currency,
			IdempotencyKey:    idempotencyKey,
		})
		if err != nil {
			return nil, fmt.Errorf("inserting transfer: %w", err)
		}

		_, err = s.models.Outbox.Insert(ctx, dbTx, events.TransferEventsTopic, transferReference, events.TransferInitiatedType, transferStatusData(transfer))
		if err != nil {
			return nil, fmt.Errorf("writing transfer initiated event: %w", err)
		}

		return transfer, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initiating transfer %s: %w", transferReference, err)
	}

	_, sagaErr := s.orchestrator.Run(ctx, s.definition, transferReference)

	return s.finalize(ctx, transferReference, sagaErr)
}

// finalize reloads the aggregate after the saga ran and settles the terminal
// status: a transfer left COMPENSATING by a failed step becomes COMPENSATED
// once the orchestrator unwound the executed legs.
func (s *TransferService) finalize(ctx context.Context, transferReference string, sagaErr error) (*data.Transfer, error) {
	transfer, err := s.models.Transfers.GetByReference(ctx, s.dbConnectionPool, transferReference)
	if err != nil {
		return nil, fmt.Errorf("reloading transfer %s: %w", transferReference, err)
	}

	if sagaErr != nil && transfer.Status == data.CompensatingTransferStatus {
		target := data.CompensatedTransferStatus
		if errors.Is(sagaErr, saga.ErrManualInterventionRequired) {
			target = data.FailedTransferStatus
		}

		transfer, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Transfer, error) {
			updated, err := s.models.Transfers.UpdateStatus(ctx, dbTx, transfer, target, utils.StringPtr(sagaErr.Error()))
			if err != nil {
				return nil, err
			}
			_, err = s.models.Outbox.Insert(ctx, dbTx, events.TransferEventsTopic, transferReference, events.TransferFailedType, transferStatusData(updated))
			if err != nil {
				return nil, fmt.Errorf("writing transfer failed event: %w", err)
			}
			return updated, nil
		})
		if err != nil {
			return nil, fmt.Errorf("settling failed transfer %s: %w", transferReference, err)
		}
	}

	if s.monitorService != nil {
		labels := monitor.TransferLabels{Status: string(transfer.Status), Currency: transfer.Currency}
		if monitorErr := s.monitorService.MonitorCounters(monitor.TransfersCounterTag, labels.ToMap()); monitorErr != nil {
			logger.Ctx(ctx).Errorf("monitoring transfers counter: %v", monitorErr)
		}
	}

	return transfer, sagaErr
}

func (s *TransferService) GetTransfer(ctx context.Context, transferReference string) (*data.Transfer, error) {
	return s.models.Transfers.GetByReference(ctx, s.dbConnectionPool, transferReference)
}

// ensureStatus advances the transfer to target unless it is already there,
// which happens when a step re-runs after a crash.
func (s *TransferService) ensureStatus(ctx context.Context, transfer *data.Transfer, target data.TransferStatus) (*data.Transfer, error) {
	if transfer.Status == target {
		return transfer, nil
	}
	return s.models.Transfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, target, nil)
}

// markCompensating records the step failure on the aggregate before the
// orchestrator starts unwinding.
func (s *TransferService) markCompensating(ctx context.Context, transfer *data.Transfer, stepErr error) {
	if transfer.Status == data.CompensatingTransferStatus {
		return
	}
	if _, err := s.models.Transfers.UpdateStatus(ctx, s.dbConnectionPool, transfer, data.CompensatingTransferStatus, utils.StringPtr(stepErr.Error())); err != nil {
		logger.Ctx(ctx).Errorf("marking transfer %s compensating: %v", transfer.TransferReference, err)
	}
}

func transferStatusData(transfer *data.Transfer) events.TransferStatusData {
	payload := events.TransferStatusData{
		TransferReference: transfer.TransferReference,
		FromAccount:       transfer.FromAccountNumber,
		ToAccount:         transfer.ToAccountNumber,
		Amount:            transfer.Amount.StringFixed(2),
		Currency:          transfer.Currency,
		Status:            string(transfer.Status),
	}
	if transfer.FailureReason != nil {
		payload.FailureReason = *transfer.FailureReason
	}
	return payload
}

// validateTransferStep checks both legs before any money moves. Its failure
// leaves no side effects, so compensation is a no-op.
type validateTransferStep struct {
	s *TransferService
}

func (st *validateTransferStep) ID() string { return "validate" }

func (st *validateTransferStep) Execute(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}
	if transfer.Status != data.PendingTransferStatus && transfer.Status != data.ValidatingTransferStatus {
		// already validated on a previous run
		return nil
	}

	transfer, err = st.s.ensureStatus(ctx, transfer, data.ValidatingTransferStatus)
	if err != nil {
		return fmt.Errorf("marking transfer validating: %w", err)
	}

	if checkErr := st.check(ctx, transfer); checkErr != nil {
		if _, err = st.s.models.Transfers.UpdateStatus(ctx, st.s.dbConnectionPool, transfer, data.FailedTransferStatus, utils.StringPtr(checkErr.Error())); err != nil {
			logger.Ctx(ctx).Errorf("marking transfer %s failed: %v", transferReference, err)
		}
		return checkErr
	}

	if _, err = st.s.ensureStatus(ctx, transfer, data.DebitPendingTransferStatus); err != nil {
		return fmt.Errorf("marking transfer debit pending: %w", err)
	}
	return nil
}

func (st *validateTransferStep) check(ctx context.Context, transfer *data.Transfer) error {
	if !transfer.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if transfer.FromAccountNumber == transfer.ToAccountNumber {
		return ErrSameAccountTransfer
	}

	source, err := st.s.models.Accounts.GetByAccountNumber(ctx, st.s.dbConnectionPool, transfer.FromAccountNumber)
	if err != nil {
		return fmt.Errorf("source account %s: %w", transfer.FromAccountNumber, err)
	}
	destination, err := st.s.models.Accounts.GetByAccountNumber(ctx, st.s.dbConnectionPool, transfer.ToAccountNumber)
	if err != nil {
		return fmt.Errorf("destination account %s: %w", transfer.ToAccountNumber, err)
	}

	if source.Status != data.ActiveAccountStatus {
		return fmt.Errorf("source account %s is %s: %w", source.AccountNumber, source.Status, ErrAccountInactive)
	}
	if destination.Status != data.ActiveAccountStatus {
		return fmt.Errorf("destination account %s is %s: %w", destination.AccountNumber, destination.Status, ErrAccountInactive)
	}
	if source.Currency != transfer.Currency || destination.Currency != transfer.Currency {
		return fmt.Errorf("transfer in %s between %s and %s accounts: %w", transfer.Currency, source.Currency, destination.Currency, ErrCurrencyMismatch)
	}
	if source.Balance.LessThan(transfer.Amount) {
		return fmt.Errorf("source balance %s below %s: %w", source.Balance, transfer.Amount, ErrInsufficientFunds)
	}

	return nil
}

func (st *validateTransferStep) Compensate(ctx context.Context, transferReference string) error {
	return nil
}

// debitSourceStep books the debit leg with the transfer reference, making a
// re-run after a crash replay instead of double-debit.
type debitSourceStep struct {
	s *TransferService
}

func (st *debitSourceStep) ID() string { return "debit-source" }

func (st *debitSourceStep) Execute(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}

	line, err := st.s.ledgerService.Debit(ctx, transfer.FromAccountNumber, transfer.Amount, transferReference, "transfer to "+transfer.ToAccountNumber)
	if err != nil {
		st.s.markCompensating(ctx, transfer, err)
		return fmt.Errorf("debiting source: %w", err)
	}

	if err = st.s.models.Transfers.SetPostingIDs(ctx, st.s.dbConnectionPool, transfer.ID, &line.ID, nil); err != nil {
		return fmt.Errorf("recording debit posting id: %w", err)
	}
	if _, err = st.s.ensureStatus(ctx, transfer, data.DebitCompletedTransferStatus); err != nil {
		return fmt.Errorf("marking transfer debit completed: %w", err)
	}
	return nil
}

func (st *debitSourceStep) Compensate(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}

	_, err = st.s.ledgerService.Credit(ctx, transfer.FromAccountNumber, transfer.Amount, transferReference+ReversalReferenceSuffix, "reversal of "+transferReference)
	if err != nil {
		return fmt.Errorf("crediting source back: %w", err)
	}
	return nil
}

// creditDestinationStep books the credit leg.
type creditDestinationStep struct {
	s *TransferService
}

func (st *creditDestinationStep) ID() string { return "credit-destination" }

func (st *creditDestinationStep) Execute(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}

	transfer, err = st.s.ensureStatus(ctx, transfer, data.CreditPendingTransferStatus)
	if err != nil {
		return fmt.Errorf("marking transfer credit pending: %w", err)
	}

	line, err := st.s.ledgerService.Credit(ctx, transfer.ToAccountNumber, transfer.Amount, transferReference, "transfer from "+transfer.FromAccountNumber)
	if err != nil {
		st.s.markCompensating(ctx, transfer, err)
		return fmt.Errorf("crediting destination: %w", err)
	}

	if err = st.s.models.Transfers.SetPostingIDs(ctx, st.s.dbConnectionPool, transfer.ID, nil, &line.ID); err != nil {
		return fmt.Errorf("recording credit posting id: %w", err)
	}
	return nil
}

func (st *creditDestinationStep) Compensate(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}

	_, err = st.s.ledgerService.Debit(ctx, transfer.ToAccountNumber, transfer.Amount, transferReference+ReversalReferenceSuffix, "reversal of "+transferReference)
	if err != nil {
		return fmt.Errorf("debiting destination back: %w", err)
	}
	return nil
}

// confirmTransferStep is the commit point: once COMPLETED is written and the
// completed event queued, the saga is done.
type confirmTransferStep struct {
	s *TransferService
}

func (st *confirmTransferStep) ID() string { return "confirm" }

func (st *confirmTransferStep) Execute(ctx context.Context, transferReference string) error {
	transfer, err := st.s.models.Transfers.GetByReference(ctx, st.s.dbConnectionPool, transferReference)
	if err != nil {
		return fmt.Errorf("loading transfer: %w", err)
	}
	if transfer.Status == data.CompletedTransferStatus {
		return nil
	}

	return db.RunInTransaction(ctx, st.s.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		updated, err := st.s.models.Transfers.UpdateStatus(ctx, dbTx, transfer, data.CompletedTransferStatus, nil)
		if err != nil {
			return fmt.Errorf("completing transfer: %w", err)
		}
		_, err = st.s.models.Outbox.Insert(ctx, dbTx, events.TransferEventsTopic, transferReference, events.TransferCompletedType, transferStatusData(updated))
		if err != nil {
			return fmt.Errorf("writing transfer completed event: %w", err)
		}
		return nil
	})
}

func (st *confirmTransferStep) Compensate(ctx context.Context, transferReference string) error {
	return nil
}
