package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var ErrOriginalNotReturnable = errors.New("original transfer is not in a returnable state")

// SepaReturnService handles R-transactions on settled credit transfers. A
// completed return refunds the debtor with an inverse posting when the debtor
// account is held here.
type SepaReturnService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	ledgerService    *LedgerService
}

type SepaReturnServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	LedgerService    *LedgerService
}

func (opts SepaReturnServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	if opts.LedgerService == nil {
		return fmt.Errorf("ledger service is required")
	}
	return nil
}

func NewSepaReturnService(opts SepaReturnServiceOptions) (*SepaReturnService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating sepa return service options: %w", err)
	}

	return &SepaReturnService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		ledgerService:    opts.LedgerService,
	}, nil
}

// InitiateReturn opens a return against a settled transfer. The return
// reference is derived from the original so a repeated initiation collides on
// the unique index instead of double-returning.
func (s *SepaReturnService) InitiateReturn(ctx context.Context, originalSepaReference string, reason data.SepaReturnReason) (*data.SepaReturn, error) {
	original, err := s.models.SepaTransfers.GetByReference(ctx, s.dbConnectionPool, originalSepaReference)
	if err != nil {
		return nil, fmt.Errorf("getting original transfer %s: %w", originalSepaReference, err)
	}

	returnReference := "RET-" + originalSepaReference

	ret, err := s.models.SepaReturns.Insert(ctx, s.dbConnectionPool, returnReference, originalSepaReference, reason, original.Amount, original.Currency)
	if err != nil {
		return nil, fmt.Errorf("inserting return for %s: %w", originalSepaReference, err)
	}

	if original.Status != data.SettledSepaTransferStatus {
		if ret, err = s.models.SepaReturns.UpdateStatus(ctx, s.dbConnectionPool, ret, data.RejectedSepaReturnStatus); err != nil {
			return nil, fmt.Errorf("rejecting return %s: %w", returnReference, err)
		}
		return ret, fmt.Errorf("transfer %s is %s: %w", originalSepaReference, original.Status, ErrOriginalNotReturnable)
	}

	ret, err = db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SepaReturn, error) {
		if _, err := s.models.SepaTransfers.UpdateStatus(ctx, dbTx, original, data.ReturnedSepaTransferStatus, utils.StringPtr(string(reason))); err != nil {
			return nil, fmt.Errorf("marking original %s returned: %w", originalSepaReference, err)
		}

		validated, err := s.models.SepaReturns.UpdateStatus(ctx, dbTx, ret, data.ValidatedSepaReturnStatus)
		if err != nil {
			return nil, fmt.Errorf("validating return %s: %w", returnReference, err)
		}

		_, err = s.models.Outbox.Insert(ctx, dbTx, events.SepaEventsTopic, originalSepaReference, events.SepaReturnReceivedType, validated)
		if err != nil {
			return nil, fmt.Errorf("writing return received event: %w", err)
		}

		return validated, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initiating return for %s: %w", originalSepaReference, err)
	}

	logger.Ctx(ctx).Infof("initiated return %s (%s) for %s", returnReference, reason, originalSepaReference)
	return ret, nil
}

// ProcessReturn walks a validated return through processing, completion and
// the refund. The refund credits the debtor's internal account; when the
// debtor banks elsewhere the return completes without a local posting.
func (s *SepaReturnService) ProcessReturn(ctx context.Context, returnReference string) (*data.SepaReturn, error) {
	ret, err := s.models.SepaReturns.GetByReference(ctx, s.dbConnectionPool, returnReference)
	if err != nil {
		return nil, fmt.Errorf("getting return %s: %w", returnReference, err)
	}

	for _, target := range []data.SepaReturnStatus{data.ProcessingSepaReturnStatus, data.CompletedSepaReturnStatus} {
		if ret, err = s.models.SepaReturns.UpdateStatus(ctx, s.dbConnectionPool, ret, target); err != nil {
			return nil, fmt.Errorf("moving return %s to %s: %w", returnReference, target, err)
		}
	}

	original, err := s.models.SepaTransfers.GetByReference(ctx, s.dbConnectionPool, ret.OriginalSepaReference)
	if err != nil {
		return nil, fmt.Errorf("getting original transfer %s: %w", ret.OriginalSepaReference, err)
	}

	debtorAccount, err := s.models.Accounts.GetByAccountNumber(ctx, s.dbConnectionPool, original.DebtorIBAN)
	if errors.Is(err, data.ErrRecordNotFound) {
		logger.Ctx(ctx).Infof("return %s completed; debtor %s is external, no local refund posting", returnReference, original.DebtorIBAN)
		return ret, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving debtor account %s: %w", original.DebtorIBAN, err)
	}

	line, err := s.ledgerService.Credit(ctx, debtorAccount.AccountNumber, ret.Amount, "SEPA-RET:"+returnReference, "sepa return "+string(ret.ReasonCode)+" of "+ret.OriginalSepaReference)
	if err != nil {
		return nil, fmt.Errorf("refunding debtor for return %s: %w", returnReference, err)
	}

	if err = s.models.SepaReturns.SetRefundPosting(ctx, s.dbConnectionPool, ret.ID, line.ID); err != nil {
		return nil, fmt.Errorf("linking refund posting on return %s: %w", returnReference, err)
	}

	ret, err = s.models.SepaReturns.UpdateStatus(ctx, s.dbConnectionPool, ret, data.RefundedSepaReturnStatus)
	if err != nil {
		return nil, fmt.Errorf("marking return %s refunded: %w", returnReference, err)
	}

	logger.Ctx(ctx).Infof("refunded return %s with posting %s", returnReference, line.ID)
	return ret, nil
}

func (s *SepaReturnService) GetReturn(ctx context.Context, returnReference string) (*data.SepaReturn, error) {
	return s.models.SepaReturns.GetByReference(ctx, s.dbConnectionPool, returnReference)
}
