package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"

	"github.com/nordbank/banking-platform-backend/db"
	"github.com/nordbank/banking-platform-backend/internal/data"
	"github.com/nordbank/banking-platform-backend/internal/events"
	"github.com/nordbank/banking-platform-backend/internal/logger"
	"github.com/nordbank/banking-platform-backend/internal/monitor"
	"github.com/nordbank/banking-platform-backend/internal/utils"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountInactive   = errors.New("account is not active")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInvalidAmount     = errors.New("amount must be positive")
	// ErrConcurrencyAborted is returned after the posting lost the version
	// race maxBalanceCASRetries times in a row.
	ErrConcurrencyAborted = errors.New("posting aborted after too many concurrent balance updates")
	ErrBalanceNotZero     = errors.New("account balance must be zero")
)

const (
	// maxBalanceCASRetries bounds how often a posting retries after losing
	// the compare-and-swap on the account version.
	maxBalanceCASRetries = 3

	accountCacheTTL = 30 * time.Second
)

// LedgerService owns accounts and their posting lines. Postings are idempotent
// per (account, direction, referenceId) and serialize through an optimistic
// version on the account row.
type LedgerService struct {
	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	monitorService   monitor.MonitorServiceInterface
	accountCache     *ristretto.Cache
}

type LedgerServiceOptions struct {
	DBConnectionPool db.DBConnectionPool
	Models           *data.Models
	MonitorService   monitor.MonitorServiceInterface
}

func (opts LedgerServiceOptions) validate() error {
	if opts.DBConnectionPool == nil {
		return fmt.Errorf("db connection pool is required")
	}
	if opts.Models == nil {
		return fmt.Errorf("models are required")
	}
	return nil
}

func NewLedgerService(opts LedgerServiceOptions) (*LedgerService, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("validating ledger service options: %w", err)
	}

	accountCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating account cache: %w", err)
	}

	return &LedgerService{
		dbConnectionPool: opts.DBConnectionPool,
		models:           opts.Models,
		monitorService:   opts.MonitorService,
		accountCache:     accountCache,
	}, nil
}

// OpenAccount creates a pending account for the customer; SetStatus activates
// it once the opening checks pass. A positive initial balance is booked as an
// opening credit so the posting-sum invariant holds from day one, but regular
// postings are refused until the account is active.
func (s *LedgerService) OpenAccount(ctx context.Context, customerID, currency string, accountType data.AccountType, initialBalance decimal.Decimal) (*data.Account, error) {
	if len(currency) != 3 {
		return nil, fmt.Errorf("currency must be a 3-letter ISO code, got %q", currency)
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("initial balance cannot be negative")
	}

	suffix, err := utils.RandomString(10, utils.NumberBytes)
	if err != nil {
		return nil, fmt.Errorf("generating account number: %w", err)
	}
	accountNumber := "ACCT-" + suffix

	account, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Account, error) {
		account, err := s.models.Accounts.Insert(ctx, dbTx, data.AccountInsert{
			AccountNumber: accountNumber,
			CustomerID:    customerID,
			Currency:      currency,
			AccountType:   accountType,
			Status:        data.PendingAccountStatus,
			Balance:       initialBalance,
		})
		if err != nil {
			return nil, fmt.Errorf("inserting account: %w", err)
		}

		if initialBalance.IsPositive() {
			openingLine, err := s.models.PostingLines.Insert(ctx, dbTx, data.PostingLineInsert{
				AccountID:    account.ID,
				Direction:    data.CreditPostingDirection,
				Amount:       initialBalance,
				Currency:     currency,
				ReferenceID:  "OPEN:" + accountNumber,
				Description:  "opening balance",
				BalanceAfter: initialBalance,
			})
			if err != nil {
				return nil, fmt.Errorf("inserting opening posting: %w", err)
			}
			logger.Ctx(ctx).Debugf("account %s opened with posting %s", accountNumber, openingLine.ID)
		}

		_, err = s.models.Outbox.Insert(ctx, dbTx, events.AccountEventsTopic, accountNumber, events.AccountCreatedType, account)
		if err != nil {
			return nil, fmt.Errorf("writing account created event: %w", err)
		}

		return account, nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening account for customer %s: %w", customerID, err)
	}

	logger.Ctx(ctx).Infof("opened %s account %s for customer %s", currency, accountNumber, customerID)
	return account, nil
}

// Credit books a credit posting on the account. Calling it again with the same
// referenceId returns the original posting without side effects.
func (s *LedgerService) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, referenceID, description string) (*data.PostingLine, error) {
	return s.post(ctx, accountNumber, data.CreditPostingDirection, amount, referenceID, description)
}

// Debit books a debit posting on the account, idempotent per referenceId.
func (s *LedgerService) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, referenceID, description string) (*data.PostingLine, error) {
	return s.post(ctx, accountNumber, data.DebitPostingDirection, amount, referenceID, description)
}

type postingResult struct {
	line     *data.PostingLine
	replayed bool
}

func (s *LedgerService) post(ctx context.Context, accountNumber string, direction data.PostingDirection, amount decimal.Decimal, referenceID, description string) (*data.PostingLine, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if referenceID == "" {
		return nil, fmt.Errorf("%w: reference id is required", data.ErrMissingInput)
	}

	for attempt := 0; attempt < maxBalanceCASRetries; attempt++ {
		result, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (postingResult, error) {
			return s.postOnce(ctx, dbTx, accountNumber, direction, amount, referenceID, description)
		})
		if errors.Is(err, data.ErrStaleVersion) {
			logger.Ctx(ctx).Warnf("posting %s on account %s lost the version race, attempt %d/%d", referenceID, accountNumber, attempt+1, maxBalanceCASRetries)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.accountCache.Del(accountNumber)

		if !result.replayed && s.monitorService != nil {
			labels := monitor.PostingLabels{Direction: string(direction), Currency: result.line.Currency}
			if monitorErr := s.monitorService.MonitorCounters(monitor.PostingsCounterTag, labels.ToMap()); monitorErr != nil {
				logger.Ctx(ctx).Errorf("monitoring postings counter: %v", monitorErr)
			}
		}

		return result.line, nil
	}

	return nil, fmt.Errorf("posting %s on account %s: %w", referenceID, accountNumber, ErrConcurrencyAborted)
}

func (s *LedgerService) postOnce(ctx context.Context, dbTx db.DBTransaction, accountNumber string, direction data.PostingDirection, amount decimal.Decimal, referenceID, description string) (postingResult, error) {
	account, err := s.models.Accounts.GetByAccountNumber(ctx, dbTx, accountNumber)
	if err != nil {
		return postingResult{}, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}

	existing, err := s.models.PostingLines.GetByReference(ctx, dbTx, account.ID, direction, referenceID)
	if err == nil {
		return postingResult{line: existing, replayed: true}, nil
	}
	if !errors.Is(err, data.ErrRecordNotFound) {
		return postingResult{}, fmt.Errorf("checking posting replay for %s: %w", referenceID, err)
	}

	if account.Status != data.ActiveAccountStatus {
		return postingResult{}, fmt.Errorf("account %s is %s: %w", accountNumber, account.Status, ErrAccountInactive)
	}

	newBalance := account.Balance.Add(amount)
	if direction == data.DebitPostingDirection {
		newBalance = account.Balance.Sub(amount)
		if newBalance.IsNegative() {
			return postingResult{}, fmt.Errorf("account %s balance %s cannot cover %s: %w", accountNumber, account.Balance, amount, ErrInsufficientFunds)
		}
	}

	updated, err := s.models.Accounts.UpdateBalance(ctx, dbTx, account, newBalance)
	if err != nil {
		return postingResult{}, err
	}

	line, err := s.models.PostingLines.Insert(ctx, dbTx, data.PostingLineInsert{
		AccountID:    account.ID,
		Direction:    direction,
		Amount:       amount,
		Currency:     account.Currency,
		ReferenceID:  referenceID,
		Description:  description,
		BalanceAfter: updated.Balance,
	})
	if err != nil {
		return postingResult{}, fmt.Errorf("inserting posting line: %w", err)
	}

	_, err = s.models.Outbox.Insert(ctx, dbTx, events.AccountEventsTopic, accountNumber, events.AccountPostedType, events.AccountPostedData{
		AccountNumber: accountNumber,
		CustomerID:    account.CustomerID,
		Amount:        amount.StringFixed(2),
		Currency:      account.Currency,
		ReferenceID:   referenceID,
		Direction:     string(direction),
		BalanceAfter:  updated.Balance.StringFixed(2),
		PostedAt:      line.PostedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return postingResult{}, fmt.Errorf("writing account posted event: %w", err)
	}

	return postingResult{line: line}, nil
}

// PostWithCurrency is the currency-checked entry point used by the settlement
// pipelines, which carry an explicit transfer currency.
func (s *LedgerService) PostWithCurrency(ctx context.Context, accountNumber string, direction data.PostingDirection, amount decimal.Decimal, currency, referenceID, description string) (*data.PostingLine, error) {
	account, err := s.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.Currency != currency {
		return nil, fmt.Errorf("account %s holds %s, not %s: %w", accountNumber, account.Currency, currency, ErrCurrencyMismatch)
	}

	return s.post(ctx, accountNumber, direction, amount, referenceID, description)
}

// GetAccount reads the account through a short-lived cache. Every posting and
// status change invalidates the entry, so within one instance reads stay
// fresh.
func (s *LedgerService) GetAccount(ctx context.Context, accountNumber string) (*data.Account, error) {
	if cached, found := s.accountCache.Get(accountNumber); found {
		if account, ok := cached.(*data.Account); ok {
			return account, nil
		}
	}

	account, err := s.models.Accounts.GetByAccountNumber(ctx, s.dbConnectionPool, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}
	s.accountCache.SetWithTTL(accountNumber, account, 1, accountCacheTTL)

	return account, nil
}

// GetBalance returns the current balance straight from the ledger row.
func (s *LedgerService) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := s.models.Accounts.GetByAccountNumber(ctx, s.dbConnectionPool, accountNumber)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}
	return account.Balance, nil
}

// History returns the account's posting lines within the optional time range.
func (s *LedgerService) History(ctx context.Context, accountNumber string, from, to time.Time) ([]data.PostingLine, error) {
	account, err := s.models.Accounts.GetByAccountNumber(ctx, s.dbConnectionPool, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}

	lines, err := s.models.PostingLines.History(ctx, s.dbConnectionPool, account.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("getting history of account %s: %w", accountNumber, err)
	}
	return lines, nil
}

// SetStatus moves the account along its status machine (activate, freeze,
// unfreeze). Closing goes through Close so the zero-balance rule applies.
func (s *LedgerService) SetStatus(ctx context.Context, accountNumber string, targetStatus data.AccountStatus) (*data.Account, error) {
	if targetStatus == data.ClosedAccountStatus {
		return s.Close(ctx, accountNumber)
	}
	return s.transitionStatus(ctx, accountNumber, targetStatus)
}

// Close closes the account. Fails with ErrBalanceNotZero while funds remain.
func (s *LedgerService) Close(ctx context.Context, accountNumber string) (*data.Account, error) {
	account, err := s.models.Accounts.GetByAccountNumber(ctx, s.dbConnectionPool, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", accountNumber, err)
	}
	if !account.Balance.IsZero() {
		return nil, fmt.Errorf("closing account %s with balance %s: %w", accountNumber, account.Balance, ErrBalanceNotZero)
	}

	return s.transitionStatus(ctx, accountNumber, data.ClosedAccountStatus)
}

func (s *LedgerService) transitionStatus(ctx context.Context, accountNumber string, targetStatus data.AccountStatus) (*data.Account, error) {
	updated, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Account, error) {
		account, err := s.models.Accounts.GetByAccountNumber(ctx, dbTx, accountNumber)
		if err != nil {
			return nil, fmt.Errorf("getting account %s: %w", accountNumber, err)
		}

		updated, err := s.models.Accounts.UpdateStatus(ctx, dbTx, account, targetStatus)
		if err != nil {
			return nil, err
		}

		_, err = s.models.Outbox.Insert(ctx, dbTx, events.AccountEventsTopic, accountNumber, events.AccountStatusType, updated)
		if err != nil {
			return nil, fmt.Errorf("writing account status event: %w", err)
		}

		return updated, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transitioning account %s to %s: %w", accountNumber, targetStatus, err)
	}

	s.accountCache.Del(accountNumber)
	logger.Ctx(ctx).Infof("account %s is now %s", accountNumber, targetStatus)
	return updated, nil
}
