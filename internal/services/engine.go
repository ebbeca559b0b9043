package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/audit"
	"github.com/vaultbank/backend/internal/models"
)

// Ledger owns account records and balances. LockAndAdjust is the only
// mutation path for balances: it takes an exclusive per-account lock for the
// duration of the call, verifies status and currency, applies the delta and
// appends a double-entry ledger row. It takes a delta, never a target balance,
// so no adjustment can be computed from a stale read.
type Ledger interface {
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	GetAccount(ctx context.Context, accountNumber string) (*models.Account, error)
	Exists(ctx context.Context, accountNumber string) (bool, error)
	LockAndAdjust(ctx context.Context, accountNumber string, delta decimal.Decimal, expectedCurrency models.Currency, transactionID string) (*models.Account, error)
	CloseAccount(ctx context.Context, accountNumber string) error
}

// Recorder owns the append-only transaction log. A transaction transitions
// from PENDING to a terminal state exactly once; Complete on an already
// terminal transaction fails with models.ErrAlreadyTerminal, which is the
// idempotence guard against double application after a crash-retry.
type Recorder interface {
	Begin(ctx context.Context, txnType models.TransactionType, source, destination string, amount decimal.Decimal) (*models.Transaction, error)
	Complete(ctx context.Context, transactionID string, status models.TransactionStatus) error
	ListForAccount(ctx context.Context, accountNumber string, page, size int) ([]models.Transaction, error)
}

// Notifier receives completed-transaction events. Dispatch is fire-and-forget:
// failures are handled inside the notifier and never affect a committed
// transaction.
type Notifier interface {
	Dispatch(event models.NotificationEvent)
}

// TransactionEngine orchestrates deposits, withdrawals and transfers:
// validate, record PENDING, adjust balances through the ledger, complete the
// record, then signal the notifier asynchronously. Validation failures never
// touch the ledger; once a balance has been adjusted, failures are repaired by
// compensation, never by rollback.
type TransactionEngine struct {
	ledger    Ledger
	recorder  Recorder
	notifier  Notifier
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewTransactionEngine(ledger Ledger, recorder Recorder, notifier Notifier, auditLogger *audit.Logger) *TransactionEngine {
	return &TransactionEngine{
		ledger:    ledger,
		recorder:  recorder,
		notifier:  notifier,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

// Process executes a transaction request and returns the terminal transaction
// record. On business-rule failures after the PENDING record exists, the
// failed record is returned alongside the error.
func (e *TransactionEngine) Process(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	if err := e.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}
	if req.Amount.Sign() <= 0 {
		return nil, models.ErrInvalidAmount
	}

	switch req.Type {
	case models.TransactionTypeDeposit:
		return e.handleDeposit(ctx, req)
	case models.TransactionTypeWithdrawal:
		return e.handleWithdrawal(ctx, req)
	case models.TransactionTypeTransfer:
		return e.handleTransfer(ctx, req)
	default:
		return nil, models.ErrInvalidShape
	}
}

func (e *TransactionEngine) handleDeposit(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	dest, err := e.requireActiveAccount(ctx, req.DestinationAccount)
	if err != nil {
		return nil, err
	}

	txn, err := e.recorder.Begin(ctx, models.TransactionTypeDeposit, "", req.DestinationAccount, req.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.LockAndAdjust(ctx, req.DestinationAccount, req.Amount, dest.Currency, txn.ID); err != nil {
		return e.fail(ctx, txn, req.DestinationAccount, err)
	}

	return e.succeed(ctx, txn, dest.Currency)
}

func (e *TransactionEngine) handleWithdrawal(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	source, err := e.requireActiveAccount(ctx, req.SourceAccount)
	if err != nil {
		return nil, err
	}

	txn, err := e.recorder.Begin(ctx, models.TransactionTypeWithdrawal, req.SourceAccount, "", req.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := e.ledger.LockAndAdjust(ctx, req.SourceAccount, req.Amount.Neg(), source.Currency, txn.ID); err != nil {
		return e.fail(ctx, txn, req.SourceAccount, err)
	}

	return e.succeed(ctx, txn, source.Currency)
}

func (e *TransactionEngine) handleTransfer(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error) {
	if req.SourceAccount == req.DestinationAccount {
		return nil, models.ErrSameAccount
	}

	source, err := e.requireActiveAccount(ctx, req.SourceAccount)
	if err != nil {
		return nil, err
	}
	dest, err := e.requireActiveAccount(ctx, req.DestinationAccount)
	if err != nil {
		return nil, err
	}
	if source.Currency != dest.Currency {
		return nil, fmt.Errorf("transfer %s -> %s: %w", req.SourceAccount, req.DestinationAccount, models.ErrCurrencyMismatch)
	}

	txn, err := e.recorder.Begin(ctx, models.TransactionTypeTransfer, req.SourceAccount, req.DestinationAccount, req.Amount)
	if err != nil {
		return nil, err
	}

	// Debit first so the system never transiently holds more money than it
	// started with. The ledger releases the source lock before the credit is
	// attempted, so no code path ever holds two account locks and the engine
	// is deadlock-free by construction.
	if _, err := e.ledger.LockAndAdjust(ctx, req.SourceAccount, req.Amount.Neg(), source.Currency, txn.ID); err != nil {
		return e.fail(ctx, txn, req.SourceAccount, err)
	}

	if _, err := e.ledger.LockAndAdjust(ctx, req.DestinationAccount, req.Amount, source.Currency, txn.ID); err != nil {
		// The debit is already committed; reverse it before reporting failure.
		// There is no multi-account atomic commit at the ledger layer, so this
		// compensating credit is the only repair path.
		if _, compErr := e.ledger.LockAndAdjust(ctx, req.SourceAccount, req.Amount, source.Currency, txn.ID); compErr != nil {
			e.audit.LogReconciliationRequired(txn.ID, req.SourceAccount, req.Amount, compErr)
			e.completeQuietly(ctx, txn, models.TransactionStatusFailed)
			return txn, fmt.Errorf("credit failed (%v) and debit reversal failed (%v): %w", err, compErr, models.ErrReconciliationRequired)
		}
		return e.fail(ctx, txn, req.DestinationAccount, err)
	}

	return e.succeed(ctx, txn, source.Currency)
}

// requireActiveAccount resolves an account and rejects the request before any
// ledger mutation if it is missing or not ACTIVE.
func (e *TransactionEngine) requireActiveAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	if accountNumber == "" {
		return nil, models.ErrInvalidShape
	}
	account, err := e.ledger.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountInactive)
	}
	return account, nil
}

func (e *TransactionEngine) succeed(ctx context.Context, txn *models.Transaction, currency models.Currency) (*models.Transaction, error) {
	if err := e.recorder.Complete(ctx, txn.ID, models.TransactionStatusSuccess); err != nil {
		// The balance adjustment is committed; surface the completion failure
		// without undoing it. A retry will hit the AlreadyTerminal guard.
		log.Printf("[ENGINE] Failed to complete transaction %s: %v", txn.ID, err)
		return txn, err
	}
	now := time.Now()
	txn.Status = models.TransactionStatusSuccess
	txn.CompletedAt = &now

	e.audit.LogTransaction(txn)

	event := models.NotificationEvent{
		TransactionID:      txn.ID,
		Type:               txn.Type,
		SourceAccount:      txn.SourceAccount,
		DestinationAccount: txn.DestinationAccount,
		Amount:             txn.Amount,
		Currency:           currency,
		Status:             txn.Status,
		CompletedAt:        now,
	}
	go e.notifier.Dispatch(event)

	return txn, nil
}

func (e *TransactionEngine) fail(ctx context.Context, txn *models.Transaction, accountNumber string, cause error) (*models.Transaction, error) {
	e.audit.LogError(txn.ID, accountNumber, cause)
	e.completeQuietly(ctx, txn, models.TransactionStatusFailed)
	return txn, cause
}

func (e *TransactionEngine) completeQuietly(ctx context.Context, txn *models.Transaction, status models.TransactionStatus) {
	if err := e.recorder.Complete(ctx, txn.ID, status); err != nil {
		log.Printf("[ENGINE] Failed to mark transaction %s %s: %v", txn.ID, status, err)
		return
	}
	now := time.Now()
	txn.Status = status
	txn.CompletedAt = &now
}
