package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/models"
)

// MemoryLedger is the in-memory AccountLedger backend, selected when no
// database is configured. Each account carries its own mutual-exclusion
// primitive, created lazily and never removed, so callers block on a specific
// account rather than on the whole ledger. No code path holds more than one
// account lock at a time.
type MemoryLedger struct {
	mu          sync.Mutex // guards the accounts map, not account state
	accounts    map[string]*memoryAccount
	lockTimeout time.Duration
}

type memoryAccount struct {
	lock    chan struct{} // 1-buffered; holding the token means holding the lock
	account models.Account
	entries []models.LedgerEntry
}

func NewMemoryLedger(lockTimeout time.Duration) *MemoryLedger {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &MemoryLedger{
		accounts:    make(map[string]*memoryAccount),
		lockTimeout: lockTimeout,
	}
}

func (l *MemoryLedger) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[account.AccountNumber]; ok {
		return nil, models.ErrDuplicateAccount
	}
	l.accounts[account.AccountNumber] = &memoryAccount{
		lock:    make(chan struct{}, 1),
		account: *account,
	}
	snapshot := *account
	return &snapshot, nil
}

func (l *MemoryLedger) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	ma, err := l.lookup(accountNumber)
	if err != nil {
		return nil, err
	}
	if err := l.acquire(ctx, ma); err != nil {
		return nil, fmt.Errorf("account %s: %w", accountNumber, err)
	}
	defer l.release(ma)

	snapshot := ma.account
	return &snapshot, nil
}

func (l *MemoryLedger) Exists(ctx context.Context, accountNumber string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[accountNumber]
	return ok, nil
}

// LockAndAdjust applies balance += delta under the account's lock and returns
// a value-copy snapshot, so callers can never mutate ledger state directly.
func (l *MemoryLedger) LockAndAdjust(ctx context.Context, accountNumber string, delta decimal.Decimal, expectedCurrency models.Currency, transactionID string) (*models.Account, error) {
	ma, err := l.lookup(accountNumber)
	if err != nil {
		return nil, err
	}
	if err := l.acquire(ctx, ma); err != nil {
		return nil, fmt.Errorf("account %s: %w", accountNumber, err)
	}
	defer l.release(ma)

	if ma.account.Status != models.AccountStatusActive {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountInactive)
	}
	if ma.account.Currency != expectedCurrency {
		return nil, fmt.Errorf("account %s holds %s: %w", accountNumber, ma.account.Currency, models.ErrCurrencyMismatch)
	}

	newBalance := ma.account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrInsufficientBalance)
	}

	entryType := "CREDIT"
	if delta.IsNegative() {
		entryType = "DEBIT"
	}
	ma.entries = append(ma.entries, models.LedgerEntry{
		ID:            int64(len(ma.entries) + 1),
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Amount:        delta,
		EntryType:     entryType,
		Balance:       newBalance,
		CreatedAt:     time.Now(),
	})

	ma.account.Balance = newBalance
	ma.account.Version++
	ma.account.UpdatedAt = time.Now()

	snapshot := ma.account
	return &snapshot, nil
}

func (l *MemoryLedger) CloseAccount(ctx context.Context, accountNumber string) error {
	ma, err := l.lookup(accountNumber)
	if err != nil {
		return err
	}
	if err := l.acquire(ctx, ma); err != nil {
		return fmt.Errorf("account %s: %w", accountNumber, err)
	}
	defer l.release(ma)

	if ma.account.Status != models.AccountStatusActive {
		return fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountInactive)
	}
	if !ma.account.Balance.IsZero() {
		return fmt.Errorf("account %s has balance %s: %w", accountNumber, ma.account.Balance, models.ErrBalanceNotZero)
	}

	ma.account.Status = models.AccountStatusClosed
	ma.account.Version++
	ma.account.UpdatedAt = time.Now()
	return nil
}

// Entries returns a copy of the double-entry rows recorded for an account.
func (l *MemoryLedger) Entries(accountNumber string) ([]models.LedgerEntry, error) {
	ma, err := l.lookup(accountNumber)
	if err != nil {
		return nil, err
	}
	if err := l.acquire(context.Background(), ma); err != nil {
		return nil, err
	}
	defer l.release(ma)

	entries := make([]models.LedgerEntry, len(ma.entries))
	copy(entries, ma.entries)
	return entries, nil
}

func (l *MemoryLedger) lookup(accountNumber string) (*memoryAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ma, ok := l.accounts[accountNumber]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return ma, nil
}

func (l *MemoryLedger) acquire(ctx context.Context, ma *memoryAccount) error {
	select {
	case ma.lock <- struct{}{}:
		return nil
	case <-time.After(l.lockTimeout):
		return models.ErrAccountBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *MemoryLedger) release(ma *memoryAccount) {
	<-ma.lock
}

// MemoryRecorder is the in-memory TransactionRecorder backend. The log is
// append-only; the only permitted mutation is the single PENDING -> terminal
// status transition.
type MemoryRecorder struct {
	mu           sync.Mutex
	transactions map[string]*models.Transaction
	order        []string // insertion order, used for createdAt-descending listing
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{transactions: make(map[string]*models.Transaction)}
}

func (r *MemoryRecorder) Begin(ctx context.Context, txnType models.TransactionType, source, destination string, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateShape(txnType, source, destination, amount); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	txn := &models.Transaction{
		ID:                 uuid.New().String(),
		Type:               txnType,
		SourceAccount:      source,
		DestinationAccount: destination,
		Amount:             amount,
		Status:             models.TransactionStatusPending,
		CreatedAt:          time.Now(),
	}
	r.transactions[txn.ID] = txn
	r.order = append(r.order, txn.ID)

	snapshot := *txn
	return &snapshot, nil
}

func (r *MemoryRecorder) Complete(ctx context.Context, transactionID string, status models.TransactionStatus) error {
	if status != models.TransactionStatusSuccess && status != models.TransactionStatusFailed {
		return fmt.Errorf("status %s is not terminal", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.transactions[transactionID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	if txn.Status != models.TransactionStatusPending {
		return fmt.Errorf("transaction %s is %s: %w", transactionID, txn.Status, models.ErrAlreadyTerminal)
	}

	now := time.Now()
	txn.Status = status
	txn.CompletedAt = &now
	return nil
}

// Get returns a snapshot of a transaction by id.
func (r *MemoryRecorder) Get(transactionID string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.transactions[transactionID]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	snapshot := *txn
	return &snapshot, nil
}

func (r *MemoryRecorder) ListForAccount(ctx context.Context, accountNumber string, page, size int) ([]models.Transaction, error) {
	if page < 1 || size < 1 {
		return nil, models.ErrInvalidPage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.Transaction
	for _, id := range r.order {
		txn := r.transactions[id]
		if txn.SourceAccount == accountNumber || txn.DestinationAccount == accountNumber {
			matched = append(matched, *txn)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := (page - 1) * size
	if start >= len(matched) {
		return nil, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}
