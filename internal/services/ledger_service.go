package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vaultbank/backend/internal/models"
)

const defaultLockTimeout = 3 * time.Second

// PostgresLedger is the durable AccountLedger. Each call runs in its own
// database transaction: the account row is locked with SELECT ... FOR UPDATE
// for the duration of the call only, and the balance write is additionally
// guarded by an optimistic version check.
type PostgresLedger struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	lockTimeout := defaultLockTimeout
	if d := viper.GetDuration("engine.lock_timeout"); d > 0 {
		lockTimeout = d
	}
	return &PostgresLedger{db: db, lockTimeout: lockTimeout}
}

func (l *PostgresLedger) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO accounts (account_number, account_type, currency, balance, status, owner_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.AccountNumber, account.AccountType, account.Currency, account.Balance,
		account.Status, account.OwnerID, account.Version, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, models.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	snapshot := *account
	return &snapshot, nil
}

func (l *PostgresLedger) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	var account models.Account
	err := l.db.QueryRowContext(ctx, `
		SELECT account_number, account_type, currency, balance, status, owner_id, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1`, accountNumber).Scan(
		&account.AccountNumber, &account.AccountType, &account.Currency, &account.Balance,
		&account.Status, &account.OwnerID, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (l *PostgresLedger) Exists(ctx context.Context, accountNumber string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, accountNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("account exists: %w", err)
	}
	return exists, nil
}

// LockAndAdjust applies balance += delta under a row lock, appends the
// double-entry ledger row and returns the post-adjustment snapshot. A lock
// wait beyond the configured timeout surfaces as models.ErrAccountBusy so the
// caller can retry instead of blocking indefinitely.
func (l *PostgresLedger) LockAndAdjust(ctx context.Context, accountNumber string, delta decimal.Decimal, expectedCurrency models.Currency, transactionID string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin adjust: %w", err)
	}
	defer tx.Rollback()

	account, err := l.lockAccount(ctx, tx, accountNumber)
	if err != nil {
		return nil, err
	}

	if account.Status != models.AccountStatusActive {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountInactive)
	}
	if account.Currency != expectedCurrency {
		return nil, fmt.Errorf("account %s holds %s: %w", accountNumber, account.Currency, models.ErrCurrencyMismatch)
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrInsufficientBalance)
	}

	entryType := "CREDIT"
	if delta.IsNegative() {
		entryType = "DEBIT"
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, account_number, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		transactionID, accountNumber, delta, entryType, newBalance, time.Now())
	if err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE account_number = $3 AND version = $4`,
		newBalance, now, accountNumber, account.Version)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("optimistic lock failed for account %s", accountNumber)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit adjust: %w", err)
	}

	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = now
	return account, nil
}

// CloseAccount transitions an ACTIVE account with an exactly-zero balance to
// CLOSED. The row is never deleted.
func (l *PostgresLedger) CloseAccount(ctx context.Context, accountNumber string) error {
	ctx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin close: %w", err)
	}
	defer tx.Rollback()

	account, err := l.lockAccount(ctx, tx, accountNumber)
	if err != nil {
		return err
	}
	if account.Status != models.AccountStatusActive {
		return fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountInactive)
	}
	if !account.Balance.IsZero() {
		return fmt.Errorf("account %s has balance %s: %w", accountNumber, account.Balance, models.ErrBalanceNotZero)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET status = $1, version = version + 1, updated_at = $2
		WHERE account_number = $3 AND version = $4`,
		models.AccountStatusClosed, time.Now(), accountNumber, account.Version)
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}

	return tx.Commit()
}

func (l *PostgresLedger) lockAccount(ctx context.Context, tx *sql.Tx, accountNumber string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT account_number, account_type, currency, balance, status, owner_id, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE`, accountNumber).Scan(
		&account.AccountNumber, &account.AccountType, &account.Currency, &account.Balance,
		&account.Status, &account.OwnerID, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("account %s: %w", accountNumber, models.ErrAccountBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &account, nil
}
