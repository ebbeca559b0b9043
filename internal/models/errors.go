package models

import "errors"

// Domain errors returned by the ledger, recorder and engine. Business-rule
// failures (insufficient balance, inactive account) are ordinary errors, not
// system faults; ErrReconciliationRequired is the one fatal condition and must
// reach an operational alerting path.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAccountInactive     = errors.New("account is not active")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceNotZero      = errors.New("balance must be zero to close account")
	ErrDuplicateAccount    = errors.New("account number already exists")
	ErrCapacityExhausted   = errors.New("account number space exhausted")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidShape        = errors.New("transaction is missing a required account reference")
	ErrSameAccount         = errors.New("source and destination accounts are the same")
	ErrAlreadyTerminal     = errors.New("transaction already completed")
	ErrInvalidPage         = errors.New("page and size must be positive")
	ErrAccountBusy         = errors.New("account is locked by another operation")

	// ErrReconciliationRequired means a transfer debit was applied but both the
	// credit and its compensating reversal failed. Money is in an inconsistent
	// state and an operator must intervene; the engine never retries this.
	ErrReconciliationRequired = errors.New("reconciliation required: partial transfer could not be reversed")
)
