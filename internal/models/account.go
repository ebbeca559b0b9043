package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates the supported account products.
type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeChecking AccountType = "CHECKING"
)

// AccountStatus enumerates the lifecycle states of an account.
// Only ACTIVE accounts accept transactions; CLOSED accounts are retained for audit.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Currency is an ISO 4217 code. An account's currency is fixed at creation.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyNGN Currency = "NGN"
)

// Account is a customer account owned by the ledger. The balance is mutated
// only through the ledger's lock-and-adjust path; accounts are never deleted.
type Account struct {
	AccountNumber string          `json:"account_number" db:"account_number"`
	AccountType   AccountType     `json:"account_type" db:"account_type"`
	Currency      Currency        `json:"currency" db:"currency"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Status        AccountStatus   `json:"status" db:"status"`
	OwnerID       string          `json:"owner_id" db:"owner_id"`
	Version       int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateAccountRequest is the input for opening a new account. The owner is an
// opaque reference into the user directory.
type CreateAccountRequest struct {
	AccountType AccountType `json:"account_type" validate:"required,oneof=SAVINGS CHECKING"`
	Currency    Currency    `json:"currency" validate:"omitempty,oneof=USD EUR NGN"`
	OwnerID     string      `json:"owner_id" validate:"required"`
}
