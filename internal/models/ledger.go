package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one leg of a double-entry record: every balance adjustment
// appends exactly one entry carrying the running balance after the adjustment.
type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	EntryType     string          `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
