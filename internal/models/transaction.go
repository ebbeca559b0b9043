package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the supported operations.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

// TransactionStatus enumerates transaction states. A transaction moves from
// PENDING to exactly one terminal state and is never re-applied afterwards.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is an immutable log entry for a balance-moving operation.
// SourceAccount is empty for deposits, DestinationAccount for withdrawals.
type Transaction struct {
	ID                 string            `json:"id" db:"id"`
	Type               TransactionType   `json:"type" db:"type"`
	SourceAccount      string            `json:"source_account,omitempty" db:"source_account"`
	DestinationAccount string            `json:"destination_account,omitempty" db:"destination_account"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Status             TransactionStatus `json:"status" db:"status"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// TransactionRequest is the input accepted by the transaction engine.
type TransactionRequest struct {
	Type               TransactionType `json:"type" validate:"required,oneof=DEPOSIT WITHDRAWAL TRANSFER"`
	SourceAccount      string          `json:"source_account" validate:"omitempty,len=10,numeric"`
	DestinationAccount string          `json:"destination_account" validate:"omitempty,len=10,numeric"`
	Amount             decimal.Decimal `json:"amount" validate:"required"`
	Narration          string          `json:"narration" validate:"max=200"`
}
