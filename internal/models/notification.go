package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationEvent is the fire-and-forget payload published for every
// completed transaction. Delivery is at-least-once; consumers must tolerate
// duplicates.
type NotificationEvent struct {
	TransactionID      string            `json:"transaction_id"`
	Type               TransactionType   `json:"type"`
	SourceAccount      string            `json:"source_account,omitempty"`
	DestinationAccount string            `json:"destination_account,omitempty"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           Currency          `json:"currency"`
	Status             TransactionStatus `json:"status"`
	CompletedAt        time.Time         `json:"completed_at"`
}
