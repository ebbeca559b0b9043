package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/models"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status,omitempty"`
	Details       any       `json:"details,omitempty"`
}

// Logger emits structured audit events for every balance-moving operation.
// Events are append-only and written to the process log; a log shipper owns
// durable retention.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogTransaction(txn *models.Transaction) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     string(txn.Type),
		TransactionID: txn.ID,
		Amount:        txn.Amount.String(),
		Status:        string(txn.Status),
		Details: map[string]string{
			"source_account":      txn.SourceAccount,
			"destination_account": txn.DestinationAccount,
		},
	})
}

func (a *Logger) LogError(transactionID, accountNumber string, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Status:        string(models.TransactionStatusFailed),
		Details:       map[string]string{"error": err.Error()},
	})
}

// LogReconciliationRequired is the operational alerting path for a transfer
// whose debit could not be reversed after a failed credit. It must never be
// silently dropped.
func (a *Logger) LogReconciliationRequired(transactionID, accountNumber string, amount decimal.Decimal, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "RECONCILIATION_REQUIRED",
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Amount:        amount.String(),
		Status:        string(models.TransactionStatusFailed),
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(accountNumber, operation, details string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		AccountNumber: accountNumber,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
