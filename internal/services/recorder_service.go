package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/models"
)

// PostgresRecorder is the durable TransactionRecorder. The transactions table
// is append-only except for the single PENDING -> terminal status transition.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Begin creates a PENDING transaction after checking the amount and that the
// account references required by the type are present.
func (r *PostgresRecorder) Begin(ctx context.Context, txnType models.TransactionType, source, destination string, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateShape(txnType, source, destination, amount); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:                 uuid.New().String(),
		Type:               txnType,
		SourceAccount:      source,
		DestinationAccount: destination,
		Amount:             amount,
		Status:             models.TransactionStatusPending,
		CreatedAt:          time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, source_account, destination_account, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.Type, nullable(txn.SourceAccount), nullable(txn.DestinationAccount),
		txn.Amount, txn.Status, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	return txn, nil
}

// Complete transitions a PENDING transaction to SUCCESS or FAILED exactly
// once. A repeated call fails with models.ErrAlreadyTerminal and leaves the
// stored status untouched.
func (r *PostgresRecorder) Complete(ctx context.Context, transactionID string, status models.TransactionStatus) error {
	if status != models.TransactionStatusSuccess && status != models.TransactionStatusFailed {
		return fmt.Errorf("status %s is not terminal", status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4`,
		status, time.Now(), transactionID, models.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	var current models.TransactionStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, transactionID).Scan(&current)
	if err == sql.ErrNoRows {
		return models.ErrTransactionNotFound
	}
	if err != nil {
		return fmt.Errorf("check transaction status: %w", err)
	}
	return fmt.Errorf("transaction %s is %s: %w", transactionID, current, models.ErrAlreadyTerminal)
}

// ListForAccount returns the account's transactions, newest first. Pages are
// 1-based.
func (r *PostgresRecorder) ListForAccount(ctx context.Context, accountNumber string, page, size int) ([]models.Transaction, error) {
	if page < 1 || size < 1 {
		return nil, models.ErrInvalidPage
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, source_account, destination_account, amount, status, created_at, completed_at
		FROM transactions
		WHERE source_account = $1 OR destination_account = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		accountNumber, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		var source, destination sql.NullString
		if err := rows.Scan(&txn.ID, &txn.Type, &source, &destination,
			&txn.Amount, &txn.Status, &txn.CreatedAt, &txn.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.SourceAccount = source.String
		txn.DestinationAccount = destination.String
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func validateShape(txnType models.TransactionType, source, destination string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return models.ErrInvalidAmount
	}
	switch txnType {
	case models.TransactionTypeDeposit:
		if destination == "" {
			return fmt.Errorf("deposit requires a destination account: %w", models.ErrInvalidShape)
		}
	case models.TransactionTypeWithdrawal:
		if source == "" {
			return fmt.Errorf("withdrawal requires a source account: %w", models.ErrInvalidShape)
		}
	case models.TransactionTypeTransfer:
		if source == "" || destination == "" {
			return fmt.Errorf("transfer requires source and destination accounts: %w", models.ErrInvalidShape)
		}
		if source == destination {
			return models.ErrSameAccount
		}
	default:
		return fmt.Errorf("unknown transaction type %s: %w", txnType, models.ErrInvalidShape)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
