package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbank/backend/internal/models"
)

func seedAccount(t *testing.T, ledger *MemoryLedger, number string, balance int64, currency models.Currency) {
	t.Helper()
	now := time.Now()
	_, err := ledger.CreateAccount(context.Background(), &models.Account{
		AccountNumber: number,
		AccountType:   models.AccountTypeChecking,
		Currency:      currency,
		Balance:       decimal.NewFromInt(balance),
		Status:        models.AccountStatusActive,
		OwnerID:       "user-1",
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
}

func TestMemoryLedger_Accounts(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(time.Second)

	t.Run("create and get", func(t *testing.T) {
		seedAccount(t, ledger, "6611111111", 0, models.CurrencyUSD)

		account, err := ledger.GetAccount(ctx, "6611111111")
		assert.NoError(t, err)
		assert.True(t, account.Balance.IsZero())
		assert.Equal(t, models.AccountStatusActive, account.Status)

		exists, err := ledger.Exists(ctx, "6611111111")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicate account number", func(t *testing.T) {
		_, err := ledger.CreateAccount(ctx, &models.Account{AccountNumber: "6611111111"})
		assert.ErrorIs(t, err, models.ErrDuplicateAccount)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := ledger.GetAccount(ctx, "6699999999")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})
}

func TestMemoryLedger_LockAndAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("credit then debit with running balance entries", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6622222222", 0, models.CurrencyUSD)

		account, err := ledger.LockAndAdjust(ctx, "6622222222", decimal.NewFromInt(100), models.CurrencyUSD, "txn-1")
		assert.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(100)))

		account, err = ledger.LockAndAdjust(ctx, "6622222222", decimal.NewFromInt(-30), models.CurrencyUSD, "txn-2")
		assert.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(70)))

		entries, err := ledger.Entries("6622222222")
		assert.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "CREDIT", entries[0].EntryType)
		assert.True(t, entries[0].Balance.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, "DEBIT", entries[1].EntryType)
		assert.True(t, entries[1].Balance.Equal(decimal.NewFromInt(70)))
		assert.Equal(t, "txn-2", entries[1].TransactionID)
	})

	t.Run("insufficient balance leaves state untouched", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6633333333", 50, models.CurrencyUSD)

		_, err := ledger.LockAndAdjust(ctx, "6633333333", decimal.NewFromInt(-60), models.CurrencyUSD, "txn-1")
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)

		account, err := ledger.GetAccount(ctx, "6633333333")
		assert.NoError(t, err)
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(50)))

		entries, err := ledger.Entries("6633333333")
		assert.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6644444444", 50, models.CurrencyEUR)

		_, err := ledger.LockAndAdjust(ctx, "6644444444", decimal.NewFromInt(10), models.CurrencyUSD, "txn-1")
		assert.ErrorIs(t, err, models.ErrCurrencyMismatch)
	})

	t.Run("inactive account rejects adjustments", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6655555555", 0, models.CurrencyUSD)
		require.NoError(t, ledger.CloseAccount(ctx, "6655555555"))

		_, err := ledger.LockAndAdjust(ctx, "6655555555", decimal.NewFromInt(10), models.CurrencyUSD, "txn-1")
		assert.ErrorIs(t, err, models.ErrAccountInactive)
	})

	t.Run("lock wait beyond timeout fails with Busy", func(t *testing.T) {
		ledger := NewMemoryLedger(50 * time.Millisecond)
		seedAccount(t, ledger, "6666666666", 100, models.CurrencyUSD)

		ma, err := ledger.lookup("6666666666")
		require.NoError(t, err)
		require.NoError(t, ledger.acquire(ctx, ma))
		defer ledger.release(ma)

		_, err = ledger.LockAndAdjust(ctx, "6666666666", decimal.NewFromInt(10), models.CurrencyUSD, "txn-1")
		assert.ErrorIs(t, err, models.ErrAccountBusy)
	})
}

func TestMemoryLedger_CloseAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("close zero-balance account", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6610101010", 0, models.CurrencyUSD)

		assert.NoError(t, ledger.CloseAccount(ctx, "6610101010"))

		account, err := ledger.GetAccount(ctx, "6610101010")
		assert.NoError(t, err)
		assert.Equal(t, models.AccountStatusClosed, account.Status)
	})

	t.Run("non-zero balance blocks closure", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6620202020", 70, models.CurrencyUSD)

		err := ledger.CloseAccount(ctx, "6620202020")
		assert.ErrorIs(t, err, models.ErrBalanceNotZero)
	})

	t.Run("closing twice fails", func(t *testing.T) {
		ledger := NewMemoryLedger(time.Second)
		seedAccount(t, ledger, "6630303030", 0, models.CurrencyUSD)

		require.NoError(t, ledger.CloseAccount(ctx, "6630303030"))
		err := ledger.CloseAccount(ctx, "6630303030")
		assert.ErrorIs(t, err, models.ErrAccountInactive)
	})
}

func TestMemoryRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("begin validates amount and shape", func(t *testing.T) {
		recorder := NewMemoryRecorder()

		_, err := recorder.Begin(ctx, models.TransactionTypeDeposit, "", "6611111111", decimal.NewFromInt(-5))
		assert.ErrorIs(t, err, models.ErrInvalidAmount)

		_, err = recorder.Begin(ctx, models.TransactionTypeDeposit, "", "", decimal.NewFromInt(5))
		assert.ErrorIs(t, err, models.ErrInvalidShape)

		_, err = recorder.Begin(ctx, models.TransactionTypeWithdrawal, "", "", decimal.NewFromInt(5))
		assert.ErrorIs(t, err, models.ErrInvalidShape)

		_, err = recorder.Begin(ctx, models.TransactionTypeTransfer, "6611111111", "6611111111", decimal.NewFromInt(5))
		assert.ErrorIs(t, err, models.ErrSameAccount)

		txn, err := recorder.Begin(ctx, models.TransactionTypeDeposit, "", "6611111111", decimal.NewFromInt(5))
		assert.NoError(t, err)
		assert.Equal(t, models.TransactionStatusPending, txn.Status)
		assert.NotEmpty(t, txn.ID)
	})

	t.Run("complete transitions exactly once", func(t *testing.T) {
		recorder := NewMemoryRecorder()
		txn, err := recorder.Begin(ctx, models.TransactionTypeDeposit, "", "6611111111", decimal.NewFromInt(5))
		require.NoError(t, err)

		assert.NoError(t, recorder.Complete(ctx, txn.ID, models.TransactionStatusSuccess))

		err = recorder.Complete(ctx, txn.ID, models.TransactionStatusFailed)
		assert.ErrorIs(t, err, models.ErrAlreadyTerminal)

		stored, err := recorder.Get(txn.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSuccess, stored.Status)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("complete unknown transaction", func(t *testing.T) {
		recorder := NewMemoryRecorder()
		err := recorder.Complete(ctx, "missing", models.TransactionStatusSuccess)
		assert.ErrorIs(t, err, models.ErrTransactionNotFound)
	})

	t.Run("list newest first with paging", func(t *testing.T) {
		recorder := NewMemoryRecorder()
		var ids []string
		for i := 0; i < 3; i++ {
			txn, err := recorder.Begin(ctx, models.TransactionTypeDeposit, "", "6611111111", decimal.NewFromInt(int64(i+1)))
			require.NoError(t, err)
			ids = append(ids, txn.ID)
			time.Sleep(2 * time.Millisecond)
		}

		_, err := recorder.ListForAccount(ctx, "6611111111", 0, 10)
		assert.ErrorIs(t, err, models.ErrInvalidPage)

		first, err := recorder.ListForAccount(ctx, "6611111111", 1, 2)
		assert.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, ids[2], first[0].ID)
		assert.Equal(t, ids[1], first[1].ID)

		second, err := recorder.ListForAccount(ctx, "6611111111", 2, 2)
		assert.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, ids[0], second[0].ID)

		empty, err := recorder.ListForAccount(ctx, "6611111111", 3, 2)
		assert.NoError(t, err)
		assert.Empty(t, empty)
	})
}
