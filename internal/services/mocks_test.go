package services

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/models"
)

// recordingNotifier captures dispatched events for assertions. Dispatch is
// called from engine goroutines, so access is synchronized.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (n *recordingNotifier) Dispatch(event models.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationEvent, len(n.events))
	copy(out, n.events)
	return out
}

// faultyLedger wraps a real ledger and fails credit adjustments on selected
// accounts, simulating an account closed between validation and credit.
type faultyLedger struct {
	Ledger
	failCredits map[string]bool
}

func (f *faultyLedger) LockAndAdjust(ctx context.Context, accountNumber string, delta decimal.Decimal, expectedCurrency models.Currency, transactionID string) (*models.Account, error) {
	if delta.Sign() > 0 && f.failCredits[accountNumber] {
		return nil, models.ErrAccountInactive
	}
	return f.Ledger.LockAndAdjust(ctx, accountNumber, delta, expectedCurrency, transactionID)
}

// stubLookup feeds the account number generator a scripted sequence of
// existence answers.
type stubLookup struct {
	answers []bool
	calls   int
	seen    []string
}

func (s *stubLookup) Exists(ctx context.Context, accountNumber string) (bool, error) {
	s.seen = append(s.seen, accountNumber)
	if s.calls >= len(s.answers) {
		return true, nil
	}
	answer := s.answers[s.calls]
	s.calls++
	return answer, nil
}
