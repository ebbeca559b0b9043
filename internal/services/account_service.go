package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaultbank/backend/internal/audit"
	"github.com/vaultbank/backend/internal/models"
)

// AccountService handles the account lifecycle: identifier allocation,
// creation, lookup, closure and transaction history. Balance mutation is the
// transaction engine's job, never this service's.
type AccountService struct {
	ledger    Ledger
	recorder  Recorder
	generator *AccountNumberGenerator
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewAccountService(ledger Ledger, recorder Recorder, auditLogger *audit.Logger) *AccountService {
	return &AccountService{
		ledger:    ledger,
		recorder:  recorder,
		generator: NewAccountNumberGenerator(ledger),
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

// CreateAccount opens a new ACTIVE account with a zero balance. The currency
// defaults to USD when the request leaves it unset.
func (s *AccountService) CreateAccount(ctx context.Context, req models.CreateAccountRequest) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = models.CurrencyUSD
	}

	accountNumber, err := s.generator.Generate(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account, err := s.ledger.CreateAccount(ctx, &models.Account{
		AccountNumber: accountNumber,
		AccountType:   req.AccountType,
		Currency:      currency,
		Balance:       decimal.Zero,
		Status:        models.AccountStatusActive,
		OwnerID:       req.OwnerID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogOperation(account.AccountNumber, "ACCOUNT_CREATED", string(account.AccountType))
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.ledger.GetAccount(ctx, accountNumber)
}

// CloseAccount marks an account CLOSED. The ledger rejects the closure unless
// the balance is exactly zero; closed accounts are retained for audit.
func (s *AccountService) CloseAccount(ctx context.Context, accountNumber string) error {
	if err := s.ledger.CloseAccount(ctx, accountNumber); err != nil {
		return err
	}
	s.audit.LogOperation(accountNumber, "ACCOUNT_CLOSED", "")
	return nil
}

// ListTransactions returns the account's transaction history, newest first.
func (s *AccountService) ListTransactions(ctx context.Context, accountNumber string, page, size int) ([]models.Transaction, error) {
	if _, err := s.ledger.GetAccount(ctx, accountNumber); err != nil {
		return nil, err
	}
	return s.recorder.ListForAccount(ctx, accountNumber, page, size)
}
