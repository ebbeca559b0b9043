package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/vaultbank/backend/internal/models"
)

const (
	accountNumberPrefix = "66"
	// 8-digit suffix space (10,000,000 - 99,999,999). With tens of millions of
	// candidate numbers, a handful of attempts is enough for any realistic
	// account count; hitting the attempt cap means the space is near exhaustion.
	maxGenerateAttempts = 10
)

type accountLookup interface {
	Exists(ctx context.Context, accountNumber string) (bool, error)
}

// AccountNumberGenerator produces collision-free account numbers: the "66"
// prefix followed by a random 8-digit suffix. It only reads from the ledger;
// it never persists anything itself.
type AccountNumberGenerator struct {
	ledger accountLookup
}

func NewAccountNumberGenerator(ledger accountLookup) *AccountNumberGenerator {
	return &AccountNumberGenerator{ledger: ledger}
}

func (g *AccountNumberGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%d", accountNumberPrefix, rand.Intn(90000000)+10000000)

		exists, err := g.ledger.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("account number lookup: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", models.ErrCapacityExhausted
}
