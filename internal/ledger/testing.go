package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that sets an account balance directly when
// using the in-memory store.
func SeedBalance(s Store, id uuid.UUID, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		account := mem.accounts[id]
		account.Balance = amount
		mem.accounts[id] = account
	}
}
