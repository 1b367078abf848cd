package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]Account
	transactions map[uuid.UUID]Transaction
	seq          int64
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and for running the API without a database. The single mutex plays
// the role of the per-account row lock.
func NewInMemory() Store {
	return &inMemoryStore{
		accounts:     make(map[uuid.UUID]Account),
		transactions: make(map[uuid.UUID]Transaction),
	}
}

func (s *inMemoryStore) CreateAccount(_ context.Context, id uuid.UUID, currency string) (Account, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; exists {
		return Account{}, ErrAccountExists
	}
	now := time.Now().UTC()
	account := Account{ID: id, Currency: currency, CreatedAt: now, UpdatedAt: now}
	s.accounts[id] = account
	return account, nil
}

func (s *inMemoryStore) Account(_ context.Context, id uuid.UUID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *inMemoryStore) SetFrozen(_ context.Context, id uuid.UUID, frozen bool) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	account.Frozen = frozen
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account
	return account, nil
}

func (s *inMemoryStore) Post(_ context.Context, tx Transaction) (Transaction, Account, error) {
	if tx.Amount.Sign() <= 0 {
		return Transaction{}, Account{}, ErrInvalidAmount
	}
	if !tx.Kind.Valid() {
		return Transaction{}, Account{}, fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[tx.AccountID]
	if !ok {
		return Transaction{}, Account{}, ErrAccountNotFound
	}
	if account.Frozen && tx.Kind.BlockedWhenFrozen() {
		return Transaction{}, Account{}, ErrAccountFrozen
	}

	newBalance := account.Balance.Add(tx.Kind.Delta(tx.Amount))
	if newBalance.Sign() < 0 {
		return Transaction{}, Account{}, ErrInsufficientBalance
	}

	now := s.tick()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Currency == "" {
		tx.Currency = account.Currency
	}
	tx.Status = StatusPending
	if err := tx.transition(StatusCompleted); err != nil {
		return Transaction{}, Account{}, err
	}
	if tx.ApprovedBy == nil {
		tx.ApprovedBy = &tx.InitiatedBy
	}
	tx.ApprovedAt = &now
	tx.BalanceBefore = account.Balance
	tx.BalanceAfter = newBalance
	tx.CreatedAt = now
	tx.UpdatedAt = now

	account.Balance = newBalance
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	s.transactions[tx.ID] = tx
	return tx, account, nil
}

func (s *inMemoryStore) Submit(_ context.Context, tx Transaction) (Transaction, error) {
	if tx.Amount.Sign() <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[tx.AccountID]
	if !ok {
		return Transaction{}, ErrAccountNotFound
	}
	if account.Frozen && tx.Kind.BlockedWhenFrozen() {
		return Transaction{}, ErrAccountFrozen
	}
	if account.Balance.LessThan(tx.Amount) {
		return Transaction{}, ErrInsufficientBalance
	}

	now := s.tick()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Currency == "" {
		tx.Currency = account.Currency
	}
	tx.Status = StatusPending
	tx.BalanceBefore = account.Balance
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *inMemoryStore) Approve(_ context.Context, txID, adminID uuid.UUID) (Transaction, Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return Transaction{}, Account{}, ErrTransactionNotFound
	}
	if tx.Kind != KindWithdrawal || tx.Status != StatusPending {
		return Transaction{}, Account{}, ErrInvalidTransactionState
	}

	account, ok := s.accounts[tx.AccountID]
	if !ok {
		return Transaction{}, Account{}, ErrAccountNotFound
	}
	if account.Balance.LessThan(tx.Amount) {
		return Transaction{}, Account{}, ErrInsufficientBalance
	}

	if err := tx.transition(StatusCompleted); err != nil {
		return Transaction{}, Account{}, err
	}
	now := s.tick()
	tx.ApprovedBy = &adminID
	tx.ApprovedAt = &now
	tx.BalanceBefore = account.Balance
	tx.BalanceAfter = account.Balance.Sub(tx.Amount)
	tx.UpdatedAt = now

	account.Balance = tx.BalanceAfter
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	s.transactions[tx.ID] = tx
	return tx, account, nil
}

func (s *inMemoryStore) Reject(_ context.Context, txID, adminID uuid.UUID, reason string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if err := tx.transition(StatusCancelled); err != nil {
		return Transaction{}, err
	}
	now := s.tick()
	tx.ApprovedBy = &adminID
	tx.ApprovedAt = &now
	tx.FailureReason = reason
	tx.UpdatedAt = now
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *inMemoryStore) Transaction(_ context.Context, id uuid.UUID) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *inMemoryStore) ListByAccount(_ context.Context, accountID uuid.UUID, kind Kind, limit, offset int) ([]Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Transaction
	for _, tx := range s.transactions {
		if tx.AccountID != accountID {
			continue
		}
		if kind != "" && tx.Kind != kind {
			continue
		}
		matched = append(matched, tx)
	}
	return paginate(matched, limit, offset)
}

func (s *inMemoryStore) ListPendingWithdrawals(_ context.Context, limit, offset int) ([]Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Transaction
	for _, tx := range s.transactions {
		if tx.Kind == KindWithdrawal && tx.Status == StatusPending {
			matched = append(matched, tx)
		}
	}
	return paginate(matched, limit, offset)
}

// tick returns a strictly increasing timestamp so created-desc ordering is
// stable even when operations land within the same clock tick.
func (s *inMemoryStore) tick() time.Time {
	s.seq++
	return time.Now().UTC().Add(time.Duration(s.seq) * time.Nanosecond)
}

func paginate(txs []Transaction, limit, offset int) ([]Transaction, int64, error) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	total := int64(len(txs))
	if offset >= len(txs) {
		return nil, total, nil
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, total, nil
}
