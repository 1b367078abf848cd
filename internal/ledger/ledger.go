package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount occurs when an operation is requested with a zero or
	// negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates an account already exists for the owner.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountFrozen occurs when a self-service operation targets a frozen
	// account. Admin-initiated postings are not subject to the freeze.
	ErrAccountFrozen = errors.New("account is frozen")

	// ErrInsufficientBalance occurs when a debit would take the balance
	// below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransactionState occurs when a settlement is attempted on a
	// transaction that is not pending.
	ErrInvalidTransactionState = errors.New("transaction is not pending")
)

// DefaultCurrency is applied when an account is created without one.
const DefaultCurrency = "USDT"

// Kind identifies the business meaning of a ledger movement.
type Kind string

const (
	KindDeposit      Kind = "deposit"
	KindWithdrawal   Kind = "withdrawal"
	KindPurchase     Kind = "purchase"
	KindRefund       Kind = "refund"
	KindAdminCredit  Kind = "admin_credit"
	KindAdminDebit   Kind = "admin_debit"
	KindVendorPayout Kind = "vendor_payout"
)

// Valid reports whether k is a known transaction kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindPurchase, KindRefund,
		KindAdminCredit, KindAdminDebit, KindVendorPayout:
		return true
	}
	return false
}

// Credit reports whether the kind increases the account balance.
func (k Kind) Credit() bool {
	switch k {
	case KindDeposit, KindRefund, KindAdminCredit:
		return true
	}
	return false
}

// BlockedWhenFrozen reports whether the freeze flag rejects the kind.
// Admin credit/debit, payouts and refunds remain permitted so an admin can
// resolve a frozen account.
func (k Kind) BlockedWhenFrozen() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindPurchase:
		return true
	}
	return false
}

// Delta returns the signed balance effect of settling amount under k.
func (k Kind) Delta(amount decimal.Decimal) decimal.Decimal {
	if k.Credit() {
		return amount
	}
	return amount.Neg()
}

// Status tracks a transaction through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions is the exhaustive table of legal status changes. Terminal
// states have no successors.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusCancelled},
	StatusCompleted: nil,
	StatusFailed:    nil,
	StatusCancelled: nil,
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Account is a stored-value account owned by one user. Its ID equals the
// owner's user ID. Balance is the authoritative sum of the account's
// completed transactions and is maintained under serialized access.
type Account struct {
	ID        uuid.UUID
	Currency  string
	Balance   decimal.Decimal
	Frozen    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is a single ledger movement against one account.
// BalanceBefore and BalanceAfter are snapshots taken at settlement time.
type Transaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Kind          Kind
	Amount        decimal.Decimal
	Currency      string
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Status        Status
	Description   string
	Reference     string
	OrderID       *uuid.UUID
	VendorID      *uuid.UUID
	InitiatedBy   uuid.UUID
	ApprovedBy    *uuid.UUID
	ApprovedAt    *time.Time
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// transition moves the transaction to next, enforcing the state machine.
// Both store implementations route every status change through here.
func (t *Transaction) transition(next Status) error {
	if !t.Status.CanTransition(next) {
		return ErrInvalidTransactionState
	}
	t.Status = next
	return nil
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// Post and Approve are the balance-mutating operations and must execute as
// a single atomic read-modify-write against the account.
type Store interface {
	// CreateAccount provisions an account for the given owner.
	CreateAccount(ctx context.Context, id uuid.UUID, currency string) (Account, error)

	// Account fetches an account by ID.
	Account(ctx context.Context, id uuid.UUID) (Account, error)

	// SetFrozen toggles the freeze flag and returns the updated account.
	SetFrozen(ctx context.Context, id uuid.UUID, frozen bool) (Account, error)

	// Post atomically settles a new transaction: it snapshots the balance,
	// applies the kind's delta and records the transaction as completed, all
	// in one serialized unit. Debits fail with ErrInsufficientBalance rather
	// than taking the balance negative.
	Post(ctx context.Context, tx Transaction) (Transaction, Account, error)

	// Submit records a pending withdrawal. The balance is checked at request
	// time but not reserved; only Approve applies the debit.
	Submit(ctx context.Context, tx Transaction) (Transaction, error)

	// Approve settles a pending withdrawal, re-checking the balance under
	// the account lock before decrementing. On ErrInsufficientBalance the
	// transaction stays pending.
	Approve(ctx context.Context, txID, adminID uuid.UUID) (Transaction, Account, error)

	// Reject cancels a pending transaction with the given reason. No balance
	// effect.
	Reject(ctx context.Context, txID, adminID uuid.UUID, reason string) (Transaction, error)

	// Transaction fetches a transaction by ID.
	Transaction(ctx context.Context, id uuid.UUID) (Transaction, error)

	// ListByAccount returns the account's transactions ordered by creation
	// time descending, optionally filtered by kind (empty kind means all),
	// plus the total count for pagination.
	ListByAccount(ctx context.Context, accountID uuid.UUID, kind Kind, limit, offset int) ([]Transaction, int64, error)

	// ListPendingWithdrawals returns withdrawals awaiting settlement across
	// all accounts, newest first, plus the total count.
	ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]Transaction, int64, error)
}
