package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    currency TEXT NOT NULL DEFAULT 'USDT',
    balance NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    frozen BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts(id),
    kind TEXT NOT NULL,
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    currency TEXT NOT NULL,
    balance_before NUMERIC(20,8) NOT NULL DEFAULT 0,
    balance_after NUMERIC(20,8) NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reference TEXT NOT NULL DEFAULT '',
    order_id UUID,
    vendor_id UUID,
    initiated_by UUID NOT NULL,
    approved_by UUID,
    approved_at TIMESTAMPTZ,
    failure_reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_created
    ON transactions (account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_kind_status
    ON transactions (kind, status, created_at DESC);
`

const txColumns = `id, account_id, kind, amount, currency, balance_before, balance_after,
    status, description, reference, order_id, vendor_id, initiated_by,
    approved_by, approved_at, failure_reason, created_at, updated_at`

// PostgresStore persists accounts and transactions in PostgreSQL. Every
// balance mutation locks the account row so concurrent settlements are
// serialized per account.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// CreateAccount provisions an account row for the owner.
func (s *PostgresStore) CreateAccount(ctx context.Context, id uuid.UUID, currency string) (Account, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	tag, err := s.db.Exec(ctx, `INSERT INTO accounts (id, currency) VALUES ($1, $2)
        ON CONFLICT (id) DO NOTHING`, id, currency)
	if err != nil {
		return Account{}, err
	}
	if tag.RowsAffected() == 0 {
		return Account{}, ErrAccountExists
	}
	return s.Account(ctx, id)
}

// Account fetches an account by ID.
func (s *PostgresStore) Account(ctx context.Context, id uuid.UUID) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT id, currency, balance, frozen, created_at, updated_at
        FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// SetFrozen toggles the freeze flag.
func (s *PostgresStore) SetFrozen(ctx context.Context, id uuid.UUID, frozen bool) (Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE accounts SET frozen = $2, updated_at = now()
        WHERE id = $1
        RETURNING id, currency, balance, frozen, created_at, updated_at`, id, frozen)
	return scanAccount(row)
}

// Post settles a new transaction in one serialized unit: the account row is
// locked, the balance checked and updated, and the completed transaction
// inserted before commit.
func (s *PostgresStore) Post(ctx context.Context, tx Transaction) (Transaction, Account, error) {
	if tx.Amount.Sign() <= 0 {
		return Transaction{}, Account{}, ErrInvalidAmount
	}
	if !tx.Kind.Valid() {
		return Transaction{}, Account{}, fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}

	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, Account{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	account, err := lockAccount(ctx, dbtx, tx.AccountID)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	if account.Frozen && tx.Kind.BlockedWhenFrozen() {
		return Transaction{}, Account{}, ErrAccountFrozen
	}

	newBalance := account.Balance.Add(tx.Kind.Delta(tx.Amount))
	if newBalance.Sign() < 0 {
		return Transaction{}, Account{}, ErrInsufficientBalance
	}

	now := time.Now().UTC()
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

	if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`,
		account.ID, newBalance, now); err != nil {
		return Transaction{}, Account{}, err
	}
	if err := insertTransaction(ctx, dbtx, tx); err != nil {
		return Transaction{}, Account{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, Account{}, err
	}

	account.Balance = newBalance
	account.UpdatedAt = now
	return tx, account, nil
}

// Submit records a pending withdrawal. The balance is verified but not
// reserved; the request-time balance is kept as an informational snapshot
// and recomputed at settlement.
func (s *PostgresStore) Submit(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx.Amount.Sign() <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	account, err := s.Account(ctx, tx.AccountID)
	if err != nil {
		return Transaction{}, err
	}
	if account.Frozen && tx.Kind.BlockedWhenFrozen() {
		return Transaction{}, ErrAccountFrozen
	}
	if account.Balance.LessThan(tx.Amount) {
		return Transaction{}, ErrInsufficientBalance
	}

	now := time.Now().UTC()
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

	if err := insertTransaction(ctx, s.db, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Approve settles a pending withdrawal. The account row is locked and the
// balance re-checked there, since no funds were reserved at request time.
// On insufficient funds the transaction stays pending.
func (s *PostgresStore) Approve(ctx context.Context, txID, adminID uuid.UUID) (Transaction, Account, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, Account{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	tx, err := lockTransaction(ctx, dbtx, txID)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	if tx.Kind != KindWithdrawal || tx.Status != StatusPending {
		return Transaction{}, Account{}, ErrInvalidTransactionState
	}

	account, err := lockAccount(ctx, dbtx, tx.AccountID)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	if account.Balance.LessThan(tx.Amount) {
		return Transaction{}, Account{}, ErrInsufficientBalance
	}

	if err := tx.transition(StatusCompleted); err != nil {
		return Transaction{}, Account{}, err
	}
	now := time.Now().UTC()
	newBalance := account.Balance.Sub(tx.Amount)
	tx.ApprovedBy = &adminID
	tx.ApprovedAt = &now
	tx.BalanceBefore = account.Balance
	tx.BalanceAfter = newBalance
	tx.UpdatedAt = now

	if _, err := dbtx.Exec(ctx, `UPDATE transactions
        SET status = $2, approved_by = $3, approved_at = $4,
            balance_before = $5, balance_after = $6, updated_at = $7
        WHERE id = $1`,
		tx.ID, tx.Status, adminID, now, tx.BalanceBefore, tx.BalanceAfter, now); err != nil {
		return Transaction{}, Account{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`,
		account.ID, newBalance, now); err != nil {
		return Transaction{}, Account{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, Account{}, err
	}

	account.Balance = newBalance
	account.UpdatedAt = now
	return tx, account, nil
}

// Reject cancels a pending transaction. No balance effect, since none was
// applied at request time.
func (s *PostgresStore) Reject(ctx context.Context, txID, adminID uuid.UUID, reason string) (Transaction, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	tx, err := lockTransaction(ctx, dbtx, txID)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.transition(StatusCancelled); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	tx.ApprovedBy = &adminID
	tx.ApprovedAt = &now
	tx.FailureReason = reason
	tx.UpdatedAt = now

	if _, err := dbtx.Exec(ctx, `UPDATE transactions
        SET status = $2, approved_by = $3, approved_at = $4, failure_reason = $5, updated_at = $6
        WHERE id = $1`,
		tx.ID, tx.Status, adminID, now, reason, now); err != nil {
		return Transaction{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Transaction fetches a transaction by ID.
func (s *PostgresStore) Transaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

// ListByAccount returns the account's transactions newest first.
func (s *PostgresStore) ListByAccount(ctx context.Context, accountID uuid.UUID, kind Kind, limit, offset int) ([]Transaction, int64, error) {
	var (
		rows  pgx.Rows
		total int64
		err   error
	)
	if kind != "" {
		if err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1 AND kind = $2`,
			accountID, kind).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
            WHERE account_id = $1 AND kind = $2
            ORDER BY created_at DESC LIMIT $3 OFFSET $4`, accountID, kind, limit, offset)
	} else {
		if err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`,
			accountID).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
            WHERE account_id = $1
            ORDER BY created_at DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListPendingWithdrawals returns withdrawals awaiting settlement, newest first.
func (s *PostgresStore) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]Transaction, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE kind = $1 AND status = $2`,
		KindWithdrawal, StatusPending).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE kind = $1 AND status = $2
        ORDER BY created_at DESC LIMIT $3 OFFSET $4`, KindWithdrawal, StatusPending, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTransaction(ctx context.Context, db execer, tx Transaction) error {
	_, err := db.Exec(ctx, `INSERT INTO transactions (`+txColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		tx.ID, tx.AccountID, tx.Kind, tx.Amount, tx.Currency, tx.BalanceBefore, tx.BalanceAfter,
		tx.Status, tx.Description, tx.Reference, tx.OrderID, tx.VendorID, tx.InitiatedBy,
		tx.ApprovedBy, tx.ApprovedAt, tx.FailureReason, tx.CreatedAt, tx.UpdatedAt)
	return err
}

func lockAccount(ctx context.Context, dbtx pgx.Tx, id uuid.UUID) (Account, error) {
	row := dbtx.QueryRow(ctx, `SELECT id, currency, balance, frozen, created_at, updated_at
        FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func lockTransaction(ctx context.Context, dbtx pgx.Tx, id uuid.UUID) (Transaction, error) {
	row := dbtx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Currency, &a.Balance, &a.Frozen, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.Currency,
		&t.BalanceBefore, &t.BalanceAfter, &t.Status, &t.Description, &t.Reference,
		&t.OrderID, &t.VendorID, &t.InitiatedBy, &t.ApprovedBy, &t.ApprovedAt,
		&t.FailureReason, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
