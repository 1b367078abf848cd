package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/wallet/internal/audit"
	"github.com/bazaarhq/wallet/internal/ledger"
	"github.com/bazaarhq/wallet/internal/logging"
)

func newTestService(t *testing.T) (*Service, ledger.Store, *audit.MemorySink) {
	t.Helper()
	store := ledger.NewInMemory()
	sink := audit.NewMemorySink()
	return NewService(store, sink, logging.Discard()), store, sink
}

func createAccount(t *testing.T, svc *Service, balance int64) ledger.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), uuid.New(), "USDT")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if balance > 0 {
		ledger.SeedBalance(svc.store, account.ID, decimal.NewFromInt(balance))
	}
	return account
}

func TestServiceDeposit(t *testing.T) {
	svc, _, sink := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)

	tx, updated, err := svc.Deposit(ctx, account.ID, decimal.NewFromInt(50), "card")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected balance 150, got %s", updated.Balance)
	}
	if tx.Description != "Deposit via card" {
		t.Fatalf("unexpected description %q", tx.Description)
	}

	entries := sink.Entries()
	if len(entries) != 2 { // account creation + deposit
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Action != audit.ActionCreate || last.Resource != "wallet_transaction" {
		t.Fatalf("unexpected audit entry %+v", last)
	}
	if last.ResourceID != tx.ID.String() {
		t.Fatal("audit entry must reference the transaction")
	}
}

func TestServiceDepositValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 0)

	if _, _, err := svc.Deposit(ctx, account.ID, decimal.NewFromInt(-5), ""); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, _, err := svc.Deposit(ctx, uuid.New(), decimal.NewFromInt(5), ""); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestServiceWithdrawalFlow(t *testing.T) {
	svc, _, sink := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)
	admin := uuid.New()

	tx, err := svc.Withdraw(ctx, account.ID, decimal.NewFromInt(80), "0xabc")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
	if tx.Reference != "0xabc" {
		t.Fatalf("destination not recorded: %q", tx.Reference)
	}

	balance, err := svc.Balance(ctx, account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatal("withdraw must not reduce balance at request time")
	}

	settled, updated, err := svc.ApproveWithdrawal(ctx, tx.ID, admin)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected balance 20, got %s", updated.Balance)
	}
	if settled.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	var approvals int
	for _, e := range sink.Entries() {
		if e.Action == audit.ActionUpdate && e.Actor == admin {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("expected one admin audit entry, got %d", approvals)
	}
}

func TestServiceRejectWithdrawal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)
	admin := uuid.New()

	tx, err := svc.Withdraw(ctx, account.ID, decimal.NewFromInt(30), "0xabc")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	rejected, err := svc.RejectWithdrawal(ctx, tx.ID, admin, "kyc pending")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != ledger.StatusCancelled || rejected.FailureReason != "kyc pending" {
		t.Fatalf("unexpected rejection %+v", rejected)
	}

	if _, _, err := svc.ApproveWithdrawal(ctx, tx.ID, admin); !errors.Is(err, ledger.ErrInvalidTransactionState) {
		t.Fatalf("approve after reject: expected ErrInvalidTransactionState, got %v", err)
	}
}

func TestServiceFrozenAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)
	admin := uuid.New()

	if _, err := svc.Freeze(ctx, account.ID, admin); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, _, err := svc.Deposit(ctx, account.ID, decimal.NewFromInt(5), ""); !errors.Is(err, ledger.ErrAccountFrozen) {
		t.Fatalf("deposit: expected ErrAccountFrozen, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, account.ID, decimal.NewFromInt(5), "0xabc"); !errors.Is(err, ledger.ErrAccountFrozen) {
		t.Fatalf("withdraw: expected ErrAccountFrozen, got %v", err)
	}

	// Admins can still resolve frozen accounts.
	if _, _, err := svc.AdminCredit(ctx, account.ID, admin, decimal.NewFromInt(5), "goodwill"); err != nil {
		t.Fatalf("admin credit on frozen account: %v", err)
	}

	if _, err := svc.Unfreeze(ctx, account.ID, admin); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if _, _, err := svc.Deposit(ctx, account.ID, decimal.NewFromInt(5), ""); err != nil {
		t.Fatalf("deposit after unfreeze: %v", err)
	}
}

func TestServiceAdminAdjustments(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)
	admin := uuid.New()

	tx, updated, err := svc.AdminCredit(ctx, account.ID, admin, decimal.NewFromInt(25), "refund gesture")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(125)) {
		t.Fatalf("expected 125, got %s", updated.Balance)
	}
	if tx.InitiatedBy != admin || tx.ApprovedBy == nil || *tx.ApprovedBy != admin {
		t.Fatal("admin identity not recorded")
	}
	if tx.Description != "Admin credit: refund gesture" {
		t.Fatalf("unexpected description %q", tx.Description)
	}

	if _, _, err := svc.AdminDebit(ctx, account.ID, admin, decimal.NewFromInt(1_000), "clawback"); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("debit: expected ErrInsufficientBalance, got %v", err)
	}
}

func TestServiceOrderPostings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 100)
	orderID := uuid.New()

	tx, updated, err := svc.Purchase(ctx, account.ID, orderID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60, got %s", updated.Balance)
	}
	if tx.OrderID == nil || *tx.OrderID != orderID {
		t.Fatal("order back-reference missing")
	}

	if _, _, err := svc.Refund(ctx, account.ID, orderID, decimal.NewFromInt(40)); err != nil {
		t.Fatalf("refund: %v", err)
	}
	final, _ := svc.Balance(ctx, account.ID)
	if !final.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("refund must restore balance, got %s", final.Balance)
	}
}

func TestServiceVendorPayout(t *testing.T) {
	svc, _, sink := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 500)
	vendorID := uuid.New()
	admin := uuid.New()

	tx, updated, err := svc.VendorPayout(ctx, account.ID, vendorID, admin, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300, got %s", updated.Balance)
	}
	if tx.VendorID == nil || *tx.VendorID != vendorID {
		t.Fatal("vendor back-reference missing")
	}

	entries := sink.Entries()
	if entries[len(entries)-1].Resource != "vendor_payout" {
		t.Fatal("payout audit entry missing")
	}
}

func TestServiceTransactionsPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := createAccount(t, svc, 1_000)

	for i := 0; i < 7; i++ {
		if _, _, err := svc.Deposit(ctx, account.ID, decimal.NewFromInt(1), ""); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	txs, page, err := svc.Transactions(ctx, account.ID, "", 2, 3)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 || page.Total != 7 || page.Pages != 3 || page.Page != 2 {
		t.Fatalf("unexpected pagination: len=%d %+v", len(txs), page)
	}

	if _, _, err := svc.Transactions(ctx, account.ID, ledger.Kind("bogus"), 1, 10); err == nil {
		t.Fatal("expected error for unknown kind filter")
	}

	// Out-of-range pages return an empty slice, not an error.
	txs, _, err = svc.Transactions(ctx, account.ID, "", 99, 10)
	if err != nil {
		t.Fatalf("out-of-range page: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected empty page, got %d", len(txs))
	}
}

func TestServicePendingWithdrawals(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := createAccount(t, svc, 100)
	b := createAccount(t, svc, 100)

	if _, err := svc.Withdraw(ctx, a.ID, decimal.NewFromInt(10), "0xa"); err != nil {
		t.Fatalf("withdraw a: %v", err)
	}
	if _, err := svc.Withdraw(ctx, b.ID, decimal.NewFromInt(20), "0xb"); err != nil {
		t.Fatalf("withdraw b: %v", err)
	}

	txs, page, err := svc.PendingWithdrawals(ctx, 1, 50)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if page.Total != 2 || len(txs) != 2 {
		t.Fatalf("expected 2 pending withdrawals, got total=%d len=%d", page.Total, len(txs))
	}
	if txs[0].CreatedAt.Before(txs[1].CreatedAt) {
		t.Fatal("pending listing must be newest first")
	}
}
