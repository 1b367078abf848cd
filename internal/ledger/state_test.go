package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestTransactionTransitionEnforced(t *testing.T) {
	tx := Transaction{Status: StatusCompleted}
	if err := tx.transition(StatusCancelled); err != ErrInvalidTransactionState {
		t.Fatalf("expected ErrInvalidTransactionState, got %v", err)
	}
	if tx.Status != StatusCompleted {
		t.Fatalf("status mutated on rejected transition: %s", tx.Status)
	}
}

func TestKindDirection(t *testing.T) {
	credits := []Kind{KindDeposit, KindRefund, KindAdminCredit}
	debits := []Kind{KindWithdrawal, KindPurchase, KindAdminDebit, KindVendorPayout}

	amount := decimal.NewFromInt(10)
	for _, k := range credits {
		if !k.Credit() {
			t.Errorf("%s must be a credit", k)
		}
		if !k.Delta(amount).Equal(amount) {
			t.Errorf("%s delta must be positive", k)
		}
	}
	for _, k := range debits {
		if k.Credit() {
			t.Errorf("%s must be a debit", k)
		}
		if !k.Delta(amount).Equal(amount.Neg()) {
			t.Errorf("%s delta must be negative", k)
		}
	}
}

func TestKindFreezeRules(t *testing.T) {
	blocked := []Kind{KindDeposit, KindWithdrawal, KindPurchase}
	allowed := []Kind{KindRefund, KindAdminCredit, KindAdminDebit, KindVendorPayout}

	for _, k := range blocked {
		if !k.BlockedWhenFrozen() {
			t.Errorf("%s must be blocked on frozen accounts", k)
		}
	}
	for _, k := range allowed {
		if k.BlockedWhenFrozen() {
			t.Errorf("%s must be permitted on frozen accounts", k)
		}
	}
}

func TestKindValid(t *testing.T) {
	if Kind("transfer").Valid() {
		t.Fatal("unknown kind must be invalid")
	}
	if !KindVendorPayout.Valid() {
		t.Fatal("vendor_payout must be valid")
	}
}
