package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhq/wallet/internal/audit"
	"github.com/bazaarhq/wallet/internal/ledger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service exposes wallet operations backed by the ledger store. Every
// state-changing operation emits an audit entry; audit failures are logged
// and never abort the financial effect.
type Service struct {
	store  ledger.Store
	audit  audit.Sink
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, sink audit.Sink, logger *slog.Logger) *Service {
	return &Service{store: store, audit: sink, logger: logger}
}

// Page describes the offset pagination applied to a listing.
type Page struct {
	Page  int
	Limit int
	Total int64
	Pages int
}

// CreateAccount provisions a wallet account for the owner. The account ID
// equals the owner's user ID.
func (s *Service) CreateAccount(ctx context.Context, ownerID uuid.UUID, currency string) (ledger.Account, error) {
	account, err := s.store.CreateAccount(ctx, ownerID, currency)
	if err != nil {
		return ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      ownerID,
		Action:     audit.ActionCreate,
		Resource:   "wallet_account",
		ResourceID: account.ID.String(),
		Metadata:   map[string]any{"currency": account.Currency},
	})
	return account, nil
}

// Balance returns the account with its current balance and freeze state.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	return s.store.Account(ctx, accountID)
}

// Deposit credits the account and settles immediately.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, paymentMethod string) (ledger.Transaction, ledger.Account, error) {
	if paymentMethod == "" {
		paymentMethod = "mock payment"
	}
	tx, account, err := s.store.Post(ctx, ledger.Transaction{
		AccountID:   accountID,
		Kind:        ledger.KindDeposit,
		Amount:      amount,
		Description: fmt.Sprintf("Deposit via %s", paymentMethod),
		InitiatedBy: accountID,
	})
	if err != nil {
		return ledger.Transaction{}, ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      accountID,
		Action:     audit.ActionCreate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"amount": amount.String(), "payment_method": paymentMethod},
	})
	return tx, account, nil
}

// Withdraw records a withdrawal request pending admin settlement. Funds are
// not reserved: the balance check here is advisory and is repeated under
// the account lock at approval time.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, destination string) (ledger.Transaction, error) {
	tx, err := s.store.Submit(ctx, ledger.Transaction{
		AccountID:   accountID,
		Kind:        ledger.KindWithdrawal,
		Amount:      amount,
		Description: fmt.Sprintf("Withdrawal to %s", destination),
		Reference:   destination,
		InitiatedBy: accountID,
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      accountID,
		Action:     audit.ActionCreate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"amount": amount.String(), "destination": destination},
	})
	return tx, nil
}

// ApproveWithdrawal settles a pending withdrawal. The store re-checks the
// balance under the account lock; on insufficient funds the transaction
// stays pending for the admin to retry or reject.
func (s *Service) ApproveWithdrawal(ctx context.Context, txID, adminID uuid.UUID) (ledger.Transaction, ledger.Account, error) {
	tx, account, err := s.store.Approve(ctx, txID, adminID)
	if err != nil {
		return ledger.Transaction{}, ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      adminID,
		Action:     audit.ActionUpdate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"approved_amount": tx.Amount.String()},
	})
	return tx, account, nil
}

// RejectWithdrawal cancels a pending withdrawal with the given reason.
func (s *Service) RejectWithdrawal(ctx context.Context, txID, adminID uuid.UUID, reason string) (ledger.Transaction, error) {
	tx, err := s.store.Reject(ctx, txID, adminID, reason)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      adminID,
		Action:     audit.ActionUpdate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"rejection_reason": reason},
	})
	return tx, nil
}

// AdminCredit credits the account on behalf of an admin. Settles
// immediately and is permitted on frozen accounts.
func (s *Service) AdminCredit(ctx context.Context, accountID, adminID uuid.UUID, amount decimal.Decimal, reason string) (ledger.Transaction, ledger.Account, error) {
	return s.adminAdjust(ctx, accountID, adminID, ledger.KindAdminCredit, amount, reason)
}

// AdminDebit debits the account on behalf of an admin. Fails with
// ErrInsufficientBalance rather than taking the balance negative.
func (s *Service) AdminDebit(ctx context.Context, accountID, adminID uuid.UUID, amount decimal.Decimal, reason string) (ledger.Transaction, ledger.Account, error) {
	return s.adminAdjust(ctx, accountID, adminID, ledger.KindAdminDebit, amount, reason)
}

func (s *Service) adminAdjust(ctx context.Context, accountID, adminID uuid.UUID, kind ledger.Kind, amount decimal.Decimal, reason string) (ledger.Transaction, ledger.Account, error) {
	label := "credit"
	if kind == ledger.KindAdminDebit {
		label = "debit"
	}
	tx, account, err := s.store.Post(ctx, ledger.Transaction{
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Description: fmt.Sprintf("Admin %s: %s", label, reason),
		InitiatedBy: adminID,
		ApprovedBy:  &adminID,
	})
	if err != nil {
		return ledger.Transaction{}, ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      adminID,
		Action:     audit.ActionCreate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"account": accountID.String(), "amount": amount.String(), "reason": reason},
	})
	return tx, account, nil
}

// Purchase debits the account for an order. Invoked by the order subsystem
// at checkout; blocked when the account is frozen.
func (s *Service) Purchase(ctx context.Context, accountID, orderID uuid.UUID, amount decimal.Decimal) (ledger.Transaction, ledger.Account, error) {
	return s.orderPosting(ctx, accountID, orderID, ledger.KindPurchase, amount)
}

// Refund credits the account for a refunded order.
func (s *Service) Refund(ctx context.Context, accountID, orderID uuid.UUID, amount decimal.Decimal) (ledger.Transaction, ledger.Account, error) {
	return s.orderPosting(ctx, accountID, orderID, ledger.KindRefund, amount)
}

func (s *Service) orderPosting(ctx context.Context, accountID, orderID uuid.UUID, kind ledger.Kind, amount decimal.Decimal) (ledger.Transaction, ledger.Account, error) {
	label := "Purchase"
	if kind == ledger.KindRefund {
		label = "Refund"
	}
	tx, account, err := s.store.Post(ctx, ledger.Transaction{
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Description: fmt.Sprintf("%s for order %s", label, orderID),
		OrderID:     &orderID,
		InitiatedBy: accountID,
	})
	if err != nil {
		return ledger.Transaction{}, ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      accountID,
		Action:     audit.ActionCreate,
		Resource:   "wallet_transaction",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"order": orderID.String(), "amount": amount.String()},
	})
	return tx, account, nil
}

// VendorPayout debits a vendor's account for an earnings payout. Admin
// initiated and permitted on frozen accounts.
func (s *Service) VendorPayout(ctx context.Context, accountID, vendorID, adminID uuid.UUID, amount decimal.Decimal) (ledger.Transaction, ledger.Account, error) {
	tx, account, err := s.store.Post(ctx, ledger.Transaction{
		AccountID:   accountID,
		Kind:        ledger.KindVendorPayout,
		Amount:      amount,
		Description: fmt.Sprintf("Payout to vendor %s", vendorID),
		VendorID:    &vendorID,
		InitiatedBy: adminID,
		ApprovedBy:  &adminID,
	})
	if err != nil {
		return ledger.Transaction{}, ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      adminID,
		Action:     audit.ActionCreate,
		Resource:   "vendor_payout",
		ResourceID: tx.ID.String(),
		Metadata:   map[string]any{"vendor": vendorID.String(), "amount": amount.String()},
	})
	return tx, account, nil
}

// Freeze blocks self-service operations on the account.
func (s *Service) Freeze(ctx context.Context, accountID, adminID uuid.UUID) (ledger.Account, error) {
	return s.setFrozen(ctx, accountID, adminID, true)
}

// Unfreeze lifts the freeze.
func (s *Service) Unfreeze(ctx context.Context, accountID, adminID uuid.UUID) (ledger.Account, error) {
	return s.setFrozen(ctx, accountID, adminID, false)
}

func (s *Service) setFrozen(ctx context.Context, accountID, adminID uuid.UUID, frozen bool) (ledger.Account, error) {
	account, err := s.store.SetFrozen(ctx, accountID, frozen)
	if err != nil {
		return ledger.Account{}, err
	}
	s.logAction(ctx, audit.Entry{
		Actor:      adminID,
		Action:     audit.ActionUpdate,
		Resource:   "wallet_account",
		ResourceID: accountID.String(),
		Metadata:   map[string]any{"frozen": frozen},
	})
	return account, nil
}

// Transactions lists the account's history, newest first, optionally
// filtered by kind.
func (s *Service) Transactions(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, page, pageSize int) ([]ledger.Transaction, Page, error) {
	if kind != "" && !kind.Valid() {
		return nil, Page{}, fmt.Errorf("unknown transaction kind %q", kind)
	}
	page, pageSize = clampPage(page, pageSize)
	txs, total, err := s.store.ListByAccount(ctx, accountID, kind, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return txs, buildPage(page, pageSize, total), nil
}

// PendingWithdrawals lists withdrawals awaiting settlement across all
// accounts, newest first.
func (s *Service) PendingWithdrawals(ctx context.Context, page, pageSize int) ([]ledger.Transaction, Page, error) {
	page, pageSize = clampPage(page, pageSize)
	txs, total, err := s.store.ListPendingWithdrawals(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return txs, buildPage(page, pageSize, total), nil
}

// logAction sends the entry to the audit sink. Failures are surfaced to the
// operational log only; the financial effect has already committed.
func (s *Service) logAction(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit write failed",
			"resource", entry.Resource,
			"resource_id", entry.ResourceID,
			"error", err)
	}
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func buildPage(page, pageSize int, total int64) Page {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Page{Page: page, Limit: pageSize, Total: total, Pages: pages}
}
