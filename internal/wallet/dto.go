package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bazaarhq/wallet/internal/ledger"
)

type createAccountRequest struct {
	OwnerID  string `json:"owner_id" validate:"required,uuid"`
	Currency string `json:"currency"`
}

type depositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

type withdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address" validate:"required"`
}

type adjustRequest struct {
	AccountID string          `json:"account_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason" validate:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type payoutRequest struct {
	AccountID string          `json:"account_id" validate:"required,uuid"`
	VendorID  string          `json:"vendor_id" validate:"required,uuid"`
	Amount    decimal.Decimal `json:"amount"`
}

type moneyResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type accountResponse struct {
	ID       string        `json:"id"`
	Currency string        `json:"currency"`
	Balance  moneyResponse `json:"balance"`
	IsFrozen bool          `json:"is_frozen"`
}

type transactionResponse struct {
	ID            string        `json:"id"`
	AccountID     string        `json:"account_id"`
	Kind          string        `json:"kind"`
	Amount        moneyResponse `json:"amount"`
	BalanceBefore moneyResponse `json:"balance_before"`
	BalanceAfter  moneyResponse `json:"balance_after"`
	Status        string        `json:"status"`
	Description   string        `json:"description"`
	Reference     string        `json:"reference,omitempty"`
	OrderID       *string       `json:"order_id,omitempty"`
	VendorID      *string       `json:"vendor_id,omitempty"`
	InitiatedBy   string        `json:"initiated_by"`
	ApprovedBy    *string       `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:       a.ID.String(),
		Currency: a.Currency,
		Balance:  moneyResponse{Amount: a.Balance, Currency: a.Currency},
		IsFrozen: a.Frozen,
	}
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            tx.ID.String(),
		AccountID:     tx.AccountID.String(),
		Kind:          string(tx.Kind),
		Amount:        moneyResponse{Amount: tx.Amount, Currency: tx.Currency},
		BalanceBefore: moneyResponse{Amount: tx.BalanceBefore, Currency: tx.Currency},
		BalanceAfter:  moneyResponse{Amount: tx.BalanceAfter, Currency: tx.Currency},
		Status:        string(tx.Status),
		Description:   tx.Description,
		Reference:     tx.Reference,
		InitiatedBy:   tx.InitiatedBy.String(),
		ApprovedAt:    tx.ApprovedAt,
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
	}
	if tx.OrderID != nil {
		id := tx.OrderID.String()
		resp.OrderID = &id
	}
	if tx.VendorID != nil {
		id := tx.VendorID.String()
		resp.VendorID = &id
	}
	if tx.ApprovedBy != nil {
		id := tx.ApprovedBy.String()
		resp.ApprovedBy = &id
	}
	return resp
}

func toTransactionResponses(txs []ledger.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

func toPaginationResponse(p Page) paginationResponse {
	return paginationResponse{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages}
}
