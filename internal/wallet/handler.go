package wallet

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/bazaarhq/wallet/internal/ledger"
)

var validate = validator.New()

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateAccount provisions a wallet account. Invoked by the registration
// flow of the surrounding back office.
func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid owner_id")
	}
	account, err := h.service.CreateAccount(c.UserContext(), ownerID, req.Currency)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Account created successfully",
		"account": toAccountResponse(account),
	})
}

// Balance returns the caller's balance and freeze state.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID, err := callerID(c)
	if err != nil {
		return err
	}
	account, err := h.service.Balance(c.UserContext(), accountID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"balance":   moneyResponse{Amount: account.Balance, Currency: account.Currency},
		"is_frozen": account.Frozen,
	})
}

// Transactions lists the caller's transaction history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	accountID, err := callerID(c)
	if err != nil {
		return err
	}
	return h.listTransactions(c, accountID)
}

// AccountTransactions lists any account's history for admins.
func (h *Handler) AccountTransactions(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account id")
	}
	return h.listTransactions(c, accountID)
}

func (h *Handler) listTransactions(c *fiber.Ctx, accountID uuid.UUID) error {
	kind := ledger.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		return fiber.NewError(http.StatusBadRequest, "unknown transaction kind")
	}
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", defaultPageSize)

	txs, pagination, err := h.service.Transactions(c.UserContext(), accountID, kind, page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"transactions": toTransactionResponses(txs),
		"pagination":   toPaginationResponse(pagination),
	})
}

// Deposit credits the caller's account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	accountID, err := callerID(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tx, account, err := h.service.Deposit(c.UserContext(), accountID, req.Amount, req.PaymentMethod)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     "Deposit successful",
		"transaction": toTransactionResponse(tx),
		"new_balance": moneyResponse{Amount: account.Balance, Currency: account.Currency},
	})
}

// Withdraw submits a withdrawal request for admin settlement.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	accountID, err := callerID(c)
	if err != nil {
		return err
	}
	var req withdrawRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tx, err := h.service.Withdraw(c.UserContext(), accountID, req.Amount, req.WalletAddress)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     "Withdrawal request submitted for approval",
		"transaction": toTransactionResponse(tx),
	})
}

// PendingWithdrawals lists withdrawals awaiting settlement.
func (h *Handler) PendingWithdrawals(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)

	txs, pagination, err := h.service.PendingWithdrawals(c.UserContext(), page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"withdrawals": toTransactionResponses(txs),
		"pagination":  toPaginationResponse(pagination),
	})
}

// ApproveWithdrawal settles a pending withdrawal.
func (h *Handler) ApproveWithdrawal(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid transaction id")
	}
	tx, account, err := h.service.ApproveWithdrawal(c.UserContext(), txID, adminID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     "Withdrawal approved successfully",
		"transaction": toTransactionResponse(tx),
		"new_balance": moneyResponse{Amount: account.Balance, Currency: account.Currency},
	})
}

// RejectWithdrawal cancels a pending withdrawal.
func (h *Handler) RejectWithdrawal(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	txID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid transaction id")
	}
	var req rejectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tx, err := h.service.RejectWithdrawal(c.UserContext(), txID, adminID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     "Withdrawal rejected successfully",
		"transaction": toTransactionResponse(tx),
	})
}

// Credit applies an admin credit to an account.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.adjust(c, ledger.KindAdminCredit)
}

// Debit applies an admin debit to an account.
func (h *Handler) Debit(c *fiber.Ctx) error {
	return h.adjust(c, ledger.KindAdminDebit)
}

func (h *Handler) adjust(c *fiber.Ctx, kind ledger.Kind) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	var req adjustRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account_id")
	}

	var (
		tx      ledger.Transaction
		account ledger.Account
		message string
	)
	if kind == ledger.KindAdminCredit {
		tx, account, err = h.service.AdminCredit(c.UserContext(), accountID, adminID, req.Amount, req.Reason)
		message = "Wallet credited successfully"
	} else {
		tx, account, err = h.service.AdminDebit(c.UserContext(), accountID, adminID, req.Amount, req.Reason)
		message = "Wallet debited successfully"
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     message,
		"transaction": toTransactionResponse(tx),
		"new_balance": moneyResponse{Amount: account.Balance, Currency: account.Currency},
	})
}

// Payout debits a vendor account for an earnings payout.
func (h *Handler) Payout(c *fiber.Ctx) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	var req payoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account_id")
	}
	vendorID, err := uuid.Parse(req.VendorID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid vendor_id")
	}
	tx, account, err := h.service.VendorPayout(c.UserContext(), accountID, vendorID, adminID, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message":     "Payout processed successfully",
		"transaction": toTransactionResponse(tx),
		"new_balance": moneyResponse{Amount: account.Balance, Currency: account.Currency},
	})
}

// Freeze blocks self-service operations on an account.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	return h.setFrozen(c, true)
}

// Unfreeze lifts the freeze.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	return h.setFrozen(c, false)
}

func (h *Handler) setFrozen(c *fiber.Ctx, frozen bool) error {
	adminID, err := callerID(c)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid account id")
	}

	var (
		account ledger.Account
		message string
	)
	if frozen {
		account, err = h.service.Freeze(c.UserContext(), accountID, adminID)
		message = "Wallet frozen successfully"
	} else {
		account, err = h.service.Unfreeze(c.UserContext(), accountID, adminID)
		message = "Wallet unfrozen successfully"
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"message": message,
		"account": toAccountResponse(account),
	})
}

// callerID extracts the authenticated user from the request context.
func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals("user_id").(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusUnauthorized, "missing caller identity")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// httpError maps domain errors to client-facing statuses: 404 for missing
// records, 403 for frozen-account rejections, 400 for validation and
// business failures, 500 otherwise.
func httpError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAccountFrozen):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidTransactionState),
		errors.Is(err, ledger.ErrAccountExists):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
