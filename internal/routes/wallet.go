package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bazaarhq/wallet/internal/middleware"
	"github.com/bazaarhq/wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. Self-service routes operate
// on the caller's own account; admin routes require an elevated role.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallet/accounts", h.CreateAccount)
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/transactions", h.Transactions)
	r.Post("/wallet/deposit", h.Deposit)
	r.Post("/wallet/withdraw", h.Withdraw)

	admin := r.Group("/wallet/admin", middleware.RequireRole(adminRoles...))
	admin.Get("/withdrawals", h.PendingWithdrawals)
	admin.Put("/withdrawals/:id/approve", h.ApproveWithdrawal)
	admin.Put("/withdrawals/:id/reject", h.RejectWithdrawal)
	admin.Post("/credit", h.Credit)
	admin.Post("/debit", h.Debit)
	admin.Post("/payout", h.Payout)
	admin.Get("/accounts/:accountId/transactions", h.AccountTransactions)
	admin.Put("/accounts/:accountId/freeze", h.Freeze)
	admin.Put("/accounts/:accountId/unfreeze", h.Unfreeze)
}
