package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/harbor-trust/harbor_core/internal/account"
	"github.com/harbor-trust/harbor_core/internal/posting"
)

// RegisterAccountRoutes wires account lifecycle and posting endpoints.
func RegisterAccountRoutes(r fiber.Router, accounts *account.Handler, postings *posting.Handler) {
	r.Post("/accounts", accounts.Create)
	r.Get("/accounts/:accountId", accounts.Get)
	r.Post("/accounts/:accountId/close", accounts.Close)

	r.Post("/accounts/:accountId/deposit", postings.Deposit)
	r.Post("/accounts/:accountId/withdraw", postings.Withdraw)
	r.Get("/accounts/:accountId/transactions", postings.Transactions)

	r.Post("/transfers", postings.Transfer)
	r.Get("/transactions/:reference", postings.Transaction)
}
