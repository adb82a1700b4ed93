package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/harbor-trust/harbor_core/internal/posting"
)

// RegisterInterbankRoutes wires Instapay transfer and switch callback endpoints.
// The callback route carries its own rate limiter since the switch redelivers.
func RegisterInterbankRoutes(r fiber.Router, h *posting.Handler, callbackLimiter fiber.Handler) {
	r.Post("/interbank/transfers", h.SendInterbank)
	r.Post("/interbank/callbacks", callbackLimiter, h.Callback)
}
