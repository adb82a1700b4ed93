package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/harbor-trust/harbor_core/internal/customer"
)

// RegisterCustomerRoutes wires customer lifecycle endpoints.
func RegisterCustomerRoutes(r fiber.Router, h *customer.Handler) {
	r.Post("/customers", h.Create)
	r.Get("/customers/:customerId", h.Get)
	r.Delete("/customers/:customerId", h.Delete)
}
