package customer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes customer HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a customer HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	DisplayName string `json:"display_name"`
}

// Create registers a customer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cust, err := h.service.Create(c.UserContext(), req.DisplayName)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":           cust.ID,
		"display_name": cust.DisplayName,
		"created_at":   cust.CreatedAt,
	})
}

// Get returns a customer by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	cust, err := h.service.Get(c.UserContext(), c.Params("customerId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "customer not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":           cust.ID,
		"display_name": cust.DisplayName,
		"created_at":   cust.CreatedAt,
	})
}

// Delete removes a customer without accounts.
func (h *Handler) Delete(c *fiber.Ctx) error {
	err := h.service.Delete(c.UserContext(), c.Params("customerId"))
	switch {
	case err == nil:
		return c.SendStatus(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "customer not found")
	case errors.Is(err, ErrHasAccounts):
		return fiber.NewError(http.StatusConflict, "customer still owns accounts")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
