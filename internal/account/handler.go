package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	CustomerID string `json:"customer_id"`
	BranchCode string `json:"branch_code"`
}

type accountResponse struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	BranchCode string `json:"branch_code"`
	Number     string `json:"number"`
	Balance    string `json:"balance"`
	Status     string `json:"status"`
}

func toResponse(acct Account) accountResponse {
	return accountResponse{
		ID:         acct.ID,
		CustomerID: acct.CustomerID,
		BranchCode: acct.BranchCode,
		Number:     acct.Number,
		Balance:    acct.Balance.StringFixed(2),
		Status:     acct.Status,
	}
}

// Create provisions an account for a customer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Create(c.UserContext(), req.CustomerID, req.BranchCode)
	if err != nil {
		switch {
		case errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrBranchNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrGenerationExhausted):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(acct))
}

// Get returns account details and the current balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.service.Get(c.UserContext(), c.Params("accountId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(acct))
}

// Close marks the account closed.
func (h *Handler) Close(c *fiber.Ctx) error {
	acct, err := h.service.Close(c.UserContext(), c.Params("accountId"))
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(toResponse(acct))
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrAccountClosed):
		return fiber.NewError(http.StatusConflict, "account already closed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
