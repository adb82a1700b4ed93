package posting

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/harbor-trust/harbor_core/internal/account"
	"github.com/harbor-trust/harbor_core/internal/interbank"
	"github.com/harbor-trust/harbor_core/internal/ledger"
)

// Handler exposes the posting endpoints: deposits, withdrawals, transfers,
// interbank transfers and callbacks, and ledger queries.
type Handler struct {
	engine  *Engine
	ledger  ledger.Ledger
	gateway interbank.Gateway
}

// NewHandler builds a posting HTTP handler. gateway may be nil when no switch
// connector is configured.
func NewHandler(engine *Engine, led ledger.Ledger, gateway interbank.Gateway) *Handler {
	return &Handler{engine: engine, ledger: led, gateway: gateway}
}

type amountRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type transferRequest struct {
	FromAccountID   string `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
}

type interbankRequest struct {
	SourceAccountID   string `json:"source_account_id"`
	BankCode          string `json:"bank_code"`
	BankName          string `json:"bank_name"`
	DestAccountNumber string `json:"dest_account_number"`
	DestAccountName   string `json:"dest_account_name"`
	Amount            string `json:"amount"`
}

type callbackRequest struct {
	ReferenceNumber string `json:"reference_number"`
	Status          string `json:"status"`
	SwitchReference string `json:"switch_reference"`
	Message         string `json:"message"`
}

type entryResponse struct {
	ID                   string `json:"id"`
	ReferenceNumber      string `json:"reference_number"`
	AccountID            string `json:"account_id"`
	Type                 string `json:"type"`
	Amount               string `json:"amount"`
	BalanceAfter         string `json:"balance_after"`
	RelatedAccountNumber string `json:"related_account_number,omitempty"`
	Description          string `json:"description,omitempty"`
	CreatedAt            string `json:"created_at"`
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:                   e.ID,
		ReferenceNumber:      e.ReferenceNumber,
		AccountID:            e.AccountID,
		Type:                 e.Type,
		Amount:               e.Amount.StringFixed(2),
		BalanceAfter:         e.BalanceAfter.StringFixed(2),
		RelatedAccountNumber: e.RelatedAccountNumber,
		Description:          e.Description,
		CreatedAt:            e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Deposit credits the account named in the path.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.engine.Deposit(c.UserContext(), c.Params("accountId"), amount, req.Description)
	if err != nil {
		return mapPostingError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

// Withdraw debits the account named in the path.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.engine.Withdraw(c.UserContext(), c.Params("accountId"), amount, req.Description)
	if err != nil {
		return mapPostingError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

// Transfer moves funds between two accounts of this bank.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.engine.TransferIntrabank(c.UserContext(), req.FromAccountID, req.ToAccountNumber, amount, req.Description)
	if err != nil {
		return mapPostingError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

// SendInterbank debits the source account and hands the payload to the switch
// gateway. The transfer stays PENDING until the switch calls back.
func (h *Handler) SendInterbank(c *fiber.Ctx) error {
	var req interbankRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.engine.SendInterbank(c.UserContext(), req.SourceAccountID,
		req.BankCode, req.BankName, req.DestAccountNumber, req.DestAccountName, amount)
	if err != nil {
		return mapPostingError(c, err)
	}

	// The posting is already committed; a gateway hiccup is resolved by the
	// switch callback or by operations, not by failing the request.
	if h.gateway != nil {
		_ = h.gateway.Send(c.UserContext(), result.Payload)
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"reference_number": result.ReferenceNumber,
		"status":           result.Status,
	})
}

// Callback receives the switch's verdict for a pending interbank transfer.
func (h *Handler) Callback(c *fiber.Ctx) error {
	var req callbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ReferenceNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "reference_number is required")
	}
	result, err := h.engine.ApplyInterbankCallback(c.UserContext(),
		req.ReferenceNumber, req.Status, req.SwitchReference, req.Message)
	if err != nil {
		if errors.Is(err, interbank.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "interbank transfer not found")
		}
		return mapPostingError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference_number": result.ReferenceNumber,
		"status":           result.Status,
	})
}

// Transactions lists an account's ledger entries, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	accountID := c.Params("accountId")
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	entries, err := h.ledger.ByAccount(c.UserContext(), accountID, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Transaction looks up a single ledger entry by its reference number.
func (h *Handler) Transaction(c *fiber.Ctx) error {
	entry, err := h.ledger.ByReference(c.UserContext(), c.Params("reference"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toEntryResponse(entry))
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errors.New("amount is required")
	}
	return decimal.NewFromString(raw)
}

func mapPostingError(c *fiber.Ctx, err error) error {
	var vErr *ValidationError
	var ibErr *InsufficientBalanceError
	switch {
	case errors.As(err, &vErr):
		return fiber.NewError(http.StatusBadRequest, vErr.Reason)
	case errors.As(err, &ibErr):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":             ibErr.Error(),
			"available_balance": ibErr.Available.StringFixed(2),
		})
	case errors.Is(err, ErrSameAccount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, account.ErrAccountClosed):
		return fiber.NewError(http.StatusConflict, "account is closed")
	case errors.Is(err, account.ErrBalanceConflict):
		return fiber.NewError(http.StatusConflict, "balance changed concurrently, retry")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
