package interbank

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the switch-facing message describing an outbound transfer. The
// posting engine builds it; transmitting it is the caller's concern.
type Payload struct {
	ReferenceNumber     string          `json:"reference_number"`
	SourceAccountNumber string          `json:"source_account_number"`
	BankCode            string          `json:"bank_code"`
	BankName            string          `json:"bank_name"`
	DestAccountNumber   string          `json:"dest_account_number"`
	DestAccountName     string          `json:"dest_account_name"`
	Amount              decimal.Decimal `json:"amount"`
	SentAt              time.Time       `json:"sent_at"`
}

// Gateway represents a connector to the external payment switch. The result
// of a Send arrives later through the callback endpoint, not the return value.
type Gateway interface {
	Send(ctx context.Context, payload Payload) error
}

// LoggerGateway is a stub connector that writes payloads to the logger.
type LoggerGateway struct {
	logger *slog.Logger
}

// NewLoggerGateway constructs a logging gateway stub.
func NewLoggerGateway(logger *slog.Logger) *LoggerGateway {
	return &LoggerGateway{logger: logger}
}

// Send writes the payload to the structured logger.
func (g *LoggerGateway) Send(_ context.Context, payload Payload) error {
	if g == nil || g.logger == nil {
		return nil
	}
	g.logger.Info("interbank payload dispatched",
		"reference", payload.ReferenceNumber,
		"bank_code", payload.BankCode,
		"dest_account", payload.DestAccountNumber,
		"amount", payload.Amount.StringFixed(2),
	)
	return nil
}
