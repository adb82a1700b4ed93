package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDeposit indicates funds credited to an account.
	KindDeposit = "deposit"
	// KindWithdrawal indicates funds debited from an account.
	KindWithdrawal = "withdrawal"
	// KindTransfer indicates an intrabank transfer between two accounts.
	KindTransfer = "intrabank_transfer"
	// KindInterbank indicates an outbound Instapay transfer was initiated.
	KindInterbank = "interbank_transfer"
	// KindReversal indicates a failed Instapay transfer was reversed.
	KindReversal = "interbank_reversal"
)

// Message describes a notification payload.
type Message struct {
	Kind      string
	AccountID string
	Reference string
	Body      string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"account_id", message.AccountID,
		"reference", message.Reference,
		"body", message.Body,
	)
	return nil
}
