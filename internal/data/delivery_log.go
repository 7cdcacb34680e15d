package data

import (
	"context"
	"log/slog"

	"github.com/butlerbot/relay/internal/biz/repo"
)

// logDeliveryRepo writes replies to the log; used when no chat transport is configured
type logDeliveryRepo struct {
	logger *slog.Logger
}

// NewLogDeliveryRepo creates a delivery repository that only logs
func NewLogDeliveryRepo(logger *slog.Logger) repo.DeliveryRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &logDeliveryRepo{logger: logger.With("component", "delivery")}
}

func (r *logDeliveryRepo) Deliver(ctx context.Context, chatID, text string) error {
	r.logger.Info("reply", "chat_id", chatID, "text", text)
	return nil
}
