package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier writes messages to the log instead of delivering them. It is
// used when no mail relay is configured.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger.Named("notify")}
}

func (n *logNotifier) SendLoginCode(_ context.Context, email, code string, expiresIn time.Duration) error {
	n.logger.Info("login code", zap.String("to", email), zap.String("code", code), zap.Duration("expires_in", expiresIn))
	return nil
}

func (n *logNotifier) SendOrderConfirmation(_ context.Context, order domain.Order) error {
	n.logger.Info("order confirmation",
		zap.String("to", order.ShippingAddress.Email),
		zap.String("order_id", order.OrderID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return nil
}

func (n *logNotifier) SendStatusUpdate(_ context.Context, order domain.Order) error {
	n.logger.Info("status update",
		zap.String("to", order.ShippingAddress.Email),
		zap.String("order_id", order.OrderID),
		zap.String("status", string(order.Status)),
		zap.String("tracking_link", order.TrackingLink),
	)
	return nil
}
