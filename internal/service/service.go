package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/observability"
)

const notifyTimeout = 10 * time.Second

// storeErr classifies a repository failure: domain errors pass through,
// anything else is reported as an unavailable store.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
}

// bestEffort wraps notification delivery. Sends run detached from the caller's
// cancellation because the state they report is already committed; failures
// are logged and counted, never returned.
type bestEffort struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

func (n bestEffort) send(ctx context.Context, kind, orderID string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		n.metrics.NotificationFailed(kind)
		n.logger.Warn("notification failed",
			zap.String("kind", kind),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
