package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/observability"
	"storefront/internal/repo"
)

// WebhookOutcome says what a callback did. Every outcome is acknowledged to
// the gateway.
type WebhookOutcome string

const (
	OutcomeConfirmed        WebhookOutcome = "confirmed"
	OutcomeDuplicate        WebhookOutcome = "duplicate"
	OutcomeUnknownReference WebhookOutcome = "unknown_reference"
	OutcomeIgnored          WebhookOutcome = "ignored"
)

type WebhookService interface {
	// HandleEvent authenticates and applies a raw gateway callback.
	HandleEvent(ctx context.Context, body []byte, signature string) (WebhookOutcome, error)
	// ConfirmPayment applies a payment confirmation for a gateway reference.
	// It is idempotent: replays leave the stored payment untouched.
	ConfirmPayment(ctx context.Context, referenceID, paymentID string, paidAt time.Time) (WebhookOutcome, error)
}

type webhookService struct {
	orders   repo.OrderRepo
	notifier notify.Notifier
	deliver  bestEffort
	secret   string
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewWebhookService(
	orders repo.OrderRepo,
	notifier notify.Notifier,
	secret string,
	logger *zap.Logger,
	metrics *observability.Metrics,
) WebhookService {
	logger = nopIfNil(logger).Named("webhook")
	return &webhookService{
		orders:   orders,
		notifier: notifier,
		deliver:  bestEffort{logger: logger, metrics: metrics},
		secret:   secret,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if !payment.VerifySignature(body, signature, s.secret) {
		s.metrics.WebhookEvent("rejected")
		s.logger.Warn("webhook signature mismatch", zap.Bool("signature_present", signature != ""))
		return "", domain.ErrInvalidSignature
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		s.metrics.WebhookEvent("malformed")
		return "", &domain.ValidationError{Field: "body", Reason: "is not a valid event: " + err.Error()}
	}

	if event.Type != payment.EventPaymentLinkPaid {
		s.metrics.WebhookEvent(string(OutcomeIgnored))
		s.logger.Debug("webhook event ignored", zap.String("event", event.Type))
		return OutcomeIgnored, nil
	}
	if event.LinkID() == "" || event.PaymentID() == "" {
		s.metrics.WebhookEvent("malformed")
		return "", &domain.ValidationError{Field: "payload", Reason: "missing payment link or payment id"}
	}

	return s.ConfirmPayment(ctx, event.LinkID(), event.PaymentID(), event.PaidAt(s.now()))
}

func (s *webhookService) ConfirmPayment(ctx context.Context, referenceID, paymentID string, paidAt time.Time) (WebhookOutcome, error) {
	log := s.logger.With(zap.String("reference_id", referenceID), zap.String("payment_id", paymentID))

	order, applied, err := s.orders.ConfirmPayment(ctx, referenceID, paymentID, paidAt)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.WebhookEvent(string(OutcomeUnknownReference))
		log.Info("payment for unknown reference acknowledged")
		return OutcomeUnknownReference, nil
	case err != nil:
		s.metrics.WebhookEvent("error")
		return "", storeErr("confirm payment", err)
	case !applied:
		s.metrics.WebhookEvent(string(OutcomeDuplicate))
		log.Info("duplicate payment confirmation", zap.String("order_id", order.OrderID))
		return OutcomeDuplicate, nil
	}

	s.metrics.WebhookEvent(string(OutcomeConfirmed))
	log.Info("payment confirmed", zap.String("order_id", order.OrderID))

	// Only the delivery that won the conditional write notifies.
	s.deliver.send(ctx, "order_confirmation", order.OrderID, func(ctx context.Context) error {
		return s.notifier.SendOrderConfirmation(ctx, *order)
	})
	return OutcomeConfirmed, nil
}
