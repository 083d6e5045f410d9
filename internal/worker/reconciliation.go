package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/observability"
	"storefront/internal/repo"
	"storefront/internal/service"
)

const (
	defaultBatch      = 100
	defaultLinkMaxAge = 24 * time.Hour
)

// Report summarises one reconciliation pass.
type Report struct {
	Scanned   int
	Confirmed int
	Cancelled int
	Skipped   int
}

// ReconciliationWorker settles orders the webhook never resolved. Orders with
// a paid link are confirmed through the same path as the webhook, orders whose
// link closed unpaid are cancelled, and orders that never got a link are
// cancelled once the grace period is over. Links still open past LinkMaxAge
// are cancelled at the gateway first.
type ReconciliationWorker struct {
	orders     repo.OrderRepo
	gateway    payment.Gateway
	payments   service.WebhookService
	grace      time.Duration
	linkMaxAge time.Duration
	interval   time.Duration
	batch      int
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

type Options struct {
	Grace      time.Duration
	LinkMaxAge time.Duration
	Interval   time.Duration
	// Batch is the page size of each stuck-order query within a pass.
	Batch int
}

func NewReconciliationWorker(
	orders repo.OrderRepo,
	gateway payment.Gateway,
	payments service.WebhookService,
	opts Options,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ReconciliationWorker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = defaultBatch
	}
	if opts.LinkMaxAge <= 0 {
		opts.LinkMaxAge = defaultLinkMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationWorker{
		orders:     orders,
		gateway:    gateway,
		payments:   payments,
		grace:      opts.Grace,
		linkMaxAge: opts.LinkMaxAge,
		interval:   opts.Interval,
		batch:      opts.Batch,
		metrics:    metrics,
		logger:     logger.Named("reconciliation"),
		now:        time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (rw *ReconciliationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started", zap.Duration("interval", rw.interval))
	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return nil
		case <-ticker.C:
			if _, err := rw.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rw.logger.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep over every stuck order, a page at a time.
// Orders left Pending are passed over by the cursor, so they never hold back
// the rest. Per-order gateway errors are logged and the order is retried on
// the next pass.
func (rw *ReconciliationWorker) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		cursor repo.StuckCursor
	)
	now := rw.now().UTC()
	cutoff := now.Add(-rw.grace)

	for {
		stuck, err := rw.orders.FindStuckOrders(ctx, cutoff, cursor, rw.batch)
		if err != nil {
			return report, err
		}
		report.Scanned += len(stuck)

		for _, order := range stuck {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			switch rw.settle(ctx, order, now) {
			case "confirmed":
				report.Confirmed++
			case "cancelled":
				report.Cancelled++
			default:
				report.Skipped++
			}
		}

		if len(stuck) < rw.batch {
			break
		}
		cursor = repo.CursorAfter(stuck[len(stuck)-1])
	}

	if report.Scanned > 0 {
		rw.logger.Info("reconciliation pass finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("confirmed", report.Confirmed),
			zap.Int("cancelled", report.Cancelled),
			zap.Int("skipped", report.Skipped),
		)
	}
	return report, nil
}

func (rw *ReconciliationWorker) settle(ctx context.Context, order domain.Order, now time.Time) string {
	log := rw.logger.With(zap.String("order_id", order.OrderID))

	if order.GatewayReferenceID == "" {
		return rw.cancel(ctx, order, log, "no payment link")
	}

	link, err := rw.gateway.FetchPaymentLink(ctx, order.GatewayReferenceID)
	switch {
	case errors.Is(err, payment.ErrLinkNotFound):
		return rw.cancel(ctx, order, log, "payment link unknown to gateway")
	case err != nil:
		log.Warn("fetch payment link failed", zap.Error(err))
		return "skipped"
	}

	switch {
	case link.Status == payment.LinkPaid:
		paidAt := link.PaidAt
		if paidAt.IsZero() {
			paidAt = rw.now().UTC()
		}
		outcome, err := rw.payments.ConfirmPayment(ctx, order.GatewayReferenceID, link.PaymentID, paidAt)
		if err != nil {
			log.Warn("confirm payment failed", zap.Error(err))
			return "skipped"
		}
		if outcome != service.OutcomeConfirmed {
			return "skipped"
		}
		rw.metrics.Reconciled("confirmed")
		log.Info("missed payment confirmed", zap.String("payment_id", link.PaymentID))
		return "confirmed"
	case link.Status.Closed():
		return rw.cancel(ctx, order, log, "payment link "+string(link.Status))
	case now.Sub(order.CreatedAt) > rw.linkMaxAge:
		// A payment racing this call makes the cancel fail; the next pass
		// then sees the link paid.
		if err := rw.gateway.CancelPaymentLink(ctx, order.GatewayReferenceID); err != nil && !errors.Is(err, payment.ErrLinkNotFound) {
			log.Warn("cancel stale payment link failed", zap.Error(err))
			return "skipped"
		}
		return rw.cancel(ctx, order, log, "payment link open past max age")
	default:
		return "skipped"
	}
}

func (rw *ReconciliationWorker) cancel(ctx context.Context, order domain.Order, log *zap.Logger, reason string) string {
	ok, err := rw.orders.CancelUnpaid(ctx, order.OrderID)
	if err != nil {
		log.Warn("cancel unpaid order failed", zap.Error(err))
		return "skipped"
	}
	if !ok {
		return "skipped"
	}
	rw.metrics.Reconciled("cancelled")
	log.Info("abandoned order cancelled", zap.String("reason", reason))
	return "cancelled"
}
