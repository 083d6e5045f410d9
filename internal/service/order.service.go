package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/observability"
	"storefront/internal/repo"
)

type CreateOrderInput struct {
	Items           []domain.OrderItem
	ShippingAddress domain.ShippingAddress
	CouponCode      string
}

type CreateOrderResult struct {
	OrderID    string
	PaymentURL string
	Order      domain.Order
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*CreateOrderResult, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	ApplyCoupon(ctx context.Context, code string) (*domain.Coupon, error)
}

type OrderConfig struct {
	Currency    string
	CallbackURL string
	// BypassPayment marks orders paid at creation without contacting the
	// gateway. Only for controlled test environments.
	BypassPayment bool
	// LinkTTL bounds how long a payment link accepts payment. Zero leaves it
	// to the gateway.
	LinkTTL time.Duration
}

type orderService struct {
	orders   repo.OrderRepo
	users    repo.UserRepo
	coupons  repo.CouponRepo
	gateway  payment.Gateway
	notifier notify.Notifier
	deliver  bestEffort
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      OrderConfig
	now      func() time.Time
}

func NewOrderService(
	orders repo.OrderRepo,
	users repo.UserRepo,
	coupons repo.CouponRepo,
	gateway payment.Gateway,
	notifier notify.Notifier,
	cfg OrderConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) OrderService {
	logger = nopIfNil(logger).Named("orders")
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &orderService{
		orders:   orders,
		users:    users,
		coupons:  coupons,
		gateway:  gateway,
		notifier: notifier,
		deliver:  bestEffort{logger: logger, metrics: metrics},
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*CreateOrderResult, error) {
	if err := domain.ValidateItems(in.Items); err != nil {
		return nil, err
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.UpdateProfile(ctx, userID, domain.ProfileFromAddress(in.ShippingAddress)); err != nil {
		return nil, storeErr("update profile", err)
	}

	coupon, err := s.resolveCoupon(ctx, in.CouponCode)
	if err != nil {
		return nil, err
	}
	discountPct := decimal.Zero
	couponCode := ""
	if coupon != nil {
		discountPct = coupon.Discount
		couponCode = coupon.Code
	}
	totals := domain.ComputeTotals(in.Items, discountPct)

	now := s.now().UTC()
	order := domain.Order{
		OrderID:         domain.NewOrderID(now),
		UserID:          userID,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		CouponCode:      couponCode,
		DiscountPercent: totals.DiscountPercent,
		DiscountAmount:  totals.DiscountAmount,
		Subtotal:        totals.Subtotal,
		TotalAmount:     totals.Total,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.CreateOrder(ctx, &order); err != nil {
		return nil, storeErr("create order", err)
	}

	log := s.logger.With(zap.String("order_id", order.OrderID), zap.String("user_id", userID.String()))

	switch {
	case s.cfg.BypassPayment:
		return s.completeWithoutGateway(ctx, order, "bypass", log)
	case domain.MinorUnits(order.TotalAmount) == 0:
		// Nothing to collect; gateways reject zero-amount links.
		return s.completeWithoutGateway(ctx, order, "free", log)
	}

	link, err := s.gateway.CreatePaymentLink(ctx, payment.LinkRequest{
		OrderID:     order.OrderID,
		AmountMinor: domain.MinorUnits(order.TotalAmount),
		Currency:    s.cfg.Currency,
		Description: "Order " + order.OrderID,
		Customer: payment.Customer{
			Name:  in.ShippingAddress.Name,
			Email: in.ShippingAddress.Email,
			Phone: in.ShippingAddress.Phone,
		},
		CallbackURL: s.callbackURL(order.OrderID),
		ExpiresAt:   s.linkExpiry(now),
	})
	if err != nil {
		s.metrics.PaymentLinkFailed()
		s.compensate(ctx, order.OrderID, log)
		log.Error("payment link failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentLinkFailed, err)
	}

	if err := s.orders.AttachPaymentLink(ctx, order.OrderID, link.ReferenceID, link.URL); err != nil {
		// The buyer never sees this link, so the order is rolled back as well.
		s.compensate(ctx, order.OrderID, log)
		return nil, storeErr("attach payment link", err)
	}
	order.GatewayReferenceID = link.ReferenceID
	order.PaymentURL = link.URL

	s.metrics.OrderCreated("gateway")
	log.Info("order created",
		zap.String("reference_id", link.ReferenceID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return &CreateOrderResult{OrderID: order.OrderID, PaymentURL: link.URL, Order: order}, nil
}

// completeWithoutGateway marks the order paid under a synthetic payment id
// prefixed with mode.
func (s *orderService) completeWithoutGateway(ctx context.Context, order domain.Order, mode string, log *zap.Logger) (*CreateOrderResult, error) {
	paid, err := s.orders.MarkPaid(ctx, order.OrderID, mode+"_"+order.OrderID, s.now().UTC())
	if err != nil {
		s.compensate(ctx, order.OrderID, log)
		return nil, storeErr("mark paid", err)
	}

	s.deliver.send(ctx, "order_confirmation", paid.OrderID, func(ctx context.Context) error {
		return s.notifier.SendOrderConfirmation(ctx, *paid)
	})

	s.metrics.OrderCreated(mode)
	log.Info("order created without gateway", zap.String("mode", mode), zap.String("total", paid.TotalAmount.StringFixed(2)))
	return &CreateOrderResult{OrderID: paid.OrderID, PaymentURL: s.callbackURL(paid.OrderID), Order: *paid}, nil
}

// compensate removes an order whose payment step failed. A failed delete
// leaves a Pending order without a reference for the reconciliation sweep.
func (s *orderService) compensate(ctx context.Context, orderID string, log *zap.Logger) {
	if err := s.orders.DeleteOrder(context.WithoutCancel(ctx), orderID); err != nil {
		log.Error("compensating delete failed, order left for reconciliation", zap.Error(err))
	}
}

// resolveCoupon looks the code up case-insensitively. Unknown codes are
// ignored and yield no discount.
func (s *orderService) resolveCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, nil
	}
	coupon, err := s.coupons.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("unknown coupon ignored", zap.String("coupon_code", code))
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find coupon", err)
	}
	return coupon, nil
}

func (s *orderService) linkExpiry(now time.Time) time.Time {
	if s.cfg.LinkTTL <= 0 {
		return time.Time{}
	}
	return now.Add(s.cfg.LinkTTL)
}

func (s *orderService) callbackURL(orderID string) string {
	if s.cfg.CallbackURL == "" {
		return ""
	}
	u, err := url.Parse(s.cfg.CallbackURL)
	if err != nil {
		s.logger.Warn("invalid callback url", zap.Error(err))
		return ""
	}
	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

func (s *orderService) ApplyCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &domain.ValidationError{Field: "code", Reason: "is required"}
	}
	coupon, err := s.coupons.FindByCode(ctx, domain.NormalizeCouponCode(code))
	if err != nil {
		return nil, storeErr("find coupon", err)
	}
	return coupon, nil
}
