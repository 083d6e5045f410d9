package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo/memrepo"
)

const testWebhookSecret = "whsec_test"

type fixture struct {
	orders   *memrepo.Orders
	users    *memrepo.Users
	coupons  *memrepo.Coupons
	gateway  *payment.MockGateway
	notifier *notify.Recorder
	tokens   *auth.TokenIssuer
	user     domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   memrepo.NewOrders(),
		users:    memrepo.NewUsers(),
		coupons:  memrepo.NewCoupons(domain.Coupon{Code: "SAVE10", Discount: decimal.NewFromInt(10)}),
		gateway:  payment.NewMockGateway("https://pay.test"),
		notifier: &notify.Recorder{},
		tokens:   auth.NewTokenIssuer("test-secret", time.Minute),
		user:     domain.User{ID: uuid.New(), Email: "buyer@example.com"},
	}
	f.users.Put(f.user)
	return f
}

func (f *fixture) orderService(cfg OrderConfig) OrderService {
	return NewOrderService(f.orders, f.users, f.coupons, f.gateway, f.notifier, cfg, nil, nil)
}

func (f *fixture) webhookService() WebhookService {
	return NewWebhookService(f.orders, f.notifier, testWebhookSecret, nil, nil)
}

func (f *fixture) adminService() AdminService {
	return NewAdminService(f.orders, f.notifier, nil, nil)
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:    "Asha Rao",
		Phone:   "9876543210",
		Email:   "buyer@example.com",
		Address: "12 MG Road",
		City:    "Bengaluru",
		Pincode: "560001",
	}
}

func items(prices ...string) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(prices))
	for i, p := range prices {
		out = append(out, domain.OrderItem{
			ProductID: uuid.NewString(),
			Name:      "Item " + string(rune('A'+i)),
			Price:     decimal.RequireFromString(p),
			Quantity:  1,
		})
	}
	return out
}

// pendingOrder stores an unpaid order holding reference ref.
func (f *fixture) pendingOrder(t *testing.T, ref string, createdAt time.Time) domain.Order {
	t.Helper()
	totals := domain.ComputeTotals(items("100.00"), decimal.Zero)
	o := domain.Order{
		OrderID:            domain.NewOrderID(createdAt),
		UserID:             f.user.ID,
		Items:              items("100.00"),
		ShippingAddress:    address(),
		Subtotal:           totals.Subtotal,
		DiscountPercent:    totals.DiscountPercent,
		DiscountAmount:     totals.DiscountAmount,
		TotalAmount:        totals.Total,
		Status:             domain.OrderPending,
		PaymentStatus:      domain.PaymentPending,
		GatewayReferenceID: ref,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	f.orders.Put(o)
	return o
}
