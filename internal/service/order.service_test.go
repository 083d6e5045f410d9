package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repo/memrepo"
)

var gatewayConfig = OrderConfig{Currency: "INR", CallbackURL: "https://shop.test/payment/success"}

func TestCreateOrderWithoutCoupon(t *testing.T) {
	f := newFixture(t)
	svc := f.orderService(gatewayConfig)

	res, err := svc.CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("120.00", "80.00"),
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, res.OrderID)
	assert.Equal(t, "https://pay.test/plink_mock_000001", res.PaymentURL)

	stored, err := f.orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(stored.Subtotal))
	assert.True(t, decimal.Zero.Equal(stored.DiscountAmount))
	assert.True(t, decimal.NewFromInt(200).Equal(stored.TotalAmount))
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus)
	assert.Equal(t, "plink_mock_000001", stored.GatewayReferenceID)
	assert.Equal(t, res.PaymentURL, stored.PaymentURL)

	require.Len(t, f.gateway.Requests, 1)
	req := f.gateway.Requests[0]
	assert.Equal(t, int64(20000), req.AmountMinor)
	assert.Equal(t, "INR", req.Currency)
	assert.Equal(t, "buyer@example.com", req.Customer.Email)
	cb, err := url.Parse(req.CallbackURL)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, cb.Query().Get("order_id"))

	// Nothing is sent until the payment is confirmed.
	assert.Empty(t, f.notifier.Sent())
}

func TestCreateOrderAppliesCouponCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	svc := f.orderService(gatewayConfig)

	res, err := svc.CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("120.00", "80.00"),
		ShippingAddress: address(),
		CouponCode:      " save10 ",
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.True(t, decimal.NewFromInt(20).Equal(o.DiscountAmount), o.DiscountAmount.String())
	assert.True(t, decimal.NewFromInt(180).Equal(o.TotalAmount), o.TotalAmount.String())
	assert.Equal(t, int64(18000), f.gateway.Requests[0].AmountMinor)
}

func TestCreateOrderIgnoresUnknownCoupon(t *testing.T) {
	f := newFixture(t)
	svc := f.orderService(gatewayConfig)

	res, err := svc.CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("200.00"),
		ShippingAddress: address(),
		CouponCode:      "NOPE",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Order.CouponCode)
	assert.True(t, decimal.NewFromInt(200).Equal(res.Order.TotalAmount))
}

func TestCreateOrderUpdatesProfileFromAddress(t *testing.T) {
	f := newFixture(t)
	_, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("10.00"),
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	user, err := f.users.FindByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", user.Name)
	assert.Equal(t, "Bengaluru", user.City)
	assert.Equal(t, "560001", user.Pincode)
}

func TestCreateOrderValidation(t *testing.T) {
	missingCity := address()
	missingCity.City = ""

	tests := []struct {
		name string
		in   CreateOrderInput
	}{
		{"no items", CreateOrderInput{ShippingAddress: address()}},
		{"incomplete address", CreateOrderInput{Items: items("10.00"), ShippingAddress: missingCity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, f.orders.Len())
			assert.Empty(t, f.gateway.Requests)
		})
	}
}

func TestCreateOrderGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.Err = errors.New("gateway timeout")

	_, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("50.00"),
		ShippingAddress: address(),
	})
	require.ErrorIs(t, err, domain.ErrPaymentLinkFailed)
	assert.Zero(t, f.orders.Len())
	assert.Empty(t, f.notifier.Sent())
}

func TestCreateOrderGatewayFailureWithFailedDeleteLeavesOrphan(t *testing.T) {
	f := newFixture(t)
	f.gateway.Err = errors.New("gateway timeout")
	f.orders.FailDelete = errors.New("connection reset")

	_, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("50.00"),
		ShippingAddress: address(),
	})
	require.ErrorIs(t, err, domain.ErrPaymentLinkFailed)

	all, err := f.orders.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.OrderPending, all[0].Status)
	assert.Empty(t, all[0].GatewayReferenceID)
}

func TestCreateOrderStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.FailCreate = errors.New("pool exhausted")

	_, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("50.00"),
		ShippingAddress: address(),
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Empty(t, f.gateway.Requests)
}

func TestCreateOrderBypassMarksPaidAndNotifies(t *testing.T) {
	f := newFixture(t)
	cfg := gatewayConfig
	cfg.BypassPayment = true

	res, err := f.orderService(cfg).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("99.50"),
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	assert.Empty(t, f.gateway.Requests)
	assert.Contains(t, res.PaymentURL, "order_id="+url.QueryEscape(res.OrderID))

	stored, err := f.orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, 1, f.notifier.Count("order_confirmation"))
}

func TestCreateOrderBypassSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")
	cfg := gatewayConfig
	cfg.BypassPayment = true

	res, err := f.orderService(cfg).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("10.00"),
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	stored, err := f.orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
}

func TestCreateOrderZeroTotalSkipsGateway(t *testing.T) {
	f := newFixture(t)
	f.coupons = memrepo.NewCoupons(domain.Coupon{Code: "ONUS", Discount: decimal.NewFromInt(100)})

	res, err := f.orderService(gatewayConfig).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("250.00"),
		ShippingAddress: address(),
		CouponCode:      "onus",
	})
	require.NoError(t, err)
	assert.Empty(t, f.gateway.Requests)
	assert.Contains(t, res.PaymentURL, "order_id="+url.QueryEscape(res.OrderID))

	stored, err := f.orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.IsZero())
	assert.Equal(t, domain.OrderPaid, stored.Status)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, "free_"+res.OrderID, stored.GatewayPaymentID)
	assert.Equal(t, 1, f.notifier.Count("order_confirmation"))
}

func TestCreateOrderSetsLinkExpiry(t *testing.T) {
	f := newFixture(t)
	cfg := gatewayConfig
	cfg.LinkTTL = 6 * time.Hour

	before := time.Now().UTC()
	_, err := f.orderService(cfg).CreateOrder(context.Background(), f.user.ID, CreateOrderInput{
		Items:           items("10.00"),
		ShippingAddress: address(),
	})
	require.NoError(t, err)

	require.Len(t, f.gateway.Requests, 1)
	expires := f.gateway.Requests[0].ExpiresAt
	assert.False(t, expires.Before(before.Add(6*time.Hour)))
	assert.True(t, expires.Before(time.Now().UTC().Add(6*time.Hour+time.Second)))
}

func TestListForUserOnlyReturnsOwnOrders(t *testing.T) {
	f := newFixture(t)
	svc := f.orderService(gatewayConfig)
	ctx := context.Background()

	for range 2 {
		_, err := svc.CreateOrder(ctx, f.user.ID, CreateOrderInput{Items: items("10.00"), ShippingAddress: address()})
		require.NoError(t, err)
	}
	other := uuid.New()
	f.users.Put(domain.User{ID: other, Email: "other@example.com"})
	_, err := svc.CreateOrder(ctx, other, CreateOrderInput{Items: items("10.00"), ShippingAddress: address()})
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, f.user.ID, o.UserID)
	}

	none, err := svc.ListForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	svc := f.orderService(gatewayConfig)

	c, err := svc.ApplyCoupon(context.Background(), "Save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.Code)
	assert.True(t, decimal.NewFromInt(10).Equal(c.Discount))

	_, err = svc.ApplyCoupon(context.Background(), "BOGUS")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ApplyCoupon(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
